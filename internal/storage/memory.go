package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Memory keeps objects in a map. It stands in for MinIO when the API runs
// with the memory storage driver.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string
}

func NewMemory(baseURL string) *Memory {
	return &Memory{objects: make(map[string][]byte), baseURL: baseURL}
}

func (m *Memory) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read object %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return m.baseURL + "/" + key, nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Has reports whether key is stored.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}
