package memory

import (
	"bytes"
	"context"
	"slices"
	"time"

	"swapmarket/internal/models"
	"swapmarket/internal/repository"
)

type sessionRepo struct {
	run access
	now func() time.Time
}

func (r *sessionRepo) Create(_ context.Context, session models.Session) error {
	return r.run(func(st *state) error {
		now := r.now()
		for id, existing := range st.sessions {
			if existing.UserID == session.UserID && existing.DeviceID == session.DeviceID {
				session.CreatedAt = existing.CreatedAt
				delete(st.sessions, id)
			}
		}
		if session.CreatedAt.IsZero() {
			session.CreatedAt = now
		}
		session.LastSeenAt = now
		st.sessions[session.ID] = session
		return nil
	})
}

func (r *sessionRepo) GetByID(_ context.Context, id string) (models.Session, error) {
	var found models.Session
	err := r.run(func(st *state) error {
		session, ok := st.sessions[id]
		if !ok {
			return repository.ErrSessionNotFound
		}
		found = session
		return nil
	})
	return found, err
}

func (r *sessionRepo) FindByRefreshHash(_ context.Context, userID string, hash []byte) (models.Session, error) {
	var found models.Session
	err := r.run(func(st *state) error {
		for _, session := range st.sessions {
			if session.UserID == userID && bytes.Equal(session.RefreshTokenHash, hash) {
				found = session
				return nil
			}
		}
		return repository.ErrSessionNotFound
	})
	return found, err
}

func (r *sessionRepo) ListByUser(_ context.Context, userID string) ([]models.Session, error) {
	var out []models.Session
	err := r.run(func(st *state) error {
		out = userSessions(st, userID)
		return nil
	})
	return out, err
}

func (r *sessionRepo) CountByUser(_ context.Context, userID string) (int, error) {
	var count int
	err := r.run(func(st *state) error {
		for _, session := range st.sessions {
			if session.UserID == userID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *sessionRepo) DeleteOldestSessions(_ context.Context, userID string, keepLatest int) error {
	return r.run(func(st *state) error {
		sessions := userSessions(st, userID)
		if keepLatest < 0 {
			keepLatest = 0
		}
		for i := keepLatest; i < len(sessions); i++ {
			delete(st.sessions, sessions[i].ID)
		}
		return nil
	})
}

func (r *sessionRepo) DeleteByID(_ context.Context, id string) error {
	return r.run(func(st *state) error {
		if _, ok := st.sessions[id]; !ok {
			return repository.ErrSessionNotFound
		}
		delete(st.sessions, id)
		return nil
	})
}

func (r *sessionRepo) DeleteByDevice(_ context.Context, userID, deviceID string) error {
	return r.run(func(st *state) error {
		for id, session := range st.sessions {
			if session.UserID == userID && session.DeviceID == deviceID {
				delete(st.sessions, id)
			}
		}
		return nil
	})
}

func (r *sessionRepo) Touch(_ context.Context, id, ip, userAgent string) error {
	return r.run(func(st *state) error {
		session, ok := st.sessions[id]
		if !ok {
			return nil
		}
		session.LastSeenAt = r.now()
		if ip != "" {
			session.IPAddress = ip
		}
		if userAgent != "" {
			session.UserAgent = userAgent
		}
		st.sessions[id] = session
		return nil
	})
}

// userSessions returns the user's sessions, most recently seen first.
func userSessions(st *state, userID string) []models.Session {
	var sessions []models.Session
	for _, session := range st.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session)
		}
	}
	slices.SortFunc(sessions, func(a, b models.Session) int {
		return b.LastSeenAt.Compare(a.LastSeenAt)
	})
	return sessions
}
