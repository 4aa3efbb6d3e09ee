// Package sniffer identifies uploaded item photos by their leading bytes.
// The declared Content-Type is never trusted on its own.
package sniffer

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
)

type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeGIF  MediaType = "gif"
	TypeWEBP MediaType = "webp"
	TypeAVIF MediaType = "avif"
)

// headSize is how much of an upload is inspected.
const headSize = 512

var ErrUnknownType = errors.New("unknown media type")

type Result struct {
	Type MediaType
	MIME string
}

// Extension is the file extension used for object keys.
func (r Result) Extension() string {
	if r.Type == TypeJPEG {
		return "jpg"
	}
	return string(r.Type)
}

// Accepts reports whether a client declared type is consistent with the
// sniffed content. Generic or missing declarations are accepted.
func (r Result) Accepts(declared string) bool {
	switch strings.ToLower(declared) {
	case "", "application/octet-stream":
		return true
	case "image/jpg":
		return r.Type == TypeJPEG
	default:
		return strings.EqualFold(declared, r.MIME)
	}
}

type signature struct {
	result Result
	match  func(head []byte) bool
}

var signatures = []signature{
	{Result{TypeJPEG, "image/jpeg"}, func(h []byte) bool {
		return bytes.HasPrefix(h, []byte{0xff, 0xd8, 0xff})
	}},
	{Result{TypePNG, "image/png"}, func(h []byte) bool {
		return bytes.HasPrefix(h, []byte("\x89PNG\r\n\x1a\n"))
	}},
	{Result{TypeGIF, "image/gif"}, func(h []byte) bool {
		return bytes.HasPrefix(h, []byte("GIF87a")) || bytes.HasPrefix(h, []byte("GIF89a"))
	}},
	{Result{TypeWEBP, "image/webp"}, func(h []byte) bool {
		return len(h) >= 12 && bytes.HasPrefix(h, []byte("RIFF")) && bytes.Equal(h[8:12], []byte("WEBP"))
	}},
	{Result{TypeAVIF, "image/avif"}, func(h []byte) bool {
		return len(h) >= 12 && bytes.Equal(h[4:8], []byte("ftyp")) && bytes.Contains(h[8:], []byte("avif"))
	}},
}

// Detect reads up to 512 bytes from r and classifies them. The bytes read
// are returned so the caller can stitch them back in front of the rest.
func Detect(r io.Reader) (Result, []byte, error) {
	head := make([]byte, headSize)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Result{}, nil, err
	}
	head = head[:n]

	result, err := DetectHead(head)
	return result, head, err
}

func DetectHead(head []byte) (Result, error) {
	for _, sig := range signatures {
		if sig.match(head) {
			return sig.result, nil
		}
	}
	return Result{}, ErrUnknownType
}

// MimeTypeFromHTTP returns the media type of a part header without parameters.
func MimeTypeFromHTTP(header http.Header) string {
	contentType := header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.TrimSpace(contentType)
}
