// Package storage implements the blob half of the remote store adapter.
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/studyhub/studyhub/internal/remote"
)

var ErrNotFound = errors.New("blob not found")

// PublicURL joins the public prefix and the escaped blob path.
func PublicURL(prefix string, ref remote.BlobRef) string {
	parts := strings.Split(ref.Path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.Join(parts, "/")
}

func contentType(f *remote.File) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	return http.DetectContentType(f.Data)
}

// MemoryStore keeps blobs in process memory. Used for tests and when no MinIO
// endpoint is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	blobs     map[string][]byte
	publicURL string
}

var _ remote.BlobStore = (*MemoryStore)(nil)

func NewMemoryStore(publicURL string) *MemoryStore {
	if publicURL == "" {
		publicURL = "/files"
	}
	return &MemoryStore{blobs: make(map[string][]byte), publicURL: publicURL}
}

func (m *MemoryStore) Store(_ context.Context, path string, f *remote.File) (remote.BlobRef, error) {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	m.mu.Lock()
	m.blobs[path] = data
	m.mu.Unlock()
	return remote.BlobRef{Path: path}, nil
}

func (m *MemoryStore) ResolveURL(_ context.Context, ref remote.BlobRef) (string, error) {
	m.mu.RLock()
	_, ok := m.blobs[ref.Path]
	m.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	return PublicURL(m.publicURL, ref), nil
}

func (m *MemoryStore) Open(_ context.Context, ref remote.BlobRef) (io.ReadCloser, error) {
	m.mu.RLock()
	data, ok := m.blobs[ref.Path]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Len reports the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
