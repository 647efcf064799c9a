package testutil

import (
	"context"
	"slices"
	"sync"
)

// MemorySink is an in-memory stream.BlobSink.
type MemorySink struct {
	mu    sync.Mutex
	Err   error
	names []string
	blobs map[string][]byte
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{blobs: make(map[string][]byte)}
}

// Save stores data under name, or returns Err when set.
func (s *MemorySink) Save(_ context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.names = append(s.names, name)
	s.blobs[name] = slices.Clone(data)
	return "memory://" + name, nil
}

// Names returns saved blob names in save order.
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.names)
}

// Blob returns the saved data for name.
func (s *MemorySink) Blob(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.blobs[name])
}
