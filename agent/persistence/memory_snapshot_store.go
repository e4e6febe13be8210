package persistence

import (
	"context"
	"encoding/json"
	"sync"
)

// MemorySnapshotStore is an in-memory implementation of SnapshotStore.
// Suitable for development and testing.
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string][]json.RawMessage
	closed    bool
}

// NewMemorySnapshotStore creates a new in-memory snapshot store
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snapshots: make(map[string][]json.RawMessage)}
}

// Save replaces the snapshot for key.
func (s *MemorySnapshotStore) Save(_ context.Context, key string, records []json.RawMessage) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	cp := make([]json.RawMessage, len(records))
	for i, r := range records {
		cp[i] = append(json.RawMessage(nil), r...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.snapshots[key] = cp
	return nil
}

// Load returns the snapshot for key, empty when none exists.
func (s *MemorySnapshotStore) Load(_ context.Context, key string) ([]json.RawMessage, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return append([]json.RawMessage(nil), s.snapshots[key]...), nil
}

// Close closes the store
func (s *MemorySnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy
func (s *MemorySnapshotStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}
