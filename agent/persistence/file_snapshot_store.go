package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSnapshotStore keeps one JSON array file per conversation.
// Suitable for single-node deployments.
type FileSnapshotStore struct {
	baseDir string
	mu      sync.Mutex
	closed  bool
}

// NewFileSnapshotStore creates a new file-based snapshot store
func NewFileSnapshotStore(config StoreConfig) (*FileSnapshotStore, error) {
	if config.BaseDir == "" {
		return nil, fmt.Errorf("%w: base_dir is required for file store", ErrInvalidInput)
	}
	if err := os.MkdirAll(config.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileSnapshotStore{baseDir: config.BaseDir}, nil
}

func (s *FileSnapshotStore) path(key string) string {
	return filepath.Join(s.baseDir, key+".json")
}

// Save writes the snapshot atomically: temp file then rename.
func (s *FileSnapshotStore) Save(_ context.Context, key string, records []json.RawMessage) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	target := s.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// Load reads the snapshot. A missing or empty file is an empty snapshot.
// The top-level array is split into raw records so one broken record does
// not hide the others; a file that is not a JSON array at all is an error.
func (s *FileSnapshotStore) Load(_ context.Context, key string) ([]json.RawMessage, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("snapshot %s is not a JSON array: %w", key, err)
	}
	return records, nil
}

// Close closes the store
func (s *FileSnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks the base directory is still reachable.
func (s *FileSnapshotStore) Ping(context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrStoreClosed
	}
	_, err := os.Stat(s.baseDir)
	return err
}
