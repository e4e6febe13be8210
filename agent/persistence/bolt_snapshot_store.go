package persistence

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var conversationsBucket = []byte("conversations")

// BoltSnapshotStore keeps every conversation in one embedded BoltDB file.
// Each conversation is a nested bucket keyed by big-endian position, so
// ForEach returns records in append order.
// Suitable for single-node deployments that want one file instead of many.
type BoltSnapshotStore struct {
	db *bolt.DB
}

// NewBoltSnapshotStore opens (or creates) the database file.
func NewBoltSnapshotStore(config StoreConfig) (*BoltSnapshotStore, error) {
	if config.BoltPath == "" {
		return nil, fmt.Errorf("%w: bolt_path is required for bolt store", ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(config.BoltPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bolt directory: %w", err)
	}
	db, err := bolt.Open(config.BoltPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(conversationsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltSnapshotStore{db: db}, nil
}

func positionKey(i int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(i))
	return k
}

// Save recreates the conversation bucket so it reflects records exactly.
func (s *BoltSnapshotStore) Save(_ context.Context, key string, records []json.RawMessage) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(conversationsBucket)
		if err := root.DeleteBucket([]byte(key)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		b, err := root.CreateBucket([]byte(key))
		if err != nil {
			return err
		}
		for i, r := range records {
			if err := b.Put(positionKey(i), r); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrStoreClosed
	}
	if err != nil {
		return fmt.Errorf("bolt save snapshot %s: %w", key, err)
	}
	return nil
}

// Load returns the stored records in order. An unknown key is an empty snapshot.
func (s *BoltSnapshotStore) Load(_ context.Context, key string) ([]json.RawMessage, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	var records []json.RawMessage
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationsBucket).Bucket([]byte(key))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			// bolt 的 value 只在事务内有效
			records = append(records, append(json.RawMessage(nil), v...))
			return nil
		})
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return nil, ErrStoreClosed
	}
	if err != nil {
		return nil, fmt.Errorf("bolt load snapshot %s: %w", key, err)
	}
	return records, nil
}

// Close closes the database file
func (s *BoltSnapshotStore) Close() error {
	return s.db.Close()
}

// Ping runs an empty read transaction.
func (s *BoltSnapshotStore) Ping(context.Context) error {
	err := s.db.View(func(*bolt.Tx) error { return nil })
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrStoreClosed
	}
	return err
}
