package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/agentdesk/internal/tlsutil"
	"github.com/redis/go-redis/v9"
)

// RedisSnapshotStore keeps each conversation as a Redis list of records.
// Suitable for multi-instance deployments.
type RedisSnapshotStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ownClient bool
}

// NewRedisSnapshotStore connects to Redis and verifies the connection.
func NewRedisSnapshotStore(config StoreConfig) (*RedisSnapshotStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize:  config.Redis.PoolSize,
		TLSConfig: tlsutil.RedisConfig(config.Redis.TLS, config.Redis.Addr),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := NewRedisSnapshotStoreWithClient(client, config.Redis.KeyPrefix)
	store.ownClient = true
	return store, nil
}

// NewRedisSnapshotStoreWithClient wraps an existing client. The caller keeps
// ownership of the client.
func NewRedisSnapshotStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisSnapshotStore {
	if keyPrefix == "" {
		keyPrefix = "agentdesk:"
	}
	return &RedisSnapshotStore{
		client:    client,
		keyPrefix: keyPrefix + "conversation:",
	}
}

func (s *RedisSnapshotStore) listKey(key string) string {
	return s.keyPrefix + key
}

// Save replaces the list in one MULTI/EXEC transaction.
func (s *RedisSnapshotStore) Save(ctx context.Context, key string, records []json.RawMessage) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	lk := s.listKey(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, lk)
		if len(records) > 0 {
			values := make([]any, len(records))
			for i, r := range records {
				values[i] = []byte(r)
			}
			pipe.RPush(ctx, lk, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save snapshot %s: %w", key, err)
	}
	return nil
}

// Load returns the list contents in order.
func (s *RedisSnapshotStore) Load(ctx context.Context, key string) ([]json.RawMessage, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	values, err := s.client.LRange(ctx, s.listKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load snapshot %s: %w", key, err)
	}
	records := make([]json.RawMessage, len(values))
	for i, v := range values {
		records[i] = json.RawMessage(v)
	}
	return records, nil
}

// Close closes the client when the store created it.
func (s *RedisSnapshotStore) Close() error {
	if !s.ownClient {
		return nil
	}
	return s.client.Close()
}

// Ping checks if the store is healthy
func (s *RedisSnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
