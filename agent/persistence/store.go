package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/BaSui01/agentdesk/internal/database"
)

// Common errors
var (
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQL    StoreType = "sql"
	StoreTypeBolt   StoreType = "bolt"
)

// SnapshotStore persists whole-conversation snapshots. It satisfies
// conversation.SnapshotStore.
type SnapshotStore interface {
	Save(ctx context.Context, key string, records []json.RawMessage) error
	Load(ctx context.Context, key string) ([]json.RawMessage, error)

	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}

// StoreConfig is the base configuration for all store implementations
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type"`

	// BaseDir is the base directory for file-based storage
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// BoltPath is the database file for the bolt backend
	BoltPath string `json:"bolt_path" yaml:"bolt_path"`

	// Redis configuration (only used when Type is "redis")
	Redis RedisStoreConfig `json:"redis" yaml:"redis"`

	// SQL configuration (only used when Type is "sql")
	SQL SQLStoreConfig `json:"sql" yaml:"sql"`
}

// RedisStoreConfig contains Redis-specific configuration
type RedisStoreConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	PoolSize  int    `json:"pool_size" yaml:"pool_size"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
	TLS       bool   `json:"tls" yaml:"tls"`
}

// SQLStoreConfig contains database-specific configuration
type SQLStoreConfig struct {
	Driver     string              `json:"driver" yaml:"driver"`
	DSN        string              `json:"dsn" yaml:"dsn"`
	Pool       database.PoolConfig `json:"pool" yaml:"pool"`
	MaxRetries int                 `json:"max_retries" yaml:"max_retries"`
	// AutoMigrate creates the table through GORM instead of relying on
	// `agentdesk migrate`. Handy for sqlite.
	AutoMigrate bool `json:"auto_migrate" yaml:"auto_migrate"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:     StoreTypeMemory,
		BaseDir:  "./data/conversations",
		BoltPath: "./data/agentdesk.bolt",
		Redis: RedisStoreConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "agentdesk:",
		},
		SQL: SQLStoreConfig{
			Driver:     database.DriverSQLite,
			DSN:        "./data/agentdesk.db",
			Pool:       database.DefaultPoolConfig(),
			MaxRetries: 3,
		},
	}
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// ValidateKey rejects conversation keys that are unsafe as file names or
// redis key suffixes.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) || key == "." || key == ".." {
		return fmt.Errorf("%w: conversation key %q", ErrInvalidInput, key)
	}
	return nil
}
