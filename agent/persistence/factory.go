package persistence

import (
	"fmt"

	"go.uber.org/zap"
)

// NewSnapshotStore creates a SnapshotStore based on the configuration
func NewSnapshotStore(config StoreConfig, logger *zap.Logger) (SnapshotStore, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemorySnapshotStore(), nil
	case StoreTypeFile:
		return NewFileSnapshotStore(config)
	case StoreTypeRedis:
		return NewRedisSnapshotStore(config)
	case StoreTypeBolt:
		return NewBoltSnapshotStore(config)
	case StoreTypeSQL:
		return NewSQLSnapshotStore(config, logger)
	default:
		return nil, fmt.Errorf("unsupported snapshot store type: %s", config.Type)
	}
}
