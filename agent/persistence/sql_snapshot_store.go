package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/agentdesk/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TurnRecord is one row of a conversation snapshot. The schema is owned by
// internal/migration; AutoMigrate is only a convenience for sqlite.
type TurnRecord struct {
	ID             uint      `gorm:"primaryKey"`
	ConversationID string    `gorm:"size:128;not null;index:idx_conversation_position,priority:1"`
	Position       int       `gorm:"not null;index:idx_conversation_position,priority:2"`
	Payload        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName pins the table name used by the migrations.
func (TurnRecord) TableName() string { return "conversation_turns" }

// SQLSnapshotStore stores snapshots as ordered rows through GORM.
type SQLSnapshotStore struct {
	pool       *database.PoolManager
	maxRetries int
	logger     *zap.Logger
}

// NewSQLSnapshotStore opens the configured database.
func NewSQLSnapshotStore(config StoreConfig, logger *zap.Logger) (*SQLSnapshotStore, error) {
	db, err := database.Open(config.SQL.Driver, config.SQL.DSN, logger)
	if err != nil {
		return nil, err
	}
	pool, err := database.NewPoolManager(db, config.SQL.Pool, logger)
	if err != nil {
		return nil, err
	}
	return NewSQLSnapshotStoreWithPool(pool, config.SQL, logger)
}

// NewSQLSnapshotStoreWithPool wraps an existing pool.
func NewSQLSnapshotStoreWithPool(pool *database.PoolManager, config SQLStoreConfig, logger *zap.Logger) (*SQLSnapshotStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AutoMigrate {
		if err := pool.DB().AutoMigrate(&TurnRecord{}); err != nil {
			return nil, fmt.Errorf("auto migrate conversation_turns: %w", err)
		}
	}
	retries := config.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &SQLSnapshotStore{
		pool:       pool,
		maxRetries: retries,
		logger:     logger.With(zap.String("component", "sql_snapshot_store")),
	}, nil
}

// Save replaces all rows of the conversation inside one transaction.
func (s *SQLSnapshotStore) Save(ctx context.Context, key string, records []json.RawMessage) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	now := time.Now().UTC()
	rows := make([]TurnRecord, len(records))
	for i, r := range records {
		rows[i] = TurnRecord{ConversationID: key, Position: i, Payload: string(r), CreatedAt: now}
	}

	return s.pool.WithTransactionRetry(ctx, s.maxRetries, func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", key).Delete(&TurnRecord{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 100).Error
	})
}

// Load returns the rows ordered by position.
func (s *SQLSnapshotStore) Load(ctx context.Context, key string) ([]json.RawMessage, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	var rows []TurnRecord
	err := s.pool.DB().WithContext(ctx).
		Where("conversation_id = ?", key).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sql load snapshot %s: %w", key, err)
	}
	records := make([]json.RawMessage, len(rows))
	for i, r := range rows {
		records[i] = json.RawMessage(r.Payload)
	}
	return records, nil
}

// Close closes the underlying pool.
func (s *SQLSnapshotStore) Close() error {
	return s.pool.Close()
}

// Stats returns the connection pool statistics.
func (s *SQLSnapshotStore) Stats() sql.DBStats {
	return s.pool.Stats()
}

// Ping checks if the store is healthy
func (s *SQLSnapshotStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
