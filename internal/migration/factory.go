package migration

import (
	"fmt"

	appconfig "github.com/BaSui01/agentdesk/config"
	"go.uber.org/zap"
)

// NewMigratorFromConfig 使用快照存储的 SQL 驱动与 DSN 创建迁移器
func NewMigratorFromConfig(cfg *appconfig.Config, logger *zap.Logger) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return NewMigratorFromPersistenceConfig(cfg.Persistence, logger)
}

// NewMigratorFromPersistenceConfig 从 persistence 配置段创建迁移器
func NewMigratorFromPersistenceConfig(p appconfig.PersistenceConfig, logger *zap.Logger) (*DefaultMigrator, error) {
	if p.SQLDSN == "" {
		return nil, fmt.Errorf("persistence.sql_dsn is required for migrations")
	}
	return NewMigratorFromURL(p.SQLDriver, p.SQLDSN, logger)
}

// NewMigratorFromURL 从驱动名与连接串创建迁移器
func NewMigratorFromURL(dbType, dbURL string, logger *zap.Logger) (*DefaultMigrator, error) {
	dt, err := ParseDatabaseType(dbType)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}
	return NewMigrator(&Config{
		DatabaseType: dt,
		DatabaseURL:  dbURL,
		TableName:    DefaultTableName,
	}, logger)
}
