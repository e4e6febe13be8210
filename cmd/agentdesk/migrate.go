package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/BaSui01/agentdesk/config"
	"github.com/BaSui01/agentdesk/internal/migration"
	"go.uber.org/zap"
)

// =============================================================================
// 🗄️ 数据库迁移命令
// =============================================================================

// runMigrate 处理 migrate 子命令：agentdesk migrate <command> [flags] [arg]
func runMigrate(args []string) {
	if len(args) < 1 || isHelp(args[0]) {
		printMigrateUsage()
		if len(args) < 1 {
			os.Exit(1)
		}
		return
	}

	command := args[0]
	fs := flag.NewFlagSet("migrate "+command, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	fs.Parse(args[1:])

	logger := initLogger(config.LogConfig{Level: "warn", Format: "console", OutputPaths: []string{"stderr"}})
	defer logger.Sync()

	migrator, err := createMigrator(*configPath, *dbType, *dbURL, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)
	if err := cli.Run(context.Background(), command, fs.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", command, err)
		os.Exit(1)
	}
}

// createMigrator 优先使用命令行给出的数据库；否则使用 persistence 配置中的 SQL DSN
func createMigrator(configPath, dbType, dbURL string, logger *zap.Logger) (*migration.DefaultMigrator, error) {
	if dbType != "" && dbURL != "" {
		return migration.NewMigratorFromURL(dbType, dbURL, logger)
	}

	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbType != "" {
		cfg.Persistence.SQLDriver = dbType
	}
	if dbURL != "" {
		cfg.Persistence.SQLDSN = dbURL
	}
	return migration.NewMigratorFromPersistenceConfig(cfg.Persistence, logger)
}

func isHelp(arg string) bool {
	switch arg {
	case "help", "-h", "--help":
		return true
	}
	return false
}

func printMigrateUsage() {
	fmt.Print(`Database Migration Commands

Usage:
  agentdesk migrate <command> [options] [argument]

Commands:
  up          Apply all pending migrations
  down        Rollback the last migration
  down-all    Rollback all migrations
  steps <n>   Apply n migrations (negative rolls back)
  goto <v>    Migrate to a specific version
  force <v>   Force set migration version (use with caution)
  version     Show current migration version
  status      Show status of every migration
  info        Show database type, version and pending count

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: persistence.sql_driver)
  --db-url <url>      Database connection URL (default: persistence.sql_dsn)

Examples:
  agentdesk migrate up
  agentdesk migrate status --config /etc/agentdesk/config.yaml
  agentdesk migrate goto --db-type sqlite --db-url sqlite3://agentdesk.db 1
`)
}
