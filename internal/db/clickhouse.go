package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/golang-migrate/migrate/v4"
	chmigrate "github.com/golang-migrate/migrate/v4/database/clickhouse"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/ashmitsharp/tradebook/internal/config"
)

// InitClickHouse opens the archive connection and verifies it with a ping.
func InitClickHouse(ctx context.Context, cfg config.ClickhouseConfig, logger *zap.Logger) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Debugf: func(format string, v ...interface{}) {
			logger.Debug(fmt.Sprintf(format, v...), zap.String("component", "clickhouse"))
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return conn, nil
}

// NewMigrator builds a golang-migrate instance for the archive schema at
// sourceURL (for example file://migrations/clickhouse).
func NewMigrator(cfg config.ClickhouseConfig, sourceURL string) (*migrate.Migrate, error) {
	sqlDB := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})

	driver, err := chmigrate.WithInstance(sqlDB, &chmigrate.Config{
		DatabaseName: cfg.Database,
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create clickhouse migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "clickhouse", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// MigrateUp applies every pending archive migration.
func MigrateUp(cfg config.ClickhouseConfig, sourceURL string, logger *zap.Logger) error {
	m, err := NewMigrator(cfg, sourceURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("Archive schema is up to date")
			return nil
		}
		return fmt.Errorf("applying archive migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("Archive migrations applied", zap.Uint("version", version))
	return nil
}
