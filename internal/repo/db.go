// Package repo implements the data persistence layer for the assistant,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/smadden/go-inbox-assistant/internal/domain"
)

// OpenSQLite opens (or creates) the assistant database and applies PRAGMAs.
// Both admission paths (poll cycle and chat event stream) share this single
// handle; WAL plus the busy timeout keep their concurrent writes safe.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// EnableTracing registers the GORM OpenTelemetry plugin on the handle.
// Metrics are skipped; HTTP-level Prometheus metrics cover the service.
func EnableTracing(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}

// AutoMigrate creates or updates the five assistant tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Draft{},
		&domain.ProcessedMessage{},
		&domain.SyncState{},
		&domain.VoiceProfile{},
		&domain.VoiceExample{},
		&domain.VoiceFeedback{},
	)
}
