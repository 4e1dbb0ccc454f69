// Package repo implements the data persistence layer for the assistant,
// backed by GORM. This file provides the SyncState key/value helpers used
// for sync cursors and the persisted OAuth token.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smadden/go-inbox-assistant/internal/domain"
)

// Well-known SyncState keys.
const (
	StateMailHistoryID = "gmail_history_id"
	StateMailToken     = "gmail_token"
)

// GetState returns the value stored under key, or ErrNotFound when the key
// has never been written (callers treat that as "start a full scan").
func GetState(ctx context.Context, db *gorm.DB, key string) (string, error) {
	var row domain.SyncState
	if err := db.WithContext(ctx).Where("key = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return row.Value, nil
}

// SetState upserts the value under key. Cursors are refreshed through this
// at the end of every scan cycle, even when no new messages were found.
func SetState(ctx context.Context, db *gorm.DB, key, value string) error {
	row := domain.SyncState{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
}
