// Package repo implements the data persistence layer for the assistant,
// backed by GORM. This file provides the de-duplication guard: write-once
// ProcessedMessage rows keyed by (message_id, source).
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/smadden/go-inbox-assistant/internal/domain"
)

// IsProcessed reports whether a message from the given source was already
// evaluated. Existence of the row is the whole contract.
func IsProcessed(ctx context.Context, db *gorm.DB, messageID string, source domain.DraftSource) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ProcessedMessage{}).
		Where("message_id = ? AND source = ?", messageID, source).
		Count(&n).Error
	return n > 0, err
}

// MarkProcessed records that a message was evaluated, storing the
// classification snapshot for audit. Marking an already-marked message is a
// no-op, not an error: the second insert's unique violation is swallowed so
// both admission paths can call this without coordination.
func MarkProcessed(ctx context.Context, db *gorm.DB, messageID string, source domain.DraftSource, classification string) error {
	rec := &domain.ProcessedMessage{
		MessageID:      messageID,
		Source:         source,
		ProcessedAt:    time.Now().UTC(),
		Classification: classification,
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE/PK violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil
		}
		return err
	}
	return nil
}
