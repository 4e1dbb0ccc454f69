// Package repo implements the data persistence layer for the assistant,
// backed by GORM. This file covers the voice profile, its example corpus,
// and the append-only feedback log.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smadden/go-inbox-assistant/internal/domain"
)

// voiceProfileRow pins the profile to a single row; rebuilds replace it.
const voiceProfileRow = 1

// GetVoiceProfile returns the current profile or ErrNotFound when the voice
// has never been analyzed.
func GetVoiceProfile(ctx context.Context, db *gorm.DB) (*domain.VoiceProfile, error) {
	var p domain.VoiceProfile
	if err := db.WithContext(ctx).Where("id = ?", voiceProfileRow).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// SaveVoiceProfile replaces the profile wholesale. There are no merge
// semantics: the analyzer always emits a complete document.
func SaveVoiceProfile(ctx context.Context, db *gorm.DB, profileJSON string, emailsAnalyzed int) error {
	row := domain.VoiceProfile{
		ID:             voiceProfileRow,
		ProfileJSON:    profileJSON,
		EmailsAnalyzed: emailsAnalyzed,
		UpdatedAt:      time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"profile_json", "emails_analyzed", "updated_at"}),
		}).
		Create(&row).Error
}

// SaveVoiceExample appends one sent-message sample. A second sample for the
// same source message is silently ignored (unique on email_id).
func SaveVoiceExample(ctx context.Context, db *gorm.DB, ex *domain.VoiceExample) error {
	ex.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(ex).Error; err != nil {
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

// ListVoiceExamples returns the most recent examples, optionally filtered by
// recipient type. Used to seed the drafting prompt with a few real samples.
func ListVoiceExamples(ctx context.Context, db *gorm.DB, recipientType string, limit int) ([]domain.VoiceExample, error) {
	var out []domain.VoiceExample
	q := db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
	if recipientType != "" {
		q = q.Where("recipient_type = ?", recipientType)
	}
	err := q.Find(&out).Error
	return out, err
}

// AppendVoiceFeedback appends one feedback entry (edit diff or free text).
func AppendVoiceFeedback(ctx context.Context, db *gorm.DB, draftID, feedbackType, content string) error {
	row := domain.VoiceFeedback{
		DraftID:   draftID,
		Type:      feedbackType,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(&row).Error
}

// ListRecentFeedback returns the newest feedback entries, bounded by limit.
// Nothing beyond this window is ever replayed into prompts.
func ListRecentFeedback(ctx context.Context, db *gorm.DB, limit int) ([]domain.VoiceFeedback, error) {
	var out []domain.VoiceFeedback
	err := db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
