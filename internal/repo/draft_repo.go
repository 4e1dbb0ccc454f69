// Package repo implements the data persistence layer for the assistant,
// backed by GORM. This file provides repository functions for the Draft
// model, including the compare-and-swap status transition that the draft
// lifecycle depends on.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smadden/go-inbox-assistant/internal/domain"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// CreateDraft inserts a new draft row. The caller fills in origin,
// classification snapshot, and content; id, status, and created_at are
// assigned here. Drafts always start in pending_review.
func CreateDraft(ctx context.Context, db *gorm.DB, d *domain.Draft) error {
	d.ID = uuid.NewString()
	d.Status = domain.StatusPendingReview
	d.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(d).Error
}

// GetDraft fetches a draft by ID or returns ErrNotFound.
func GetDraft(ctx context.Context, db *gorm.DB, id string) (*domain.Draft, error) {
	var d domain.Draft
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// timestampColumn maps a status to the terminal timestamp column it stamps.
// Skipped and expired carry no timestamp; only the status changes.
func timestampColumn(s domain.DraftStatus) string {
	switch s {
	case domain.StatusApproved:
		return "approved_at"
	case domain.StatusRejected:
		return "rejected_at"
	case domain.StatusSent:
		return "sent_at"
	}
	return ""
}

// TransitionStatus atomically moves a draft from one status to another.
// The update is conditional on the draft still being observed in `from` at
// write time, so two competing transitions resolve to exactly one winner:
// the loser sees swapped=false and must treat the draft as no longer
// actionable. The matching terminal timestamp is stamped in the same UPDATE.
func TransitionStatus(ctx context.Context, db *gorm.DB, id string, from, to domain.DraftStatus) (swapped bool, err error) {
	updates := map[string]any{"status": to}
	if col := timestampColumn(to); col != "" {
		updates[col] = time.Now().UTC()
	}
	res := db.WithContext(ctx).
		Model(&domain.Draft{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateEditedText stores the user's rewrite. The update is conditional on
// the draft still being pending, so an edit racing a terminal decision can
// never resurrect a decided draft; callers translate swapped=false into a
// not-pending signal.
func UpdateEditedText(ctx context.Context, db *gorm.DB, id, text string) (swapped bool, err error) {
	res := db.WithContext(ctx).
		Model(&domain.Draft{}).
		Where("id = ? AND status = ?", id, domain.StatusPendingReview).
		Update("edited_text", text)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetNotification stores the handle of the rendered approval notification so
// later lifecycle changes can be reflected into the same message.
func SetNotification(ctx context.Context, db *gorm.DB, id, channel, ts string) error {
	return db.WithContext(ctx).
		Model(&domain.Draft{}).
		Where("id = ?", id).
		Updates(map[string]any{"notify_channel": channel, "notify_ts": ts}).Error
}

// CountDrafts returns the number of drafts, optionally filtered by status.
func CountDrafts(ctx context.Context, db *gorm.DB, status domain.DraftStatus) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Draft{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Count(&total).Error
	return total, err
}

// ListDraftsPage returns a page of drafts ordered newest first
// (CreatedAt DESC, ID DESC for determinism), optionally filtered by status.
func ListDraftsPage(ctx context.Context, db *gorm.DB, status domain.DraftStatus, offset, limit int) ([]domain.Draft, error) {
	var out []domain.Draft
	q := db.WithContext(ctx).Order("created_at DESC, id DESC").Offset(offset).Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListStalePending returns the ids of pending drafts created before the
// cutoff. The expiry sweep transitions each through TransitionStatus so the
// usual CAS rules apply.
func ListStalePending(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Draft{}).
		Where("status = ? AND created_at < ?", domain.StatusPendingReview, cutoff).
		Pluck("id", &ids).Error
	return ids, err
}

// DraftsStats returns aggregate metadata for drafts: the total number of rows
// and the most recent CreatedAt. Used for weak ETag generation on listings.
func DraftsStats(ctx context.Context, db *gorm.DB) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Draft{})
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		T *time.Time
	}
	err = db.WithContext(ctx).
		Model(&domain.Draft{}).
		Select("created_at AS t").
		Order("created_at DESC").
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return 0, nil, err
	}
	return count, row.T, nil
}
