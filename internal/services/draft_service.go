// Package services – DraftService
//
// This file implements DraftService, the owner of the draft lifecycle state
// machine. Every transition out of pending_review goes through the repo's
// compare-and-swap update, so concurrent decisions (two button clicks, a
// click racing the expiry sweep) resolve to exactly one winner; losers
// surface ErrNotPending.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the draft id and, where relevant, the transition target.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/smadden/go-inbox-assistant/internal/domain"
	"github.com/smadden/go-inbox-assistant/internal/repo"
)

// MailSender is the outbound mail contract the lifecycle needs: reply within
// a thread, and archive the original after a successful send.
type MailSender interface {
	SendReply(ctx context.Context, threadID, to, subject, body, inReplyTo string) (string, error)
	Archive(ctx context.Context, messageID string) error
}

// ChatSender posts an approved chat draft into its origin thread.
type ChatSender interface {
	PostReply(ctx context.Context, channelID, threadTS, text string) error
}

// FeedbackRecorder receives voice feedback produced by lifecycle events.
type FeedbackRecorder interface {
	RecordEditDiff(ctx context.Context, draftID, original, edited string) error
	RecordTextFeedback(ctx context.Context, draftID, feedback string) error
}

// DraftService coordinates draft persistence and the approval flow.
//
// Fields:
//   - DB: GORM handle used for persistence.
//   - Mail / Chat: outbound senders per draft source.
//   - Feedback: optional; edit diffs are recorded on send when present.
//   - TTL: pending drafts older than this are swept to expired.
type DraftService struct {
	DB       *gorm.DB
	Mail     MailSender
	Chat     ChatSender
	Feedback FeedbackRecorder
	TTL      time.Duration
}

// DefaultDraftTTL bounds how long a draft waits for a human decision.
const DefaultDraftTTL = 72 * time.Hour

// NewDraftService constructs a DraftService with the default TTL.
func NewDraftService(db *gorm.DB, mailSender MailSender, chatSender ChatSender, feedback FeedbackRecorder) *DraftService {
	return &DraftService{
		DB:       db,
		Mail:     mailSender,
		Chat:     chatSender,
		Feedback: feedback,
		TTL:      DefaultDraftTTL,
	}
}

// Create persists a new draft in pending_review. The caller fills origin,
// classification snapshot, and generated text.
func (s *DraftService) Create(ctx context.Context, d *domain.Draft) (*domain.Draft, error) {
	tr := otel.Tracer("services/DraftService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("draft.source", string(d.Source))),
	)
	defer span.End()

	if strings.TrimSpace(d.DraftText) == "" {
		return nil, ErrEmptyDraft
	}
	if err := repo.CreateDraft(ctx, s.DB, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns one draft or ErrDraftNotFound.
func (s *DraftService) Get(ctx context.Context, id string) (*domain.Draft, error) {
	d, err := repo.GetDraft(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrDraftNotFound
	}
	return d, err
}

// RecordEdit stores the owner's rewrite of a pending draft. The update is
// conditional on the draft still being pending; a decided draft returns
// ErrNotPending.
func (s *DraftService) RecordEdit(ctx context.Context, id, text string) error {
	tr := otel.Tracer("services/DraftService")
	ctx, span := tr.Start(ctx, "RecordEdit",
		trace.WithAttributes(attribute.String("draft.id", id)),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyDraft
	}
	swapped, err := repo.UpdateEditedText(ctx, s.DB, id, text)
	if err != nil {
		return err
	}
	if !swapped {
		return s.lostRace(ctx, id)
	}
	return nil
}

// ApproveAndSend moves a draft through approved to sent. The send happens
// after the CAS to approved, so a racing second click finds the draft
// already claimed. A failed send leaves the draft in approved: still
// actionable, retryable through this same method, and never silently lost.
func (s *DraftService) ApproveAndSend(ctx context.Context, id string) (*domain.Draft, error) {
	tr := otel.Tracer("services/DraftService")
	ctx, span := tr.Start(ctx, "ApproveAndSend",
		trace.WithAttributes(attribute.String("draft.id", id)),
	)
	defer span.End()

	swapped, err := repo.TransitionStatus(ctx, s.DB, id, domain.StatusPendingReview, domain.StatusApproved)
	if err != nil {
		return nil, err
	}
	// The row is read only after the CAS settles. Reading earlier would let
	// an edit landing between read and swap send the pre-edit text.
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !swapped {
		// Retry path: an earlier approval whose send failed sits in
		// approved and may go again. Everything else lost the race.
		if d.Status != domain.StatusApproved {
			return nil, ErrNotPending
		}
	}

	if err := s.send(ctx, d); err != nil {
		log.Error().Err(err).Str("draft_id", id).Msg("send failed, draft stays approved")
		return nil, err
	}

	if s.Feedback != nil && d.EditedText != nil && strings.TrimSpace(*d.EditedText) != "" {
		if err := s.Feedback.RecordEditDiff(ctx, d.ID, d.DraftText, *d.EditedText); err != nil {
			log.Warn().Err(err).Str("draft_id", id).Msg("failed to record edit diff")
		}
	}

	if _, err := repo.TransitionStatus(ctx, s.DB, id, domain.StatusApproved, domain.StatusSent); err != nil {
		// The reply is out; surface the draft as sent regardless.
		log.Error().Err(err).Str("draft_id", id).Msg("failed to persist sent status after send")
	}
	return s.Get(ctx, id)
}

// send dispatches the display text through the sender matching the source.
func (s *DraftService) send(ctx context.Context, d *domain.Draft) error {
	switch d.Source {
	case domain.SourceChat:
		return s.Chat.PostReply(ctx, d.OriginalChannelID, d.OriginalThreadID, d.DisplayText())
	default:
		_, err := s.Mail.SendReply(ctx, d.OriginalThreadID, d.OriginalFrom, d.DraftSubject, d.DisplayText(), "")
		if err != nil {
			return err
		}
		if aerr := s.Mail.Archive(ctx, d.OriginalMessageID); aerr != nil {
			// Archiving is tidy-up; the reply already went out.
			log.Warn().Err(aerr).Str("draft_id", d.ID).Msg("failed to archive original message")
		}
		return nil
	}
}

// Reject discards a pending draft. A non-empty reason is recorded as voice
// feedback so future drafts improve.
func (s *DraftService) Reject(ctx context.Context, id, reason string) error {
	tr := otel.Tracer("services/DraftService")
	ctx, span := tr.Start(ctx, "Reject",
		trace.WithAttributes(attribute.String("draft.id", id)),
	)
	defer span.End()

	swapped, err := repo.TransitionStatus(ctx, s.DB, id, domain.StatusPendingReview, domain.StatusRejected)
	if err != nil {
		return err
	}
	if !swapped {
		return s.lostRace(ctx, id)
	}
	if s.Feedback != nil && strings.TrimSpace(reason) != "" {
		if err := s.Feedback.RecordTextFeedback(ctx, id, reason); err != nil {
			log.Warn().Err(err).Str("draft_id", id).Msg("failed to record rejection feedback")
		}
	}
	return nil
}

// Skip dismisses a pending draft without feedback.
func (s *DraftService) Skip(ctx context.Context, id string) error {
	tr := otel.Tracer("services/DraftService")
	ctx, span := tr.Start(ctx, "Skip",
		trace.WithAttributes(attribute.String("draft.id", id)),
	)
	defer span.End()

	swapped, err := repo.TransitionStatus(ctx, s.DB, id, domain.StatusPendingReview, domain.StatusSkipped)
	if err != nil {
		return err
	}
	if !swapped {
		return s.lostRace(ctx, id)
	}
	return nil
}

// Expire times out a single pending draft.
func (s *DraftService) Expire(ctx context.Context, id string) error {
	swapped, err := repo.TransitionStatus(ctx, s.DB, id, domain.StatusPendingReview, domain.StatusExpired)
	if err != nil {
		return err
	}
	if !swapped {
		return s.lostRace(ctx, id)
	}
	return nil
}

// ExpireStale sweeps pending drafts older than the TTL to expired and
// returns how many it moved. Drafts decided mid-sweep simply lose their CAS
// and are left alone.
func (s *DraftService) ExpireStale(ctx context.Context) (int, error) {
	tr := otel.Tracer("services/DraftService")
	ctx, span := tr.Start(ctx, "ExpireStale")
	defer span.End()

	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	ids, err := repo.ListStalePending(ctx, s.DB, time.Now().UTC().Add(-ttl))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		switch err := s.Expire(ctx, id); {
		case err == nil:
			expired++
		case errors.Is(err, ErrNotPending), errors.Is(err, ErrDraftNotFound):
			// Decided while the sweep ran.
		default:
			log.Warn().Err(err).Str("draft_id", id).Msg("failed to expire draft")
		}
	}
	if expired > 0 {
		log.Info().Int("count", expired).Msg("expired stale drafts")
	}
	return expired, nil
}

// AttachNotification stores the channel/ts of the rendered approval message.
func (s *DraftService) AttachNotification(ctx context.Context, id, channel, ts string) error {
	return repo.SetNotification(ctx, s.DB, id, channel, ts)
}

// ListPage returns a page of drafts, newest first, optionally filtered by
// status, plus the total count for the filter.
func (s *DraftService) ListPage(ctx context.Context, status domain.DraftStatus, page, pageSize int) ([]domain.Draft, int64, error) {
	tr := otel.Tracer("services/DraftService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("status", string(status)),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountDrafts(ctx, s.DB, status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Draft{}, 0, nil
	}
	items, err := repo.ListDraftsPage(ctx, s.DB, status, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Stats exposes aggregate draft metadata for weak ETag generation.
func (s *DraftService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return repo.DraftsStats(ctx, s.DB)
}

// lostRace translates a failed CAS into the right sentinel: the draft is
// either gone or already decided.
func (s *DraftService) lostRace(ctx context.Context, id string) error {
	if _, err := repo.GetDraft(ctx, s.DB, id); errors.Is(err, repo.ErrNotFound) {
		return ErrDraftNotFound
	} else if err != nil {
		return err
	}
	return ErrNotPending
}
