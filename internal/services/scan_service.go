// Package services – ScanService
//
// This file implements ScanService, the mail admission path. One Scan cycle
// reads the stored history cursor, lists new inbox messages (degrading to a
// bounded unread fetch when the cursor is gone or expired), refreshes the
// cursor, and walks each message through dedup, classification, and the
// classified action. Errors on a single message never abort the batch.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smadden/go-inbox-assistant/internal/domain"
	"github.com/smadden/go-inbox-assistant/internal/llm"
	"github.com/smadden/go-inbox-assistant/internal/mail"
	"github.com/smadden/go-inbox-assistant/internal/repo"
)

// MailSource is the mailbox contract the scan cycle needs.
type MailSource interface {
	ListUnread(ctx context.Context, max int64) ([]*mail.Message, error)
	ListNewSince(ctx context.Context, historyID uint64, max int64) ([]*mail.Message, error)
	CurrentHistoryID(ctx context.Context) (uint64, error)
	GetThread(ctx context.Context, threadID string) ([]*mail.Message, error)
	Archive(ctx context.Context, messageID string) error
}

// MailTriager classifies one inbound email; always returns a usable result.
type MailTriager interface {
	ClassifyMail(ctx context.Context, in llm.MailInput) domain.MailClassification
}

// MailDrafter writes a reply draft in the owner's voice.
type MailDrafter interface {
	GenerateMailDraft(ctx context.Context, in llm.MailInput, cls domain.MailClassification, threadContext string, voice llm.VoiceContext) (string, error)
}

// VoiceContextProvider supplies the voice material for a drafting call.
type VoiceContextProvider interface {
	Context(ctx context.Context, recipientType string) llm.VoiceContext
}

// DraftNotifier pushes drafts and FYIs to the owner's chat surface.
type DraftNotifier interface {
	NotifyDraft(ctx context.Context, d *domain.Draft) (channel, ts string, err error)
	NotifyFYI(ctx context.Context, from, subject, summary string, priority domain.MailPriority) error
}

// ScanService runs the periodic mail admission cycle.
type ScanService struct {
	DB         *gorm.DB
	Source     MailSource
	Triager    MailTriager
	Drafter    MailDrafter
	Voice      VoiceContextProvider
	Drafts     *DraftService
	Notifier   DraftNotifier
	MaxResults int64
}

const (
	defaultScanBatch = 20

	// threadContextMessages is how many earlier thread messages feed the
	// drafting prompt.
	threadContextMessages = 3

	// threadContextClip caps each context message's body.
	threadContextClip = 500
)

// Scan runs one admission cycle. The cursor is refreshed even when no new
// messages arrived, so the next incremental window stays small.
func (s *ScanService) Scan(ctx context.Context) error {
	tr := otel.Tracer("services/ScanService")
	ctx, span := tr.Start(ctx, "Scan")
	defer span.End()

	max := s.MaxResults
	if max <= 0 {
		max = defaultScanBatch
	}

	msgs, err := s.listNew(ctx, max)
	if err != nil {
		return err
	}

	if hid, err := s.Source.CurrentHistoryID(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to read current history id")
	} else if err := repo.SetState(ctx, s.DB, repo.StateMailHistoryID, strconv.FormatUint(hid, 10)); err != nil {
		log.Warn().Err(err).Msg("failed to store history cursor")
	}

	span.SetAttributes(attribute.Int("messages", len(msgs)))
	if len(msgs) == 0 {
		log.Debug().Msg("no new mail")
		return nil
	}
	log.Info().Int("count", len(msgs)).Msg("new mail found")

	for _, m := range msgs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		seen, err := repo.IsProcessed(ctx, s.DB, m.MessageID, domain.SourceMail)
		if err != nil {
			log.Error().Err(err).Str("message_id", m.MessageID).Msg("dedup check failed")
			continue
		}
		if seen {
			continue
		}
		if err := s.processOne(ctx, m); err != nil {
			log.Error().Err(err).Str("message_id", m.MessageID).Str("from", m.FromEmail).Msg("failed to process email")
		}
	}
	return nil
}

// listNew resolves the cursor and lists accordingly: incremental when a
// cursor exists, bounded unread scan on first run or an unparseable cursor.
func (s *ScanService) listNew(ctx context.Context, max int64) ([]*mail.Message, error) {
	cursor, err := repo.GetState(ctx, s.DB, repo.StateMailHistoryID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("read history cursor: %w", err)
		}
		return s.Source.ListUnread(ctx, max)
	}
	hid, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		log.Warn().Str("cursor", cursor).Msg("unparseable history cursor, falling back to unread scan")
		return s.Source.ListUnread(ctx, max)
	}
	return s.Source.ListNewSince(ctx, hid, max)
}

// processOne classifies a single email, marks it processed, and performs the
// classified action.
func (s *ScanService) processOne(ctx context.Context, m *mail.Message) error {
	in := toMailInput(m)
	cls := s.Triager.ClassifyMail(ctx, in)

	if err := repo.MarkProcessed(ctx, s.DB, m.MessageID, domain.SourceMail, marshalClassification(cls)); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	log.Info().
		Str("from", m.FromEmail).
		Str("category", string(cls.Category)).
		Str("priority", string(cls.Priority)).
		Str("action", string(cls.Action)).
		Msg("email classified")

	switch cls.Action {
	case domain.ActionDraftResponse:
		return s.draftResponse(ctx, m, in, cls)
	case domain.ActionFYIOnly:
		return s.Notifier.NotifyFYI(ctx, m.From(), m.Subject, cls.Summary, cls.Priority)
	case domain.ActionArchive:
		if err := s.Source.Archive(ctx, m.MessageID); err != nil {
			return err
		}
		log.Info().Str("subject", m.Subject).Msg("auto-archived")
	}
	// ActionSkip: nothing to do.
	return nil
}

func (s *ScanService) draftResponse(ctx context.Context, m *mail.Message, in llm.MailInput, cls domain.MailClassification) error {
	threadContext := ""
	if m.IsReply {
		threadContext = s.threadContext(ctx, m)
	}

	voice := s.Voice.Context(ctx, llm.RecipientTypeFor(cls.Category))
	text, err := s.Drafter.GenerateMailDraft(ctx, in, cls, threadContext, voice)
	if err != nil {
		return err
	}

	draft, err := s.Drafts.Create(ctx, &domain.Draft{
		Source:            domain.SourceMail,
		OriginalFrom:      m.FromEmail,
		OriginalSubject:   m.Subject,
		OriginalBody:      m.Snippet,
		OriginalMessageID: m.MessageID,
		OriginalThreadID:  m.ThreadID,
		Category:          string(cls.Category),
		Priority:          string(cls.Priority),
		Summary:           cls.Summary,
		DraftText:         text,
		DraftSubject:      m.Subject,
	})
	if err != nil {
		return err
	}

	channel, ts, err := s.Notifier.NotifyDraft(ctx, draft)
	if err != nil {
		// The draft exists and is listable; only the ping failed.
		log.Warn().Err(err).Str("draft_id", draft.ID).Msg("failed to notify draft")
		return nil
	}
	return s.Drafts.AttachNotification(ctx, draft.ID, channel, ts)
}

// threadContext renders the last few earlier messages of the thread,
// clipped. Failures degrade to drafting without context.
func (s *ScanService) threadContext(ctx context.Context, m *mail.Message) string {
	thread, err := s.Source.GetThread(ctx, m.ThreadID)
	if err != nil {
		log.Warn().Err(err).Str("thread_id", m.ThreadID).Msg("failed to fetch thread context")
		return ""
	}
	if len(thread) <= 1 {
		return ""
	}

	earlier := thread[:len(thread)-1]
	if len(earlier) > threadContextMessages {
		earlier = earlier[len(earlier)-threadContextMessages:]
	}
	parts := make([]string, 0, len(earlier))
	for _, t := range earlier {
		body := t.Snippet
		if len(body) > threadContextClip {
			body = body[:threadContextClip]
		}
		parts = append(parts, fmt.Sprintf("From: %s\n%s", t.FromEmail, body))
	}
	return strings.Join(parts, "\n---\n")
}

func toMailInput(m *mail.Message) llm.MailInput {
	return llm.MailInput{
		From:    m.From(),
		To:      m.To,
		CC:      m.CC,
		Subject: m.Subject,
		Date:    m.Date,
		Body:    m.Snippet,
		IsReply: m.IsReply,
	}
}

func marshalClassification(cls domain.MailClassification) string {
	raw, err := json.Marshal(cls)
	if err != nil {
		return ""
	}
	return string(raw)
}
