// Package services – VoiceService
//
// This file implements VoiceService, which learns the owner's writing voice
// from sent mail and folds lifecycle feedback back into future drafts. The
// profile is a single JSON document replaced wholesale on each rebuild;
// feedback is append-only and consumed as a bounded recent window.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/smadden/go-inbox-assistant/internal/domain"
	"github.com/smadden/go-inbox-assistant/internal/llm"
	"github.com/smadden/go-inbox-assistant/internal/mail"
	"github.com/smadden/go-inbox-assistant/internal/repo"
)

// SentLister fetches the owner's sent mail for voice analysis.
type SentLister interface {
	ListSent(ctx context.Context, max int64) ([]*mail.Message, error)
}

// VoiceAnalyzer is the completion-backed analysis contract.
type VoiceAnalyzer interface {
	AnalyzeVoice(ctx context.Context, samples []llm.SentSample) (string, error)
	ClassifyRecipient(ctx context.Context, fromEmail, toEmail, subject string) string
}

// VoiceService owns the voice profile, examples, and the feedback log.
//
// Fields:
//   - OwnerEmail: the owner's address, used as From when tagging examples.
//   - OwnerDomain: addresses at this domain are tagged internal without a
//     model call.
type VoiceService struct {
	DB          *gorm.DB
	Source      SentLister
	Analyzer    VoiceAnalyzer
	OwnerEmail  string
	OwnerDomain string
}

const (
	// maxStoredExamples bounds how many sent emails get tagged and stored
	// per rebuild.
	maxStoredExamples = 50

	// feedbackWindow is how many recent feedback entries reach prompts.
	feedbackWindow = 20

	// exampleClipLen caps how much of an edit diff is surfaced.
	exampleClipLen = 500
)

// Rebuild fetches sent mail, runs one analysis completion, and replaces the
// profile. The first maxStoredExamples messages are tagged with a recipient
// type and stored as drafting examples.
func (s *VoiceService) Rebuild(ctx context.Context, limit int64) error {
	tr := otel.Tracer("services/VoiceService")
	ctx, span := tr.Start(ctx, "Rebuild",
		trace.WithAttributes(attribute.Int64("limit", limit)),
	)
	defer span.End()

	sent, err := s.Source.ListSent(ctx, limit)
	if err != nil {
		return fmt.Errorf("list sent mail: %w", err)
	}
	if len(sent) == 0 {
		return ErrNoVoiceSamples
	}

	samples := make([]llm.SentSample, 0, len(sent))
	for _, m := range sent {
		samples = append(samples, llm.SentSample{To: m.To, Subject: m.Subject, Body: m.Body})
	}

	profileJSON, err := s.Analyzer.AnalyzeVoice(ctx, samples)
	if err != nil {
		if errors.Is(err, llm.ErrNoSamples) {
			return ErrNoVoiceSamples
		}
		return err
	}
	if err := repo.SaveVoiceProfile(ctx, s.DB, profileJSON, len(samples)); err != nil {
		return fmt.Errorf("save voice profile: %w", err)
	}
	log.Info().Int("emails_analyzed", len(samples)).Msg("voice profile rebuilt")

	stored := sent
	if len(stored) > maxStoredExamples {
		stored = stored[:maxStoredExamples]
	}
	for _, m := range stored {
		if len(m.To) == 0 || strings.TrimSpace(m.Body) == "" {
			continue
		}
		ex := &domain.VoiceExample{
			EmailID:         m.MessageID,
			RecipientType:   s.recipientType(ctx, m),
			RecipientDomain: addressDomain(m.To[0]),
			Subject:         m.Subject,
			SentText:        m.Body,
		}
		if err := repo.SaveVoiceExample(ctx, s.DB, ex); err != nil {
			log.Warn().Err(err).Str("email_id", m.MessageID).Msg("failed to save voice example")
		}
	}
	return nil
}

// EnsureProfile rebuilds once at startup when no profile exists yet. Missing
// sent mail is not fatal; the drafting prompt falls back to defaults.
func (s *VoiceService) EnsureProfile(ctx context.Context, limit int64) error {
	if _, err := repo.GetVoiceProfile(ctx, s.DB); err == nil {
		return nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	log.Info().Msg("no voice profile found, bootstrapping from sent mail")
	if err := s.Rebuild(ctx, limit); err != nil && !errors.Is(err, ErrNoVoiceSamples) {
		return err
	}
	return nil
}

// recipientType tags one sent mail. Same-domain recipients are internal by
// construction; only external addresses cost a model call.
func (s *VoiceService) recipientType(ctx context.Context, m *mail.Message) string {
	to := m.To[0]
	if s.OwnerDomain != "" && strings.EqualFold(addressDomain(to), s.OwnerDomain) {
		return "internal"
	}
	return s.Analyzer.ClassifyRecipient(ctx, s.OwnerEmail, to, m.Subject)
}

// RecordEditDiff stores the delta between the generated draft and what the
// owner actually sent. Identical texts are not worth a row.
func (s *VoiceService) RecordEditDiff(ctx context.Context, draftID, original, edited string) error {
	if strings.TrimSpace(original) == strings.TrimSpace(edited) {
		return nil
	}
	content := fmt.Sprintf("ORIGINAL DRAFT:\n%s\n\nUSER EDITED TO:\n%s", original, edited)
	return repo.AppendVoiceFeedback(ctx, s.DB, draftID, domain.FeedbackEditDiff, content)
}

// RecordTextFeedback stores free-text guidance such as "too formal".
func (s *VoiceService) RecordTextFeedback(ctx context.Context, draftID, feedback string) error {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return ErrEmptyFeedback
	}
	return repo.AppendVoiceFeedback(ctx, s.DB, draftID, domain.FeedbackText, feedback)
}

// FeedbackSummary renders the recent feedback window as prompt-ready lines.
// An empty log yields an empty string.
func (s *VoiceService) FeedbackSummary(ctx context.Context, limit int) (string, error) {
	if limit <= 0 {
		limit = feedbackWindow
	}
	entries, err := repo.ListRecentFeedback(ctx, s.DB, limit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(entries))
	for _, fb := range entries {
		switch fb.Type {
		case domain.FeedbackText:
			lines = append(lines, "- User feedback: "+fb.Content)
		case domain.FeedbackEditDiff:
			content := fb.Content
			if len(content) > exampleClipLen {
				content = content[:exampleClipLen]
			}
			lines = append(lines, "- User edited a draft:\n"+content)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// Context assembles the voice material for one drafting call. Every part is
// best-effort: a missing profile or a failed read degrades to defaults
// rather than blocking the draft.
func (s *VoiceService) Context(ctx context.Context, recipientType string) llm.VoiceContext {
	var vc llm.VoiceContext
	if p, err := repo.GetVoiceProfile(ctx, s.DB); err == nil {
		vc.ProfileJSON = p.ProfileJSON
	} else if !errors.Is(err, repo.ErrNotFound) {
		log.Warn().Err(err).Msg("failed to load voice profile")
	}
	if summary, err := s.FeedbackSummary(ctx, feedbackWindow); err == nil {
		vc.FeedbackSummary = summary
	} else {
		log.Warn().Err(err).Msg("failed to load feedback summary")
	}
	if examples, err := repo.ListVoiceExamples(ctx, s.DB, recipientType, 3); err == nil {
		vc.Examples = examples
	} else {
		log.Warn().Err(err).Msg("failed to load voice examples")
	}
	return vc
}

func addressDomain(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "unknown"
}
