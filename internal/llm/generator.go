package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smadden/go-inbox-assistant/internal/domain"
)

// VoiceContext carries everything learned about the owner's writing that
// the drafting prompt folds in: the profile document, a summary of recent
// feedback, and a few real sent-mail examples.
type VoiceContext struct {
	ProfileJSON     string
	FeedbackSummary string
	Examples        []domain.VoiceExample
}

// ExternalInput is an inbound message from an outside messaging surface
// (e.g. a professional-network DM) relayed through the HTTP boundary.
type ExternalInput struct {
	SenderName     string
	SenderHeadline string
	MessageText    string
	Context        []string
}

// Generator produces reply drafts in the owner's voice. Unlike the
// classifier it is fail-closed: a generation error propagates so callers
// never persist or send an empty draft.
type Generator struct {
	C       Completer
	Persona Persona
}

const (
	mailDraftMaxTokens = 1000
	chatDraftMaxTokens = 500
)

// GenerateMailDraft drafts an email reply. threadContext carries earlier
// messages of the thread, already trimmed by the caller.
func (g *Generator) GenerateMailDraft(ctx context.Context, in MailInput, cls domain.MailClassification, threadContext string, voice VoiceContext) (string, error) {
	system := draftSystem(g.Persona,
		g.voiceSection(voice, RecipientTypeFor(cls.Category)),
		feedbackSection(voice.FeedbackSummary),
		examplesSection(voice.Examples),
	)

	var b strings.Builder
	b.WriteString("Draft a reply to this email.\n\n")
	fmt.Fprintf(&b, "From: %s\n", in.From)
	fmt.Fprintf(&b, "Subject: %s\n", in.Subject)
	fmt.Fprintf(&b, "Category: %s\n", cls.Category)
	fmt.Fprintf(&b, "Priority: %s\n", cls.Priority)
	fmt.Fprintf(&b, "Summary: %s\n", cls.Summary)
	if cls.DraftGuidance != "" {
		fmt.Fprintf(&b, "Guidance: %s\n", cls.DraftGuidance)
	}
	fmt.Fprintf(&b, "\nOriginal message:\n%s\n", in.Body)
	if threadContext != "" {
		fmt.Fprintf(&b, "\nEarlier in this thread:\n%s\n", threadContext)
	}

	out, err := g.C.Complete(ctx, system, b.String(), mailDraftMaxTokens)
	if err != nil {
		return "", fmt.Errorf("generate mail draft: %w", err)
	}
	return stripQuotes(out), nil
}

// GenerateChatDraft drafts a chat reply. Chat drafts always use the
// internal recipient register.
func (g *Generator) GenerateChatDraft(ctx context.Context, in ChatInput, cls domain.ChatClassification, voice VoiceContext) (string, error) {
	system := draftSystem(g.Persona,
		g.voiceSection(voice, "internal"),
		feedbackSection(voice.FeedbackSummary),
		examplesSection(voice.Examples),
	)

	var b strings.Builder
	b.WriteString("Draft a chat reply to this message.\n\n")
	fmt.Fprintf(&b, "Channel: %s\n", in.Channel)
	fmt.Fprintf(&b, "From: %s\n", in.From)
	fmt.Fprintf(&b, "Message: %s\n", in.Text)
	fmt.Fprintf(&b, "Urgency: %s\n", cls.Urgency)
	fmt.Fprintf(&b, "Summary: %s\n", cls.Summary)
	if cls.DraftGuidance != "" {
		fmt.Fprintf(&b, "Guidance: %s\n", cls.DraftGuidance)
	}
	if in.ThreadContext != "" {
		fmt.Fprintf(&b, "\nThread context:\n%s\n", in.ThreadContext)
	}
	b.WriteString("\nWrite a chat-appropriate response. Keep it concise. " +
		"Match the casual/professional tone of the channel. Do NOT wrap in quotes.")

	out, err := g.C.Complete(ctx, system, b.String(), chatDraftMaxTokens)
	if err != nil {
		return "", fmt.Errorf("generate chat draft: %w", err)
	}
	return stripQuotes(out), nil
}

// GenerateExternalDraft drafts a reply to a relayed outside message along
// with a needs-response assessment, in one completion call.
func (g *Generator) GenerateExternalDraft(ctx context.Context, in ExternalInput, voice VoiceContext) (domain.ExternalDraft, error) {
	system := draftSystem(g.Persona,
		g.voiceSection(voice, "partner"),
		feedbackSection(voice.FeedbackSummary),
		examplesSection(voice.Examples),
	) + `

For this task only, return valid JSON instead of bare text:
{"draft_text": "the reply", "needs_response": true/false, "urgency": "high/medium/low", "summary": "1 sentence"}`

	var b strings.Builder
	b.WriteString("Draft a reply to this message received outside email and chat.\n\n")
	fmt.Fprintf(&b, "From: %s", in.SenderName)
	if in.SenderHeadline != "" {
		fmt.Fprintf(&b, " (%s)", in.SenderHeadline)
	}
	b.WriteString("\n")
	if len(in.Context) > 0 {
		fmt.Fprintf(&b, "\nEarlier in this conversation:\n%s\n", strings.Join(in.Context, "\n"))
	}
	fmt.Fprintf(&b, "\nMessage:\n%s\n", in.MessageText)

	out, err := g.C.Complete(ctx, system, b.String(), mailDraftMaxTokens)
	if err != nil {
		return domain.ExternalDraft{}, fmt.Errorf("generate external draft: %w", err)
	}

	var res domain.ExternalDraft
	if err := json.Unmarshal([]byte(stripFences(out)), &res); err != nil {
		return domain.ExternalDraft{}, fmt.Errorf("parse external draft: %w", err)
	}
	res.DraftText = stripQuotes(res.DraftText)
	return res, nil
}

// voiceSection renders the learned profile, falling back to sane defaults
// before the first analysis has run.
func (g *Generator) voiceSection(voice VoiceContext, recipientType string) string {
	if strings.TrimSpace(voice.ProfileJSON) == "" {
		return defaultVoiceSection(g.Persona)
	}

	var p struct {
		GreetingPatterns    []string          `json:"greeting_patterns"`
		ClosingPatterns     []string          `json:"closing_patterns"`
		AvgSentenceLength   string            `json:"avg_sentence_length"`
		FormalityLevel      int               `json:"formality_level"`
		ToneMarkers         []string          `json:"tone_markers"`
		StructurePreference string            `json:"structure_preference"`
		TypicalEmailLength  string            `json:"typical_email_length"`
		PerRecipientNotes   map[string]string `json:"per_recipient_notes"`
		DoNotUse            []string          `json:"do_not_use"`
		OverallVoiceSummary string            `json:"overall_voice_summary"`
	}
	if err := json.Unmarshal([]byte(voice.ProfileJSON), &p); err != nil {
		return defaultVoiceSection(g.Persona)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s's writing style (learned from their sent emails):\n", g.Persona.Name)
	fmt.Fprintf(&b, "- Overall voice: %s\n", orDefault(p.OverallVoiceSummary, "Direct, warm, specific"))
	if len(p.GreetingPatterns) > 0 {
		fmt.Fprintf(&b, "- Greeting patterns: %s\n", strings.Join(p.GreetingPatterns, ", "))
	}
	if len(p.ClosingPatterns) > 0 {
		fmt.Fprintf(&b, "- Closing patterns: %s\n", strings.Join(p.ClosingPatterns, ", "))
	}
	fmt.Fprintf(&b, "- Sentence length: %s\n", orDefault(p.AvgSentenceLength, "short"))
	if p.FormalityLevel > 0 {
		fmt.Fprintf(&b, "- Formality: %d/5\n", p.FormalityLevel)
	}
	if len(p.ToneMarkers) > 0 {
		fmt.Fprintf(&b, "- Tone: %s\n", strings.Join(p.ToneMarkers, ", "))
	}
	fmt.Fprintf(&b, "- Structure: %s\n", orDefault(p.StructurePreference, "short paragraphs"))
	fmt.Fprintf(&b, "- Typical length: %s\n", orDefault(p.TypicalEmailLength, "2-4 sentences"))
	if len(p.DoNotUse) > 0 {
		fmt.Fprintf(&b, "- NEVER use: %s\n", strings.Join(p.DoNotUse, ", "))
	}
	if note, ok := p.PerRecipientNotes[recipientType]; ok && note != "" {
		fmt.Fprintf(&b, "- With %ss: %s\n", recipientType, note)
	}
	return b.String()
}

func feedbackSection(summary string) string {
	if strings.TrimSpace(summary) == "" {
		return ""
	}
	return "Recent feedback on drafts (adjust your writing accordingly):\n" + summary
}

func examplesSection(examples []domain.VoiceExample) string {
	if len(examples) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Example emails the owner has written:\n")
	for _, ex := range examples {
		fmt.Fprintf(&b, "Example (to %s):\nSubject: %s\n%s\n",
			orDefault(ex.RecipientType, "unknown"), ex.Subject, clip(ex.SentText, 500))
	}
	return b.String()
}

// RecipientTypeFor maps a triage category to the voice-example recipient
// register used when drafting.
func RecipientTypeFor(c domain.MailCategory) string {
	switch c {
	case domain.CategoryInvestorIntro, domain.CategoryPartnershipFollowup, domain.CategoryDealFlow:
		return "investor"
	case domain.CategoryInternalAction, domain.CategoryInternalFYI:
		return "internal"
	case domain.CategoryPortfolioRequest:
		return "partner"
	}
	return ""
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
