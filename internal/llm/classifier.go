package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smadden/go-inbox-assistant/internal/domain"
)

// MailInput is the slice of an inbound email the classifier needs.
type MailInput struct {
	From    string
	To      []string
	CC      []string
	Subject string
	Date    time.Time
	Body    string
	IsReply bool
}

// ChatInput is the slice of an inbound chat message the classifier needs.
type ChatInput struct {
	Channel       string
	From          string
	Text          string
	IsThreadReply bool
	ThreadContext string
}

// Classifier runs triage over inbound messages. Every method is fail-open:
// a transport or parse failure yields the safe default classification so a
// flaky model call can never lose a message.
type Classifier struct {
	C       Completer
	Persona Persona
}

const (
	classifyMaxTokens     = 500
	chatClassifyMaxTokens = 300
)

// ClassifyMail triages one email. Classification reads get a single retry;
// after that the safe default (internal_fyi / standard / fyi_only) wins.
func (c *Classifier) ClassifyMail(ctx context.Context, in MailInput) domain.MailClassification {
	user := "Classify this email:\n\n" + formatMail(in)
	raw, err := c.completeWithRetry(ctx, mailClassifySystem(c.Persona), user, classifyMaxTokens)
	if err != nil {
		log.Warn().Err(err).Str("subject", in.Subject).Msg("mail classification call failed, using safe default")
		return domain.SafeMailClassification("Could not classify: " + in.Subject)
	}

	var cls domain.MailClassification
	if err := json.Unmarshal([]byte(stripFences(raw)), &cls); err != nil {
		log.Warn().Err(err).Str("response", clip(raw, 200)).Msg("mail classification parse failed, using safe default")
		return domain.SafeMailClassification("Could not classify: " + in.Subject)
	}
	if !cls.Category.Valid() || !cls.Priority.Valid() || !cls.Action.Valid() {
		log.Warn().
			Str("category", string(cls.Category)).
			Str("priority", string(cls.Priority)).
			Str("action", string(cls.Action)).
			Msg("mail classification outside closed enums, using safe default")
		return domain.SafeMailClassification("Could not classify: " + in.Subject)
	}
	return cls
}

// ClassifyChat decides whether a chat message needs the owner's reply.
// Fail-open means needs_response=false here: a missed ping is recoverable,
// a draft storm from misparsed output is not.
func (c *Classifier) ClassifyChat(ctx context.Context, in ChatInput) domain.ChatClassification {
	var b strings.Builder
	fmt.Fprintf(&b, "Channel: %s\n", in.Channel)
	fmt.Fprintf(&b, "From: %s\n", in.From)
	fmt.Fprintf(&b, "Message: %s\n", in.Text)
	fmt.Fprintf(&b, "Is thread reply: %t\n", in.IsThreadReply)
	if in.ThreadContext != "" {
		fmt.Fprintf(&b, "\nThread context:\n%s\n", in.ThreadContext)
	}

	raw, err := c.completeWithRetry(ctx, chatClassifySystem(c.Persona), b.String(), chatClassifyMaxTokens)
	if err != nil {
		log.Warn().Err(err).Str("channel", in.Channel).Msg("chat classification call failed, using safe default")
		return domain.SafeChatClassification("Could not classify message")
	}

	var cls domain.ChatClassification
	if err := json.Unmarshal([]byte(stripFences(raw)), &cls); err != nil {
		log.Warn().Err(err).Str("response", clip(raw, 200)).Msg("chat classification parse failed, using safe default")
		return domain.SafeChatClassification("Could not classify message")
	}
	return cls
}

// completeWithRetry performs one completion with a single retry. Only
// classification reads use this; generation calls go straight through so a
// retry can never produce two distinct drafts for one message.
func (c *Classifier) completeWithRetry(ctx context.Context, system, user string, maxTokens int) (string, error) {
	out, err := c.C.Complete(ctx, system, user, maxTokens)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	return c.C.Complete(ctx, system, user, maxTokens)
}

func formatMail(in MailInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", in.From)
	if len(in.To) > 0 {
		fmt.Fprintf(&b, "To: %s\n", strings.Join(head(in.To, 5), ", "))
	}
	if len(in.CC) > 0 {
		fmt.Fprintf(&b, "CC: %s\n", strings.Join(head(in.CC, 5), ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\n", in.Subject)
	if !in.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", in.Date.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "Is Reply: %t\n", in.IsReply)
	fmt.Fprintf(&b, "\n%s", in.Body)
	return b.String()
}

func head(ss []string, n int) []string {
	if len(ss) <= n {
		return ss
	}
	return ss[:n]
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
