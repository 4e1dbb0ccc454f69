package chat

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"github.com/smadden/go-inbox-assistant/internal/domain"
)

// slackAPI is the slice of the Slack client the notifier uses; narrowed for
// tests.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
}

// Notifier pushes drafts, FYIs, and lifecycle updates to the owner over
// Slack. Draft notifications go as a DM to the owner; chat replies go back
// into the origin thread.
type Notifier struct {
	api    slackAPI
	userID string
}

// NewNotifier wraps a Slack client for the given owner user id.
func NewNotifier(api *slack.Client, userID string) *Notifier {
	return &Notifier{api: api, userID: userID}
}

// NotifyDraft DMs the approval notification and returns the channel and ts
// of the posted message so lifecycle changes can be reflected into it.
func (n *Notifier) NotifyDraft(ctx context.Context, d *domain.Draft) (string, string, error) {
	fallback := fmt.Sprintf("Draft: %s from %s", d.OriginalSubject, d.OriginalFrom)
	channel, ts, err := n.api.PostMessageContext(ctx, n.userID,
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(draftBlocks(d)...),
	)
	if err != nil {
		return "", "", fmt.Errorf("post draft notification: %w", err)
	}
	log.Info().Str("draft_id", d.ID).Str("ts", ts).Msg("sent draft notification")
	return channel, ts, nil
}

// NotifyFYI posts the buttonless FYI ping.
func (n *Notifier) NotifyFYI(ctx context.Context, from, subject, summary string, priority domain.MailPriority) error {
	_, _, err := n.api.PostMessageContext(ctx, n.userID,
		slack.MsgOptionText(fmt.Sprintf("FYI: %s from %s", subject, from), false),
		slack.MsgOptionBlocks(fyiBlocks(from, subject, summary, priority)...),
	)
	if err != nil {
		return fmt.Errorf("post fyi notification: %w", err)
	}
	return nil
}

// ReflectStatus rewrites an existing draft notification to its decided
// state. Best-effort: the lifecycle has already happened, a failed update
// only costs freshness.
func (n *Notifier) ReflectStatus(ctx context.Context, d *domain.Draft, status string) {
	if d.NotifyChannel == "" || d.NotifyTS == "" {
		return
	}
	_, _, _, err := n.api.UpdateMessageContext(ctx, d.NotifyChannel, d.NotifyTS,
		slack.MsgOptionText(fmt.Sprintf("Draft %s: %s", status, d.OriginalSubject), false),
		slack.MsgOptionBlocks(statusBlocks(d, status)...),
	)
	if err != nil {
		log.Warn().Err(err).Str("draft_id", d.ID).Str("ts", d.NotifyTS).Msg("failed to update draft notification")
	}
}

// ReflectEdit rewrites the notification with the edited text and live
// buttons after a modal save.
func (n *Notifier) ReflectEdit(ctx context.Context, d *domain.Draft) {
	if d.NotifyChannel == "" || d.NotifyTS == "" {
		return
	}
	_, _, _, err := n.api.UpdateMessageContext(ctx, d.NotifyChannel, d.NotifyTS,
		slack.MsgOptionText(fmt.Sprintf("Draft edited: %s", d.OriginalSubject), false),
		slack.MsgOptionBlocks(editedDraftBlocks(d)...),
	)
	if err != nil {
		log.Warn().Err(err).Str("draft_id", d.ID).Msg("failed to reflect edit into notification")
	}
}

// PostEphemeralDraft drops the proposed chat reply into the origin thread,
// visible only to the owner.
func (n *Notifier) PostEphemeralDraft(ctx context.Context, channelID, threadTS, draftText string) error {
	_, err := n.api.PostEphemeralContext(ctx, channelID, n.userID,
		slack.MsgOptionTS(threadTS),
		slack.MsgOptionText("Draft response (only visible to you):\n\n"+draftText, false),
	)
	if err != nil {
		return fmt.Errorf("post ephemeral draft: %w", err)
	}
	return nil
}

// PostReply sends an approved chat draft into its origin thread. Implements
// the lifecycle's chat sender.
func (n *Notifier) PostReply(ctx context.Context, channelID, threadTS, text string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	if _, _, err := n.api.PostMessageContext(ctx, channelID, opts...); err != nil {
		return fmt.Errorf("post reply to %s: %w", channelID, err)
	}
	return nil
}
