package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"gorm.io/gorm"

	"github.com/smadden/go-inbox-assistant/internal/domain"
	"github.com/smadden/go-inbox-assistant/internal/llm"
	"github.com/smadden/go-inbox-assistant/internal/repo"
	"github.com/smadden/go-inbox-assistant/internal/services"
)

// ChatTriager decides whether a chat message needs the owner's reply.
type ChatTriager interface {
	ClassifyChat(ctx context.Context, in llm.ChatInput) domain.ChatClassification
}

// ChatDrafter writes a chat reply in the owner's voice.
type ChatDrafter interface {
	GenerateChatDraft(ctx context.Context, in llm.ChatInput, cls domain.ChatClassification, voice llm.VoiceContext) (string, error)
}

// workspaceAPI is the slice of the Slack Web API the listener needs beyond
// the notifier: context lookups and the edit modal.
type workspaceAPI interface {
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
}

// Listener is the chat admission path: a Socket Mode event stream feeding
// classification, plus the interactive approval flow for all drafts.
//
// Fields:
//   - Monitored: channel ids watched beyond DMs.
//   - UserID: the owner; own messages and bot traffic are ignored.
type Listener struct {
	DB        *gorm.DB
	Socket    *socketmode.Client
	API       workspaceAPI
	Notifier  *Notifier
	Drafts    *services.DraftService
	Triager   ChatTriager
	Drafter   ChatDrafter
	Voice     services.VoiceContextProvider
	UserID    string
	Monitored map[string]bool
}

const (
	threadReplyWindow = 5
	threadReplyClip   = 300
)

// Run consumes the Socket Mode event stream until the context is canceled.
// Events are acked before handling so Slack never retries a slow draft.
func (l *Listener) Run(ctx context.Context) error {
	go func() {
		if err := l.Socket.RunContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("socket mode connection ended")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-l.Socket.Events:
			if !ok {
				return errors.New("socket mode event channel closed")
			}
			l.dispatch(ctx, evt)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		log.Info().Msg("socket mode connected")
	case socketmode.EventTypeConnectionError:
		log.Warn().Msg("socket mode connection error, retrying")
	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		if evt.Request != nil {
			l.Socket.Ack(*evt.Request)
		}
		if apiEvent.Type != slackevents.CallbackEvent {
			return
		}
		if ev, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent); ok {
			if err := l.HandleMessage(ctx, ev); err != nil {
				log.Error().Err(err).Str("ts", ev.TimeStamp).Msg("failed to handle chat message")
			}
		}
	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			return
		}
		if evt.Request != nil {
			l.Socket.Ack(*evt.Request)
		}
		l.HandleInteraction(ctx, &callback)
	}
}

// HandleMessage runs one inbound chat message through dedup, classification,
// and, when a response is needed, drafting plus notification.
func (l *Listener) HandleMessage(ctx context.Context, ev *slackevents.MessageEvent) error {
	if ev.BotID != "" || ev.SubType != "" || ev.User == l.UserID || ev.User == "" {
		return nil
	}
	isDM := ev.ChannelType == "im"
	if !isDM && !l.Monitored[ev.Channel] {
		return nil
	}

	seen, err := repo.IsProcessed(ctx, l.DB, ev.TimeStamp, domain.SourceChat)
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if seen {
		return nil
	}

	in := llm.ChatInput{
		Channel:       l.channelName(ctx, ev.Channel, isDM),
		From:          l.userName(ctx, ev.User),
		Text:          ev.Text,
		IsThreadReply: ev.ThreadTimeStamp != "",
		ThreadContext: l.threadContext(ctx, ev),
	}

	cls := l.Triager.ClassifyChat(ctx, in)
	snapshot, _ := json.Marshal(cls)
	if err := repo.MarkProcessed(ctx, l.DB, ev.TimeStamp, domain.SourceChat, string(snapshot)); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	if !cls.NeedsResponse {
		log.Debug().Str("channel", in.Channel).Str("reason", cls.Reason).Msg("chat message needs no response")
		return nil
	}
	log.Info().Str("channel", in.Channel).Str("from", in.From).Str("urgency", cls.Urgency).
		Msg("chat message needs response")

	text, err := l.Drafter.GenerateChatDraft(ctx, in, cls, l.Voice.Context(ctx, "internal"))
	if err != nil {
		return err
	}

	replyThread := ev.ThreadTimeStamp
	if replyThread == "" {
		replyThread = ev.TimeStamp
	}

	draft, err := l.Drafts.Create(ctx, &domain.Draft{
		Source:            domain.SourceChat,
		OriginalFrom:      in.From,
		OriginalSubject:   in.Channel,
		OriginalBody:      ev.Text,
		OriginalMessageID: ev.TimeStamp,
		OriginalThreadID:  replyThread,
		OriginalChannelID: ev.Channel,
		Priority:          cls.Urgency,
		Summary:           cls.Summary,
		DraftText:         text,
	})
	if err != nil {
		return err
	}

	// Preview only after the draft row exists; the owner must never see a
	// draft that cannot be approved.
	if err := l.Notifier.PostEphemeralDraft(ctx, ev.Channel, replyThread, text); err != nil {
		log.Warn().Err(err).Str("channel", ev.Channel).Msg("failed to post ephemeral draft")
	}

	channel, ts, err := l.Notifier.NotifyDraft(ctx, draft)
	if err != nil {
		log.Warn().Err(err).Str("draft_id", draft.ID).Msg("failed to notify chat draft")
		return nil
	}
	return l.Drafts.AttachNotification(ctx, draft.ID, channel, ts)
}

// HandleInteraction dispatches button clicks and the edit modal submission.
func (l *Listener) HandleInteraction(ctx context.Context, callback *slack.InteractionCallback) {
	switch callback.Type {
	case slack.InteractionTypeBlockActions:
		if len(callback.ActionCallback.BlockActions) == 0 {
			return
		}
		action := callback.ActionCallback.BlockActions[0]
		l.handleAction(ctx, action.ActionID, action.Value, callback.TriggerID)
	case slack.InteractionTypeViewSubmission:
		if callback.View.CallbackID == EditCallbackID {
			l.handleEditSubmit(ctx, &callback.View)
		}
	}
}

func (l *Listener) handleAction(ctx context.Context, actionID, draftID, triggerID string) {
	switch actionID {
	case ActionApprove:
		d, err := l.Drafts.ApproveAndSend(ctx, draftID)
		if err != nil {
			l.reflectDecided(ctx, draftID, err)
			return
		}
		l.Notifier.ReflectStatus(ctx, d, "sent")

	case ActionEdit:
		d, err := l.Drafts.Get(ctx, draftID)
		if err != nil {
			log.Error().Err(err).Str("draft_id", draftID).Msg("edit click on unknown draft")
			return
		}
		if d.Status != domain.StatusPendingReview {
			l.Notifier.ReflectStatus(ctx, d, string(d.Status))
			return
		}
		if _, err := l.API.OpenViewContext(ctx, triggerID, editModal(d)); err != nil {
			log.Error().Err(err).Str("draft_id", draftID).Msg("failed to open edit modal")
		}

	case ActionReject:
		if err := l.Drafts.Reject(ctx, draftID, ""); err != nil {
			l.reflectDecided(ctx, draftID, err)
			return
		}
		l.reflect(ctx, draftID, "rejected")

	case ActionSkip:
		if err := l.Drafts.Skip(ctx, draftID); err != nil {
			l.reflectDecided(ctx, draftID, err)
			return
		}
		l.reflect(ctx, draftID, "skipped")
	}
}

func (l *Listener) handleEditSubmit(ctx context.Context, view *slack.View) {
	draftID := view.PrivateMetadata
	text := ""
	if block, ok := view.State.Values[editInputBlockID]; ok {
		text = block[editInputAction].Value
	}

	if err := l.Drafts.RecordEdit(ctx, draftID, text); err != nil {
		log.Warn().Err(err).Str("draft_id", draftID).Msg("failed to record edit")
		return
	}
	d, err := l.Drafts.Get(ctx, draftID)
	if err != nil {
		return
	}
	l.Notifier.ReflectEdit(ctx, d)
}

// reflect refreshes the draft and rewrites its notification to the decided
// state.
func (l *Listener) reflect(ctx context.Context, draftID, status string) {
	d, err := l.Drafts.Get(ctx, draftID)
	if err != nil {
		return
	}
	l.Notifier.ReflectStatus(ctx, d, status)
}

// reflectDecided handles a lost race: someone else decided first, so show
// the actual outcome instead of an error.
func (l *Listener) reflectDecided(ctx context.Context, draftID string, cause error) {
	if !errors.Is(cause, services.ErrNotPending) {
		log.Error().Err(cause).Str("draft_id", draftID).Msg("draft action failed")
		return
	}
	d, err := l.Drafts.Get(ctx, draftID)
	if err != nil {
		return
	}
	l.Notifier.ReflectStatus(ctx, d, string(d.Status))
}

// userName resolves a display name, degrading to the raw id.
func (l *Listener) userName(ctx context.Context, userID string) string {
	u, err := l.API.GetUserInfoContext(ctx, userID)
	if err != nil || u == nil {
		return userID
	}
	if u.RealName != "" {
		return u.RealName
	}
	if u.Name != "" {
		return u.Name
	}
	return userID
}

// channelName resolves a channel's display name; DMs render as "DM".
func (l *Listener) channelName(ctx context.Context, channelID string, isDM bool) string {
	if isDM {
		return "DM"
	}
	ch, err := l.API.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil || ch == nil || ch.Name == "" {
		return channelID
	}
	return ch.Name
}

// threadContext renders the last few earlier replies of the thread the
// message sits in. Failures degrade to classification without context.
func (l *Listener) threadContext(ctx context.Context, ev *slackevents.MessageEvent) string {
	if ev.ThreadTimeStamp == "" {
		return ""
	}
	msgs, _, _, err := l.API.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: ev.Channel,
		Timestamp: ev.ThreadTimeStamp,
		Limit:     10,
	})
	if err != nil {
		log.Warn().Err(err).Str("thread_ts", ev.ThreadTimeStamp).Msg("failed to fetch thread replies")
		return ""
	}

	var lines []string
	for _, m := range msgs {
		if m.Timestamp == ev.TimeStamp {
			continue
		}
		text := m.Text
		if len(text) > threadReplyClip {
			text = text[:threadReplyClip]
		}
		user := m.User
		if user == "" {
			user = "unknown"
		}
		lines = append(lines, user+": "+text)
	}
	if len(lines) > threadReplyWindow {
		lines = lines[len(lines)-threadReplyWindow:]
	}
	return strings.Join(lines, "\n")
}
