package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// gmailUser is the special "authenticated user" id of the Gmail API.
const gmailUser = "me"

// TokenUpdateFunc is invoked whenever the OAuth access token is refreshed,
// so the new token can be persisted (scan_state row gmail_token).
type TokenUpdateFunc func(tok *oauth2.Token) error

// notifyTokenSource wraps an oauth2.TokenSource and fires the callback when
// the access token changes.
type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Warn().Err(err).Msg("failed to persist refreshed gmail token")
		}
	}
	return t, nil
}

// Source is a Gmail mailbox handle for one account.
type Source struct {
	svc       *gmail.Service
	userEmail string
}

// NewSource builds a Gmail client from OAuth client credentials and the
// owner's stored token. onTokenRefresh receives refreshed tokens.
func NewSource(ctx context.Context, clientID, clientSecret, userEmail string, token *oauth2.Token, onTokenRefresh TokenUpdateFunc) (*Source, error) {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
	}
	ts := &notifyTokenSource{
		src:      cfg.TokenSource(ctx, token),
		current:  token,
		callback: onTokenRefresh,
	}
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Source{svc: svc, userEmail: userEmail}, nil
}

// ListUnread fetches unread inbox messages, full bodies included.
func (s *Source) ListUnread(ctx context.Context, max int64) ([]*Message, error) {
	res, err := s.svc.Users.Messages.List(gmailUser).
		LabelIds("INBOX").Q("is:unread").MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}
	return s.fetchAll(ctx, res.Messages)
}

// ListSent fetches recent sent messages for voice analysis.
func (s *Source) ListSent(ctx context.Context, max int64) ([]*Message, error) {
	res, err := s.svc.Users.Messages.List(gmailUser).
		LabelIds("SENT").MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list sent: %w", err)
	}
	return s.fetchAll(ctx, res.Messages)
}

// ListNewSince performs an incremental sync from the given history id,
// returning inbox messages added since. An expired or unknown history id
// (Gmail answers 404 after about a week) degrades to a bounded unread scan
// instead of failing the cycle.
func (s *Source) ListNewSince(ctx context.Context, historyID uint64, max int64) ([]*Message, error) {
	res, err := s.svc.Users.History.List(gmailUser).
		StartHistoryId(historyID).
		HistoryTypes("messageAdded").
		LabelId("INBOX").
		MaxResults(max).
		Context(ctx).Do()
	if err != nil {
		if isExpiredHistory(err) {
			log.Warn().Uint64("history_id", historyID).Msg("gmail history id expired, falling back to unread scan")
			return s.ListUnread(ctx, max)
		}
		return nil, fmt.Errorf("list history: %w", err)
	}

	seen := map[string]bool{}
	var stubs []*gmail.Message
	for _, rec := range res.History {
		for _, added := range rec.MessagesAdded {
			m := added.Message
			if m == nil || seen[m.Id] || !hasLabel(m.LabelIds, "INBOX") {
				continue
			}
			seen[m.Id] = true
			stubs = append(stubs, m)
		}
	}
	return s.fetchAll(ctx, stubs)
}

// CurrentHistoryID returns the mailbox's present history id, stored as the
// cursor after every scan cycle.
func (s *Source) CurrentHistoryID(ctx context.Context) (uint64, error) {
	profile, err := s.svc.Users.GetProfile(gmailUser).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get profile: %w", err)
	}
	return profile.HistoryId, nil
}

// GetThread returns all messages of a thread, oldest first, for reply
// context when drafting.
func (s *Source) GetThread(ctx context.Context, threadID string) ([]*Message, error) {
	t, err := s.svc.Users.Threads.Get(gmailUser, threadID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get thread %s: %w", threadID, err)
	}
	out := make([]*Message, 0, len(t.Messages))
	for _, m := range t.Messages {
		out = append(out, ParseMessage(m))
	}
	return out, nil
}

// SendReply sends a plain-text reply within an existing thread and returns
// the sent message id. The In-Reply-To/References headers keep client-side
// threading intact.
func (s *Source) SendReply(ctx context.Context, threadID, to, subject, body, inReplyTo string) (string, error) {
	if subject != "" && !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.userEmail)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	if subject != "" {
		fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	}
	if inReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", inReplyTo)
		fmt.Fprintf(&b, "References: %s\r\n", inReplyTo)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	sent, err := s.svc.Users.Messages.Send(gmailUser, &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(b.String())),
		ThreadId: threadID,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("send reply in thread %s: %w", threadID, err)
	}
	log.Info().Str("thread_id", threadID).Str("message_id", sent.Id).Msg("sent reply")
	return sent.Id, nil
}

// Archive removes the INBOX label. Messages are never deleted.
func (s *Source) Archive(ctx context.Context, messageID string) error {
	_, err := s.svc.Users.Messages.Modify(gmailUser, messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("archive %s: %w", messageID, err)
	}
	return nil
}

// fetchAll resolves message stubs to fully parsed messages. A single failed
// fetch is logged and dropped so one bad message cannot sink a batch.
func (s *Source) fetchAll(ctx context.Context, stubs []*gmail.Message) ([]*Message, error) {
	out := make([]*Message, 0, len(stubs))
	for _, stub := range stubs {
		full, err := s.svc.Users.Messages.Get(gmailUser, stub.Id).Format("full").Context(ctx).Do()
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			log.Warn().Err(err).Str("message_id", stub.Id).Msg("failed to fetch message")
			continue
		}
		out = append(out, ParseMessage(full))
	}
	return out, nil
}

func isExpiredHistory(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 404 {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "historyid")
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}
