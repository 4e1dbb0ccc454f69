// Package mail is the Gmail-backed message source: unread and incremental
// listings, thread context, reply sending, and archiving. OAuth token
// refreshes are surfaced through a callback so the caller can persist them.
package mail

import "time"

// Message is a parsed inbound or sent email, reduced to what classification,
// drafting, and voice analysis consume.
//
// Fields:
//   - MessageID / ThreadID: Gmail ids (ThreadID falls back to MessageID).
//   - FromEmail / FromName: sender address and optional display name.
//   - MessageIDHeader: RFC 2822 Message-ID, used for In-Reply-To when replying.
//   - Snippet: body capped for prompts; Body is the full extracted text.
//   - IsReply: subject starts with a reply prefix or References is present.
type Message struct {
	MessageID       string
	ThreadID        string
	FromEmail       string
	FromName        string
	To              []string
	CC              []string
	Subject         string
	Snippet         string
	Body            string
	Date            time.Time
	Labels          []string
	MessageIDHeader string
	IsReply         bool
}

// From renders the sender as "Name <addr>" or the bare address.
func (m *Message) From() string {
	if m.FromName != "" {
		return m.FromName + " <" + m.FromEmail + ">"
	}
	return m.FromEmail
}
