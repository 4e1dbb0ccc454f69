package mail

import (
	"encoding/base64"
	"net/mail"
	"regexp"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"
)

// snippetLimit caps the body excerpt carried into prompts.
const snippetLimit = 2000

var (
	htmlTagRe    = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>|<[^>]+>`)
	multiBlankRe = regexp.MustCompile(`\n{3,}`)
)

// ParseMessage converts a Gmail API message into a Message. It never fails:
// missing headers degrade to zero values so a malformed email still reaches
// classification rather than silently disappearing.
func ParseMessage(m *gmail.Message) *Message {
	headers := map[string]string{}
	if m.Payload != nil {
		for _, h := range m.Payload.Headers {
			headers[strings.ToLower(h.Name)] = h.Value
		}
	}

	body := extractBody(m.Payload)
	snippet := body
	if snippet == "" {
		snippet = m.Snippet
	}
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit]
	}

	fromName, fromEmail := splitAddress(headers["from"])

	threadID := m.ThreadId
	if threadID == "" {
		threadID = m.Id
	}

	subject := headers["subject"]
	if subject == "" {
		subject = "(no subject)"
	}

	date := time.Now().UTC()
	if d, err := mail.ParseDate(headers["date"]); err == nil {
		date = d
	}

	return &Message{
		MessageID:       m.Id,
		ThreadID:        threadID,
		FromEmail:       fromEmail,
		FromName:        fromName,
		To:              splitAddressList(headers["to"]),
		CC:              splitAddressList(headers["cc"]),
		Subject:         subject,
		Snippet:         snippet,
		Body:            body,
		Date:            date,
		Labels:          m.LabelIds,
		MessageIDHeader: headers["message-id"],
		IsReply:         isReply(subject, headers["references"]),
	}
}

// extractBody walks the MIME tree preferring text/plain; a text/html part is
// used as fallback with tags stripped. Nested multiparts are descended.
func extractBody(p *gmail.MessagePart) string {
	if p == nil {
		return ""
	}
	if plain := findPart(p, "text/plain"); plain != "" {
		return strings.TrimSpace(plain)
	}
	if html := findPart(p, "text/html"); html != "" {
		return strings.TrimSpace(stripHTML(html))
	}
	return ""
}

func findPart(p *gmail.MessagePart, mimeType string) string {
	if p == nil {
		return ""
	}
	if p.MimeType == mimeType && p.Body != nil && p.Body.Data != "" {
		return decodeBody(p.Body.Data)
	}
	for _, child := range p.Parts {
		if s := findPart(child, mimeType); s != "" {
			return s
		}
	}
	return ""
}

func decodeBody(data string) string {
	raw, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(raw)
}

func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, "\n")
	s = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&#39;", "'", "&quot;", `"`).Replace(s)
	s = multiBlankRe.ReplaceAllString(s, "\n\n")
	return s
}

func splitAddress(header string) (name, email string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ""
	}
	if a, err := mail.ParseAddress(header); err == nil {
		return a.Name, a.Address
	}
	// Tolerate malformed From headers; the raw value beats losing the sender.
	if i, j := strings.Index(header, "<"), strings.Index(header, ">"); i >= 0 && j > i {
		return strings.Trim(strings.TrimSpace(header[:i]), `"`), header[i+1 : j]
	}
	return "", header
}

func splitAddressList(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	if addrs, err := mail.ParseAddressList(header); err == nil {
		out := make([]string, 0, len(addrs))
		for _, a := range addrs {
			out = append(out, a.Address)
		}
		return out
	}
	var out []string
	for _, part := range strings.Split(header, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isReply(subject, references string) bool {
	if references != "" {
		return true
	}
	low := strings.ToLower(subject)
	return strings.HasPrefix(low, "re:") || strings.HasPrefix(low, "fwd:") || strings.HasPrefix(low, "fw:")
}
