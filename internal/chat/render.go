// Package chat is the Slack surface of the assistant: Block Kit draft
// notifications with the approval buttons, FYI pings, ephemeral in-thread
// drafts, and the Socket Mode listener feeding the chat admission path.
package chat

import (
	"fmt"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/smadden/go-inbox-assistant/internal/domain"
)

// Interactive action ids carried on the notification buttons and the edit
// modal. The listener dispatches on these.
const (
	ActionApprove    = "approve_draft"
	ActionEdit       = "edit_draft"
	ActionReject     = "reject_draft"
	ActionSkip       = "skip_draft"
	EditCallbackID   = "edit_draft_submit"
	editInputBlockID = "draft_input"
	editInputAction  = "draft_text"
)

const (
	notifyBodyClip  = 1500
	notifyDraftClip = 2000
)

var titleCaser = cases.Title(language.English)

func priorityEmoji(p domain.MailPriority) string {
	switch p {
	case domain.PriorityUrgent:
		return ":rotating_light:"
	case domain.PriorityHigh:
		return ":large_orange_diamond:"
	}
	return ":white_circle:"
}

func mrkdwn(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

func clipText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// draftBlocks renders the full approval notification: origin summary,
// original message, draft text, and the four action buttons.
func draftBlocks(d *domain.Draft) []slack.Block {
	priority := domain.MailPriority(d.Priority)
	header := fmt.Sprintf("%s %s NEEDS RESPONSE — %s",
		priorityEmoji(priority), sourceLabel(d.Source), titleCaser.String(d.Priority))

	fields := []*slack.TextBlockObject{
		mrkdwn("*From:* " + d.OriginalFrom),
		mrkdwn("*Received:* " + d.CreatedAt.Format("3:04 PM")),
	}
	if d.OriginalSubject != "" {
		fields = append(fields, mrkdwn("*Subject:* "+d.OriginalSubject))
	}
	if d.Category != "" {
		fields = append(fields, mrkdwn("*Category:* "+d.Category))
	}

	return []slack.Block{
		slack.NewHeaderBlock(plain(header)),
		slack.NewSectionBlock(nil, fields, nil),
		slack.NewDividerBlock(),
		slack.NewContextBlock("", mrkdwn("*Original Message*")),
		slack.NewSectionBlock(mrkdwn(clipText(d.OriginalBody, notifyBodyClip)), nil, nil),
		slack.NewDividerBlock(),
		slack.NewContextBlock("", mrkdwn("*Draft Response*")),
		slack.NewSectionBlock(mrkdwn(clipText(d.DisplayText(), notifyDraftClip)), nil, nil),
		slack.NewDividerBlock(),
		actionButtons(d.ID),
	}
}

// editedDraftBlocks re-renders the notification after a modal save: the
// edited text replaces the draft and the buttons stay live.
func editedDraftBlocks(d *domain.Draft) []slack.Block {
	head := fmt.Sprintf("*Re: %s*\nFrom: %s", d.OriginalSubject, d.OriginalFrom)
	if d.Summary != "" {
		head += fmt.Sprintf("\n_%s_", d.Summary)
	}
	return []slack.Block{
		slack.NewSectionBlock(mrkdwn(head), nil, nil),
		slack.NewDividerBlock(),
		slack.NewContextBlock("", mrkdwn("*Edited Draft*")),
		slack.NewSectionBlock(mrkdwn(clipText(d.DisplayText(), notifyDraftClip)), nil, nil),
		slack.NewDividerBlock(),
		actionButtons(d.ID),
	}
}

// statusBlocks collapses a decided notification to a one-line receipt.
func statusBlocks(d *domain.Draft, status string) []slack.Block {
	label := titleCaser.String(status)
	return []slack.Block{
		slack.NewSectionBlock(mrkdwn(fmt.Sprintf("~%s~ — *%s*\nFrom: %s",
			d.OriginalSubject, label, d.OriginalFrom)), nil, nil),
		slack.NewContextBlock("", mrkdwn(fmt.Sprintf("_%s at %s_",
			label, statusTime(d).Format("Jan 2 3:04 PM")))),
	}
}

// fyiBlocks renders the buttonless FYI ping.
func fyiBlocks(from, subject, summary string, priority domain.MailPriority) []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(mrkdwn(fmt.Sprintf("%s *FYI — %s*\nFrom: %s\n%s",
			priorityEmoji(priority), subject, from, summary)), nil, nil),
	}
}

// editModal builds the draft editing modal, seeded with the current display
// text so an earlier edit is not lost.
func editModal(d *domain.Draft) slack.ModalViewRequest {
	input := slack.NewPlainTextInputBlockElement(nil, editInputAction)
	input.Multiline = true
	input.InitialValue = d.DisplayText()

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      EditCallbackID,
		PrivateMetadata: d.ID,
		Title:           plain("Edit Draft"),
		Submit:          plain("Save"),
		Close:           plain("Cancel"),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewInputBlock(editInputBlockID, plain("Draft Response"), nil, input),
		}},
	}
}

func actionButtons(draftID string) *slack.ActionBlock {
	send := slack.NewButtonBlockElement(ActionApprove, draftID, plain("Send"))
	send.Style = slack.StylePrimary
	reject := slack.NewButtonBlockElement(ActionReject, draftID, plain("Reject"))
	reject.Style = slack.StyleDanger
	return slack.NewActionBlock("",
		send,
		slack.NewButtonBlockElement(ActionEdit, draftID, plain("Edit")),
		reject,
		slack.NewButtonBlockElement(ActionSkip, draftID, plain("Skip")),
	)
}

func sourceLabel(s domain.DraftSource) string {
	if s == domain.SourceChat {
		return "MESSAGE"
	}
	return "EMAIL"
}

func statusTime(d *domain.Draft) time.Time {
	switch {
	case d.SentAt != nil:
		return *d.SentAt
	case d.RejectedAt != nil:
		return *d.RejectedAt
	case d.ApprovedAt != nil:
		return *d.ApprovedAt
	}
	return d.CreatedAt
}
