package llm

import (
	"fmt"
	"strings"
)

// Persona describes the person the assistant writes for. It is threaded into
// every system prompt so classification and drafting stay anchored to the
// owner's actual role instead of a generic voice.
//
// Fields:
//   - Name: the owner's full name as it appears in mail.
//   - Role: job title, e.g. "Head of Investor Partnerships".
//   - Company: employer name.
//   - CompanyBlurb: one-paragraph company context for drafting.
//   - ChatUserID: the owner's chat user id, used by the chat classifier to
//     recognize direct mentions.
type Persona struct {
	Name         string
	Role         string
	Company      string
	CompanyBlurb string
	ChatUserID   string
}

// mailClassifySystem builds the triage system prompt for inbound email.
func mailClassifySystem(p Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an email triage assistant for %s, %s at %s.\n\n", p.Name, p.Role, p.Company)
	if p.CompanyBlurb != "" {
		b.WriteString(p.CompanyBlurb + "\n\n")
	}
	b.WriteString(`Classify each email with:
1. category: one of [investor_intro, portfolio_request, partnership_followup, event_invitation, deal_flow, internal_action, internal_fyi, scheduling, follow_up_needed, newsletter, marketing, automated]
2. priority: one of [urgent, high, standard]
3. action: one of [draft_response, fyi_only, skip, archive]
4. summary: 1-sentence plain English summary
5. draft_guidance: if action=draft_response, brief notes on what the response should cover

Priority rules:
- URGENT: Direct asks from known investors, C-suite, or follow-ups where someone is waiting on ` + p.Name + `
- HIGH: Partnership discussions, portfolio company requests, deal flow, event invites from tier 1 partners
- STANDARD: General scheduling, event invites, intros from unknown sources

All actionable emails get a response regardless of priority.

Action rules:
- draft_response: Emails that clearly need a reply
- fyi_only: Emails the owner should know about but don't need a reply (internal FYIs, CC'd threads where someone else is handling it)
- skip: Newsletters, marketing emails, automated notifications
- archive: System notifications (CRM, calendar confirmations, receipts)

Return valid JSON only. No markdown, no code blocks.`)
	return b.String()
}

// chatClassifySystem builds the system prompt deciding whether a chat
// message needs the owner's reply.
func chatClassifySystem(p Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a chat monitoring assistant for %s (%s at %s).\n\n", p.Name, p.Role, p.Company)
	fmt.Fprintf(&b, "Analyze this message and determine if %s needs to respond.\n", p.Name)
	fmt.Fprintf(&b, "Their chat user ID is %s.\n\n", p.ChatUserID)
	b.WriteString(`A message needs a response if:
1. Someone directly mentions the owner or addresses them by name
2. Someone asks about a topic the owner clearly owns
3. An action item is assigned to the owner
4. A question in a monitored channel goes unanswered
5. Their manager or C-suite asks something in their domain

A message does NOT need a response if:
1. The owner already replied in the thread
2. Someone else adequately answered
3. It's general chatter or announcements with no ask
4. It's from a bot
5. The topic isn't the owner's domain
6. The owner sent the message themselves

Return valid JSON only:
{"needs_response": true/false, "reason": "why", "urgency": "high/medium/low", "summary": "1 sentence", "draft_guidance": "what to say" or null}`)
	return b.String()
}

// draftSystem assembles the drafting system prompt: persona, learned voice
// profile, recent feedback, and a few real examples.
func draftSystem(p Persona, voiceSection, feedbackSection, examplesSection string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are drafting a response on behalf of %s, %s at %s.\n\n", p.Name, p.Role, p.Company)
	if p.CompanyBlurb != "" {
		b.WriteString(p.CompanyBlurb + "\n\n")
	}
	b.WriteString(voiceSection + "\n")
	if feedbackSection != "" {
		b.WriteString("\n" + feedbackSection + "\n")
	}
	if examplesSection != "" {
		b.WriteString("\n" + examplesSection + "\n")
	}
	b.WriteString(`
Core rules:
- NEVER fabricate data, meetings, or commitments the owner hasn't made
- NEVER promise availability or schedule meetings (say "let me check my calendar" or similar)
- If you're unsure about context, note it in brackets: [CHECK: is this the Q4 deal?]
- Be warm but not sycophantic with external contacts
- Always end with a clear next step or ask
- Do NOT use quotes around the draft text
- Write the response ready to send, no placeholder text

You will receive the original message, the classification, and any thread context.
Return ONLY the draft response text. No preamble, no explanation.`)
	return b.String()
}

// voiceAnalysisSystem is the prompt that distills sent mail into a profile
// document. The JSON shape here is the contract for the voice_profile row.
const voiceAnalysisSystem = `You are a writing style analyst. Analyze the following sent emails and create a comprehensive voice profile.

Focus on:
1. Greeting patterns: how does the person open emails?
2. Closing patterns: how do they sign off?
3. Sentence length: short and punchy, or longer and detailed?
4. Formality level: scale of 1-5; note if it varies by recipient.
5. Common phrases: recurring phrases or expressions.
6. Tone markers: direct? warm? assertive? collaborative?
7. Structure patterns: bullet points, numbered lists, paragraphs, one-liners?
8. Email length: typical length in sentences.
9. Personality signals: humor, emojis, exclamation marks, abbreviations?
10. Per-recipient patterns: differences between investors, internal, partners?

Return a JSON object with this structure:
{
    "greeting_patterns": ["pattern1"],
    "closing_patterns": ["pattern1"],
    "avg_sentence_length": "short/medium/long",
    "formality_level": 3,
    "common_phrases": ["phrase1"],
    "tone_markers": ["direct", "warm"],
    "structure_preference": "description",
    "typical_email_length": "2-4 sentences",
    "personality_signals": ["description"],
    "per_recipient_notes": {
        "investor": "notes",
        "internal": "notes",
        "partner": "notes"
    },
    "do_not_use": ["phrases this person avoids"],
    "overall_voice_summary": "2-3 sentence summary"
}

Return ONLY the JSON object, no other text.`

// recipientClassifySystem asks for a single-word recipient type. Kept as a
// separate tiny call so voice examples get tagged even when the main
// analysis prompt changes.
const recipientClassifySystem = `Classify the recipient type based on the email context.

Recipient types:
- "investor" - VC partner, PE firm, investor relations
- "internal" - same company colleague, teammate
- "partner" - external partner, portfolio company contact
- "vendor" - sales rep, vendor, service provider
- "unknown" - can't determine

Return ONLY one word: investor, internal, partner, vendor, or unknown.`

// defaultVoiceSection is used until the first voice analysis has run.
func defaultVoiceSection(p Persona) string {
	return fmt.Sprintf(`%s's writing style (defaults, refined after voice analysis):
- Direct and specific. Lead with the answer or action item.
- Human tone, not corporate, not overly casual.
- No buzzwords (never say "synergy", "leverage", "circle back").
- Keep emails under 6 sentences unless complexity requires more.`, p.Name)
}
