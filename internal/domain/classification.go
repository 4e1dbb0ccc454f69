// Classification types shared by the classifier, the scan loop, and the
// audit trail stored on processed messages.
package domain

// MailCategory is the closed set of triage categories for inbound email.
type MailCategory string

const (
	CategoryInvestorIntro       MailCategory = "investor_intro"
	CategoryPortfolioRequest    MailCategory = "portfolio_request"
	CategoryPartnershipFollowup MailCategory = "partnership_followup"
	CategoryEventInvitation     MailCategory = "event_invitation"
	CategoryDealFlow            MailCategory = "deal_flow"
	CategoryInternalAction      MailCategory = "internal_action"
	CategoryInternalFYI         MailCategory = "internal_fyi"
	CategoryScheduling          MailCategory = "scheduling"
	CategoryFollowUpNeeded      MailCategory = "follow_up_needed"
	CategoryNewsletter          MailCategory = "newsletter"
	CategoryMarketing           MailCategory = "marketing"
	CategoryAutomated           MailCategory = "automated"
)

// Valid reports whether c is one of the defined triage categories.
func (c MailCategory) Valid() bool {
	switch c {
	case CategoryInvestorIntro, CategoryPortfolioRequest, CategoryPartnershipFollowup,
		CategoryEventInvitation, CategoryDealFlow, CategoryInternalAction,
		CategoryInternalFYI, CategoryScheduling, CategoryFollowUpNeeded,
		CategoryNewsletter, CategoryMarketing, CategoryAutomated:
		return true
	}
	return false
}

// MailPriority ranks how quickly the owner should look at a message.
type MailPriority string

const (
	PriorityUrgent   MailPriority = "urgent"
	PriorityHigh     MailPriority = "high"
	PriorityStandard MailPriority = "standard"
)

// Valid reports whether p is one of the defined priorities.
func (p MailPriority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityStandard:
		return true
	}
	return false
}

// MailAction is what the scan loop does with a classified message.
type MailAction string

const (
	ActionDraftResponse MailAction = "draft_response"
	ActionFYIOnly       MailAction = "fyi_only"
	ActionSkip          MailAction = "skip"
	ActionArchive       MailAction = "archive"
)

// Valid reports whether a is one of the defined actions.
func (a MailAction) Valid() bool {
	switch a {
	case ActionDraftResponse, ActionFYIOnly, ActionSkip, ActionArchive:
		return true
	}
	return false
}

// MailClassification is the structured triage decision for one email.
type MailClassification struct {
	Category      MailCategory `json:"category"`
	Priority      MailPriority `json:"priority"`
	Action        MailAction   `json:"action"`
	Summary       string       `json:"summary"`
	DraftGuidance string       `json:"draft_guidance,omitempty"`
}

// SafeMailClassification is the fail-open default used whenever the
// completion service returns something unparseable: lowest priority,
// routed to a human, no auto-action.
func SafeMailClassification(summary string) MailClassification {
	return MailClassification{
		Category: CategoryInternalFYI,
		Priority: PriorityStandard,
		Action:   ActionFYIOnly,
		Summary:  summary,
	}
}

// ChatClassification is the structured decision for one chat message.
type ChatClassification struct {
	NeedsResponse bool   `json:"needs_response"`
	Reason        string `json:"reason"`
	Urgency       string `json:"urgency"` // high, medium, low
	Summary       string `json:"summary"`
	DraftGuidance string `json:"draft_guidance,omitempty"`
}

// ExternalDraft is the combined draft + assessment returned for messages
// relayed from outside surfaces through the HTTP boundary. These drafts are
// not persisted; the relay owns the approval flow.
type ExternalDraft struct {
	DraftText     string `json:"draft_text"`
	NeedsResponse bool   `json:"needs_response"`
	Urgency       string `json:"urgency"`
	Summary       string `json:"summary"`
}

// SafeChatClassification is the fail-open default for unparseable chat
// classifications. A chat message degrades to "no response needed" because
// the owner sees the channel anyway; unlike email, nothing is lost.
func SafeChatClassification(summary string) ChatClassification {
	return ChatClassification{
		NeedsResponse: false,
		Reason:        "classification failed",
		Urgency:       "low",
		Summary:       summary,
	}
}
