// Package domain defines the persistence models for drafts, processed
// messages, sync state, and the voice profile. These types are mapped with
// GORM and form the core data layer of the assistant.
package domain

import "time"

// DraftSource identifies the channel a draft originated from.
type DraftSource string

const (
	// SourceMail marks drafts created for inbound email.
	SourceMail DraftSource = "mail"
	// SourceChat marks drafts created for inbound chat messages.
	SourceChat DraftSource = "chat"
)

// DraftStatus is the lifecycle state of a draft. A draft starts in
// StatusPendingReview and leaves it exactly once; StatusApproved is the only
// non-terminal state after that (it advances to StatusSent when the external
// send succeeds).
type DraftStatus string

const (
	StatusPendingReview DraftStatus = "pending_review"
	StatusApproved      DraftStatus = "approved"
	StatusRejected      DraftStatus = "rejected"
	StatusSent          DraftStatus = "sent"
	StatusSkipped       DraftStatus = "skipped"
	StatusExpired       DraftStatus = "expired"
)

// Terminal reports whether no transition may leave the status.
func (s DraftStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusSent, StatusSkipped, StatusExpired:
		return true
	}
	return false
}

// Draft is a proposed reply awaiting a human decision.
//
// The origin fields and the classification snapshot are captured at creation
// and never updated. DraftText is immutable as well; EditedText overrides it
// when the owner rewrites the reply before approving. Exactly one terminal
// timestamp is set, matching Status.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Source: "mail" or "chat" (enforced by DB constraint).
//   - Status: lifecycle state, see DraftStatus.
//   - Original*: inbound message context captured at creation.
//   - Category / Priority / Summary: classification snapshot.
//   - DraftText / DraftSubject / EditedText: generated and edited content.
//   - NotifyChannel / NotifyTS: handle of the rendered approval notification.
type Draft struct {
	ID        string      `json:"id"     gorm:"type:char(36);primaryKey"`
	Source    DraftSource `json:"source" gorm:"type:varchar(8);not null;index;check:source IN ('mail','chat')"`
	Status    DraftStatus `json:"status" gorm:"type:varchar(16);not null;default:'pending_review';index"`
	CreatedAt time.Time   `json:"created_at"`

	OriginalFrom      string `json:"original_from"       gorm:"type:text;not null"`
	OriginalSubject   string `json:"original_subject"    gorm:"type:text"`
	OriginalBody      string `json:"original_body"       gorm:"type:text;not null"`
	OriginalMessageID string `json:"original_message_id" gorm:"type:text;not null;index"`
	OriginalThreadID  string `json:"original_thread_id"  gorm:"type:text"`
	OriginalChannelID string `json:"original_channel_id" gorm:"type:text"`

	Category string `json:"category" gorm:"type:varchar(32)"`
	Priority string `json:"priority" gorm:"type:varchar(16)"`
	Summary  string `json:"summary"  gorm:"type:text"`

	DraftText    string  `json:"draft_text"            gorm:"type:text;not null"`
	DraftSubject string  `json:"draft_subject"         gorm:"type:text"`
	EditedText   *string `json:"edited_text,omitempty" gorm:"type:text"`

	NotifyChannel string `json:"notify_channel" gorm:"type:varchar(32)"`
	NotifyTS      string `json:"notify_ts"      gorm:"type:varchar(32)"`

	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
}

// TableName returns the database table name for Draft.
func (Draft) TableName() string { return "drafts" }

// DisplayText returns the text that will actually be sent: the user's edit
// when present, otherwise the generated draft. Both the send path and any
// rendering must go through this single accessor.
func (d *Draft) DisplayText() string {
	if d.EditedText != nil && *d.EditedText != "" {
		return *d.EditedText
	}
	return d.DraftText
}

// ProcessedMessage records that an inbound message was already evaluated.
// Rows are write-once and keyed by (message_id, source); their existence is
// the de-duplication guard. Classification carries the snapshot for audit.
type ProcessedMessage struct {
	MessageID      string      `json:"message_id"     gorm:"type:text;not null;primaryKey"`
	Source         DraftSource `json:"source"         gorm:"type:varchar(8);not null;primaryKey"`
	ProcessedAt    time.Time   `json:"processed_at"`
	Classification string      `json:"classification" gorm:"type:text"`
}

// TableName returns the database table name for ProcessedMessage.
func (ProcessedMessage) TableName() string { return "processed_messages" }

// SyncState is a key/value row holding per-stream sync cursors and other
// small mutable state (the mail history pointer, the refreshed OAuth token).
// Overwritten on every successful cycle; absence means "full initial scan".
type SyncState struct {
	Key       string    `json:"key"   gorm:"type:varchar(64);primaryKey"`
	Value     string    `json:"value" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for SyncState.
func (SyncState) TableName() string { return "scan_state" }

// VoiceProfile is the single current description of the owner's writing
// style, stored as a JSON document. Replaced wholesale on each rebuild
// (no merge semantics).
type VoiceProfile struct {
	ID             int       `json:"id"              gorm:"primaryKey"`
	ProfileJSON    string    `json:"profile_json"    gorm:"type:text"`
	EmailsAnalyzed int       `json:"emails_analyzed" gorm:"not null;default:0"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for VoiceProfile.
func (VoiceProfile) TableName() string { return "voice_profile" }

// VoiceExample is a previously sent message tagged with an inferred recipient
// category. Append-only, deduplicated by the source message id.
type VoiceExample struct {
	ID              uint      `json:"id"               gorm:"primaryKey;autoIncrement"`
	EmailID         string    `json:"email_id"         gorm:"type:text;not null;uniqueIndex:ux_voice_example_email"`
	RecipientType   string    `json:"recipient_type"   gorm:"type:varchar(16);index"`
	RecipientDomain string    `json:"recipient_domain" gorm:"type:text"`
	Subject         string    `json:"subject"          gorm:"type:text"`
	SentText        string    `json:"sent_text"        gorm:"type:text"`
	ToneTags        string    `json:"tone_tags"        gorm:"type:text"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName returns the database table name for VoiceExample.
func (VoiceExample) TableName() string { return "voice_examples" }

// Feedback types stored in VoiceFeedback.
const (
	FeedbackEditDiff = "edit_diff"
	FeedbackText     = "text_feedback"
)

// VoiceFeedback is an append-only log entry: either a diff between the
// generated and the user-edited text, or free-text guidance from the owner.
// Consumed only as a bounded recent window, never replayed beyond it.
type VoiceFeedback struct {
	ID        uint      `json:"id"       gorm:"primaryKey;autoIncrement"`
	DraftID   string    `json:"draft_id" gorm:"type:char(36);index"`
	Type      string    `json:"type"     gorm:"type:varchar(16);not null;column:feedback_type;check:feedback_type IN ('edit_diff','text_feedback')"`
	Content   string    `json:"content"  gorm:"type:text;not null;column:feedback_content"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for VoiceFeedback.
func (VoiceFeedback) TableName() string { return "voice_feedback" }
