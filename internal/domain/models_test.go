package domain

import "testing"

func TestDraftStatus_Terminal(t *testing.T) {
	cases := []struct {
		status DraftStatus
		want   bool
	}{
		{StatusPendingReview, false},
		{StatusApproved, false},
		{StatusRejected, true},
		{StatusSent, true},
		{StatusSkipped, true},
		{StatusExpired, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.want {
			t.Errorf("Terminal(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestDraft_DisplayText_PrefersEdit(t *testing.T) {
	d := &Draft{DraftText: "generated"}
	if got := d.DisplayText(); got != "generated" {
		t.Fatalf("DisplayText without edit = %q, want draft text", got)
	}

	edit := "rewritten by the owner"
	d.EditedText = &edit
	if got := d.DisplayText(); got != edit {
		t.Fatalf("DisplayText with edit = %q, want %q", got, edit)
	}

	// An empty edit must not shadow the draft.
	empty := ""
	d.EditedText = &empty
	if got := d.DisplayText(); got != "generated" {
		t.Fatalf("DisplayText with empty edit = %q, want draft text", got)
	}
}

func TestDraft_DisplayText_IndependentOfStatus(t *testing.T) {
	edit := "final wording"
	for _, st := range []DraftStatus{
		StatusPendingReview, StatusApproved, StatusRejected,
		StatusSent, StatusSkipped, StatusExpired,
	} {
		d := &Draft{Status: st, DraftText: "original", EditedText: &edit}
		if got := d.DisplayText(); got != edit {
			t.Errorf("DisplayText in status %q = %q, want %q", st, got, edit)
		}
	}
}

func TestSafeMailClassification_FailsOpenToHuman(t *testing.T) {
	c := SafeMailClassification("could not classify")
	if c.Category != CategoryInternalFYI {
		t.Errorf("category = %q, want %q", c.Category, CategoryInternalFYI)
	}
	if c.Priority != PriorityStandard {
		t.Errorf("priority = %q, want %q", c.Priority, PriorityStandard)
	}
	if c.Action != ActionFYIOnly {
		t.Errorf("action = %q, want %q", c.Action, ActionFYIOnly)
	}
	if c.Summary != "could not classify" {
		t.Errorf("summary = %q", c.Summary)
	}
}

func TestSafeChatClassification_NoResponse(t *testing.T) {
	c := SafeChatClassification("unparseable")
	if c.NeedsResponse {
		t.Fatal("safe chat classification must not request a response")
	}
	if c.Urgency != "low" {
		t.Errorf("urgency = %q, want low", c.Urgency)
	}
}
