package repo

import (
	"context"
	"testing"

	"github.com/smadden/go-inbox-assistant/internal/domain"
)

func TestGetVoiceProfile_NeverAnalyzed(t *testing.T) {
	db := newRepoDB(t, &domain.VoiceProfile{})
	if _, err := GetVoiceProfile(context.Background(), db); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveVoiceProfile_WholesaleReplace(t *testing.T) {
	db := newRepoDB(t, &domain.VoiceProfile{})
	ctx := context.Background()

	if err := SaveVoiceProfile(ctx, db, `{"tone":"warm"}`, 40); err != nil {
		t.Fatalf("SaveVoiceProfile: %v", err)
	}
	if err := SaveVoiceProfile(ctx, db, `{"tone":"direct"}`, 95); err != nil {
		t.Fatalf("second SaveVoiceProfile: %v", err)
	}

	p, err := GetVoiceProfile(ctx, db)
	if err != nil {
		t.Fatalf("GetVoiceProfile: %v", err)
	}
	if p.ProfileJSON != `{"tone":"direct"}` || p.EmailsAnalyzed != 95 {
		t.Fatalf("profile not replaced: %+v", p)
	}

	var n int64
	if err := db.Model(&domain.VoiceProfile{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("profile must stay a single row, got %d", n)
	}
}

func TestSaveVoiceExample_DedupByEmailID(t *testing.T) {
	db := newRepoDB(t, &domain.VoiceExample{})
	ctx := context.Background()

	ex := &domain.VoiceExample{
		EmailID:         "sent-1",
		RecipientType:   "investor",
		RecipientDomain: "sequoia.com",
		Subject:         "Re: Q3 update",
		SentText:        "Thanks for flagging, on it.",
	}
	if err := SaveVoiceExample(ctx, db, ex); err != nil {
		t.Fatalf("SaveVoiceExample: %v", err)
	}
	dup := &domain.VoiceExample{EmailID: "sent-1", RecipientType: "investor", SentText: "changed"}
	if err := SaveVoiceExample(ctx, db, dup); err != nil {
		t.Fatalf("duplicate must be swallowed, got: %v", err)
	}

	got, err := ListVoiceExamples(ctx, db, "", 10)
	if err != nil {
		t.Fatalf("ListVoiceExamples: %v", err)
	}
	if len(got) != 1 || got[0].SentText != "Thanks for flagging, on it." {
		t.Fatalf("dedup failed: %+v", got)
	}
}

func TestListVoiceExamples_RecipientFilterAndLimit(t *testing.T) {
	db := newRepoDB(t, &domain.VoiceExample{})
	ctx := context.Background()

	samples := []domain.VoiceExample{
		{EmailID: "s1", RecipientType: "investor", SentText: "a"},
		{EmailID: "s2", RecipientType: "founder", SentText: "b"},
		{EmailID: "s3", RecipientType: "investor", SentText: "c"},
		{EmailID: "s4", RecipientType: "investor", SentText: "d"},
	}
	for i := range samples {
		if err := SaveVoiceExample(ctx, db, &samples[i]); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	investors, err := ListVoiceExamples(ctx, db, "investor", 2)
	if err != nil {
		t.Fatalf("ListVoiceExamples: %v", err)
	}
	if len(investors) != 2 {
		t.Fatalf("limit ignored: got %d", len(investors))
	}
	for _, ex := range investors {
		if ex.RecipientType != "investor" {
			t.Fatalf("filter leaked: %+v", ex)
		}
	}
}

func TestVoiceFeedback_AppendAndBoundedWindow(t *testing.T) {
	db := newRepoDB(t, &domain.VoiceFeedback{})
	ctx := context.Background()

	for i, content := range []string{"too formal", "drop greetings", "shorter"} {
		typ := domain.FeedbackText
		if i == 1 {
			typ = domain.FeedbackEditDiff
		}
		if err := AppendVoiceFeedback(ctx, db, "d-1", typ, content); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	recent, err := ListRecentFeedback(ctx, db, 2)
	if err != nil {
		t.Fatalf("ListRecentFeedback: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("window not bounded: got %d", len(recent))
	}
	// Newest first: the oldest entry must be the one left outside the window.
	for _, fb := range recent {
		if fb.Content == "too formal" {
			t.Fatalf("oldest entry leaked into the bounded window: %+v", recent)
		}
	}
}
