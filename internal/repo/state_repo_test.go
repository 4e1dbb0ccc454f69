package repo

import (
	"context"
	"testing"

	"github.com/smadden/go-inbox-assistant/internal/domain"
)

func TestGetState_MissingKey(t *testing.T) {
	db := newRepoDB(t, &domain.SyncState{})
	if _, err := GetState(context.Background(), db, StateMailHistoryID); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSetState_InsertThenOverwrite(t *testing.T) {
	db := newRepoDB(t, &domain.SyncState{})
	ctx := context.Background()

	if err := SetState(ctx, db, StateMailHistoryID, "1000"); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	got, err := GetState(ctx, db, StateMailHistoryID)
	if err != nil || got != "1000" {
		t.Fatalf("got %q, %v", got, err)
	}

	// Cursors only ever move forward by overwrite, never accumulate rows.
	if err := SetState(ctx, db, StateMailHistoryID, "1042"); err != nil {
		t.Fatalf("SetState overwrite: %v", err)
	}
	got, err = GetState(ctx, db, StateMailHistoryID)
	if err != nil || got != "1042" {
		t.Fatalf("got %q, %v after overwrite", got, err)
	}

	var n int64
	if err := db.Model(&domain.SyncState{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected a single row after upsert, got %d", n)
	}
}

func TestSetState_KeysAreIndependent(t *testing.T) {
	db := newRepoDB(t, &domain.SyncState{})
	ctx := context.Background()

	if err := SetState(ctx, db, StateMailHistoryID, "7"); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if err := SetState(ctx, db, StateMailToken, `{"access_token":"ya29"}`); err != nil {
		t.Fatalf("SetState token: %v", err)
	}

	hist, err := GetState(ctx, db, StateMailHistoryID)
	if err != nil || hist != "7" {
		t.Fatalf("history = %q, %v", hist, err)
	}
	tok, err := GetState(ctx, db, StateMailToken)
	if err != nil || tok != `{"access_token":"ya29"}` {
		t.Fatalf("token = %q, %v", tok, err)
	}
}
