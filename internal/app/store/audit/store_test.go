package audit_test

import (
	"testing"
	"time"

	"github.com/excelanalytics/excelhub/internal/app/store/audit"
	"github.com/excelanalytics/excelhub/internal/testutil"
)

func TestStore_Log_AutoFillsIDAndTimestamp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	before := time.Now().Add(-time.Second)
	err := store.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogin,
		UserID:    "user-1",
		IP:        "192.168.1.1",
		Success:   true,
	})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	after := time.Now().Add(time.Second)

	events, err := store.GetRecent(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID.IsZero() {
		t.Error("expected ID to be auto-generated")
	}
	if events[0].Timestamp.Before(before) || events[0].Timestamp.After(after) {
		t.Errorf("expected timestamp to be set to current time, got %v", events[0].Timestamp)
	}
}

func TestStore_GetByGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, ev := range []audit.Event{
		{Category: audit.CategoryGroup, EventType: audit.EventGroupCreated, GroupID: "g1", ActorID: "admin-1", Success: true},
		{Category: audit.CategoryGroup, EventType: audit.EventJoinRequested, GroupID: "g1", UserID: "user-2", Success: true},
		{Category: audit.CategoryGroup, EventType: audit.EventGroupCreated, GroupID: "g2", ActorID: "admin-2", Success: true},
	} {
		if err := store.Log(ctx, ev); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events, err := store.GetByGroup(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("GetByGroup failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events for g1, got %d", len(events))
	}
}

func TestStore_Query_ByEventTypeAndTime(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	old := time.Now().Add(-48 * time.Hour).UTC()
	events := []audit.Event{
		{Timestamp: old, Category: audit.CategoryGroup, EventType: audit.EventJoinApproved, GroupID: "g1", UserID: "u1", Success: true},
		{Category: audit.CategoryGroup, EventType: audit.EventJoinApproved, GroupID: "g1", UserID: "u2", Success: true},
		{Category: audit.CategoryGroup, EventType: audit.EventJoinRejected, GroupID: "g1", UserID: "u3", Success: true},
	}
	for _, ev := range events {
		if err := store.Log(ctx, ev); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	since := time.Now().Add(-time.Hour)
	got, err := store.Query(ctx, audit.QueryFilter{EventType: audit.EventJoinApproved, StartTime: &since})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 1 || got[0].UserID != "u2" {
		t.Errorf("expected only the recent approval for u2, got %+v", got)
	}

	n, err := store.CountByFilter(ctx, audit.QueryFilter{Category: audit.CategoryGroup})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 3 {
		t.Errorf("CountByFilter = %d, want 3", n)
	}
}

func TestStore_Query_WithOffset(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		err := store.Log(ctx, audit.Event{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Category:  audit.CategoryAuth,
			EventType: audit.EventLogin,
			Success:   true,
		})
		if err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	page, err := store.Query(ctx, audit.QueryFilter{Limit: 2, Offset: 3})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 events, got %d", len(page))
	}
	if !page[0].Timestamp.After(page[1].Timestamp) {
		t.Error("expected newest-first ordering")
	}
}

func TestStore_Log_FailedEvent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := store.Log(ctx, audit.Event{
		Category:      audit.CategoryGroup,
		EventType:     audit.EventAuthorizationDenied,
		GroupID:       "g1",
		ActorID:       "user-9",
		Success:       false,
		FailureReason: "caller is not the group admin",
		Details:       map[string]string{"action": "invite"},
	})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.Query(ctx, audit.QueryFilter{GroupID: "g1"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Success {
		t.Error("expected Success=false")
	}
	if events[0].Details["action"] != "invite" {
		t.Errorf("Details[action] = %q, want invite", events[0].Details["action"])
	}
}
