package auditlog_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/excelanalytics/excelhub/internal/app/store/audit"
	"github.com/excelanalytics/excelhub/internal/app/system/auditlog"
	"github.com/excelanalytics/excelhub/internal/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingStore struct {
	events []audit.Event
	err    error
}

func (s *recordingStore) Log(_ context.Context, e audit.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func TestLogger_NilLogger(t *testing.T) {
	var logger *auditlog.Logger
	ctx := context.Background()
	req := httptest.NewRequest("GET", "/", nil)

	// These should all be no-ops, not panic
	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.Login(ctx, req, "u1", "u1@x.com", false)
	logger.JoinApproved(ctx, req, "admin1", "u1", "g1")
}

func TestLogger_Destinations(t *testing.T) {
	tests := []struct {
		setting  string
		wantDB   int
		wantLogs int
	}{
		{"all", 1, 1},
		{"", 1, 1},
		{"db", 1, 0},
		{"log", 0, 1},
		{"off", 0, 0},
		{" OFF ", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.setting, func(t *testing.T) {
			store := &recordingStore{}
			core, logs := observer.New(zapcore.InfoLevel)
			logger := auditlog.New(store, zap.New(core), auditlog.Config{Auth: "off", Membership: tt.setting})

			req := httptest.NewRequest("POST", "/api/groups/g1/approve", nil)
			logger.JoinApproved(context.Background(), req, "admin1", "u2", "g1")

			if len(store.events) != tt.wantDB {
				t.Errorf("stored %d events, want %d", len(store.events), tt.wantDB)
			}
			if logs.Len() != tt.wantLogs {
				t.Errorf("logged %d entries, want %d", logs.Len(), tt.wantLogs)
			}
		})
	}
}

func TestLogger_CategoriesUseTheirOwnSetting(t *testing.T) {
	store := &recordingStore{}
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "db", Membership: "off"})
	ctx := context.Background()
	req := httptest.NewRequest("POST", "/", nil)

	logger.Login(ctx, req, "u1", "u1@x.com", true)
	logger.GroupCreated(ctx, req, "u1", "g1", "Finance")
	logger.ProfileUpdated(ctx, req, "u1", []string{"bio"})

	if len(store.events) != 1 || store.events[0].EventType != audit.EventLogin {
		t.Fatalf("events = %+v, want only the login", store.events)
	}
	if store.events[0].Details["first_sign_in"] != "true" {
		t.Errorf("details = %v", store.events[0].Details)
	}
}

func TestLogger_RecordsRequestContext(t *testing.T) {
	store := &recordingStore{}
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "db", Membership: "db"})

	req := httptest.NewRequest("POST", "/api/groups/g1/invite", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "excel-client/1.0")
	logger.UserInvited(context.Background(), req, "admin1", "g1", "u2", "u2@x.com")

	if len(store.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(store.events))
	}
	e := store.events[0]
	if e.IP != "203.0.113.7" {
		t.Errorf("IP = %q, want first forwarded hop", e.IP)
	}
	if e.UserAgent != "excel-client/1.0" {
		t.Errorf("UserAgent = %q", e.UserAgent)
	}
	if e.Category != audit.CategoryGroup || e.GroupID != "g1" || e.UserID != "u2" || e.ActorID != "admin1" {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestLogger_FailureIsWarning(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := auditlog.New(nil, zap.New(core), auditlog.Config{Membership: "log"})

	logger.AuthorizationDenied(context.Background(), httptest.NewRequest("POST", "/", nil), "u2", "g1", "approve")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("level = %s, want warn", entries[0].Level)
	}
	if entries[0].ContextMap()["detail_action"] != "approve" {
		t.Errorf("fields = %v", entries[0].ContextMap())
	}
}

func TestLogger_StoreErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	store := &recordingStore{err: errors.New("write failed")}
	logger := auditlog.New(store, zap.New(core), auditlog.Config{Auth: "db"})

	logger.Logout(context.Background(), httptest.NewRequest("POST", "/", nil), "u1", true)

	if logs.FilterMessage("failed to store audit event").Len() != 1 {
		t.Error("expected store failure to be logged")
	}
}

func TestLogger_WritesToMongo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "db", Membership: "db"})
	req := httptest.NewRequest("POST", "/", nil)
	logger.MemberRemoved(ctx, req, "admin1", "u2", "g1")
	logger.Login(ctx, req, "u2", "u2@x.com", false)

	events, err := store.GetByGroup(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("GetByGroup failed: %v", err)
	}
	if len(events) != 1 || events[0].EventType != audit.EventMemberRemoved {
		t.Errorf("events = %+v", events)
	}

	events, err = store.GetByUser(ctx, "u2", 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events for u2, got %d", len(events))
	}
}

func TestValidDestination(t *testing.T) {
	for _, s := range []string{"all", "db", "LOG", " off "} {
		if !auditlog.ValidDestination(s) {
			t.Errorf("%q should be valid", s)
		}
	}
	if auditlog.ValidDestination("stdout") {
		t.Error("stdout should be invalid")
	}
}
