package profilestore_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	profilestore "github.com/excelanalytics/excelhub/internal/app/store/profiles"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"github.com/excelanalytics/excelhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestStore_Ensure_CreatesOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := profilestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p, created, err := store.Ensure(ctx, "sub-1", " Alice@Example.com ", "Alice")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if !created {
		t.Error("expected created=true on first sign-in")
	}
	if p.Role != models.RoleUser || p.GroupID != nil {
		t.Errorf("new profile: role=%q group=%v, want user/nil", p.Role, p.GroupID)
	}
	if p.Email != "alice@example.com" {
		t.Errorf("Email = %q, want normalized", p.Email)
	}

	p, created, err = store.Ensure(ctx, "sub-1", "other@example.com", "Someone Else")
	if err != nil {
		t.Fatalf("second Ensure failed: %v", err)
	}
	if created {
		t.Error("expected created=false on later sign-in")
	}
	if p.Email != "alice@example.com" || p.Name != "Alice" {
		t.Errorf("existing identity overwritten: %+v", p)
	}
}

func TestStore_Ensure_FillsMissingEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := profilestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, _, err := store.Ensure(ctx, "sub-2", "", ""); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	p, _, err := store.Ensure(ctx, "sub-2", "bob@example.com", "Bob")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if p.Email != "bob@example.com" || p.Name != "Bob" {
		t.Errorf("expected identity filled in, got %+v", p)
	}
}

func TestStore_GetByEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := profilestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateProfile(ctx, "u1", "Carol", "carol@example.com")

	p, err := store.GetByEmail(ctx, "CAROL@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if p.ID != "u1" {
		t.Errorf("ID = %q, want u1", p.ID)
	}
	if _, err := store.GetByEmail(ctx, "nobody@example.com"); err != mongo.ErrNoDocuments {
		t.Errorf("expected mongo.ErrNoDocuments, got %v", err)
	}
}

func TestStore_SetAffiliation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := profilestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateProfile(ctx, "u1", "Dana", "dana@example.com")

	gid := "g-1"
	if err := store.SetAffiliation(ctx, "u1", &gid, models.RoleAdmin); err != nil {
		t.Fatalf("SetAffiliation failed: %v", err)
	}
	p := fixtures.GetProfile(ctx, "u1")
	if !p.InGroup(gid) || !p.IsAdmin() {
		t.Errorf("expected admin of g-1, got group=%v role=%q", p.GroupID, p.Role)
	}

	if err := store.SetAffiliation(ctx, "u1", nil, models.RoleUser); err != nil {
		t.Fatalf("SetAffiliation(nil) failed: %v", err)
	}
	p = fixtures.GetProfile(ctx, "u1")
	if p.GroupID != nil || p.Role != models.RoleUser {
		t.Errorf("expected unaffiliated user, got group=%v role=%q", p.GroupID, p.Role)
	}

	if err := store.SetAffiliation(ctx, "missing", nil, models.RoleUser); err != mongo.ErrNoDocuments {
		t.Errorf("expected mongo.ErrNoDocuments, got %v", err)
	}
}

func TestStore_UpdateIdentity_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := profilestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := db.Collection("profiles").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}
	fixtures.CreateProfile(ctx, "u1", "Gus", "gus@example.com")
	fixtures.CreateProfile(ctx, "u2", "Hal", "hal@example.com")

	if err := store.UpdateIdentity(ctx, "u2", "", "GUS@example.com"); err != profilestore.ErrDuplicateEmail {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestStore_Notifications(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := profilestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateProfile(ctx, "u1", "Eve", "eve@example.com")

	n := models.Notification{ID: "n1", Type: models.NotificationGroupInvite, GroupID: "g1", GroupName: "Team", Timestamp: time.Now().UTC()}
	if err := store.AddNotification(ctx, "u1", n); err != nil {
		t.Fatalf("AddNotification failed: %v", err)
	}
	if err := store.MarkNotificationsRead(ctx, "u1"); err != nil {
		t.Fatalf("MarkNotificationsRead failed: %v", err)
	}
	p := fixtures.GetProfile(ctx, "u1")
	if len(p.Notifications) != 1 || !p.Notifications[0].Read {
		t.Errorf("expected one read notification, got %+v", p.Notifications)
	}
}

func TestStore_Sessions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := profilestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateProfile(ctx, "u1", "Finn", "finn@example.com")
	t0 := time.Now().UTC().Truncate(time.Second)

	if _, err := store.StartSession(ctx, "u1", t0); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	closed, err := store.EndSession(ctx, "u1", t0.Add(5*time.Minute))
	if err != nil || !closed {
		t.Fatalf("EndSession: closed=%v err=%v", closed, err)
	}
	closed, err = store.EndSession(ctx, "u1", t0.Add(6*time.Minute))
	if err != nil || closed {
		t.Errorf("second EndSession: closed=%v err=%v, want false,nil", closed, err)
	}

	p := fixtures.GetProfile(ctx, "u1")
	if len(p.ActivityLogs) != 1 || p.ActivityLogs[0].TotalTime != 300 {
		t.Errorf("unexpected activity logs: %+v", p.ActivityLogs)
	}
}

func TestStore_StartSession_ClosesPrevious(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := profilestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateProfile(ctx, "u1", "Finn", "finn@example.com")
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, err := store.StartSession(ctx, "u1", t0); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	entry, err := store.StartSession(ctx, "u1", t0.Add(90*time.Second))
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if entry.Date != "2024-03-01" || !entry.Open() {
		t.Errorf("unexpected entry: %+v", entry)
	}

	p := fixtures.GetProfile(ctx, "u1")
	if len(p.ActivityLogs) != 2 {
		t.Fatalf("len(activity_logs) = %d, want 2", len(p.ActivityLogs))
	}
	if p.ActivityLogs[0].Open() || p.ActivityLogs[0].TotalTime != 90 {
		t.Errorf("first session = %+v, want closed after 90s", p.ActivityLogs[0])
	}
	if !p.ActivityLogs[1].Open() {
		t.Error("second session should be open")
	}

	// A logout clock behind the login never yields a negative duration.
	if closed, err := store.EndSession(ctx, "u1", t0); err != nil || !closed {
		t.Fatalf("EndSession: closed=%v err=%v", closed, err)
	}
	if p := fixtures.GetProfile(ctx, "u1"); p.ActivityLogs[1].TotalTime != 0 {
		t.Errorf("TotalTime = %d, want 0", p.ActivityLogs[1].TotalTime)
	}
}

func TestStore_EndSession_UnknownProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := profilestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.EndSession(ctx, "ghost", time.Now()); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("expected mongo.ErrNoDocuments, got %v", err)
	}
	if _, err := store.StartSession(ctx, "ghost", time.Now()); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("expected mongo.ErrNoDocuments, got %v", err)
	}
}

func TestStore_Sessions_ConcurrentLoginLogout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := profilestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateProfile(ctx, "u1", "Finn", "finn@example.com")

	const logins = 10
	var wg sync.WaitGroup
	errs := make(chan error, 2*logins)
	for i := 0; i < logins; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := store.StartSession(ctx, "u1", time.Now())
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := store.EndSession(ctx, "u1", time.Now())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("session update failed: %v", err)
		}
	}

	p := fixtures.GetProfile(ctx, "u1")
	if len(p.ActivityLogs) != logins {
		t.Errorf("len(activity_logs) = %d, want %d (a login was lost)", len(p.ActivityLogs), logins)
	}
	open := 0
	for _, a := range p.ActivityLogs {
		if a.Open() {
			open++
		}
	}
	if open > 1 {
		t.Errorf("%d sessions open, want at most 1", open)
	}
}

func TestStore_ListByIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := profilestore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateProfile(ctx, "u1", "Zed", "zed@example.com")
	fixtures.CreateProfile(ctx, "u2", "Amy", "amy@example.com")
	fixtures.CreateProfile(ctx, "u3", "Mo", "mo@example.com")

	got, err := store.ListByIDs(ctx, []string{"u1", "u2", "ghost"})
	if err != nil {
		t.Fatalf("ListByIDs failed: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Amy" || got[1].Name != "Zed" {
		t.Errorf("ListByIDs = %+v, want [Amy Zed]", got)
	}
}
