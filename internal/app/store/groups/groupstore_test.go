package groupstore_test

import (
	"testing"

	groupstore "github.com/excelanalytics/excelhub/internal/app/store/groups"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"github.com/excelanalytics/excelhub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Group{
		Name:        "Quarterly Sales",
		Description: "Shared workbooks",
		AdminID:     "admin-1",
		Members:     []string{"admin-1"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Verify ID was assigned
	if created.ID == "" {
		t.Error("expected ID to be assigned")
	}
	if created.NameCI == "" {
		t.Error("expected NameCI to be set")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
	if created.JoinRequests == nil || created.PendingInvitations == nil {
		t.Error("expected empty sets, not nil")
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.AdminID != "admin-1" || !got.HasMember("admin-1") {
		t.Errorf("unexpected group: %+v", got)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, "missing"); err != mongo.ErrNoDocuments {
		t.Errorf("expected mongo.ErrNoDocuments, got %v", err)
	}
}

func TestStore_JoinRequestLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateProfile(ctx, "admin-1", "Admin", "admin@example.com")
	g := fixtures.CreateGroup(ctx, "Team", admin)

	ok, err := store.AddJoinRequest(ctx, g.ID, "u2", "")
	if err != nil || !ok {
		t.Fatalf("AddJoinRequest: ok=%v err=%v", ok, err)
	}

	// Second request does not match.
	ok, err = store.AddJoinRequest(ctx, g.ID, "u2", "")
	if err != nil || ok {
		t.Errorf("duplicate AddJoinRequest: ok=%v err=%v, want false,nil", ok, err)
	}

	// The admin is a member, so their request does not match either.
	if ok, _ := store.AddJoinRequest(ctx, g.ID, admin.ID, ""); ok {
		t.Error("expected AddJoinRequest for a member not to match")
	}

	ok, err = store.PromoteJoinRequest(ctx, g.ID, "u2", "")
	if err != nil || !ok {
		t.Fatalf("PromoteJoinRequest: ok=%v err=%v", ok, err)
	}
	got := fixtures.GetGroup(ctx, g.ID)
	if !got.HasMember("u2") || got.HasJoinRequest("u2") {
		t.Errorf("expected u2 promoted, got members=%v requests=%v", got.Members, got.JoinRequests)
	}

	// Promoting again does not match.
	if ok, _ := store.PromoteJoinRequest(ctx, g.ID, "u2", ""); ok {
		t.Error("expected second PromoteJoinRequest not to match")
	}
}

func TestStore_RemoveJoinRequest(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateProfile(ctx, "admin-1", "Admin", "admin@example.com")
	g := fixtures.CreateGroup(ctx, "Team", admin)

	if _, err := store.AddJoinRequest(ctx, g.ID, "u3", ""); err != nil {
		t.Fatalf("AddJoinRequest failed: %v", err)
	}
	ok, err := store.RemoveJoinRequest(ctx, g.ID, "u3", "")
	if err != nil || !ok {
		t.Fatalf("RemoveJoinRequest: ok=%v err=%v", ok, err)
	}
	got := fixtures.GetGroup(ctx, g.ID)
	if got.HasJoinRequest("u3") || got.HasMember("u3") {
		t.Errorf("expected u3 gone, got %+v", got)
	}
}

func TestStore_InvitationLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateProfile(ctx, "admin-1", "Admin", "admin@example.com")
	g := fixtures.CreateGroup(ctx, "Team", admin)

	ok, err := store.AddInvitation(ctx, g.ID, "new@example.com")
	if err != nil || !ok {
		t.Fatalf("AddInvitation: ok=%v err=%v", ok, err)
	}
	if ok, _ := store.AddInvitation(ctx, g.ID, "new@example.com"); ok {
		t.Error("expected duplicate AddInvitation not to match")
	}

	inviting, err := store.ListInvitingEmail(ctx, "new@example.com")
	if err != nil {
		t.Fatalf("ListInvitingEmail failed: %v", err)
	}
	if len(inviting) != 1 || inviting[0].ID != g.ID {
		t.Errorf("ListInvitingEmail = %+v, want [%s]", inviting, g.ID)
	}

	ok, err = store.AcceptInvitation(ctx, g.ID, "new@example.com", "u5")
	if err != nil || !ok {
		t.Fatalf("AcceptInvitation: ok=%v err=%v", ok, err)
	}
	got := fixtures.GetGroup(ctx, g.ID)
	if !got.HasMember("u5") || got.HasInvitation("new@example.com") {
		t.Errorf("expected invitation consumed, got %+v", got)
	}

	if ok, _ := store.AcceptInvitation(ctx, g.ID, "new@example.com", "u5"); ok {
		t.Error("expected second AcceptInvitation not to match")
	}
}

func TestStore_RemoveMember_NeverRemovesAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateProfile(ctx, "admin-1", "Admin", "admin@example.com")
	member := fixtures.CreateProfile(ctx, "u2", "Member", "member@example.com")
	g := fixtures.CreateGroup(ctx, "Team", admin, member.ID)

	if ok, _ := store.RemoveMember(ctx, g.ID, admin.ID, ""); ok {
		t.Error("expected RemoveMember for the admin not to match")
	}
	ok, err := store.RemoveMember(ctx, g.ID, member.ID, "")
	if err != nil || !ok {
		t.Fatalf("RemoveMember: ok=%v err=%v", ok, err)
	}
	got := fixtures.GetGroup(ctx, g.ID)
	if got.HasMember(member.ID) || !got.HasMember(admin.ID) {
		t.Errorf("unexpected members: %v", got.Members)
	}
}

func TestStore_KnownUserConsumesStaleInvitation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := groupstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateProfile(ctx, "admin-1", "Admin", "admin@example.com")
	g := fixtures.CreateGroup(ctx, "Team", admin)

	if _, err := store.AddInvitation(ctx, g.ID, "late@example.com"); err != nil {
		t.Fatalf("AddInvitation failed: %v", err)
	}
	if ok, err := store.AddJoinRequest(ctx, g.ID, "u7", ""); err != nil || !ok {
		t.Fatalf("AddJoinRequest: ok=%v err=%v", ok, err)
	}
	if !fixtures.GetGroup(ctx, g.ID).HasInvitation("late@example.com") {
		t.Fatal("a self-request should leave the invitation in place")
	}

	if ok, err := store.PromoteJoinRequest(ctx, g.ID, "u7", "late@example.com"); err != nil || !ok {
		t.Fatalf("PromoteJoinRequest: ok=%v err=%v", ok, err)
	}
	got := fixtures.GetGroup(ctx, g.ID)
	if !got.HasMember("u7") || got.HasInvitation("late@example.com") {
		t.Errorf("members=%v pending=%v", got.Members, got.PendingInvitations)
	}

	// RemoveMember drops an invitation that reappeared for the address.
	if _, err := store.AddInvitation(ctx, g.ID, "late@example.com"); err != nil {
		t.Fatalf("AddInvitation failed: %v", err)
	}
	if ok, err := store.RemoveMember(ctx, g.ID, "u7", "late@example.com"); err != nil || !ok {
		t.Fatalf("RemoveMember: ok=%v err=%v", ok, err)
	}
	got = fixtures.GetGroup(ctx, g.ID)
	if got.HasMember("u7") || got.HasInvitation("late@example.com") {
		t.Errorf("members=%v pending=%v", got.Members, got.PendingInvitations)
	}
}
