package groups_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/excelanalytics/excelhub/internal/app/features/groups"
	"github.com/excelanalytics/excelhub/internal/app/membership"
	"github.com/excelanalytics/excelhub/internal/app/store/memstore"
	"github.com/excelanalytics/excelhub/internal/app/system/auditlog"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"github.com/excelanalytics/excelhub/internal/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type harness struct {
	t      *testing.T
	db     *memstore.DB
	router http.Handler
	invs   http.Handler
	audit  *observer.ObservedLogs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := memstore.New()
	svc := membership.New(db.Groups(), db.Profiles(), db, zap.NewNop())
	core, logs := observer.New(zapcore.InfoLevel)
	audit := auditlog.New(nil, zap.New(core), auditlog.Config{})
	h := groups.NewHandler(svc, audit, zap.NewNop())
	return &harness{
		t:      t,
		db:     db,
		router: groups.Routes(h),
		invs:   groups.InvitationRoutes(h),
		audit:  logs,
	}
}

func (h *harness) profile(id, name, email string) models.UserProfile {
	p := models.UserProfile{ID: id, Name: name, Email: email, Role: models.RoleUser}
	h.db.PutProfile(p)
	return p
}

func (h *harness) do(as models.UserProfile, method, target string, body any) *testutil.ResponseRecorder {
	h.t.Helper()
	rec := testutil.NewRecorder()
	h.router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(h.t, method, target, as, body))
	return rec
}

func (h *harness) getProfile(id string) models.UserProfile {
	h.t.Helper()
	p, err := h.db.Profiles().GetByID(testCtx(h.t), id)
	if err != nil {
		h.t.Fatalf("GetByID(%s): %v", id, err)
	}
	return p
}

func (h *harness) getGroup(id string) models.Group {
	h.t.Helper()
	g, err := h.db.Groups().GetByID(testCtx(h.t), id)
	if err != nil {
		h.t.Fatalf("GetByID(%s): %v", id, err)
	}
	return g
}

func (h *harness) audited(eventType string) int {
	return h.audit.FilterField(zap.String("event_type", eventType)).Len()
}

// createGroup creates a group administered by admin and returns its id.
func (h *harness) createGroup(admin models.UserProfile, name string) string {
	h.t.Helper()
	rec := h.do(admin, http.MethodPost, "/", map[string]string{"name": name, "description": "Quarterly reports"})
	rec.AssertStatus(h.t, http.StatusCreated)
	var resp struct {
		GroupID string `json:"groupId"`
	}
	rec.DecodeJSON(h.t, &resp)
	if resp.GroupID == "" {
		h.t.Fatal("no groupId in response")
	}
	return resp.GroupID
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)
	return ctx
}

func TestCreateGroup(t *testing.T) {
	h := newHarness(t)
	ada := h.profile("ada", "Ada", "ada@example.com")

	groupID := h.createGroup(ada, "Finance")

	p := h.getProfile("ada")
	if !p.InGroup(groupID) || p.Role != models.RoleAdmin {
		t.Errorf("admin not affiliated: %+v", p)
	}
	if g := h.getGroup(groupID); g.AdminID != "ada" || !g.HasMember("ada") {
		t.Errorf("group = %+v", g)
	}
	if h.audited("group_created") != 1 {
		t.Error("expected group_created audit event")
	}
}

func TestCreateGroup_Failures(t *testing.T) {
	h := newHarness(t)
	ada := h.profile("ada", "Ada", "ada@example.com")
	h.createGroup(ada, "Finance")

	rec := h.do(ada, http.MethodPost, "/", map[string]string{"name": "Second"})
	rec.AssertStatus(t, http.StatusConflict)

	bob := h.profile("bob", "Bob", "bob@example.com")
	rec = h.do(bob, http.MethodPost, "/", map[string]string{"name": "  "})
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, `"field":"name"`)

	ghost := models.UserProfile{ID: "ghost", Email: "ghost@example.com"}
	rec = h.do(ghost, http.MethodPost, "/", map[string]string{"name": "Nowhere"})
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestCreateGroup_StorageFaultIsGeneric500(t *testing.T) {
	h := newHarness(t)
	ada := h.profile("ada", "Ada", "ada@example.com")

	h.db.FailNext(memstore.OpSetAffiliation, errors.New("connection reset by peer"))
	rec := h.do(ada, http.MethodPost, "/", map[string]string{"name": "Finance"})

	rec.AssertStatus(t, http.StatusInternalServerError)
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Error("storage error leaked to client")
	}
	if h.db.GroupCount() != 0 {
		t.Error("group should have been rolled back")
	}
}

func TestInviteApproveRemoveFlow(t *testing.T) {
	h := newHarness(t)
	ada := h.profile("ada", "Ada", "ada@example.com")
	bob := h.profile("bob", "Bob", "bob@example.com")
	groupID := h.createGroup(ada, "Finance")

	// Invite a registered user.
	rec := h.do(ada, http.MethodPost, "/"+groupID+"/invite", map[string]string{"email": "Bob@Example.com"})
	rec.AssertStatus(t, http.StatusOK)
	var res membership.Result
	rec.DecodeJSON(t, &res)
	if !res.Success || res.Code != membership.CodeJoinRequestSent {
		t.Fatalf("invite result = %+v", res)
	}
	if h.audited("user_invited") != 1 {
		t.Error("expected user_invited audit event")
	}

	// Bob sees his pending state.
	rec = h.do(bob, http.MethodGet, "/"+groupID, nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"state":"INVITED"`)
	if strings.Contains(rec.Body.String(), "joinRequests") {
		t.Error("non-admin should not see join requests")
	}

	// Admin lists requests.
	rec = h.do(ada, http.MethodGet, "/"+groupID+"/join-requests", nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"id":"bob"`)

	// Bob cannot approve himself.
	rec = h.do(bob, http.MethodPost, "/"+groupID+"/requests/bob/approve", nil)
	rec.AssertStatus(t, http.StatusForbidden)
	if h.audited("authorization_denied") != 1 {
		t.Error("expected authorization_denied audit event")
	}
	if h.getGroup(groupID).HasMember("bob") {
		t.Fatal("forbidden approve mutated the group")
	}

	rec = h.do(ada, http.MethodPost, "/"+groupID+"/requests/bob/approve", nil)
	rec.AssertStatus(t, http.StatusOK)
	if p := h.getProfile("bob"); !p.InGroup(groupID) {
		t.Errorf("bob not affiliated: %+v", p)
	}

	// Approving again is a conflict, not a silent success.
	rec = h.do(ada, http.MethodPost, "/"+groupID+"/requests/bob/approve", nil)
	rec.AssertStatus(t, http.StatusConflict)

	// Members can see the roster.
	rec = h.do(bob, http.MethodGet, "/"+groupID+"/members", nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"id":"ada"`)
	rec.AssertContains(t, `"isAdmin":true`)

	// The admin cannot be removed.
	rec = h.do(ada, http.MethodDelete, "/"+groupID+"/members/ada", nil)
	rec.AssertStatus(t, http.StatusConflict)

	rec = h.do(ada, http.MethodDelete, "/"+groupID+"/members/bob", nil)
	rec.AssertStatus(t, http.StatusOK)
	if p := h.getProfile("bob"); p.GroupID != nil {
		t.Errorf("bob still affiliated: %+v", p)
	}
	if h.getGroup(groupID).HasMember("bob") {
		t.Error("bob still a member")
	}
}

func TestInvite_ResultStatuses(t *testing.T) {
	h := newHarness(t)
	ada := h.profile("ada", "Ada", "ada@example.com")
	groupID := h.createGroup(ada, "Finance")

	tests := []struct {
		name   string
		email  string
		status int
		code   string
	}{
		{"unregistered", "carol@example.com", http.StatusOK, membership.CodeInvitationSent},
		{"repeat unregistered", "carol@example.com", http.StatusConflict, membership.CodeAlreadyInvited},
		{"bad format", "not-an-email", http.StatusBadRequest, membership.CodeValidation},
		{"blank", "", http.StatusBadRequest, membership.CodeValidation},
		{"admin is member", "ada@example.com", http.StatusConflict, membership.CodeAlreadyMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(ada, http.MethodPost, "/"+groupID+"/invite", map[string]string{"email": tt.email})
			rec.AssertStatus(t, tt.status)
			var res membership.Result
			rec.DecodeJSON(t, &res)
			if res.Code != tt.code {
				t.Errorf("code = %q, want %q", res.Code, tt.code)
			}
		})
	}
	if h.audited("invitation_recorded") != 1 {
		t.Error("expected one invitation_recorded audit event")
	}
}

func TestInvite_NonAdminForbidden(t *testing.T) {
	h := newHarness(t)
	ada := h.profile("ada", "Ada", "ada@example.com")
	eve := h.profile("eve", "Eve", "eve@example.com")
	groupID := h.createGroup(ada, "Finance")

	rec := h.do(eve, http.MethodPost, "/"+groupID+"/invite", map[string]string{"email": "carol@example.com"})
	rec.AssertStatus(t, http.StatusForbidden)
	if len(h.getGroup(groupID).PendingInvitations) != 0 {
		t.Error("forbidden invite recorded an invitation")
	}
	if h.audited("authorization_denied") != 1 {
		t.Error("expected authorization_denied audit event")
	}
}

func TestAcceptInvitation(t *testing.T) {
	h := newHarness(t)
	ada := h.profile("ada", "Ada", "ada@example.com")
	groupID := h.createGroup(ada, "Finance")

	rec := h.do(ada, http.MethodPost, "/"+groupID+"/invite", map[string]string{"email": "carol@example.com"})
	rec.AssertStatus(t, http.StatusOK)

	// Carol signs up later.
	carol := h.profile("carol", "Carol", "carol@example.com")

	rec = h.do(carol, http.MethodGet, "/"+groupID+"/invited", nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"invited":true`)

	inv := testutil.NewRecorder()
	h.invs.ServeHTTP(inv, testutil.NewAuthenticatedRequest(t, http.MethodGet, "/", carol, nil))
	inv.AssertStatus(t, http.StatusOK)
	inv.AssertContains(t, `"groupName":"Finance"`)

	rec = h.do(carol, http.MethodPost, "/"+groupID+"/accept", nil)
	rec.AssertStatus(t, http.StatusOK)

	g := h.getGroup(groupID)
	if !g.HasMember("carol") || g.HasInvitation("carol@example.com") {
		t.Errorf("group = %+v", g)
	}
	if p := h.getProfile("carol"); !p.InGroup(groupID) {
		t.Errorf("carol not affiliated: %+v", p)
	}

	// Nothing left to accept.
	rec = h.do(carol, http.MethodPost, "/"+groupID+"/accept", nil)
	rec.AssertStatus(t, http.StatusConflict)
}

func TestAcceptInvitation_NotInvited(t *testing.T) {
	h := newHarness(t)
	ada := h.profile("ada", "Ada", "ada@example.com")
	dan := h.profile("dan", "Dan", "dan@example.com")
	groupID := h.createGroup(ada, "Finance")

	rec := h.do(dan, http.MethodPost, "/"+groupID+"/accept", nil)
	rec.AssertStatus(t, http.StatusConflict)
	if h.getGroup(groupID).HasMember("dan") {
		t.Error("uninvited user joined")
	}
}

func TestRequestJoinAndReject(t *testing.T) {
	h := newHarness(t)
	ada := h.profile("ada", "Ada", "ada@example.com")
	dan := h.profile("dan", "Dan", "dan@example.com")
	groupID := h.createGroup(ada, "Finance")

	for i := 0; i < 2; i++ {
		rec := h.do(dan, http.MethodPost, "/"+groupID+"/join", nil)
		rec.AssertStatus(t, http.StatusOK)
	}
	if g := h.getGroup(groupID); len(g.JoinRequests) != 1 {
		t.Fatalf("join requests = %v", g.JoinRequests)
	}

	rec := h.do(dan, http.MethodPost, "/"+groupID+"/requests/dan/reject", nil)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = h.do(ada, http.MethodPost, "/"+groupID+"/requests/dan/reject", nil)
	rec.AssertStatus(t, http.StatusOK)
	if h.getGroup(groupID).HasJoinRequest("dan") {
		t.Error("request not removed")
	}

	// Approving after rejection finds nothing pending.
	rec = h.do(ada, http.MethodPost, "/"+groupID+"/requests/dan/approve", nil)
	rec.AssertStatus(t, http.StatusConflict)

	// A member asking to join is told so.
	rec = h.do(ada, http.MethodPost, "/"+groupID+"/join", nil)
	rec.AssertStatus(t, http.StatusConflict)
}

func TestGroupVisibility(t *testing.T) {
	h := newHarness(t)
	ada := h.profile("ada", "Ada", "ada@example.com")
	eve := h.profile("eve", "Eve", "eve@example.com")
	groupID := h.createGroup(ada, "Finance")

	rec := h.do(eve, http.MethodGet, "/"+groupID, nil)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = h.do(eve, http.MethodGet, "/"+groupID+"/members", nil)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = h.do(eve, http.MethodGet, "/"+groupID+"/invitations", nil)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = h.do(ada, http.MethodGet, "/"+groupID, nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"state":"MEMBER"`)
	rec.AssertContains(t, `"pendingInvitations":[]`)

	rec = h.do(ada, http.MethodGet, "/does-not-exist", nil)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestRoutes_RequireSignedIn(t *testing.T) {
	h := newHarness(t)
	rec := testutil.NewRecorder()
	h.router.ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/abc"))
	rec.AssertStatus(t, http.StatusUnauthorized)
}
