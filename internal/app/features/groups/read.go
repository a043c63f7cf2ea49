// internal/app/features/groups/read.go
package groups

import (
	"context"
	"net/http"

	"github.com/excelanalytics/excelhub/internal/app/membership"
	"github.com/excelanalytics/excelhub/internal/app/policy/historypolicy"
	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/timeouts"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// visibleGroup loads the group named in the URL when the caller may see it.
func (h *Handler) visibleGroup(ctx context.Context, w http.ResponseWriter, r *http.Request, v models.UserProfile) (models.Group, bool) {
	groupID := chi.URLParam(r, "id")
	g, err := h.Svc.GetGroup(ctx, groupID)
	if err != nil {
		h.writeErr(w, "load group", err, zap.String("group_id", groupID))
		return models.Group{}, false
	}
	if !historypolicy.CanViewGroup(v, g) {
		h.writeErr(w, "view group", membership.ErrNotAuthorized)
		return models.Group{}, false
	}
	return g, true
}

// ServeGroup returns the group with the caller's join state.
func (h *Handler) ServeGroup(w http.ResponseWriter, r *http.Request) {
	v, ok := requireViewer(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, ok := h.visibleGroup(ctx, w, r, v)
	if !ok {
		return
	}
	httpjson.OK(w, map[string]any{"success": true, "group": newGroupView(g, v)})
}

// ServeMembers lists the group's members. Only members may see the roster.
func (h *Handler) ServeMembers(w http.ResponseWriter, r *http.Request) {
	v, ok := requireViewer(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, ok := h.visibleGroup(ctx, w, r, v)
	if !ok {
		return
	}
	if !g.HasMember(v.ID) {
		h.writeErr(w, "list members", membership.ErrNotAuthorized)
		return
	}

	ps, err := h.Svc.GroupMembers(ctx, g)
	if err != nil {
		h.writeErr(w, "list members", err, zap.String("group_id", g.ID))
		return
	}
	httpjson.OK(w, map[string]any{"success": true, "members": newMemberViews(ps, g)})
}

// ServeJoinRequests lists the profiles waiting on the admin's decision.
func (h *Handler) ServeJoinRequests(w http.ResponseWriter, r *http.Request) {
	v, ok := requireViewer(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, ok := h.managedGroup(ctx, w, r, v, chi.URLParam(r, "id"), "list join requests")
	if !ok {
		return
	}
	ps, err := h.Svc.JoinRequestProfiles(ctx, g)
	if err != nil {
		h.writeErr(w, "list join requests", err, zap.String("group_id", g.ID))
		return
	}
	httpjson.OK(w, map[string]any{"success": true, "joinRequests": newMemberViews(ps, g)})
}

// ServePendingInvitations lists emails invited before they signed up.
func (h *Handler) ServePendingInvitations(w http.ResponseWriter, r *http.Request) {
	v, ok := requireViewer(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, ok := h.managedGroup(ctx, w, r, v, chi.URLParam(r, "id"), "list invitations")
	if !ok {
		return
	}
	httpjson.OK(w, map[string]any{"success": true, "pendingInvitations": nonNil(g.PendingInvitations)})
}

// ServeIsInvited reports whether the caller's email has a pending
// invitation to the group.
func (h *Handler) ServeIsInvited(w http.ResponseWriter, r *http.Request) {
	v, ok := requireViewer(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	invited, err := h.Svc.IsUserInvited(ctx, chi.URLParam(r, "id"), v.Email)
	if err != nil {
		h.writeErr(w, "check invitation", err)
		return
	}
	httpjson.OK(w, map[string]any{"success": true, "invited": invited})
}

// ServeMyInvitations lists the groups that invited the caller's email.
func (h *Handler) ServeMyInvitations(w http.ResponseWriter, r *http.Request) {
	v, ok := requireViewer(w, r)
	if !ok {
		return
	}
	if v.Email == "" {
		httpjson.OK(w, map[string]any{"success": true, "invitations": []invitationView{}})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	gs, err := h.Svc.InvitationsFor(ctx, v.Email)
	if err != nil {
		h.writeErr(w, "list my invitations", err, zap.String("user_id", v.ID))
		return
	}
	out := make([]invitationView, 0, len(gs))
	for _, g := range gs {
		out = append(out, invitationView{GroupID: g.ID, GroupName: g.Name, Description: g.Description})
	}
	httpjson.OK(w, map[string]any{"success": true, "invitations": out})
}
