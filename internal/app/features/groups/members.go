// internal/app/features/groups/members.go
package groups

import (
	"net/http"

	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// HandleRemoveMember takes a member out of the group. Admin only; the admin
// cannot remove themself.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	v, ok := requireViewer(w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "userID")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "remove member")
	defer cancel()

	g, ok := h.managedGroup(ctx, w, r, v, chi.URLParam(r, "id"), "remove member")
	if !ok {
		return
	}
	if err := h.Svc.RemoveUserFromGroup(ctx, g.ID, userID); err != nil {
		h.writeErr(w, "remove member", err, zap.String("group_id", g.ID), zap.String("user_id", userID))
		return
	}
	h.Audit.MemberRemoved(ctx, r, v.ID, userID, g.ID)

	httpjson.OK(w, map[string]any{"success": true, "message": "User removed from group"})
}

// HandleAcceptInvitation joins the caller to a group that invited their
// verified email.
func (h *Handler) HandleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	v, ok := requireViewer(w, r)
	if !ok {
		return
	}
	if v.Email == "" {
		httpjson.Invalid(w, "email", "your sign-in has no email address")
		return
	}
	groupID := chi.URLParam(r, "id")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "accept invitation")
	defer cancel()

	if err := h.Svc.AcceptInvitationByEmail(ctx, groupID, v.ID, v.Email); err != nil {
		h.writeErr(w, "accept invitation", err, zap.String("group_id", groupID), zap.String("user_id", v.ID))
		return
	}
	h.Audit.InvitationAccepted(ctx, r, v.ID, groupID, v.Email)

	httpjson.OK(w, map[string]any{"success": true, "message": "Invitation accepted"})
}
