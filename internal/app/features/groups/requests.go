// internal/app/features/groups/requests.go
package groups

import (
	"net/http"

	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// HandleRequestJoin records the caller's request to join. Asking twice is
// not an error.
func (h *Handler) HandleRequestJoin(w http.ResponseWriter, r *http.Request) {
	v, ok := requireViewer(w, r)
	if !ok {
		return
	}
	groupID := chi.URLParam(r, "id")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "request join")
	defer cancel()

	if err := h.Svc.RequestJoinGroup(ctx, groupID, v.ID); err != nil {
		h.writeErr(w, "request join", err, zap.String("group_id", groupID), zap.String("user_id", v.ID))
		return
	}
	h.Audit.JoinRequested(ctx, r, v.ID, groupID)

	httpjson.OK(w, map[string]any{"success": true, "message": "Join request sent"})
}

// HandleApprove makes a pending requester a member. Admin only.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	v, ok := requireViewer(w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "userID")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "approve join request")
	defer cancel()

	g, ok := h.managedGroup(ctx, w, r, v, chi.URLParam(r, "id"), "approve join request")
	if !ok {
		return
	}
	if err := h.Svc.ApproveJoinRequest(ctx, g.ID, userID); err != nil {
		h.writeErr(w, "approve join request", err, zap.String("group_id", g.ID), zap.String("user_id", userID))
		return
	}
	h.Audit.JoinApproved(ctx, r, v.ID, userID, g.ID)

	httpjson.OK(w, map[string]any{"success": true, "message": "User added to group"})
}

// HandleReject drops a pending join request. Admin only. Rejecting a user
// with no pending request succeeds without changing anything.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	v, ok := requireViewer(w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "userID")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "reject join request")
	defer cancel()

	g, ok := h.managedGroup(ctx, w, r, v, chi.URLParam(r, "id"), "reject join request")
	if !ok {
		return
	}
	if err := h.Svc.RejectJoinRequest(ctx, g.ID, userID); err != nil {
		h.writeErr(w, "reject join request", err, zap.String("group_id", g.ID), zap.String("user_id", userID))
		return
	}
	h.Audit.JoinRejected(ctx, r, v.ID, userID, g.ID)

	httpjson.OK(w, map[string]any{"success": true, "message": "Join request rejected"})
}
