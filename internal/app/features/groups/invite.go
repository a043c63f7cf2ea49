// internal/app/features/groups/invite.go
package groups

import (
	"errors"
	"net/http"

	"github.com/excelanalytics/excelhub/internal/app/membership"
	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/limits"
	"github.com/excelanalytics/excelhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type inviteRequest struct {
	Email string `json:"email"`
}

// HandleInvite invites an email to the group. The membership Result is
// returned as the body: 200 when something was sent, 400 for bad input,
// 409 when the person is already a member, requester or invitee.
func (h *Handler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	v, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req inviteRequest
	if !httpjson.DecodeOrFail(w, r, &req, limits.MaxJSONBody) {
		return
	}
	groupID := chi.URLParam(r, "id")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "invite user")
	defer cancel()

	res, err := h.Svc.InviteUserToGroup(ctx, groupID, req.Email, v.ID)
	if err != nil {
		if errors.Is(err, membership.ErrNotAuthorized) {
			h.Audit.AuthorizationDenied(ctx, r, v.ID, groupID, "invite user")
		}
		h.writeErr(w, "invite user", err, zap.String("group_id", groupID))
		return
	}

	switch {
	case res.Success && res.Code == membership.CodeJoinRequestSent:
		inviteeID, _ := res.Data["userId"].(string)
		email, _ := res.Data["email"].(string)
		h.Audit.UserInvited(ctx, r, v.ID, groupID, inviteeID, email)
		httpjson.OK(w, res)
	case res.Success:
		email, _ := res.Data["email"].(string)
		h.Audit.InvitationRecorded(ctx, r, v.ID, groupID, email)
		httpjson.OK(w, res)
	case res.Code == membership.CodeValidation:
		httpjson.Write(w, http.StatusBadRequest, res)
	default:
		httpjson.Write(w, http.StatusConflict, res)
	}
}
