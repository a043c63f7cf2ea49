// internal/app/features/profile/role.go
package profile

import (
	"errors"
	"net/http"

	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/inputval"
	"github.com/excelanalytics/excelhub/internal/app/system/limits"
	"github.com/excelanalytics/excelhub/internal/app/system/normalize"
	"github.com/excelanalytics/excelhub/internal/app/system/timeouts"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type roleRequest struct {
	Role string `json:"role"`
}

// HandleSetRole switches the caller between admin and user for demos.
// An admin who still administers a group cannot step down, and a member of
// someone else's group cannot become admin while affiliated with it.
func (h *Handler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	if !h.DemoRoleToggle {
		httpjson.Error(w, http.StatusNotFound, httpjson.CodeNotFound, "not found")
		return
	}

	var req roleRequest
	if !httpjson.DecodeOrFail(w, r, &req, limits.MaxJSONBody) {
		return
	}
	if !inputval.IsValidRole(req.Role) {
		httpjson.Invalid(w, "role", "role must be admin or user")
		return
	}
	role := normalize.Role(req.Role)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "set role")
	defer cancel()

	p, ok := h.caller(w, r, func(id string) (models.UserProfile, error) {
		return h.Profiles.GetByID(ctx, id)
	})
	if !ok {
		return
	}
	if p.Role == role {
		httpjson.OK(w, map[string]any{"success": true, "role": role})
		return
	}
	if p.IsAdmin() && p.GroupID != nil && role == models.RoleUser {
		httpjson.Error(w, http.StatusConflict, httpjson.CodeConflict, "a group admin cannot give up the admin role")
		return
	}
	if role == models.RoleAdmin && p.GroupID != nil {
		g, err := h.Groups.GetByID(ctx, *p.GroupID)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Internal(w, h.Log, "load group failed", err, zap.String("user_id", p.ID))
			return
		}
		if err != nil || g.AdminID != p.ID {
			httpjson.Error(w, http.StatusConflict, httpjson.CodeConflict, "leave your current group before becoming an admin")
			return
		}
	}

	if err := h.Profiles.SetRole(ctx, p.ID, role); err != nil {
		httpjson.Internal(w, h.Log, "set role failed", err, zap.String("user_id", p.ID))
		return
	}
	h.Audit.RoleChanged(ctx, r, p.ID, p.Role, role)

	httpjson.OK(w, map[string]any{"success": true, "role": role})
}
