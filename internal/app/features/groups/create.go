// internal/app/features/groups/create.go
package groups

import (
	"net/http"

	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/limits"
	"github.com/excelanalytics/excelhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AdminName   string `json:"adminName"`
	AdminEmail  string `json:"adminEmail"`
}

// HandleCreateGroup creates a group administered by the caller.
func (h *Handler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	v, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req createRequest
	if !httpjson.DecodeOrFail(w, r, &req, limits.MaxJSONBody) {
		return
	}

	// The token's claims fill in whatever the form left blank.
	if req.AdminName == "" {
		req.AdminName = v.Name
	}
	if req.AdminEmail == "" {
		req.AdminEmail = v.Email
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "create group")
	defer cancel()

	groupID, err := h.Svc.CreateGroup(ctx, v.ID, req.Name, req.Description, req.AdminName, req.AdminEmail)
	if err != nil {
		h.writeErr(w, "create group", err, zap.String("admin_id", v.ID))
		return
	}
	h.Audit.GroupCreated(ctx, r, v.ID, groupID, req.Name)

	httpjson.Created(w, map[string]any{
		"success": true,
		"message": "Group created successfully",
		"groupId": groupID,
	})
}
