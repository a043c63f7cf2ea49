// internal/app/features/groups/handler.go
package groups

import (
	"context"
	"errors"
	"net/http"

	"github.com/excelanalytics/excelhub/internal/app/membership"
	profilestore "github.com/excelanalytics/excelhub/internal/app/store/profiles"
	"github.com/excelanalytics/excelhub/internal/app/system/auditlog"
	"github.com/excelanalytics/excelhub/internal/app/system/auth"
	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/normalize"
	"github.com/excelanalytics/excelhub/internal/app/system/ratelimit"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves the group membership API on top of the membership service.
type Handler struct {
	Svc   *membership.Service
	Audit *auditlog.Logger
	Log   *zap.Logger

	// InviteLimiter caps invites per caller; nil means unlimited.
	InviteLimiter *ratelimit.Limiter
}

func NewHandler(svc *membership.Service, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Svc:   svc,
		Audit: audit,
		Log:   logger,
	}
}

// viewer builds the caller as the authorization helpers see it. Only the
// id and email take part in group checks.
func viewer(r *http.Request) (models.UserProfile, bool) {
	id, ok := auth.CurrentIdentity(r)
	if !ok {
		return models.UserProfile{}, false
	}
	return models.UserProfile{
		ID:    id.UserID,
		Email: normalize.Email(id.Email),
		Name:  id.Name,
	}, true
}

// requireViewer writes 401 when there is no caller.
func requireViewer(w http.ResponseWriter, r *http.Request) (models.UserProfile, bool) {
	v, ok := viewer(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, httpjson.CodeUnauthorized, "sign in required")
	}
	return v, ok
}

// writeErr maps a membership error onto the JSON failure envelope.
func (h *Handler) writeErr(w http.ResponseWriter, op string, err error, fields ...zap.Field) {
	var ve *membership.ValidationError
	switch {
	case errors.As(err, &ve):
		httpjson.Invalid(w, ve.Field, ve.Message)
	case errors.Is(err, membership.ErrNotAuthorized):
		httpjson.Error(w, http.StatusForbidden, httpjson.CodeForbidden, err.Error())
	case errors.Is(err, membership.ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, httpjson.CodeNotFound, err.Error())
	case membership.IsAlreadyInState(err):
		httpjson.Error(w, http.StatusConflict, httpjson.CodeConflict, err.Error())
	case errors.Is(err, profilestore.ErrDuplicateEmail):
		httpjson.Error(w, http.StatusConflict, httpjson.CodeConflict, err.Error())
	default:
		httpjson.Internal(w, h.Log, op+" failed", err, fields...)
	}
}

// managedGroup loads the group and checks that v administers it. On failure
// it writes the response, records the denial, and returns ok=false.
func (h *Handler) managedGroup(ctx context.Context, w http.ResponseWriter, r *http.Request, v models.UserProfile, groupID, action string) (models.Group, bool) {
	g, err := h.Svc.GetGroup(ctx, groupID)
	if err != nil {
		h.writeErr(w, "load group", err, zap.String("group_id", groupID))
		return models.Group{}, false
	}
	if !canManage(v, g) {
		h.Audit.AuthorizationDenied(ctx, r, v.ID, g.ID, action)
		h.writeErr(w, action, membership.ErrNotAuthorized)
		return models.Group{}, false
	}
	return g, true
}
