// internal/app/features/session/logout.go
package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/excelanalytics/excelhub/internal/app/system/auth"
	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// HandleLogout closes the caller's open activity session, if any.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.CurrentIdentity(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, httpjson.CodeUnauthorized, "sign in required")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "session logout")
	defer cancel()

	closed, err := h.Profiles.EndSession(ctx, id.UserID, time.Now().UTC())
	if errors.Is(err, mongo.ErrNoDocuments) {
		httpjson.Error(w, http.StatusNotFound, httpjson.CodeNotFound, "profile not found")
		return
	}
	if err != nil {
		httpjson.Internal(w, h.Log, "end session failed", err, zap.String("user_id", id.UserID))
		return
	}

	h.Audit.Logout(ctx, r, id.UserID, closed)

	httpjson.OK(w, map[string]any{"success": true, "sessionClosed": closed})
}
