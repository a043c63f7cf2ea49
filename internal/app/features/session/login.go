// internal/app/features/session/login.go
package session

import (
	"errors"
	"net/http"
	"time"

	profilestore "github.com/excelanalytics/excelhub/internal/app/store/profiles"
	"github.com/excelanalytics/excelhub/internal/app/system/auth"
	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/timeouts"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"go.uber.org/zap"
)

type loginResponse struct {
	Success     bool               `json:"success"`
	FirstSignIn bool               `json:"firstSignIn"`
	Profile     models.UserProfile `json:"profile"`
	Session     models.ActivityLog `json:"session"`
}

// HandleLogin records a sign-in. The profile is created from the token's
// claims on first sign-in, and a new activity session is opened. A session
// still open from an earlier sign-in is closed first.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.CurrentIdentity(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, httpjson.CodeUnauthorized, "sign in required")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "session login")
	defer cancel()

	p, created, err := h.Profiles.Ensure(ctx, id.UserID, id.Email, id.Name)
	if errors.Is(err, profilestore.ErrDuplicateEmail) {
		// Another profile already owns this address. Sign the caller in
		// without claiming it.
		h.Log.Warn("email owned by another profile; signing in without it",
			zap.String("user_id", id.UserID),
			zap.String("email", id.Email))
		p, created, err = h.Profiles.Ensure(ctx, id.UserID, "", id.Name)
	}
	if err != nil {
		httpjson.Internal(w, h.Log, "ensure profile failed", err, zap.String("user_id", id.UserID))
		return
	}

	entry, err := h.Profiles.StartSession(ctx, p.ID, time.Now().UTC())
	if err != nil {
		httpjson.Internal(w, h.Log, "start session failed", err, zap.String("user_id", p.ID))
		return
	}
	p.ActivityLogs = nil

	h.Audit.Login(ctx, r, p.ID, p.Email, created)

	httpjson.OK(w, loginResponse{
		Success:     true,
		FirstSignIn: created,
		Profile:     p,
		Session:     entry,
	})
}
