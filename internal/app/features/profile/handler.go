// internal/app/features/profile/handler.go
package profile

import (
	"errors"
	"net/http"

	groupstore "github.com/excelanalytics/excelhub/internal/app/store/groups"
	profilestore "github.com/excelanalytics/excelhub/internal/app/store/profiles"
	"github.com/excelanalytics/excelhub/internal/app/system/auditlog"
	"github.com/excelanalytics/excelhub/internal/app/system/auth"
	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler owns the caller's own profile endpoints.
type Handler struct {
	Profiles *profilestore.Store
	Groups   *groupstore.Store
	Audit    *auditlog.Logger
	Log      *zap.Logger

	// DemoRoleToggle enables POST /role. When false the route answers 404.
	DemoRoleToggle bool
}

// NewHandler constructs a Handler bound to the given Mongo database and logger.
func NewHandler(db *mongo.Database, audit *auditlog.Logger, demoRoleToggle bool, logger *zap.Logger) *Handler {
	return &Handler{
		Profiles:       profilestore.New(db),
		Groups:         groupstore.New(db),
		Audit:          audit,
		Log:            logger,
		DemoRoleToggle: demoRoleToggle,
	}
}

// caller loads the signed-in user's profile. On failure it writes the
// response and returns ok=false.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request, load func(id string) (models.UserProfile, error)) (models.UserProfile, bool) {
	id, ok := auth.CurrentIdentity(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, httpjson.CodeUnauthorized, "sign in required")
		return models.UserProfile{}, false
	}
	p, err := load(id.UserID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		httpjson.Error(w, http.StatusNotFound, httpjson.CodeNotFound, "profile not found; sign in first")
		return models.UserProfile{}, false
	}
	if err != nil {
		httpjson.Internal(w, h.Log, "load profile failed", err, zap.String("user_id", id.UserID))
		return models.UserProfile{}, false
	}
	return p, true
}
