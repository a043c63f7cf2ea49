// internal/app/features/history/handler.go
package history

import (
	"context"
	"errors"
	"net/http"

	"github.com/excelanalytics/excelhub/internal/app/policy/historypolicy"
	historystore "github.com/excelanalytics/excelhub/internal/app/store/history"
	profilestore "github.com/excelanalytics/excelhub/internal/app/store/profiles"
	"github.com/excelanalytics/excelhub/internal/app/system/auditlog"
	"github.com/excelanalytics/excelhub/internal/app/system/auth"
	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/limits"
	"github.com/excelanalytics/excelhub/internal/app/system/ratelimit"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultListLimit is used when no list limit is configured.
const DefaultListLimit = 100

// Handler serves upload/download history, uploads and upload statistics.
// Every read and delete is filtered through the history gate.
type Handler struct {
	History  *historystore.Store
	Profiles *profilestore.Store
	Gate     *historypolicy.Gate
	Audit    *auditlog.Logger
	Log      *zap.Logger

	ListLimit      int64
	MaxUploadBytes int64

	// UploadLimiter caps uploads per caller; nil means unlimited.
	UploadLimiter *ratelimit.Limiter
}

func NewHandler(db *mongo.Database, gate *historypolicy.Gate, audit *auditlog.Logger, listLimit, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if listLimit <= 0 {
		listLimit = DefaultListLimit
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = limits.DefaultUploadBytes
	}
	return &Handler{
		History:        historystore.New(db),
		Profiles:       profilestore.New(db),
		Gate:           gate,
		Audit:          audit,
		Log:            logger,
		ListLimit:      listLimit,
		MaxUploadBytes: maxUploadBytes,
	}
}

// viewer loads the caller's profile as stored. Role and group come from the
// database on every request, never from the token.
func (h *Handler) viewer(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.UserProfile, bool) {
	id, ok := auth.CurrentIdentity(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, httpjson.CodeUnauthorized, "sign in required")
		return models.UserProfile{}, false
	}
	p, err := h.Profiles.GetByID(ctx, id.UserID)
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

// canView checks the gate and writes 403 (or 500) when the viewer may not
// see ownerID's records.
func (h *Handler) canView(ctx context.Context, w http.ResponseWriter, r *http.Request, v models.UserProfile, ownerID, action string) bool {
	ok, err := h.Gate.CanView(ctx, v, ownerID)
	if err != nil {
		httpjson.Internal(w, h.Log, "history scope failed", err, zap.String("user_id", v.ID))
		return false
	}
	if !ok {
		h.Audit.AuthorizationDenied(ctx, r, v.ID, "", action)
		httpjson.Error(w, http.StatusForbidden, httpjson.CodeForbidden, "you cannot access this user's history")
		return false
	}
	return true
}

func nonNil(in []models.HistoryEntry) []models.HistoryEntry {
	if in == nil {
		return []models.HistoryEntry{}
	}
	return in
}
