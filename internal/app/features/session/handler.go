// internal/app/features/session/handler.go
package session

import (
	profilestore "github.com/excelanalytics/excelhub/internal/app/store/profiles"
	"github.com/excelanalytics/excelhub/internal/app/system/auditlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler opens and closes activity sessions for the signed-in caller.
type Handler struct {
	Profiles *profilestore.Store
	Audit    *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Profiles: profilestore.New(db),
		Audit:    audit,
		Log:      logger,
	}
}
