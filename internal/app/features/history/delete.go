// internal/app/features/history/delete.go
package history

import (
	"errors"
	"net/http"

	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// HandleDelete removes one entry. The owner and any viewer whose scope
// covers the owner may delete it.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	entryID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Invalid(w, "id", "invalid history entry id")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "delete history entry")
	defer cancel()

	v, ok := h.viewer(ctx, w, r)
	if !ok {
		return
	}

	entry, err := h.History.GetByID(ctx, entryID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		httpjson.Error(w, http.StatusNotFound, httpjson.CodeNotFound, "history entry not found")
		return
	}
	if err != nil {
		httpjson.Internal(w, h.Log, "load history entry failed", err, zap.String("entry_id", entryID.Hex()))
		return
	}
	if !h.canView(ctx, w, r, v, entry.UserID, "delete history") {
		return
	}

	if _, err := h.History.Delete(ctx, entryID); err != nil {
		httpjson.Internal(w, h.Log, "delete history entry failed", err, zap.String("entry_id", entryID.Hex()))
		return
	}
	h.Audit.HistoryDeleted(ctx, r, v.ID, entry.UserID, entryID.Hex())

	httpjson.OK(w, map[string]any{"success": true, "message": "History entry deleted"})
}
