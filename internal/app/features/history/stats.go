// internal/app/features/history/stats.go
package history

import (
	"context"
	"net/http"

	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ServeStats summarizes a user's uploads.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	v, ok := h.viewer(ctx, w, r)
	if !ok {
		return
	}
	owner := chi.URLParam(r, "userID")
	if !h.canView(ctx, w, r, v, owner, "view stats") {
		return
	}

	stats, err := h.History.Stats(ctx, owner)
	if err != nil {
		httpjson.Internal(w, h.Log, "upload stats failed", err, zap.String("user_id", owner))
		return
	}
	httpjson.OK(w, map[string]any{"success": true, "stats": stats})
}
