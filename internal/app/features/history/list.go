// internal/app/features/history/list.go
package history

import (
	"context"
	"net/http"
	"strings"

	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/timeouts"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"go.uber.org/zap"
)

// ServeList returns the newest history entries the caller may see. With
// ?userId= the list is narrowed to that owner, who must be in scope.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	v, ok := h.viewer(ctx, w, r)
	if !ok {
		return
	}

	var (
		entries []models.HistoryEntry
		err     error
	)
	if owner := strings.TrimSpace(r.URL.Query().Get("userId")); owner != "" {
		if !h.canView(ctx, w, r, v, owner, "list history") {
			return
		}
		entries, err = h.History.ListByUsers(ctx, []string{owner}, h.ListLimit)
	} else {
		scope, serr := h.Gate.Scope(ctx, v)
		if serr != nil {
			httpjson.Internal(w, h.Log, "history scope failed", serr, zap.String("user_id", v.ID))
			return
		}
		if scope.All {
			entries, err = h.History.ListAll(ctx, h.ListLimit)
		} else {
			entries, err = h.History.ListByUsers(ctx, scope.UserIDs, h.ListLimit)
		}
	}
	if err != nil {
		httpjson.Internal(w, h.Log, "list history failed", err, zap.String("user_id", v.ID))
		return
	}

	httpjson.OK(w, map[string]any{"success": true, "history": nonNil(entries)})
}
