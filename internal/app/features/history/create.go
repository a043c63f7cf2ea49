// internal/app/features/history/create.go
package history

import (
	"net/http"
	"time"

	"github.com/excelanalytics/excelhub/internal/app/system/htmlsanitize"
	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/inputval"
	"github.com/excelanalytics/excelhub/internal/app/system/limits"
	"github.com/excelanalytics/excelhub/internal/app/system/timeouts"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"go.uber.org/zap"
)

type createRequest struct {
	Type      string `json:"type"`
	FileName  string `json:"fileName"`
	ChartType string `json:"chartType"`
	Date      string `json:"date"`
	UserID    string `json:"userId"`
	Rows      int    `json:"rows"`
	Status    string `json:"status"`
}

// HandleCreate records an upload or chart download for the caller.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !httpjson.DecodeOrFail(w, r, &req, limits.MaxJSONBody) {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "create history entry")
	defer cancel()

	v, ok := h.viewer(ctx, w, r)
	if !ok {
		return
	}
	if req.UserID != "" && req.UserID != v.ID {
		httpjson.Error(w, http.StatusForbidden, httpjson.CodeForbidden, "history can only be recorded for yourself")
		return
	}
	if !inputval.IsValidHistoryType(req.Type) {
		httpjson.Invalid(w, "type", "type must be upload or download")
		return
	}
	if req.Rows < 0 {
		httpjson.Invalid(w, "rows", "rows cannot be negative")
		return
	}
	status := req.Status
	switch status {
	case "":
		status = models.HistoryStatusUploaded
	case models.HistoryStatusUploaded, models.HistoryStatusAnalyzed:
	default:
		httpjson.Invalid(w, "status", "status must be Uploaded or Analyzed")
		return
	}
	date := req.Date
	if date == "" {
		date = time.Now().UTC().Format(time.RFC3339)
	}

	entry, err := h.History.Create(ctx, models.HistoryEntry{
		Type:      req.Type,
		FileName:  htmlsanitize.Text(req.FileName),
		ChartType: htmlsanitize.Text(req.ChartType),
		Date:      htmlsanitize.Text(date),
		UserID:    v.ID,
		Rows:      req.Rows,
		Status:    status,
	})
	if err != nil {
		httpjson.Internal(w, h.Log, "create history entry failed", err, zap.String("user_id", v.ID))
		return
	}

	httpjson.Created(w, map[string]any{
		"success": true,
		"message": "History entry saved",
		"entry":   entry,
	})
}
