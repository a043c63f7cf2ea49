// internal/app/features/history/upload.go
package history

import (
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/excelanalytics/excelhub/internal/app/system/htmlsanitize"
	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/limits"
	"github.com/excelanalytics/excelhub/internal/app/system/sheetutil"
	"github.com/excelanalytics/excelhub/internal/app/system/timeouts"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"go.uber.org/zap"
)

// HandleUpload accepts a multipart spreadsheet upload in the "file" field,
// counts its data rows and records it in the caller's history. The optional
// "url" field is where the client stored the file; it is kept on the
// profile's file list.
//
// Files that cannot be read as a spreadsheet are still recorded, with zero
// rows and status Uploaded.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.MaxUploadBytes {
		httpjson.Error(w, http.StatusRequestEntityTooLarge, httpjson.CodeTooLarge, "file is too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(limits.MultipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			httpjson.Error(w, http.StatusRequestEntityTooLarge, httpjson.CodeTooLarge, "file is too large")
			return
		}
		httpjson.Error(w, http.StatusBadRequest, httpjson.CodeBadRequest, "expected a multipart form upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httpjson.Invalid(w, "file", "file is required")
		return
	}
	defer file.Close()

	fileName := htmlsanitize.Text(filepath.Base(header.Filename))
	if fileName == "" || fileName == "." {
		httpjson.Invalid(w, "file", "file name is required")
		return
	}
	locator := htmlsanitize.URL(r.FormValue("url"))
	if r.FormValue("url") != "" && locator == "" {
		httpjson.Invalid(w, "url", "must be an absolute http or https URL")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "upload spreadsheet")
	defer cancel()

	v, ok := h.viewer(ctx, w, r)
	if !ok {
		return
	}

	rows, err := sheetutil.CountRows(file, fileName)
	switch {
	case errors.Is(err, sheetutil.ErrTooManyRows):
		httpjson.Invalid(w, "file", "spreadsheet has too many rows")
		return
	case errors.Is(err, sheetutil.ErrUnsupported):
		rows = 0
	case err != nil:
		h.Log.Warn("could not read uploaded spreadsheet",
			zap.String("user_id", v.ID),
			zap.String("file_name", fileName),
			zap.Error(err))
		rows = 0
	}

	status := models.HistoryStatusUploaded
	if rows > 0 {
		status = models.HistoryStatusAnalyzed
	}
	now := time.Now().UTC()

	entry, err := h.History.Create(ctx, models.HistoryEntry{
		Type:       models.HistoryUpload,
		FileName:   fileName,
		Date:       now.Format(time.RFC3339),
		UserID:     v.ID,
		Rows:       rows,
		Status:     status,
		FileSize:   header.Size,
		UploadedAt: now,
	})
	if err != nil {
		httpjson.Internal(w, h.Log, "record upload failed", err, zap.String("user_id", v.ID))
		return
	}

	if err := h.Profiles.AppendFileHistory(ctx, v.ID, models.FileHistoryItem{
		Name:       fileName,
		URL:        locator,
		UploadedAt: now,
	}); err != nil {
		// The history entry is authoritative; the profile list is a copy.
		h.Log.Warn("append file history failed",
			zap.String("user_id", v.ID),
			zap.String("entry_id", entry.ID.Hex()),
			zap.Error(err))
	}

	httpjson.Created(w, map[string]any{
		"success":       true,
		"message":       "File uploaded and history updated",
		"entry":         entry,
		"rowsProcessed": rows,
	})
}
