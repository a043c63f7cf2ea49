// internal/app/features/history/routes.go
package history

import (
	"github.com/excelanalytics/excelhub/internal/app/system/auth"
	"github.com/excelanalytics/excelhub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /api and serves /history, /upload and /stats.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		pr.Get("/history", h.ServeList)
		pr.Post("/history", h.HandleCreate)
		pr.Delete("/history/{id}", h.HandleDelete)

		pr.With(ratelimit.PerCaller(h.UploadLimiter)).Post("/upload", h.HandleUpload)

		pr.Get("/stats/{userID}", h.ServeStats)
	})
	return r
}
