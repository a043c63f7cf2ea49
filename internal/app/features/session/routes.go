// internal/app/features/session/routes.go
package session

import (
	"github.com/excelanalytics/excelhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /api/session.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Post("/login", h.HandleLogin)
		pr.Post("/logout", h.HandleLogout)
	})
	return r
}
