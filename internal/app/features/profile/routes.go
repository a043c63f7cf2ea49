// internal/app/features/profile/routes.go
package profile

import (
	"github.com/excelanalytics/excelhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /api/profile.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		pr.Get("/", h.ServeProfile)
		pr.Put("/", h.HandleUpdateProfile)

		pr.Get("/activity", h.ServeActivity)

		pr.Get("/notifications", h.ServeNotifications)
		pr.Post("/notifications/read", h.HandleMarkNotificationsRead)

		pr.Post("/role", h.HandleSetRole)
	})
	return r
}
