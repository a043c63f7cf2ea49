// internal/app/features/groups/routes.go
package groups

import (
	"github.com/excelanalytics/excelhub/internal/app/system/auth"
	"github.com/excelanalytics/excelhub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /api/groups.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		// CREATE
		pr.Post("/", h.HandleCreateGroup)

		// READ
		pr.Get("/{id}", h.ServeGroup)
		pr.Get("/{id}/members", h.ServeMembers)
		pr.Get("/{id}/join-requests", h.ServeJoinRequests)
		pr.Get("/{id}/invitations", h.ServePendingInvitations)
		pr.Get("/{id}/invited", h.ServeIsInvited)

		// INVITE / JOIN
		pr.With(ratelimit.PerCaller(h.InviteLimiter)).Post("/{id}/invite", h.HandleInvite)
		pr.Post("/{id}/join", h.HandleRequestJoin)
		pr.Post("/{id}/accept", h.HandleAcceptInvitation)

		// ADMIN DECISIONS
		pr.Post("/{id}/requests/{userID}/approve", h.HandleApprove)
		pr.Post("/{id}/requests/{userID}/reject", h.HandleReject)
		pr.Delete("/{id}/members/{userID}", h.HandleRemoveMember)
	})

	return r
}

// InvitationRoutes is mounted under /api/invitations.
func InvitationRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Get("/", h.ServeMyInvitations)
	})
	return r
}
