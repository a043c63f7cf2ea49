// internal/app/features/profile/activity.go
package profile

import (
	"context"
	"net/http"

	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/timeouts"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"go.uber.org/zap"
)

// ServeActivity lists the caller's sessions, newest first, with the total
// signed-in time in seconds across closed sessions.
func (h *Handler) ServeActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, ok := h.caller(w, r, func(id string) (models.UserProfile, error) {
		return h.Profiles.GetByID(ctx, id)
	})
	if !ok {
		return
	}

	logs := make([]models.ActivityLog, 0, len(p.ActivityLogs))
	var total int64
	for i := len(p.ActivityLogs) - 1; i >= 0; i-- {
		a := p.ActivityLogs[i]
		total += a.TotalTime
		logs = append(logs, a)
	}

	httpjson.OK(w, map[string]any{
		"success":   true,
		"activity":  logs,
		"totalTime": total,
	})
}

// ServeNotifications lists the caller's notifications, newest first.
func (h *Handler) ServeNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, ok := h.caller(w, r, func(id string) (models.UserProfile, error) {
		return h.Profiles.GetByID(ctx, id)
	})
	if !ok {
		return
	}

	out := make([]models.Notification, 0, len(p.Notifications))
	unread := 0
	for i := len(p.Notifications) - 1; i >= 0; i-- {
		n := p.Notifications[i]
		if !n.Read {
			unread++
		}
		out = append(out, n)
	}

	httpjson.OK(w, map[string]any{
		"success":       true,
		"notifications": out,
		"unread":        unread,
	})
}

// HandleMarkNotificationsRead flags every notification as read.
func (h *Handler) HandleMarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "mark notifications read")
	defer cancel()

	p, ok := h.caller(w, r, func(id string) (models.UserProfile, error) {
		return h.Profiles.GetByID(ctx, id)
	})
	if !ok {
		return
	}
	if err := h.Profiles.MarkNotificationsRead(ctx, p.ID); err != nil {
		httpjson.Internal(w, h.Log, "mark notifications read failed", err, zap.String("user_id", p.ID))
		return
	}
	httpjson.OK(w, map[string]any{"success": true})
}
