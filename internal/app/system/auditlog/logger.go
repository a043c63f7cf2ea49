// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strings"

	"github.com/excelanalytics/excelhub/internal/app/store/audit"
	"go.uber.org/zap"
)

// Destinations accepted by each Config field.
const (
	DestAll = "all" // MongoDB + zap
	DestDB  = "db"  // MongoDB only
	DestLog = "log" // zap only
	DestOff = "off" // disabled
)

// ValidDestination reports whether s is a recognised destination.
func ValidDestination(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case DestAll, DestDB, DestLog, DestOff:
		return true
	}
	return false
}

// Config holds audit logging configuration.
type Config struct {
	// Auth controls sign-in, sign-out and rejected-token events.
	Auth string
	// Membership controls group and profile events.
	Membership string
}

// EventStore persists audit events. *audit.Store satisfies it.
type EventStore interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger records audit events to MongoDB and/or zap according to Config.
type Logger struct {
	store  EventStore
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store EventStore, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// clientIP returns the first X-Forwarded-For hop, X-Real-IP, or RemoteAddr.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func userAgent(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.UserAgent()
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.GroupID != "" {
		fields = append(fields, zap.String("group_id", event.GroupID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event. A nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryGroup, audit.CategoryProfile:
		setting = l.config.Membership
	}
	setting = strings.ToLower(strings.TrimSpace(setting))
	if setting == "" {
		setting = DestAll
	}
	if setting == DestOff {
		return
	}

	if setting == DestAll || setting == DestLog {
		l.logToZap(event)
	}
	if (setting == DestAll || setting == DestDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) record(ctx context.Context, r *http.Request, e audit.Event) {
	e.IP = clientIP(r)
	e.UserAgent = userAgent(r)
	l.Log(ctx, e)
}

// --- Authentication Events ---

// Login logs a sign-in that opened an activity session.
func (l *Logger) Login(ctx context.Context, r *http.Request, userID, email string, firstSignIn bool) {
	details := map[string]string{"email": email}
	if firstSignIn {
		details["first_sign_in"] = "true"
	}
	l.record(ctx, r, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogin,
		UserID:    userID,
		ActorID:   userID,
		Success:   true,
		Details:   details,
	})
}

// Logout logs a sign-out.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string, sessionClosed bool) {
	l.record(ctx, r, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    userID,
		ActorID:   userID,
		Success:   true,
		Details:   map[string]string{"session_closed": boolString(sessionClosed)},
	})
}

// TokenRejected logs a request whose identity token failed verification.
func (l *Logger) TokenRejected(ctx context.Context, r *http.Request, reason string) {
	l.record(ctx, r, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventTokenRejected,
		Success:       false,
		FailureReason: reason,
	})
}

// --- Group Events ---

// GroupCreated logs a new group.
func (l *Logger) GroupCreated(ctx context.Context, r *http.Request, actorID, groupID, groupName string) {
	l.record(ctx, r, audit.Event{
		Category:  audit.CategoryGroup,
		EventType: audit.EventGroupCreated,
		GroupID:   groupID,
		UserID:    actorID,
		ActorID:   actorID,
		Success:   true,
		Details:   map[string]string{"group_name": groupName},
	})
}

// UserInvited logs an invitation that put a registered user on the join list.
func (l *Logger) UserInvited(ctx context.Context, r *http.Request, actorID, groupID, inviteeID, email string) {
	l.record(ctx, r, audit.Event{
		Category:  audit.CategoryGroup,
		EventType: audit.EventUserInvited,
		GroupID:   groupID,
		UserID:    inviteeID,
		ActorID:   actorID,
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

// InvitationRecorded logs an invitation held for an unregistered email.
func (l *Logger) InvitationRecorded(ctx context.Context, r *http.Request, actorID, groupID, email string) {
	l.record(ctx, r, audit.Event{
		Category:  audit.CategoryGroup,
		EventType: audit.EventInvitationRecorded,
		GroupID:   groupID,
		ActorID:   actorID,
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

// JoinRequested logs a self-initiated join request.
func (l *Logger) JoinRequested(ctx context.Context, r *http.Request, userID, groupID string) {
	l.record(ctx, r, audit.Event{
		Category:  audit.CategoryGroup,
		EventType: audit.EventJoinRequested,
		GroupID:   groupID,
		UserID:    userID,
		ActorID:   userID,
		Success:   true,
	})
}

// JoinApproved logs an approved join request.
func (l *Logger) JoinApproved(ctx context.Context, r *http.Request, actorID, userID, groupID string) {
	l.membershipChange(ctx, r, audit.EventJoinApproved, actorID, userID, groupID)
}

// JoinRejected logs a rejected join request.
func (l *Logger) JoinRejected(ctx context.Context, r *http.Request, actorID, userID, groupID string) {
	l.membershipChange(ctx, r, audit.EventJoinRejected, actorID, userID, groupID)
}

// MemberRemoved logs a member removed by the group admin.
func (l *Logger) MemberRemoved(ctx context.Context, r *http.Request, actorID, userID, groupID string) {
	l.membershipChange(ctx, r, audit.EventMemberRemoved, actorID, userID, groupID)
}

// InvitationAccepted logs a user joining through an email invitation.
func (l *Logger) InvitationAccepted(ctx context.Context, r *http.Request, userID, groupID, email string) {
	l.record(ctx, r, audit.Event{
		Category:  audit.CategoryGroup,
		EventType: audit.EventInvitationAccepted,
		GroupID:   groupID,
		UserID:    userID,
		ActorID:   userID,
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

// AuthorizationDenied logs an attempt to perform an admin-only action.
func (l *Logger) AuthorizationDenied(ctx context.Context, r *http.Request, actorID, groupID, action string) {
	l.record(ctx, r, audit.Event{
		Category:      audit.CategoryGroup,
		EventType:     audit.EventAuthorizationDenied,
		GroupID:       groupID,
		ActorID:       actorID,
		Success:       false,
		FailureReason: "not the group admin",
		Details:       map[string]string{"action": action},
	})
}

func (l *Logger) membershipChange(ctx context.Context, r *http.Request, eventType, actorID, userID, groupID string) {
	l.record(ctx, r, audit.Event{
		Category:  audit.CategoryGroup,
		EventType: eventType,
		GroupID:   groupID,
		UserID:    userID,
		ActorID:   actorID,
		Success:   true,
	})
}

// --- Profile Events ---

// ProfileUpdated logs a self-service profile edit.
func (l *Logger) ProfileUpdated(ctx context.Context, r *http.Request, userID string, fieldsChanged []string) {
	l.record(ctx, r, audit.Event{
		Category:  audit.CategoryProfile,
		EventType: audit.EventProfileUpdated,
		UserID:    userID,
		ActorID:   userID,
		Success:   true,
		Details:   map[string]string{"fields_changed": strings.Join(fieldsChanged, ",")},
	})
}

// RoleChanged logs a role toggle.
func (l *Logger) RoleChanged(ctx context.Context, r *http.Request, userID, from, to string) {
	l.record(ctx, r, audit.Event{
		Category:  audit.CategoryProfile,
		EventType: audit.EventRoleChanged,
		UserID:    userID,
		ActorID:   userID,
		Success:   true,
		Details:   map[string]string{"from": from, "to": to},
	})
}

// HistoryDeleted logs the deletion of a history entry.
func (l *Logger) HistoryDeleted(ctx context.Context, r *http.Request, actorID, ownerID, entryID string) {
	l.record(ctx, r, audit.Event{
		Category:  audit.CategoryProfile,
		EventType: audit.EventHistoryDeleted,
		UserID:    ownerID,
		ActorID:   actorID,
		Success:   true,
		Details:   map[string]string{"history_id": entryID},
	})
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
