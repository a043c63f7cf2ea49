// internal/app/features/groups/views.go
package groups

import (
	"time"

	"github.com/excelanalytics/excelhub/internal/app/membership"
	"github.com/excelanalytics/excelhub/internal/app/policy/historypolicy"
	"github.com/excelanalytics/excelhub/internal/domain/models"
)

// groupView is what every viewer of a group sees.
type groupView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AdminID     string    `json:"adminId"`
	MemberCount int       `json:"memberCount"`
	CreatedAt   time.Time `json:"createdAt"`

	// State is the caller's own position in the join lifecycle.
	State membership.State `json:"state"`

	// Admin-only.
	JoinRequests       []string `json:"joinRequests,omitempty"`
	PendingInvitations []string `json:"pendingInvitations,omitempty"`
}

func newGroupView(g models.Group, v models.UserProfile) groupView {
	out := groupView{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		AdminID:     g.AdminID,
		MemberCount: len(g.Members),
		CreatedAt:   g.CreatedAt,
		State:       membership.JoinState(g, v.ID, v.Email),
	}
	if canManage(v, g) {
		out.JoinRequests = nonNil(g.JoinRequests)
		out.PendingInvitations = nonNil(g.PendingInvitations)
	}
	return out
}

// memberView is a profile as shown in member and request listings.
type memberView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	IsAdmin bool   `json:"isAdmin"`
}

func newMemberViews(ps []models.UserProfile, g models.Group) []memberView {
	out := make([]memberView, 0, len(ps))
	for _, p := range ps {
		out = append(out, memberView{
			ID:      p.ID,
			Name:    p.Name,
			Email:   p.Email,
			Role:    p.Role,
			IsAdmin: p.ID == g.AdminID,
		})
	}
	return out
}

// invitationView is a group that invited the caller's email.
type invitationView struct {
	GroupID     string `json:"groupId"`
	GroupName   string `json:"groupName"`
	Description string `json:"description"`
}

func canManage(v models.UserProfile, g models.Group) bool {
	return historypolicy.CanManageGroup(v, g)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
