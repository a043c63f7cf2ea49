// internal/domain/models/group.go
package models

import (
	"time"
)

// Group is a named set of users with exactly one admin.
//
// NOTE:
//   - AdminID is set once at creation and never changes.
//   - Members always contains AdminID.
//   - JoinRequests and Members never share an id.
//   - PendingInvitations holds normalized emails of people who have not
//     signed in yet; registered users are tracked in JoinRequests instead.
type Group struct {
	ID          string `bson:"_id" json:"id"`
	Name        string `bson:"name" json:"name"`
	NameCI      string `bson:"name_ci" json:"-"`
	Description string `bson:"description" json:"description"`
	AdminID     string `bson:"admin_id" json:"admin_id"`

	Members            []string `bson:"members" json:"members"`
	JoinRequests       []string `bson:"join_requests" json:"join_requests"`
	PendingInvitations []string `bson:"pending_invitations" json:"pending_invitations"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasMember reports whether userID is in the group's member set.
func (g Group) HasMember(userID string) bool {
	return contains(g.Members, userID)
}

// HasJoinRequest reports whether userID has a pending join request.
func (g Group) HasJoinRequest(userID string) bool {
	return contains(g.JoinRequests, userID)
}

// HasInvitation reports whether the (already normalized) email is pending.
func (g Group) HasInvitation(email string) bool {
	return contains(g.PendingInvitations, email)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
