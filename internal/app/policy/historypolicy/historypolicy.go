// Package historypolicy decides whose history and activity records a
// signed-in profile may see, and who may manage a group.
//
// Authorization rules:
//   - A plain user sees only their own records.
//   - A group admin sees the records of their group's members (and their own).
//   - With the "system" admin scope, any admin sees every record.
//
// Scopes are computed from the profile and group as loaded for the current
// request and are never cached; a role change takes effect immediately.
package historypolicy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/excelanalytics/excelhub/internal/app/system/normalize"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

// Admin scope settings.
const (
	AdminScopeGroup  = "group"
	AdminScopeSystem = "system"
)

// GroupReader loads a group by id. A missing group is mongo.ErrNoDocuments.
type GroupReader interface {
	GetByID(ctx context.Context, id string) (models.Group, error)
}

// Scope is the set of record owners a viewer may see.
type Scope struct {
	// All is true when the viewer may see every owner's records.
	All bool
	// UserIDs lists the visible owners when All is false. It always contains
	// the viewer's own id.
	UserIDs []string
}

// CanView reports whether records owned by ownerID are in scope.
func (s Scope) CanView(ownerID string) bool {
	if ownerID == "" {
		return false
	}
	if s.All {
		return true
	}
	for _, id := range s.UserIDs {
		if id == ownerID {
			return true
		}
	}
	return false
}

// Gate computes scopes.
type Gate struct {
	groups     GroupReader
	adminScope string
}

// ValidAdminScope reports whether s is a recognised admin scope setting.
func ValidAdminScope(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case AdminScopeGroup, AdminScopeSystem:
		return true
	}
	return false
}

// New builds a Gate. An empty adminScope means AdminScopeGroup.
func New(groups GroupReader, adminScope string) (*Gate, error) {
	adminScope = strings.ToLower(strings.TrimSpace(adminScope))
	if adminScope == "" {
		adminScope = AdminScopeGroup
	}
	if !ValidAdminScope(adminScope) {
		return nil, fmt.Errorf("historypolicy: unknown admin scope %q", adminScope)
	}
	return &Gate{groups: groups, adminScope: adminScope}, nil
}

// AdminScope returns the configured admin scope.
func (g *Gate) AdminScope() string { return g.adminScope }

// Scope returns viewer's scope. Only store failures are returned as errors;
// a dangling group reference narrows the scope to the viewer alone.
func (g *Gate) Scope(ctx context.Context, viewer models.UserProfile) (Scope, error) {
	self := Scope{UserIDs: []string{viewer.ID}}
	if viewer.ID == "" {
		return Scope{}, nil
	}
	if !viewer.IsAdmin() {
		return self, nil
	}
	if g.adminScope == AdminScopeSystem {
		return Scope{All: true}, nil
	}
	if viewer.GroupID == nil {
		return self, nil
	}

	group, err := g.groups.GetByID(ctx, *viewer.GroupID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return self, nil
	}
	if err != nil {
		return Scope{}, err
	}
	if group.AdminID != viewer.ID {
		return self, nil
	}

	ids := make([]string, 0, len(group.Members)+1)
	ids = append(ids, viewer.ID)
	for _, m := range group.Members {
		if m != viewer.ID {
			ids = append(ids, m)
		}
	}
	return Scope{UserIDs: ids}, nil
}

// CanView reports whether viewer may see ownerID's records.
func (g *Gate) CanView(ctx context.Context, viewer models.UserProfile, ownerID string) (bool, error) {
	s, err := g.Scope(ctx, viewer)
	if err != nil {
		return false, err
	}
	return s.CanView(ownerID), nil
}

// CanManageGroup reports whether viewer administers group. Approve, reject,
// remove and the join-request listing require it.
func CanManageGroup(viewer models.UserProfile, group models.Group) bool {
	return viewer.ID != "" && group.AdminID == viewer.ID
}

// CanViewGroup reports whether viewer may read group's details: its admin,
// its members, users with a pending request, and invited email owners.
func CanViewGroup(viewer models.UserProfile, group models.Group) bool {
	if viewer.ID == "" {
		return false
	}
	if group.AdminID == viewer.ID || group.HasMember(viewer.ID) || group.HasJoinRequest(viewer.ID) {
		return true
	}
	return viewer.Email != "" && group.HasInvitation(normalize.Email(viewer.Email))
}
