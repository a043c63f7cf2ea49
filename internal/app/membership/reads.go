package membership

import (
	"context"

	"github.com/excelanalytics/excelhub/internal/app/system/inputval"
	"github.com/excelanalytics/excelhub/internal/app/system/normalize"
	"github.com/excelanalytics/excelhub/internal/domain/models"
)

// GetGroup loads a group.
func (s *Service) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	groupID = normalize.ID(groupID)
	if groupID == "" {
		return models.Group{}, invalid("groupId", "group ID is required")
	}
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return models.Group{}, classify("get group", err)
	}
	return g, nil
}

// GroupMembers returns the profiles of the group's members.
func (s *Service) GroupMembers(ctx context.Context, g models.Group) ([]models.UserProfile, error) {
	out, err := s.profiles.ListByIDs(ctx, g.Members)
	return out, classify("list members", err)
}

// JoinRequestProfiles returns the profiles with a pending join request.
func (s *Service) JoinRequestProfiles(ctx context.Context, g models.Group) ([]models.UserProfile, error) {
	out, err := s.profiles.ListByIDs(ctx, g.JoinRequests)
	return out, classify("list join requests", err)
}

// IsUserInvited reports whether email has a pending invitation to groupID.
func (s *Service) IsUserInvited(ctx context.Context, groupID, email string) (bool, error) {
	if inputval.IsBlank(email) {
		return false, nil
	}
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	return g.HasInvitation(normalize.Email(email)), nil
}

// InvitationsFor lists the groups holding a pending invitation for email.
func (s *Service) InvitationsFor(ctx context.Context, email string) ([]models.Group, error) {
	if !inputval.IsValidEmail(email) {
		return nil, invalid("email", "invalid email format")
	}
	out, err := s.groups.ListInvitingEmail(ctx, normalize.Email(email))
	return out, classify("list invitations", err)
}
