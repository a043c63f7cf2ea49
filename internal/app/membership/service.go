// Package membership performs every group state transition that touches a
// group and one or more profiles. Two-document transitions run inside one
// transaction so a group and its members' profiles never disagree.
package membership

import (
	"context"
	"errors"
	"time"

	"github.com/excelanalytics/excelhub/internal/app/system/inputval"
	"github.com/excelanalytics/excelhub/internal/app/system/normalize"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// GroupStore is the group persistence the service needs. Conditional
// mutators report whether their precondition matched; a missing group
// does not match. Mutators taking an email also drop that address from the
// group's pending invitations, so a known user never keeps a stale one.
type GroupStore interface {
	Create(ctx context.Context, g models.Group) (models.Group, error)
	GetByID(ctx context.Context, id string) (models.Group, error)
	ListInvitingEmail(ctx context.Context, email string) ([]models.Group, error)
	AddJoinRequest(ctx context.Context, id, userID, email string) (bool, error)
	PromoteJoinRequest(ctx context.Context, id, userID, email string) (bool, error)
	RemoveJoinRequest(ctx context.Context, id, userID, email string) (bool, error)
	AddInvitation(ctx context.Context, id, email string) (bool, error)
	AcceptInvitation(ctx context.Context, id, email, userID string) (bool, error)
	RemoveMember(ctx context.Context, id, userID, email string) (bool, error)
}

// ProfileStore is the profile persistence the service needs. Missing
// profiles are reported as mongo.ErrNoDocuments.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (models.UserProfile, error)
	GetByEmail(ctx context.Context, email string) (models.UserProfile, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.UserProfile, error)
	SetAffiliation(ctx context.Context, id string, groupID *string, role string) error
	UpdateIdentity(ctx context.Context, id, name, email string) error
	AddNotification(ctx context.Context, id string, n models.Notification) error
}

// TxRunner runs fn so that all of its store writes apply or none do.
// Store calls inside fn must use the context fn receives.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements the membership operations.
type Service struct {
	groups   GroupStore
	profiles ProfileStore
	tx       TxRunner
	log      *zap.Logger
	now      func() time.Time
}

// New builds a Service.
func New(groups GroupStore, profiles ProfileStore, tx TxRunner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		groups:   groups,
		profiles: profiles,
		tx:       tx,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateGroup creates a group administered by adminID and makes the admin
// its first member. adminName and adminEmail, when given, backfill the
// admin's profile. A profile that already belongs to a group is rejected
// with ErrAlreadyAffiliated.
func (s *Service) CreateGroup(ctx context.Context, adminID, name, description, adminName, adminEmail string) (string, error) {
	adminID = normalize.ID(adminID)
	name = normalize.Name(name)
	if adminID == "" {
		return "", invalid("adminId", "admin user ID is required")
	}
	if name == "" {
		return "", invalid("name", "group name is required")
	}
	if !inputval.IsBlank(adminEmail) && !inputval.IsValidEmail(adminEmail) {
		return "", invalid("adminEmail", "invalid email format")
	}

	groupID := primitive.NewObjectID().Hex()
	err := s.tx.Run(ctx, func(ctx context.Context) error {
		admin, err := s.profiles.GetByID(ctx, adminID)
		if err != nil {
			return err
		}
		if admin.GroupID != nil {
			return ErrAlreadyAffiliated
		}

		if _, err := s.groups.Create(ctx, models.Group{
			ID:          groupID,
			Name:        name,
			Description: description,
			AdminID:     adminID,
			Members:     []string{adminID},
		}); err != nil {
			return err
		}
		if err := s.profiles.SetAffiliation(ctx, adminID, &groupID, models.RoleAdmin); err != nil {
			return err
		}
		if !inputval.IsBlank(adminName) || !inputval.IsBlank(adminEmail) {
			return s.profiles.UpdateIdentity(ctx, adminID, adminName, adminEmail)
		}
		return nil
	})
	if err != nil {
		return "", classify("create group", err)
	}

	s.log.Info("group created",
		zap.String("group_id", groupID),
		zap.String("admin_id", adminID))
	return groupID, nil
}

// InviteUserToGroup invites email to the group on behalf of callerAdminID.
//
// A registered user is added to the group's join requests and notified; an
// unregistered email is recorded as a pending invitation. Validation problems
// and no-op outcomes come back in Result. ErrNotAuthorized, ErrNotFound and
// *StorageError come back as error.
func (s *Service) InviteUserToGroup(ctx context.Context, groupID, email, callerAdminID string) (Result, error) {
	groupID = normalize.ID(groupID)
	callerAdminID = normalize.ID(callerAdminID)
	switch {
	case groupID == "":
		return validationResult(invalid("groupId", "group ID is required")), nil
	case inputval.IsBlank(email):
		return validationResult(invalid("email", "user email is required")), nil
	case callerAdminID == "":
		return validationResult(invalid("adminId", "admin user ID is required")), nil
	case !inputval.IsValidEmail(email):
		return validationResult(invalid("email", "invalid email format")), nil
	}
	email = normalize.Email(email)

	var res Result
	err := s.tx.Run(ctx, func(ctx context.Context) error {
		res = Result{}

		group, err := s.groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if group.AdminID != callerAdminID {
			return ErrNotAuthorized
		}

		invitee, err := s.profiles.GetByEmail(ctx, email)
		switch {
		case err == nil:
			res, err = s.inviteRegistered(ctx, group, invitee, email)
			return err
		case errors.Is(err, mongo.ErrNoDocuments):
			res, err = s.inviteByEmail(ctx, group, email)
			return err
		default:
			return err
		}
	})
	if err != nil {
		return Result{}, classify("invite user", err)
	}
	return res, nil
}

func (s *Service) inviteRegistered(ctx context.Context, group models.Group, invitee models.UserProfile, email string) (Result, error) {
	display := displayName(invitee.Name, "User")
	if group.HasMember(invitee.ID) {
		return failure(ErrAlreadyMember, display+" is already a member of this group",
			map[string]any{"userId": invitee.ID, "email": email, "isMember": true}), nil
	}
	if group.HasJoinRequest(invitee.ID) {
		return failure(ErrAlreadyPending, display+" already has a pending join request",
			map[string]any{"userId": invitee.ID, "email": email, "hasPendingRequest": true}), nil
	}

	ok, err := s.groups.AddJoinRequest(ctx, group.ID, invitee.ID, email)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		// Lost a race with another writer; report the state it left behind.
		return failure(ErrAlreadyPending, display+" already has a pending join request",
			map[string]any{"userId": invitee.ID, "email": email, "hasPendingRequest": true}), nil
	}

	n := models.Notification{
		ID:        uuid.NewString(),
		Type:      models.NotificationGroupInvite,
		GroupID:   group.ID,
		GroupName: group.Name,
		Timestamp: s.now(),
		Read:      false,
	}
	if err := s.profiles.AddNotification(ctx, invitee.ID, n); err != nil {
		return Result{}, err
	}

	return Result{
		Success: true,
		Code:    CodeJoinRequestSent,
		Message: "Join request sent to " + displayName(invitee.Name, "user"),
		Data:    map[string]any{"userId": invitee.ID, "email": email, "notificationSent": true},
	}, nil
}

func (s *Service) inviteByEmail(ctx context.Context, group models.Group, email string) (Result, error) {
	already := failure(ErrAlreadyInvited, "This user has already been invited",
		map[string]any{"email": email, "alreadyInvited": true})
	if group.HasInvitation(email) {
		return already, nil
	}
	ok, err := s.groups.AddInvitation(ctx, group.ID, email)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return already, nil
	}
	return Result{
		Success: true,
		Code:    CodeInvitationSent,
		Message: "Invitation sent to " + email,
		Data:    map[string]any{"email": email, "invitationSent": true},
	}, nil
}

// RequestJoinGroup records userID's request to join. Repeating the request
// is a no-op. A current member gets ErrAlreadyMember.
func (s *Service) RequestJoinGroup(ctx context.Context, groupID, userID string) error {
	groupID, userID = normalize.ID(groupID), normalize.ID(userID)
	if err := requireIDs(groupID, userID); err != nil {
		return err
	}

	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return classify("request join", err)
	}
	if _, err := s.profiles.GetByID(ctx, userID); err != nil {
		return classify("request join", err)
	}
	if group.HasMember(userID) {
		return ErrAlreadyMember
	}
	if group.HasJoinRequest(userID) {
		return nil
	}

	ok, err := s.groups.AddJoinRequest(ctx, groupID, userID, "")
	if err != nil {
		return classify("request join", err)
	}
	if !ok {
		// Either already pending (fine) or approved in the meantime.
		group, err = s.groups.GetByID(ctx, groupID)
		if err != nil {
			return classify("request join", err)
		}
		if group.HasMember(userID) {
			return ErrAlreadyMember
		}
	}
	return nil
}

// ApproveJoinRequest moves userID from the group's join requests to its
// members and affiliates the profile. A user with no pending request gets
// ErrNotPending and nothing changes. A user who is a plain member of another
// group is moved; the admin of another group gets ErrAlreadyAffiliated.
func (s *Service) ApproveJoinRequest(ctx context.Context, groupID, userID string) error {
	groupID, userID = normalize.ID(groupID), normalize.ID(userID)
	if err := requireIDs(groupID, userID); err != nil {
		return err
	}

	err := s.tx.Run(ctx, func(ctx context.Context) error {
		group, err := s.groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		profile, err := s.profiles.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if !group.HasJoinRequest(userID) {
			if group.HasMember(userID) {
				return ErrAlreadyMember
			}
			return ErrNotPending
		}
		if err := s.detachFromOtherGroup(ctx, profile, groupID); err != nil {
			return err
		}

		ok, err := s.groups.PromoteJoinRequest(ctx, groupID, userID, profile.Email)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotPending
		}
		return s.profiles.SetAffiliation(ctx, userID, &groupID, models.RoleUser)
	})
	return classify("approve join request", err)
}

// RejectJoinRequest drops userID's pending request. Rejecting a request that
// is not pending is a no-op.
func (s *Service) RejectJoinRequest(ctx context.Context, groupID, userID string) error {
	groupID, userID = normalize.ID(groupID), normalize.ID(userID)
	if err := requireIDs(groupID, userID); err != nil {
		return err
	}

	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return classify("reject join request", err)
	}
	var email string
	profile, err := s.profiles.GetByID(ctx, userID)
	switch {
	case err == nil:
		email = profile.Email
	case !errors.Is(err, mongo.ErrNoDocuments):
		return classify("reject join request", err)
	}
	if _, err := s.groups.RemoveJoinRequest(ctx, groupID, userID, email); err != nil {
		return classify("reject join request", err)
	}
	return nil
}

// RemoveUserFromGroup removes userID from the group's members and clears the
// profile's affiliation. The admin cannot be removed. Removing a non-member
// is a no-op, though a profile still pointing at the group is cleared.
func (s *Service) RemoveUserFromGroup(ctx context.Context, groupID, userID string) error {
	groupID, userID = normalize.ID(groupID), normalize.ID(userID)
	if err := requireIDs(groupID, userID); err != nil {
		return err
	}

	err := s.tx.Run(ctx, func(ctx context.Context) error {
		group, err := s.groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if group.AdminID == userID {
			return ErrAdminRemoval
		}
		profile, err := s.profiles.GetByID(ctx, userID)
		missing := errors.Is(err, mongo.ErrNoDocuments)
		if err != nil && !missing {
			return err
		}
		if _, err := s.groups.RemoveMember(ctx, groupID, userID, profile.Email); err != nil {
			return err
		}
		if !missing && profile.InGroup(groupID) {
			return s.profiles.SetAffiliation(ctx, userID, nil, models.RoleUser)
		}
		return nil
	})
	return classify("remove member", err)
}

// AcceptInvitationByEmail consumes the pending invitation for email and adds
// userID as a member. The caller must have verified that email belongs to
// userID.
func (s *Service) AcceptInvitationByEmail(ctx context.Context, groupID, userID, email string) error {
	groupID, userID = normalize.ID(groupID), normalize.ID(userID)
	if err := requireIDs(groupID, userID); err != nil {
		return err
	}
	if inputval.IsBlank(email) {
		return invalid("email", "user email is required")
	}
	if !inputval.IsValidEmail(email) {
		return invalid("email", "invalid email format")
	}
	email = normalize.Email(email)

	err := s.tx.Run(ctx, func(ctx context.Context) error {
		group, err := s.groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		profile, err := s.profiles.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if !group.HasInvitation(email) {
			if group.HasMember(userID) {
				return ErrAlreadyMember
			}
			return ErrNotPending
		}
		if err := s.detachFromOtherGroup(ctx, profile, groupID); err != nil {
			return err
		}

		ok, err := s.groups.AcceptInvitation(ctx, groupID, email, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotPending
		}
		role := models.RoleUser
		if group.AdminID == userID {
			role = models.RoleAdmin
		}
		return s.profiles.SetAffiliation(ctx, userID, &groupID, role)
	})
	return classify("accept invitation", err)
}

// detachFromOtherGroup removes profile from the group it currently belongs
// to when that is not targetGroupID. Admins cannot leave their own group.
func (s *Service) detachFromOtherGroup(ctx context.Context, profile models.UserProfile, targetGroupID string) error {
	if profile.GroupID == nil || *profile.GroupID == targetGroupID {
		return nil
	}
	oldID := *profile.GroupID
	old, err := s.groups.GetByID(ctx, oldID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Dangling reference; the affiliation is overwritten by the caller.
		return nil
	}
	if err != nil {
		return err
	}
	if old.AdminID == profile.ID {
		return ErrAlreadyAffiliated
	}
	if _, err := s.groups.RemoveMember(ctx, oldID, profile.ID, profile.Email); err != nil {
		return err
	}
	s.log.Info("moving user between groups",
		zap.String("user_id", profile.ID),
		zap.String("from_group", oldID),
		zap.String("to_group", targetGroupID))
	return nil
}

func requireIDs(groupID, userID string) error {
	if groupID == "" {
		return invalid("groupId", "group ID is required")
	}
	if userID == "" {
		return invalid("userId", "user ID is required")
	}
	return nil
}

func displayName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
