// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"strings"
	"time"

	"github.com/excelanalytics/excelhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists groups. Membership changes are conditional single-document
// updates: each mutator reports whether its precondition matched, so callers
// can tell "nothing to do" apart from a storage failure.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

// Create inserts g. An empty ID is replaced with a fresh ObjectID hex string.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	if strings.TrimSpace(g.ID) == "" {
		g.ID = primitive.NewObjectID().Hex()
	}
	g.NameCI = text.Fold(g.Name)
	if g.Members == nil {
		g.Members = []string{}
	}
	if g.JoinRequests == nil {
		g.JoinRequests = []string{}
	}
	if g.PendingInvitations == nil {
		g.PendingInvitations = []string{}
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// ListInvitingEmail returns groups holding a pending invitation for email.
func (s *Store) ListInvitingEmail(ctx context.Context, email string) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"pending_invitations": email}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Group
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddJoinRequest records userID as requesting to join. It does not match
// when userID is already a member or already pending. A non-empty email is
// dropped from pending_invitations in the same write.
func (s *Store) AddJoinRequest(ctx context.Context, id, userID, email string) (bool, error) {
	filter := bson.M{
		"_id":           id,
		"members":       bson.M{"$ne": userID},
		"join_requests": bson.M{"$ne": userID},
	}
	update := bson.M{"$addToSet": bson.M{"join_requests": userID}}
	if email != "" {
		update["$pull"] = bson.M{"pending_invitations": email}
	}
	return s.update(ctx, filter, update)
}

// PromoteJoinRequest moves userID from join_requests to members in one write.
// A non-empty email is consumed from pending_invitations as well.
func (s *Store) PromoteJoinRequest(ctx context.Context, id, userID, email string) (bool, error) {
	filter := bson.M{"_id": id, "join_requests": userID}
	return s.update(ctx, filter, bson.M{
		"$pull":     pullUser("join_requests", userID, email),
		"$addToSet": bson.M{"members": userID},
	})
}

// RemoveJoinRequest drops a pending request without touching members. A
// non-empty email is dropped from pending_invitations as well.
func (s *Store) RemoveJoinRequest(ctx context.Context, id, userID, email string) (bool, error) {
	filter := bson.M{"_id": id, "join_requests": userID}
	return s.update(ctx, filter, bson.M{
		"$pull": pullUser("join_requests", userID, email),
	})
}

// AddInvitation records a pending invitation for a normalized email.
func (s *Store) AddInvitation(ctx context.Context, id, email string) (bool, error) {
	filter := bson.M{"_id": id, "pending_invitations": bson.M{"$ne": email}}
	return s.update(ctx, filter, bson.M{
		"$addToSet": bson.M{"pending_invitations": email},
	})
}

// AcceptInvitation consumes the invitation for email and adds userID as a
// member. Any join request userID had is dropped in the same write.
func (s *Store) AcceptInvitation(ctx context.Context, id, email, userID string) (bool, error) {
	filter := bson.M{"_id": id, "pending_invitations": email}
	return s.update(ctx, filter, bson.M{
		"$pull": bson.M{
			"pending_invitations": email,
			"join_requests":       userID,
		},
		"$addToSet": bson.M{"members": userID},
	})
}

// RemoveMember drops userID from members, along with any pending invitation
// for a non-empty email. The admin never matches.
func (s *Store) RemoveMember(ctx context.Context, id, userID, email string) (bool, error) {
	filter := bson.M{
		"_id":      id,
		"members":  userID,
		"admin_id": bson.M{"$ne": userID},
	}
	return s.update(ctx, filter, bson.M{
		"$pull": pullUser("members", userID, email),
	})
}

func pullUser(field, userID, email string) bson.M {
	p := bson.M{field: userID}
	if email != "" {
		p["pending_invitations"] = email
	}
	return p
}

func (s *Store) update(ctx context.Context, filter, update bson.M) (bool, error) {
	update["$set"] = bson.M{"updated_at": time.Now().UTC()}
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}
