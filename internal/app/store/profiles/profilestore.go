// internal/app/store/profiles/profilestore.go
package profilestore

import (
	"context"
	"errors"
	"time"

	"github.com/excelanalytics/excelhub/internal/app/system/normalize"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateEmail is returned when another profile already owns the email.
var ErrDuplicateEmail = errors.New("a profile with this email already exists")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("profiles")}
}

// Ensure creates the profile for id on first sign-in and returns it.
// Existing profiles are returned unchanged apart from filling a missing
// email or name. created reports whether a new document was inserted.
func (s *Store) Ensure(ctx context.Context, id, email, name string) (p models.UserProfile, created bool, err error) {
	email = normalize.Email(email)
	name = normalize.Name(name)
	now := time.Now().UTC()

	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$setOnInsert": bson.M{
			"name":          name,
			"email":         email,
			"role":          models.RoleUser,
			"details":       models.ProfileDetails{},
			"activity_logs": []models.ActivityLog{},
			"file_history":  []models.FileHistoryItem{},
			"notifications": []models.Notification{},
			"created_at":    now,
			"updated_at":    now,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.UserProfile{}, false, ErrDuplicateEmail
		}
		return models.UserProfile{}, false, err
	}
	created = res.UpsertedCount > 0

	p, err = s.GetByID(ctx, id)
	if err != nil {
		return models.UserProfile{}, false, err
	}
	if !created && ((p.Email == "" && email != "") || (p.Name == "" && name != "")) {
		if err := s.UpdateIdentity(ctx, id, name, email); err != nil {
			return models.UserProfile{}, false, err
		}
		p, err = s.GetByID(ctx, id)
	}
	return p, created, err
}

func (s *Store) GetByID(ctx context.Context, id string) (models.UserProfile, error) {
	var p models.UserProfile
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.UserProfile{}, err
	}
	return p, nil
}

// GetByEmail looks up a profile by normalized email. Returns
// mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.UserProfile, error) {
	var p models.UserProfile
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&p); err != nil {
		return models.UserProfile{}, err
	}
	return p, nil
}

// ListByIDs returns the profiles for ids, sorted by name. Unknown ids are skipped.
func (s *Store) ListByIDs(ctx context.Context, ids []string) ([]models.UserProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// ListByGroup returns the profiles affiliated with groupID.
func (s *Store) ListByGroup(ctx context.Context, groupID string) ([]models.UserProfile, error) {
	return s.find(ctx, bson.M{"group_id": groupID})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.UserProfile, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"activity_logs": 0, "file_history": 0, "notifications": 0})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.UserProfile
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetAffiliation writes group_id and role together. A nil groupID clears the
// affiliation. Returns mongo.ErrNoDocuments if the profile does not exist.
func (s *Store) SetAffiliation(ctx context.Context, id string, groupID *string, role string) error {
	set := bson.M{"role": role, "updated_at": time.Now().UTC()}
	update := bson.M{"$set": set}
	if groupID == nil {
		update["$unset"] = bson.M{"group_id": ""}
	} else {
		set["group_id"] = *groupID
	}
	return s.updateOne(ctx, id, update)
}

// SetRole changes only the role.
func (s *Store) SetRole(ctx context.Context, id, role string) error {
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{"role": role, "updated_at": time.Now().UTC()}})
}

// UpdateIdentity sets name and email. Empty values are left unchanged.
func (s *Store) UpdateIdentity(ctx context.Context, id, name, email string) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if n := normalize.Name(name); n != "" {
		set["name"] = n
	}
	if e := normalize.Email(email); e != "" {
		set["email"] = e
	}
	return s.updateOne(ctx, id, bson.M{"$set": set})
}

// UpdateDetails replaces the self-service details block and, when non-empty, the name.
func (s *Store) UpdateDetails(ctx context.Context, id, name string, d models.ProfileDetails) error {
	set := bson.M{"details": d, "updated_at": time.Now().UTC()}
	if n := normalize.Name(name); n != "" {
		set["name"] = n
	}
	return s.updateOne(ctx, id, bson.M{"$set": set})
}

// AddNotification appends n to the profile's notification list.
func (s *Store) AddNotification(ctx context.Context, id string, n models.Notification) error {
	return s.updateOne(ctx, id, bson.M{
		"$push": bson.M{"notifications": n},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

// MarkNotificationsRead flags every notification on the profile as read.
func (s *Store) MarkNotificationsRead(ctx context.Context, id string) error {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if len(p.Notifications) == 0 {
		return nil
	}
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{
		"notifications.$[].read": true,
		"updated_at":             time.Now().UTC(),
	}})
}

// AppendFileHistory records an uploaded file on the profile.
func (s *Store) AppendFileHistory(ctx context.Context, id string, item models.FileHistoryItem) error {
	return s.updateOne(ctx, id, bson.M{
		"$push": bson.M{"file_history": item},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

// StartSession opens a new activity session at at, closing any session left
// open. Both happen in one pipeline update, so concurrent logins and logouts
// on the same profile never overwrite each other.
func (s *Store) StartSession(ctx context.Context, id string, at time.Time) (models.ActivityLog, error) {
	at = at.UTC().Truncate(time.Millisecond)
	entry := models.ActivityLog{Date: at.Format("2006-01-02"), LoginTime: at}

	update := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"activity_logs": bson.M{"$concatArrays": bson.A{
			closeOpenSessions(at),
			bson.A{bson.M{"date": entry.Date, "login_time": entry.LoginTime}},
		}},
		"updated_at": time.Now().UTC(),
	}}}}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return models.ActivityLog{}, err
	}
	if res.MatchedCount == 0 {
		return models.ActivityLog{}, mongo.ErrNoDocuments
	}
	return entry, nil
}

// EndSession closes the open session. closed is false when there was
// nothing to close.
func (s *Store) EndSession(ctx context.Context, id string, at time.Time) (closed bool, err error) {
	at = at.UTC().Truncate(time.Millisecond)
	filter := bson.M{
		"_id":           id,
		"activity_logs": bson.M{"$elemMatch": bson.M{"logout_time": nil}},
	}
	update := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"activity_logs": closeOpenSessions(at),
		"updated_at":    time.Now().UTC(),
	}}}}
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return true, nil
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// closeOpenSessions is an aggregation expression yielding activity_logs with
// every entry lacking logout_time closed at at. total_time is whole seconds
// and never negative.
func closeOpenSessions(at time.Time) bson.M {
	elapsedMS := bson.M{"$subtract": bson.A{at, "$$a.login_time"}}
	return bson.M{"$map": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$activity_logs", bson.A{}}},
		"as":    "a",
		"in": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{bson.M{"$ifNull": bson.A{"$$a.logout_time", nil}}, nil}},
			bson.M{"$mergeObjects": bson.A{"$$a", bson.M{
				"logout_time": at,
				"total_time": bson.M{"$max": bson.A{
					int64(0),
					bson.M{"$toLong": bson.M{"$trunc": bson.M{"$divide": bson.A{elapsedMS, 1000}}}},
				}},
			}}},
			"$$a",
		}},
	}}
}

func (s *Store) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
