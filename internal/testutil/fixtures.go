package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/excelanalytics/excelhub/internal/app/system/normalize"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateProfile inserts an unaffiliated user profile. An empty id gets a
// generated one.
func (f *Fixtures) CreateProfile(ctx context.Context, id, name, email string) models.UserProfile {
	f.t.Helper()

	if id == "" {
		id = primitive.NewObjectID().Hex()
	}
	now := time.Now().UTC()
	p := models.UserProfile{
		ID:            id,
		Name:          normalize.Name(name),
		Email:         normalize.Email(email),
		Role:          models.RoleUser,
		ActivityLogs:  []models.ActivityLog{},
		FileHistory:   []models.FileHistoryItem{},
		Notifications: []models.Notification{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := f.db.Collection("profiles").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test profile: %v", err)
	}
	return p
}

// CreateGroup inserts a group administered by admin and affiliates the
// admin's profile with it, as group creation does.
func (f *Fixtures) CreateGroup(ctx context.Context, name string, admin models.UserProfile, members ...string) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	g := models.Group{
		ID:                 primitive.NewObjectID().Hex(),
		Name:               name,
		NameCI:             text.Fold(name),
		AdminID:            admin.ID,
		Members:            append([]string{admin.ID}, members...),
		JoinRequests:       []string{},
		PendingInvitations: []string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := f.db.Collection("groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}

	f.affiliate(ctx, admin.ID, g.ID, models.RoleAdmin)
	for _, m := range members {
		f.affiliate(ctx, m, g.ID, models.RoleUser)
	}
	return g
}

// CreateHistory inserts a history entry for userID.
func (f *Fixtures) CreateHistory(ctx context.Context, userID, kind, fileName string, rows int) models.HistoryEntry {
	f.t.Helper()

	status := models.HistoryStatusUploaded
	if kind == models.HistoryDownload {
		status = models.HistoryStatusAnalyzed
	}
	e := models.HistoryEntry{
		ID:         primitive.NewObjectID(),
		Type:       kind,
		FileName:   fileName,
		UserID:     userID,
		Rows:       rows,
		Status:     status,
		UploadedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("history").InsertOne(ctx, e); err != nil {
		f.t.Fatalf("failed to create test history entry: %v", err)
	}
	return e
}

// GetProfile reloads a profile by id.
func (f *Fixtures) GetProfile(ctx context.Context, id string) models.UserProfile {
	f.t.Helper()

	var p models.UserProfile
	if err := f.db.Collection("profiles").FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		f.t.Fatalf("failed to load profile %s: %v", id, err)
	}
	return p
}

// GetGroup reloads a group by id.
func (f *Fixtures) GetGroup(ctx context.Context, id string) models.Group {
	f.t.Helper()

	var g models.Group
	if err := f.db.Collection("groups").FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		f.t.Fatalf("failed to load group %s: %v", id, err)
	}
	return g
}

func (f *Fixtures) affiliate(ctx context.Context, userID, groupID, role string) {
	f.t.Helper()

	_, err := f.db.Collection("profiles").UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"group_id": groupID, "role": role}},
	)
	if err != nil {
		f.t.Fatalf("failed to affiliate profile %s: %v", userID, err)
	}
}
