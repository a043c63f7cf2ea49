// internal/app/store/history/historystore.go
package historystore

import (
	"context"
	"math"
	"time"

	"github.com/excelanalytics/excelhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultLimit caps list queries when the caller does not pass a limit.
const DefaultLimit = 200

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("history")}
}

// Create inserts e, assigning an ID and an upload time when missing.
func (s *Store) Create(ctx context.Context, e models.HistoryEntry) (models.HistoryEntry, error) {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.UploadedAt.IsZero() {
		e.UploadedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, e); err != nil {
		return models.HistoryEntry{}, err
	}
	return e, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.HistoryEntry, error) {
	var e models.HistoryEntry
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return models.HistoryEntry{}, err
	}
	return e, nil
}

// ListByUsers returns the newest entries owned by any of userIDs.
func (s *Store) ListByUsers(ctx context.Context, userIDs []string, limit int64) ([]models.HistoryEntry, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{"user_id": bson.M{"$in": userIDs}}, limit)
}

// ListAll returns the newest entries across every user.
func (s *Store) ListAll(ctx context.Context, limit int64) ([]models.HistoryEntry, error) {
	return s.find(ctx, bson.M{}, limit)
}

func (s *Store) find(ctx context.Context, filter bson.M, limit int64) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "uploaded_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.HistoryEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes an entry by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Stats summarizes userID's uploads: file count plus total, average and
// largest row counts.
func (s *Store) Stats(ctx context.Context, userID string) (models.UploadStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID, "type": models.HistoryUpload}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"files": bson.M{"$sum": 1},
			"rows":  bson.M{"$sum": "$rows"},
			"avg":   bson.M{"$avg": "$rows"},
			"max":   bson.M{"$max": "$rows"},
		}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return models.UploadStats{}, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Files int     `bson:"files"`
		Rows  int     `bson:"rows"`
		Avg   float64 `bson:"avg"`
		Max   int     `bson:"max"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return models.UploadStats{}, err
	}
	if len(rows) == 0 {
		return models.UploadStats{}, nil
	}
	r := rows[0]
	return models.UploadStats{
		TotalFiles:   r.Files,
		AnalyzedRows: r.Rows,
		AverageValue: int(math.Round(r.Avg)),
		MaxValue:     r.Max,
	}, nil
}
