// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureProfiles(ctx, db); err != nil {
		problems = append(problems, "profiles: "+err.Error())
	}
	if err := ensureGroups(ctx, db); err != nil {
		problems = append(problems, "groups: "+err.Error())
	}
	if err := ensureHistory(ctx, db); err != nil {
		problems = append(problems, "history: "+err.Error())
	}
	if err := ensureAuditEvents(ctx, db); err != nil {
		problems = append(problems, "audit_events: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name    string `bson:"name"`
	Key     bson.D `bson:"key"`
	Unique  *bool  `bson:"unique,omitempty"`
	Partial bson.M `bson:"partialFilterExpression,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 { // E11000 duplicate key error index
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

type desiredIndex struct {
	model   mongo.IndexModel
	name    string
	unique  *bool
	partial bool
	sig     string
}

func describe(m mongo.IndexModel) desiredIndex {
	d := desiredIndex{model: m, sig: keySig(m.Keys.(bson.D))}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		d.unique = m.Options.Unique
		d.partial = m.Options.PartialFilterExpression != nil
	}
	return d
}

func (d desiredIndex) isUnique() bool { return d.unique != nil && *d.unique }

// matches reports whether ex can be reused for d as-is (ignoring the name).
func (d desiredIndex) matches(ex existingIndex) bool {
	return sameBoolPtr(d.unique, ex.Unique) && d.partial == (len(ex.Partial) > 0)
}

func listIndexes(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{} // sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

// recreate drops ex and creates d in its place.
func recreate(ctx context.Context, coll *mongo.Collection, ex existingIndex, d desiredIndex) error {
	if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
		zap.L().Warn("drop existing index failed",
			zap.String("collection", coll.Name()),
			zap.String("name", ex.Name),
			zap.String("keys", d.sig),
			zap.Error(err))
		return fmt.Errorf("%s(%s): drop failed: %v", coll.Name(), d.name, err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, d.model); err != nil {
		return createErr(coll, d, err)
	}
	return nil
}

func createErr(coll *mongo.Collection, d desiredIndex, err error) error {
	if isDuplicateKeyErr(err) && d.isUnique() {
		helper := ""
		if coll.Name() == "profiles" && strings.Contains(d.sig, "email:1") {
			helper = "; duplicates exist on profiles.email. Example finder:\n" +
				`db.profiles.aggregate([{ $match: { email: { $gt: "" } } }, { $group: { _id: "$email", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
		}
		return fmt.Errorf("%s(%s): cannot create unique index (duplicates present)%s", coll.Name(), d.name, helper)
	}
	return fmt.Errorf("%s(%s): %v", coll.Name(), d.name, err)
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		d := describe(m)

		start := time.Now()
		zap.L().Info("ensuring index",
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("keys", d.sig),
			zap.Bool("unique", d.isUnique()))

		existing := listIndexes(ctx, coll)

		if ex, ok := existing[d.sig]; ok {
			if d.matches(ex) && (d.name == "" || ex.Name == d.name) {
				zap.L().Info("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", d.sig),
					zap.String("took", time.Since(start).String()))
				continue
			}
			// Name or options differ: drop & recreate.
			if err := recreate(ctx, coll, ex, d); err != nil {
				errs = append(errs, err.Error())
				continue
			}
			zap.L().Info("index dropped and recreated",
				zap.String("collection", coll.Name()),
				zap.String("from", ex.Name),
				zap.String("name", d.name),
				zap.String("keys", d.sig),
				zap.Bool("unique", d.isUnique()),
				zap.String("took", time.Since(start).String()))
			continue
		}

		created, err := coll.Indexes().CreateOne(ctx, m)
		if err == nil {
			zap.L().Info("index ensured",
				zap.String("collection", coll.Name()),
				zap.String("name", d.name),
				zap.String("created_name", created),
				zap.String("keys", d.sig),
				zap.Bool("unique", d.isUnique()),
				zap.String("took", time.Since(start).String()))
			continue
		}

		if isOptionsConflictErr(err) {
			if ex, ok := listIndexes(ctx, coll)[d.sig]; ok {
				if d.matches(ex) {
					zap.L().Info("reusing existing index (post-conflict)",
						zap.String("collection", coll.Name()),
						zap.String("name", ex.Name),
						zap.String("keys", d.sig))
					continue
				}
				if rerr := recreate(ctx, coll, ex, d); rerr != nil {
					errs = append(errs, rerr.Error())
				}
				continue
			}
		}

		zap.L().Warn("index ensure failed",
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("keys", d.sig),
			zap.Bool("unique", d.isUnique()),
			zap.String("took", time.Since(start).String()),
			zap.Error(err))
		errs = append(errs, createErr(coll, d, err).Error())
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureProfiles(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("profiles")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// 1) Email is unique among profiles that have one. Profiles created
		//    from a token without an email claim are left out.
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_profiles_email").
				SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string", "$gt": ""}}),
		},

		// 2) Member listings for a group, sorted by name
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "name", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_profiles_group_name__id"),
		},
	})
}

// --- groups ---
func ensureGroups(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("groups")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// 1) Group owned by an admin
		{
			Keys:    bson.D{{Key: "admin_id", Value: 1}},
			Options: options.Index().SetName("idx_groups_admin"),
		},

		// 2) Groups a user belongs to (multikey)
		{
			Keys:    bson.D{{Key: "members", Value: 1}},
			Options: options.Index().SetName("idx_groups_members"),
		},

		// 3) Groups holding an invitation for an email, sorted by name
		{
			Keys:    bson.D{{Key: "pending_invitations", Value: 1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_groups_invitations_nameci__id"),
		},

		// 4) Browsing by name
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_groups_nameci__id"),
		},
	})
}

func ensureHistory(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("history")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Per-user newest-first listings and stats
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "uploaded_at", Value: -1}},
			Options: options.Index().SetName("idx_history_user_uploadedat"),
		},
		// System-wide newest-first listing
		{
			Keys:    bson.D{{Key: "uploaded_at", Value: -1}},
			Options: options.Index().SetName("idx_history_uploadedat"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("audit_events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_group_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_user_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "event_type", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_category_type_timestamp"),
		},
	})
}
