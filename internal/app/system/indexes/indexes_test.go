package indexes_test

import (
	"context"
	"testing"

	"github.com/excelanalytics/excelhub/internal/app/system/indexes"
	"github.com/excelanalytics/excelhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func indexNames(t *testing.T, ctx context.Context, db *mongo.Database, coll string) map[string]bool {
	t.Helper()
	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes on %s failed: %v", coll, err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			t.Fatalf("Decode index failed: %v", err)
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	expected := map[string][]string{
		"profiles": {"uniq_profiles_email", "idx_profiles_group_name__id"},
		"groups": {
			"idx_groups_admin",
			"idx_groups_members",
			"idx_groups_invitations_nameci__id",
			"idx_groups_nameci__id",
		},
		"history": {"idx_history_user_uploadedat", "idx_history_uploadedat"},
		"audit_events": {
			"idx_audit_timestamp",
			"idx_audit_group_timestamp",
			"idx_audit_user_timestamp",
			"idx_audit_category_type_timestamp",
		},
	}
	for coll, want := range expected {
		names := indexNames(t, ctx, db, coll)
		for _, name := range want {
			if !names[name] {
				t.Errorf("expected index %q on %s", name, coll)
			}
		}
	}
}

func TestEnsureAll_RenamesMisnamedIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := db.Collection("groups").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "admin_id", Value: 1}},
		Options: options.Index().SetName("admin_id_legacy"),
	})
	if err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names := indexNames(t, ctx, db, "groups")
	if names["admin_id_legacy"] {
		t.Error("legacy index name still present")
	}
	if !names["idx_groups_admin"] {
		t.Error("expected idx_groups_admin after reconcile")
	}
}

func TestEnsureAll_ProfileEmailUniqueWhenPresent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	c := db.Collection("profiles")

	if _, err := c.InsertOne(ctx, bson.M{"_id": "u1", "email": "a@x.com"}); err != nil {
		t.Fatalf("Insert u1 failed: %v", err)
	}
	if _, err := c.InsertOne(ctx, bson.M{"_id": "u2", "email": "a@x.com"}); err == nil {
		t.Error("expected duplicate key error for profiles.email")
	}

	// Profiles without an email are outside the partial index.
	if _, err := c.InsertOne(ctx, bson.M{"_id": "u3", "email": ""}); err != nil {
		t.Fatalf("Insert u3 failed: %v", err)
	}
	if _, err := c.InsertOne(ctx, bson.M{"_id": "u4", "email": ""}); err != nil {
		t.Errorf("second empty email rejected: %v", err)
	}
	if _, err := c.InsertOne(ctx, bson.M{"_id": "u5"}); err != nil {
		t.Errorf("missing email rejected: %v", err)
	}
}

func TestEnsureAll_ReportsDuplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := db.Collection("profiles")
	if _, err := c.InsertMany(ctx, []any{
		bson.M{"_id": "u1", "email": "dup@x.com"},
		bson.M{"_id": "u2", "email": "dup@x.com"},
	}); err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}

	if err := indexes.EnsureAll(ctx, db); err == nil {
		t.Error("expected EnsureAll to fail with duplicate emails present")
	}
}
