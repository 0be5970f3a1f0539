package store

import (
	"context"
	"testing"

	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/model"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *database.DB, id, email string) *model.User {
	t.Helper()
	u, err := NewUserStore(db).Upsert(context.Background(), id, email, "")
	if err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return u
}

func createTestFamily(t *testing.T, db *database.DB, name, adminID, adminEmail string) *model.FamilyGroup {
	t.Helper()
	ctx := context.Background()
	fs := NewFamilyStore(db)
	f, err := fs.Create(ctx, name, adminID)
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	if _, err := fs.AddMember(ctx, f.ID, adminID, adminEmail, model.RoleAdmin); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	return f
}
