package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/shopassist/internal/model"
)

func TestInvitationCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "u-alice", "alice@example.com")
	f := createTestFamily(t, db, "Smiths", "u-alice", "alice@example.com")
	is := NewInvitationStore(db)

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	inv, err := is.Create(ctx, f.ID, "Erin@Example.com", model.RoleEditor, "u-alice", "hash", created, created.Add(7*24*time.Hour))
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if inv.Email != "erin@example.com" {
		t.Errorf("email = %q, want %q", inv.Email, "erin@example.com")
	}
	if inv.Status != model.InvitationPending {
		t.Errorf("status = %q, want %q", inv.Status, model.InvitationPending)
	}
	if !inv.ExpiresAt.Equal(created.Add(7 * 24 * time.Hour)) {
		t.Errorf("expires_at = %v, want %v", inv.ExpiresAt, created.Add(7*24*time.Hour))
	}
	if inv.RespondedAt != nil {
		t.Errorf("responded_at = %v, want nil", inv.RespondedAt)
	}
	if inv.TokenHash != "hash" {
		t.Errorf("token_hash = %q, want %q", inv.TokenHash, "hash")
	}

	missing, err := is.GetByID(ctx, inv.ID+100)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil, got %+v", missing)
	}
}

func TestInvitationResolveOnlyOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "u-alice", "alice@example.com")
	f := createTestFamily(t, db, "Smiths", "u-alice", "alice@example.com")
	is := NewInvitationStore(db)

	now := time.Now().UTC()
	inv, err := is.Create(ctx, f.ID, "erin@example.com", model.RoleViewer, "u-alice", "hash", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	ok, err := is.Resolve(ctx, inv.ID, model.InvitationRejected, now)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok {
		t.Fatal("expected first resolve to succeed")
	}

	ok, err = is.Resolve(ctx, inv.ID, model.InvitationAccepted, now)
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if ok {
		t.Fatal("expected second resolve to report false")
	}

	got, err := is.GetByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("get invitation: %v", err)
	}
	if got.Status != model.InvitationRejected {
		t.Errorf("status = %q, want %q", got.Status, model.InvitationRejected)
	}
	if got.RespondedAt == nil {
		t.Error("expected responded_at to be set")
	}
}

func TestInvitationListings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "u-alice", "alice@example.com")
	createTestUser(t, db, "u-bob", "bob@example.com")
	a := createTestFamily(t, db, "Alpha", "u-alice", "alice@example.com")
	b := createTestFamily(t, db, "Beta", "u-bob", "bob@example.com")
	is := NewInvitationStore(db)
	now := time.Now().UTC()
	exp := now.Add(time.Hour)

	first, err := is.Create(ctx, a.ID, "erin@example.com", model.RoleViewer, "u-alice", "h1", now, exp)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := is.Create(ctx, b.ID, "erin@example.com", model.RoleEditor, "u-bob", "h2", now, exp); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := is.Create(ctx, a.ID, "frank@example.com", model.RoleViewer, "u-alice", "h3", now, exp); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := is.Resolve(ctx, first.ID, model.InvitationCancelled, now); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	family, err := is.ListByFamily(ctx, a.ID)
	if err != nil {
		t.Fatalf("list by family: %v", err)
	}
	if len(family) != 2 {
		t.Errorf("family invitations = %d, want 2", len(family))
	}

	mine, err := is.ListPendingByEmail(ctx, "ERIN@example.com")
	if err != nil {
		t.Fatalf("list by email: %v", err)
	}
	if len(mine) != 1 || mine[0].FamilyID != b.ID {
		t.Errorf("pending for erin = %+v, want one in Beta", mine)
	}

	pending, err := is.ListPendingForFamilyEmail(ctx, a.ID, "erin@example.com")
	if err != nil {
		t.Fatalf("list pending for family email: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0 after cancel", len(pending))
	}
}

func TestInvitationStatusCheck(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "u-alice", "alice@example.com")
	f := createTestFamily(t, db, "Smiths", "u-alice", "alice@example.com")
	is := NewInvitationStore(db)
	now := time.Now().UTC()

	inv, err := is.Create(ctx, f.ID, "erin@example.com", model.RoleViewer, "u-alice", "h", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := is.Resolve(ctx, inv.ID, "lost", now); err == nil {
		t.Fatal("expected check constraint error for unknown status")
	}
}
