package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/model"
)

type InvitationStore struct {
	db database.Querier
}

func NewInvitationStore(db database.Querier) *InvitationStore {
	return &InvitationStore{db: db}
}

// WithTx returns a copy of the store bound to tx.
func (s *InvitationStore) WithTx(tx *database.Tx) *InvitationStore {
	return &InvitationStore{db: tx}
}

func scanInvitation(scanner interface{ Scan(...any) error }) (*model.FamilyInvitation, error) {
	var inv model.FamilyInvitation
	err := scanner.Scan(
		&inv.ID, &inv.FamilyID, &inv.Email, &inv.Role, &inv.Status, &inv.InvitedBy,
		&inv.TokenHash, &inv.CreatedAt, &inv.ExpiresAt, &inv.RespondedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

const invitationCols = `id, family_id, email, role, status, invited_by, token_hash, created_at, expires_at, responded_at`

func (s *InvitationStore) Create(ctx context.Context, familyID int64, email string, role model.Role, invitedBy, tokenHash string, createdAt, expiresAt time.Time) (*model.FamilyInvitation, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO family_invitations (family_id, email, role, status, invited_by, token_hash, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		familyID, normalizeEmail(email), string(role), string(model.InvitationPending), invitedBy, tokenHash,
		createdAt.UTC(), expiresAt.UTC(),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *InvitationStore) GetByID(ctx context.Context, id int64) (*model.FamilyInvitation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invitationCols+` FROM family_invitations WHERE id = ?`, id)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}

// ListPendingForFamilyEmail returns pending invitations for email in a family,
// expired or not.
func (s *InvitationStore) ListPendingForFamilyEmail(ctx context.Context, familyID int64, email string) ([]model.FamilyInvitation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invitationCols+` FROM family_invitations
		 WHERE family_id = ? AND email = ? AND status = ?
		 ORDER BY created_at DESC, id DESC`,
		familyID, normalizeEmail(email), string(model.InvitationPending),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	defer rows.Close()
	return collectInvitations(rows)
}

func (s *InvitationStore) ListByFamily(ctx context.Context, familyID int64) ([]model.FamilyInvitation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invitationCols+` FROM family_invitations WHERE family_id = ? ORDER BY created_at DESC, id DESC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list family invitations: %w", err)
	}
	defer rows.Close()
	return collectInvitations(rows)
}

// ListPendingByEmail returns every pending invitation addressed to email.
func (s *InvitationStore) ListPendingByEmail(ctx context.Context, email string) ([]model.FamilyInvitation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invitationCols+` FROM family_invitations WHERE email = ? AND status = ? ORDER BY created_at DESC, id DESC`,
		normalizeEmail(email), string(model.InvitationPending),
	)
	if err != nil {
		return nil, fmt.Errorf("list invitations by email: %w", err)
	}
	defer rows.Close()
	return collectInvitations(rows)
}

// Resolve moves a pending invitation to status. It reports false when the
// invitation was no longer pending, so two concurrent responses cannot both
// succeed.
func (s *InvitationStore) Resolve(ctx context.Context, id int64, status model.InvitationStatus, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE family_invitations SET status = ?, responded_at = ? WHERE id = ? AND status = ?`,
		string(status), at.UTC(), id, string(model.InvitationPending),
	)
	if err != nil {
		return false, fmt.Errorf("resolve invitation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func collectInvitations(rows *sql.Rows) ([]model.FamilyInvitation, error) {
	invitations := []model.FamilyInvitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invitations = append(invitations, *inv)
	}
	return invitations, rows.Err()
}
