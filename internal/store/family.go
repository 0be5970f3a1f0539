package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/model"
)

type FamilyStore struct {
	db database.Querier
}

func NewFamilyStore(db database.Querier) *FamilyStore {
	return &FamilyStore{db: db}
}

// WithTx returns a copy of the store bound to tx.
func (s *FamilyStore) WithTx(tx *database.Tx) *FamilyStore {
	return &FamilyStore{db: tx}
}

func scanFamily(scanner interface{ Scan(...any) error }) (*model.FamilyGroup, error) {
	var f model.FamilyGroup
	err := scanner.Scan(&f.ID, &f.Name, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.FamilyMember, error) {
	var m model.FamilyMember
	err := scanner.Scan(&m.ID, &m.FamilyID, &m.UserID, &m.Email, &m.Role, &m.CreatedAt, &m.UpdatedAt, &m.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const familyCols = `id, name, created_by, created_at, updated_at`
const memberCols = `id, family_id, user_id, email, role, created_at, updated_at, updated_by`

func (s *FamilyStore) Create(ctx context.Context, name, createdBy string) (*model.FamilyGroup, error) {
	ts := now()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO family_groups (name, created_by, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING id`,
		name, createdBy, ts, ts,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *FamilyStore) GetByID(ctx context.Context, id int64) (*model.FamilyGroup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+familyCols+` FROM family_groups WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

// Lock reads the family row and, on dialects that support it, locks it until
// the surrounding transaction ends. Membership changes that must keep an
// admin take this lock first.
func (s *FamilyStore) Lock(ctx context.Context, id int64) (*model.FamilyGroup, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+familyCols+` FROM family_groups WHERE id = ?`+s.db.Dialect().ForUpdate(), id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock family: %w", err)
	}
	return f, nil
}

// ListForUser returns the families userID belongs to with the user's role in each.
func (s *FamilyStore) ListForUser(ctx context.Context, userID string) ([]model.FamilyWithRole, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.name, g.created_by, g.created_at, g.updated_at, m.role
		 FROM family_groups g
		 JOIN family_members m ON m.family_id = g.id
		 WHERE m.user_id = ?
		 ORDER BY g.name ASC, g.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list families: %w", err)
	}
	defer rows.Close()

	families := []model.FamilyWithRole{}
	for rows.Next() {
		var f model.FamilyWithRole
		if err := rows.Scan(&f.ID, &f.Name, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt, &f.Role); err != nil {
			return nil, fmt.Errorf("scan family: %w", err)
		}
		families = append(families, f)
	}
	return families, rows.Err()
}

func (s *FamilyStore) Update(ctx context.Context, id int64, name string) (*model.FamilyGroup, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE family_groups SET name = ?, updated_at = ? WHERE id = ?`,
		name, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update family: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *FamilyStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM family_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete family: %w", err)
	}
	return nil
}

// --- Member methods ---

func (s *FamilyStore) AddMember(ctx context.Context, familyID int64, userID, email string, role model.Role) (*model.FamilyMember, error) {
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO family_members (family_id, user_id, email, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		familyID, userID, normalizeEmail(email), string(role), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return s.GetMember(ctx, familyID, userID)
}

func (s *FamilyStore) GetMember(ctx context.Context, familyID int64, userID string) (*model.FamilyMember, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberCols+` FROM family_members WHERE family_id = ? AND user_id = ?`,
		familyID, userID,
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *FamilyStore) GetMemberByEmail(ctx context.Context, familyID int64, email string) (*model.FamilyMember, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberCols+` FROM family_members WHERE family_id = ? AND email = ?`,
		familyID, normalizeEmail(email),
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member by email: %w", err)
	}
	return m, nil
}

func (s *FamilyStore) ListMembers(ctx context.Context, familyID int64) ([]model.FamilyMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberCols+` FROM family_members WHERE family_id = ? ORDER BY created_at ASC, id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []model.FamilyMember{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// ListAdminIDs returns the user ids of every admin of the family.
func (s *FamilyStore) ListAdminIDs(ctx context.Context, familyID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM family_members WHERE family_id = ? AND role = ? ORDER BY id ASC`,
		familyID, string(model.RoleAdmin),
	)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *FamilyStore) CountAdmins(ctx context.Context, familyID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM family_members WHERE family_id = ? AND role = ?`,
		familyID, string(model.RoleAdmin),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

func (s *FamilyStore) UpdateMemberRole(ctx context.Context, familyID int64, userID string, role model.Role, updatedBy string) (*model.FamilyMember, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE family_members SET role = ?, updated_at = ?, updated_by = ?
		 WHERE family_id = ? AND user_id = ?`,
		string(role), now(), updatedBy, familyID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update member role: %w", err)
	}
	return s.GetMember(ctx, familyID, userID)
}

func (s *FamilyStore) RemoveMember(ctx context.Context, familyID int64, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM family_members WHERE family_id = ? AND user_id = ?`,
		familyID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}
