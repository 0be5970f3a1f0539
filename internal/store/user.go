package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/model"
)

type UserStore struct {
	db database.Querier
}

func NewUserStore(db database.Querier) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) WithTx(tx *database.Tx) *UserStore {
	return &UserStore{db: tx}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, email, name, created_at, updated_at`

// Upsert creates the profile for an auth-provider user or refreshes its email.
// An empty name keeps the stored one. If another subject still holds the
// email, that row is stale (the provider re-issued the account) and its
// address is released first. Runs in its own transaction unless the store is
// already bound to one.
func (s *UserStore) Upsert(ctx context.Context, id, email, name string) (*model.User, error) {
	if db, ok := s.db.(*database.DB); ok {
		var u *model.User
		err := db.WithTx(ctx, func(tx *database.Tx) error {
			var err error
			u, err = s.WithTx(tx).Upsert(ctx, id, email, name)
			return err
		})
		return u, err
	}

	email = normalizeEmail(email)
	ts := now()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = id || '@released.invalid', updated_at = ?
		 WHERE email = ? AND id <> ?`,
		ts, email, id,
	); err != nil {
		return nil, fmt.Errorf("release stale email: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   email = excluded.email,
		   name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE users.name END,
		   updated_at = excluded.updated_at`,
		id, email, strings.TrimSpace(name), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, normalizeEmail(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
