package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRebind(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`SELECT 1`, `SELECT 1`},
		{`SELECT * FROM t WHERE a = ? AND b = ?`, `SELECT * FROM t WHERE a = $1 AND b = $2`},
		{`SELECT '?' FROM t WHERE a = ?`, `SELECT '?' FROM t WHERE a = $1`},
		{`INSERT INTO t (a, b, c) VALUES (?, ?, ?)`, `INSERT INTO t (a, b, c) VALUES ($1, $2, $3)`},
	}
	for _, tt := range tests {
		if got := rebind(tt.in); got != tt.want {
			t.Errorf("rebind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver string
		name   string
	}{
		{"", "sqlite"},
		{"sqlite", "sqlite"},
		{"SQLite3", "sqlite"},
		{"postgres", "postgres"},
		{"postgresql", "postgres"},
	}
	for _, tt := range tests {
		d, err := DialectFor(tt.driver)
		if err != nil {
			t.Fatalf("DialectFor(%q): %v", tt.driver, err)
		}
		if d.Name() != tt.name {
			t.Errorf("DialectFor(%q).Name() = %q, want %q", tt.driver, d.Name(), tt.name)
		}
	}

	if _, err := DialectFor("mysql"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestSQLiteDSN(t *testing.T) {
	d := sqliteDialect{}

	mem := d.DSN(":memory:")
	if mem != ":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate&_time_format=sqlite" {
		t.Errorf("memory dsn = %q", mem)
	}

	file := d.DSN("data/app.db?cache=shared")
	want := "data/app.db?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate&_time_format=sqlite&_pragma=journal_mode(WAL)"
	if file != want {
		t.Errorf("file dsn = %q, want %q", file, want)
	}
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)

	version, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}

	tables := []string{
		"users", "family_groups", "family_members", "family_invitations",
		"shared_lists", "shared_list_items", "notifications", "push_subscriptions",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRowContext(context.Background(),
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateDown(db); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	version, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != 0 {
		t.Errorf("version = %d, want 0", version)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`INSERT INTO family_members (family_id, user_id, email, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		999, "nobody", "nobody@example.com", "admin", time.Now().UTC(), time.Now().UTC(),
	)
	if err == nil {
		t.Fatal("expected foreign key error, got nil")
	}
}

func TestUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insert := `INSERT INTO users (id, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insert, "u1", "a@example.com", "A", now, now); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	_, err := db.ExecContext(ctx, insert, "u2", "a@example.com", "B", now, now)
	if err == nil {
		t.Fatal("expected unique violation, got nil")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}
	if IsTransient(err) {
		t.Errorf("IsTransient(%v) = true, want false", err)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(context.DeadlineExceeded) {
		t.Error("deadline exceeded should be transient")
	}
	if IsTransient(errors.New("boom")) {
		t.Error("plain error should not be transient")
	}
	if IsTransient(nil) {
		t.Error("nil should not be transient")
	}
}

func TestWithTxRollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			"u1", "a@example.com", "A", now, now,
		); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 after rollback", count)
	}
}

func TestWithTxCommit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			"u1", "a@example.com", "A", now, now,
		)
		return err
	})
	if err != nil {
		t.Fatalf("with tx: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
