package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// DB wraps *sql.DB with the dialect used to rebind placeholders.
type DB struct {
	*sql.DB
	dialect Dialect
}

// Open opens a database for the given driver ("sqlite" or "postgres") and DSN.
// For SQLite the DSN is a file path or ":memory:". Migrations are not run here;
// call Migrate explicitly.
func Open(driver, dsn string) (*DB, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(dialect.DriverName(), dialect.DSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	dialect.Configure(sqlDB, dsn)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{DB: sqlDB, dialect: dialect}, nil
}

// Dialect returns the dialect of the connection.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Migrate applies all pending migrations for the connection's dialect.
func Migrate(db *DB) error {
	if err := setupGoose(db); err != nil {
		return err
	}
	if err := goose.Up(db.DB, migrationsDir(db)); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func MigrateDown(db *DB) error {
	if err := setupGoose(db); err != nil {
		return err
	}
	if err := goose.Down(db.DB, migrationsDir(db)); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// MigrationStatus logs the applied state of every migration through goose's logger.
func MigrationStatus(db *DB) error {
	if err := setupGoose(db); err != nil {
		return err
	}
	if err := goose.Status(db.DB, migrationsDir(db)); err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	return nil
}

// SchemaVersion returns the current goose version of the database.
func SchemaVersion(db *DB) (int64, error) {
	if err := setupGoose(db); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersion(db.DB)
	if err != nil {
		return 0, fmt.Errorf("goose version: %w", err)
	}
	return v, nil
}

func setupGoose(db *DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(db.dialect.GooseDialect()); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}

func migrationsDir(db *DB) string {
	return "migrations/" + db.dialect.Name()
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func (d *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx, dialect: d.dialect}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $1, $2, ... for dialects that need it.
// Placeholders inside single-quoted literals are left alone.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			fmt.Fprintf(&b, "$%d", n)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
