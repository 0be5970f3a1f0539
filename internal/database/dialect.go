package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect captures the differences between the supported SQL backends.
type Dialect interface {
	// Name is the short name used for the migrations subdirectory.
	Name() string
	DriverName() string
	GooseDialect() string
	DSN(dsn string) string
	Configure(db *sql.DB, dsn string)
	Rebind(query string) string
	// ForUpdate is appended to a SELECT that must lock the selected rows
	// for the rest of the transaction.
	ForUpdate() string
}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3", "":
		return sqliteDialect{}, nil
	case "postgres", "postgresql":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string         { return "sqlite" }
func (sqliteDialect) DriverName() string   { return "sqlite" }
func (sqliteDialect) GooseDialect() string { return "sqlite3" }
func (sqliteDialect) ForUpdate() string    { return "" }

func (sqliteDialect) Rebind(query string) string { return query }

// DSN enables foreign keys, a busy timeout and WAL, and makes every
// transaction take the write lock up front (BEGIN IMMEDIATE).
func (sqliteDialect) DSN(dsn string) string {
	params := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate&_time_format=sqlite"
	if !isMemory(dsn) {
		params += "&_pragma=journal_mode(WAL)"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + params
}

func (sqliteDialect) Configure(db *sql.DB, dsn string) {
	// Each connection to :memory: is a separate database.
	if isMemory(dsn) {
		db.SetMaxOpenConns(1)
	}
}

func isMemory(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

type postgresDialect struct{}

func (postgresDialect) Name() string         { return "postgres" }
func (postgresDialect) DriverName() string   { return "postgres" }
func (postgresDialect) GooseDialect() string { return "postgres" }
func (postgresDialect) ForUpdate() string    { return " FOR UPDATE" }
func (postgresDialect) DSN(dsn string) string {
	return dsn
}

func (postgresDialect) Rebind(query string) string { return rebind(query) }

func (postgresDialect) Configure(db *sql.DB, _ string) {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
}
