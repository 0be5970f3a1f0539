// Command shopassist-migrate applies or inspects database migrations.
//
//	shopassist-migrate [up|down|status|version]
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dukerupert/shopassist/internal/config"
	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/logging"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	logging.Setup(os.Getenv("SHOPASSIST_LOG_LEVEL"), "text")

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	driver, dsn, err := config.LoadDatabase()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.Open(driver, dsn)
	if err != nil {
		slog.Error("failed to open database", "driver", driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := run(db, cmd); err != nil {
		slog.Error("migrate failed", "command", cmd, "error", err)
		db.Close()
		os.Exit(1)
	}
}

func run(db *database.DB, cmd string) error {
	switch cmd {
	case "up":
		return database.Migrate(db)
	case "down":
		return database.MigrateDown(db)
	case "status":
		return database.MigrationStatus(db)
	case "version":
		v, err := database.SchemaVersion(db)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	default:
		return fmt.Errorf("unknown command %q (want up, down, status or version)", cmd)
	}
}
