package database

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Development release versions. Theme submissions must declare one of
// these (devel without its build suffix).
const (
	seedStableVersion = "4.5.1"
	seedDevelVersion  = "4.6.0-dev"
)

// Seed populates the database with initial development data: the stable
// and devel release records the theme validator depends on. Existing rows
// are left untouched.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM releases WHERE version IN ('stable', 'devel')`).Scan(&count); err != nil {
		return fmt.Errorf("seed check releases: %w", err)
	}

	if count == 2 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	_, err := db.Exec(`
		INSERT INTO releases (version, description)
		VALUES ('stable', $1), ('devel', $2)
		ON CONFLICT (version) DO NOTHING
	`, seedStableVersion, seedDevelVersion)
	if err != nil {
		return fmt.Errorf("seed insert releases: %w", err)
	}

	slog.Info("database seeded with release records",
		"stable", seedStableVersion,
		"devel", seedDevelVersion,
	)
	return nil
}
