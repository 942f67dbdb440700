// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"weechatorg/internal/models"
)

// ReleaseStore reads WeeChat release records.
type ReleaseStore struct {
	db *sql.DB
}

// NewReleaseStore creates a new ReleaseStore.
func NewReleaseStore(db *sql.DB) *ReleaseStore {
	return &ReleaseStore{db: db}
}

// FindByVersion retrieves a release by its version key ("stable",
// "devel", "4.5.1", ...). Returns nil if not found.
func (s *ReleaseStore) FindByVersion(ctx context.Context, version string) (*models.Release, error) {
	var r models.Release
	err := s.db.QueryRowContext(ctx, `
		SELECT version, description, date FROM releases WHERE version = $1
	`, version).Scan(&r.Version, &r.Description, &r.Date)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find release %q: %w", version, err)
	}
	return &r, nil
}

// List returns numbered releases, newest first. The devel pseudo-release
// is excluded.
func (s *ReleaseStore) List(ctx context.Context) ([]models.Release, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, description, date FROM releases
		WHERE version <> 'devel'
		ORDER BY date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	defer rows.Close()

	var items []models.Release
	for rows.Next() {
		var r models.Release
		if err := rows.Scan(&r.Version, &r.Description, &r.Date); err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// Upsert creates or replaces a release record.
func (s *ReleaseStore) Upsert(ctx context.Context, r *models.Release) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO releases (version, description, date)
		VALUES ($1, $2, $3)
		ON CONFLICT (version) DO UPDATE SET description = EXCLUDED.description, date = EXCLUDED.date
	`, r.Version, r.Description, r.Date)
	if err != nil {
		return fmt.Errorf("upsert release %q: %w", r.Version, err)
	}
	return nil
}
