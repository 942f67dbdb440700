// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"

	"weechatorg/internal/models"
	"weechatorg/internal/submission"
)

// uniqueViolation is the PostgreSQL error code for a unique index
// conflict.
const uniqueViolation = "23505"

// SaveHook is called after a theme row has been written. Hooks run in
// registration order on the saving goroutine.
type SaveHook func(ctx context.Context) error

// ErrSaveHook wraps a hook failure. The write that triggered the hook is
// committed regardless.
var ErrSaveHook = errors.New("save hook failed")

// ThemeStore handles all theme database operations.
type ThemeStore struct {
	db *sql.DB

	mu    sync.RWMutex
	hooks []SaveHook
}

// NewThemeStore creates a new ThemeStore.
func NewThemeStore(db *sql.DB) *ThemeStore {
	return &ThemeStore{db: db}
}

// OnSave registers a hook to run after every successful Create, Update
// and SetVisible.
func (s *ThemeStore) OnSave(hook SaveHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// saved runs the registered hooks and returns the first error. The row is
// already committed when this runs.
func (s *ThemeStore) saved(ctx context.Context) error {
	s.mu.RLock()
	hooks := append([]SaveHook(nil), s.hooks...)
	s.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrSaveHook, err)
		}
	}
	return nil
}

// themeColumns lists the columns selected in theme queries.
const themeColumns = `id, visible, name, version, md5sum, description, approval,
	author, mail, added, updated`

// scanTheme scans a theme row from the result set.
func scanTheme(scanner interface{ Scan(...any) error }) (*models.Theme, error) {
	var t models.Theme
	err := scanner.Scan(
		&t.ID, &t.Visible, &t.Name, &t.Version, &t.MD5Sum, &t.Description, &t.Approval,
		&t.Author, &t.Mail, &t.Added, &t.Updated,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a new theme and returns it with the generated ID. A name
// that is already taken yields submission.ErrDuplicateName, even when a
// concurrent insert won the race after the caller's own lookup.
func (s *ThemeStore) Create(ctx context.Context, t *models.Theme) (*models.Theme, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO themes (visible, name, version, md5sum, description, approval,
			author, mail, added, updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+themeColumns,
		t.Visible, t.Name, t.Version, t.MD5Sum, t.Description, t.Approval,
		t.Author, t.Mail, t.Added, t.Updated,
	)
	created, err := scanTheme(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, submission.ErrDuplicateName
		}
		return nil, fmt.Errorf("create theme: %w", err)
	}
	return created, s.saved(ctx)
}

// Delete removes a theme row. Save hooks do not run: it only undoes a
// Create whose file never reached the disk.
func (s *ThemeStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM themes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete theme: %w", err)
	}
	return nil
}

// FindByID retrieves a theme by its ID. Returns nil if not found.
func (s *ThemeStore) FindByID(ctx context.Context, id int64) (*models.Theme, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+themeColumns+` FROM themes WHERE id = $1`, id)
	t, err := scanTheme(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find theme by id: %w", err)
	}
	return t, nil
}

// FindByName retrieves the oldest theme with the exact given name,
// pending or visible. Returns nil if not found.
func (s *ThemeStore) FindByName(ctx context.Context, name string) (*models.Theme, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+themeColumns+` FROM themes WHERE name = $1 ORDER BY id LIMIT 1
	`, name)
	t, err := scanTheme(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find theme by name: %w", err)
	}
	return t, nil
}

// Update rewrites a theme's metadata after a new revision of its file was
// accepted. The name and visibility are not changed.
func (s *ThemeStore) Update(ctx context.Context, t *models.Theme) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE themes
		SET version = $1, md5sum = $2, description = $3, author = $4, mail = $5, updated = $6
		WHERE id = $7
	`, t.Version, t.MD5Sum, t.Description, t.Author, t.Mail, t.Updated, t.ID)
	if err != nil {
		return fmt.Errorf("update theme: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("theme %d not found", t.ID)
	}
	return s.saved(ctx)
}

// SetVisible publishes or withdraws a theme and records the moderator's
// note.
func (s *ThemeStore) SetVisible(ctx context.Context, id int64, visible bool, approval string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE themes SET visible = $1, approval = $2 WHERE id = $3
	`, visible, approval, id)
	if err != nil {
		return fmt.Errorf("set theme visibility: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("theme %d not found", id)
	}
	return s.saved(ctx)
}

// List returns all themes, newest first.
func (s *ThemeStore) List(ctx context.Context) ([]models.Theme, error) {
	return s.query(ctx, "list themes", `
		SELECT `+themeColumns+` FROM themes ORDER BY added DESC, id DESC
	`)
}

// ListVisible returns published themes, newest first.
func (s *ThemeStore) ListVisible(ctx context.Context) ([]models.Theme, error) {
	return s.query(ctx, "list visible themes", `
		SELECT `+themeColumns+` FROM themes WHERE visible = TRUE ORDER BY added DESC, id DESC
	`)
}

// ListVisibleByName returns published themes sorted by name, for the
// update form's theme choice list.
func (s *ThemeStore) ListVisibleByName(ctx context.Context) ([]models.Theme, error) {
	return s.query(ctx, "list visible themes by name", `
		SELECT `+themeColumns+` FROM themes WHERE visible = TRUE ORDER BY name, id
	`)
}

// ListVisibleByID returns published themes in insertion order. The export
// relies on this order being stable.
func (s *ThemeStore) ListVisibleByID(ctx context.Context) ([]models.Theme, error) {
	return s.query(ctx, "list visible themes by id", `
		SELECT `+themeColumns+` FROM themes WHERE visible = TRUE ORDER BY id
	`)
}

// Choice is one entry of the update form's theme selector.
type Choice struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Choices returns the published themes as selector entries labelled
// "name (version)".
func (s *ThemeStore) Choices(ctx context.Context) ([]Choice, error) {
	themes, err := s.ListVisibleByName(ctx)
	if err != nil {
		return nil, err
	}
	choices := make([]Choice, 0, len(themes))
	for _, t := range themes {
		choices = append(choices, Choice{ID: t.ID, Label: fmt.Sprintf("%s (%s)", t.Name, t.Version)})
	}
	return choices, nil
}

func (s *ThemeStore) query(ctx context.Context, op, query string, args ...any) ([]models.Theme, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var items []models.Theme
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, fmt.Errorf("scan theme: %w", err)
		}
		items = append(items, *t)
	}
	return items, rows.Err()
}
