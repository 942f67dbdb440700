// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package themes implements the theme submission workflow: accepting new
// themes into the moderation queue, accepting revisions of existing ones,
// and publishing or withdrawing them. It keeps the theme files under the
// files root in step with the database rows.
package themes

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"weechatorg/internal/fileutil"
	"weechatorg/internal/models"
	"weechatorg/internal/store"
	"weechatorg/internal/submission"
	"weechatorg/internal/themefile"
)

// ErrNotFound is returned by moderation actions on an unknown theme.
var ErrNotFound = errors.New("theme not found")

// Store is the persistence the service needs. *store.ThemeStore
// satisfies it.
type Store interface {
	submission.ThemeLookup
	Create(ctx context.Context, t *models.Theme) (*models.Theme, error)
	Update(ctx context.Context, t *models.Theme) error
	SetVisible(ctx context.Context, id int64, visible bool, approval string) error
	Delete(ctx context.Context, id int64) error
}

// Service coordinates validation, theme files and theme rows.
type Service struct {
	store     Store
	validator *submission.Validator
	root      string
	now       func() time.Time
}

// New creates a Service writing theme files under root.
func New(themes Store, validator *submission.Validator, root string) *Service {
	return &Service{store: themes, validator: validator, root: root, now: time.Now}
}

// SubmitInput is a new theme submission.
type SubmitInput struct {
	File        io.ReadSeeker
	Size        int64
	Description string
	Author      string
	Mail        string
	Comment     string
}

// UpdateInput is a new revision of an existing theme. The description is
// kept from the stored theme.
type UpdateInput struct {
	File    io.ReadSeeker
	Size    int64
	Author  string
	Mail    string
	Comment string
}

// Submit validates a new theme and queues it for moderation. The row is
// created first so the unique name index decides between concurrent
// submissions; only the winner writes the pending file.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Theme, error) {
	if err := checkForm(in.Description, in.Author, in.Mail, in.Comment); err != nil {
		return nil, err
	}
	props, err := s.validator.ValidateNew(ctx, in.File, in.Size)
	if err != nil {
		return nil, err
	}
	data, err := readFile(in.File)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	created, err := s.store.Create(ctx, &models.Theme{
		Visible:     false,
		Name:        props[themefile.KeyName],
		Version:     props[themefile.KeyWeechat],
		MD5Sum:      checksum(data),
		Description: in.Description,
		Author:      in.Author,
		Mail:        in.Mail,
		Added:       now,
		Updated:     now,
	})
	if err != nil && !errors.Is(err, store.ErrSaveHook) {
		return nil, err
	}
	hookErr := err

	path := created.FilePath(s.root)
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		if delErr := s.store.Delete(ctx, created.ID); delErr != nil {
			slog.Error("remove theme row without file", "id", created.ID, "error", delErr)
		}
		return nil, fmt.Errorf("write theme file: %w", err)
	}

	slog.Info("theme submitted",
		"id", created.ID,
		"name", created.Name,
		"version", created.Version,
		"author", created.Author,
		"comment", in.Comment,
	)
	return created, hookErr
}

// Update validates a new revision of published theme id and replaces its
// file in place. Pending themes cannot be updated.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*models.Theme, error) {
	if err := checkForm("", in.Author, in.Mail, in.Comment); err != nil {
		return nil, err
	}
	props, err := s.validator.ValidateUpdate(ctx, id, in.File, in.Size)
	if err != nil {
		return nil, err
	}
	data, err := readFile(in.File)
	if err != nil {
		return nil, err
	}

	theme, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if theme == nil || !theme.Visible {
		return nil, submission.ErrTargetNotFound
	}

	theme.Version = props[themefile.KeyWeechat]
	theme.MD5Sum = checksum(data)
	theme.Author = in.Author
	theme.Mail = in.Mail
	theme.Updated = s.timestamp()
	if theme.Updated.Before(theme.Added) {
		theme.Updated = theme.Added
	}

	path := theme.FilePath(s.root)
	previous, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read current theme file: %w", err)
	}
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write theme file: %w", err)
	}

	if err := s.store.Update(ctx, theme); err != nil {
		if errors.Is(err, store.ErrSaveHook) {
			return theme, err
		}
		s.restore(path, previous)
		return nil, err
	}

	slog.Info("theme updated",
		"id", theme.ID,
		"name", theme.Name,
		"version", theme.Version,
		"comment", in.Comment,
	)
	return theme, nil
}

// Approve publishes theme id, moving its file out of the pending
// directory. note is stored as the approval note.
func (s *Service) Approve(ctx context.Context, id int64, note string) (*models.Theme, error) {
	return s.setVisible(ctx, id, true, note)
}

// Unpublish withdraws theme id back into the moderation queue.
func (s *Service) Unpublish(ctx context.Context, id int64, note string) (*models.Theme, error) {
	return s.setVisible(ctx, id, false, note)
}

func (s *Service) setVisible(ctx context.Context, id int64, visible bool, note string) (*models.Theme, error) {
	if utf8.RuneCountInString(note) > models.MaxThemeApprovalLen {
		return nil, &submission.ValidationError{Code: "invalid_field", Message: "Approval note is too long."}
	}

	theme, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if theme == nil {
		return nil, ErrNotFound
	}

	from := theme.FilePath(s.root)
	theme.Visible = visible
	theme.Approval = note
	to := theme.FilePath(s.root)

	if err := moveFile(from, to); err != nil {
		return nil, err
	}

	if err := s.store.SetVisible(ctx, id, visible, note); err != nil {
		if errors.Is(err, store.ErrSaveHook) {
			return theme, err
		}
		if mvErr := moveFile(to, from); mvErr != nil {
			slog.Error("restore theme file after failed save", "theme", theme.Name, "error", mvErr)
		}
		return nil, err
	}

	slog.Info("theme visibility changed", "id", theme.ID, "theme", theme.String(), "visible", visible)
	return theme, nil
}

// timestamp is the current time truncated to what the feeds publish.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// restore puts back the file content that was replaced, or removes the
// file if there was none.
func (s *Service) restore(path string, previous []byte) {
	var err error
	if previous == nil {
		err = os.Remove(path)
	} else {
		err = fileutil.WriteAtomic(path, previous, 0o644)
	}
	if err != nil {
		slog.Error("restore theme file after failed save", "path", path, "error", err)
	}
}

// moveFile renames from to to. A move that already happened (only the
// destination exists) is not an error.
func moveFile(from, to string) error {
	if from == to {
		return nil
	}
	err := os.Rename(from, to)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		if _, statErr := os.Stat(to); statErr == nil {
			return nil
		}
		return fmt.Errorf("theme file missing: %w", err)
	}
	return fmt.Errorf("move theme file: %w", err)
}

func readFile(file io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, submission.MaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("read theme file: %w", err)
	}
	return data, nil
}

func checksum(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
