// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package submission validates uploaded theme files before they are
// stored. Checks run cheapest first and stop at the first failure: size,
// header properties and their lengths, host version compatibility, then
// the identity rules of the new or update flow.
package submission

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"weechatorg/internal/models"
	"weechatorg/internal/themefile"
)

// MaxFileSize is the largest accepted theme file (512 KiB).
const MaxFileSize = 512 * 1024

// shortNamePattern matches the part of a theme name before ".theme".
var shortNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ThemeLookup is the read access the validator needs to existing themes.
// FindByID and FindByName return (nil, nil) when nothing matches.
type ThemeLookup interface {
	FindByID(ctx context.Context, id int64) (*models.Theme, error)
	FindByName(ctx context.Context, name string) (*models.Theme, error)
}

// ReleaseLookup resolves a release record by its version key. It returns
// (nil, nil) when the release does not exist.
type ReleaseLookup interface {
	FindByVersion(ctx context.Context, version string) (*models.Release, error)
}

// Validator checks theme submissions against stored themes and releases.
type Validator struct {
	themes   ThemeLookup
	releases ReleaseLookup
}

// NewValidator creates a Validator backed by the given lookups.
func NewValidator(themes ThemeLookup, releases ReleaseLookup) *Validator {
	return &Validator{themes: themes, releases: releases}
}

// ValidateNew checks a file submitted as a new theme. On success it
// returns the file's properties and leaves file positioned at its start.
func (v *Validator) ValidateNew(ctx context.Context, file io.ReadSeeker, size int64) (map[string]string, error) {
	props, err := v.validateCommon(ctx, file, size)
	if err != nil {
		return nil, err
	}

	name := props[themefile.KeyName]
	if !strings.HasSuffix(name, models.ThemeSuffix) {
		return nil, ErrInvalidNameSuffix
	}

	existing, err := v.themes.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check duplicate theme name: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateName
	}

	if !shortNamePattern.MatchString(strings.TrimSuffix(name, models.ThemeSuffix)) {
		return nil, ErrInvalidNameCharacters
	}

	return props, rewind(file)
}

// ValidateUpdate checks a file submitted as a new revision of theme id.
// Only published themes can be updated, and an update may not rename the
// theme.
func (v *Validator) ValidateUpdate(ctx context.Context, id int64, file io.ReadSeeker, size int64) (map[string]string, error) {
	props, err := v.validateCommon(ctx, file, size)
	if err != nil {
		return nil, err
	}

	target, err := v.themes.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find update target: %w", err)
	}
	if target == nil || !target.Visible {
		return nil, ErrTargetNotFound
	}
	if props[themefile.KeyName] != target.Name {
		return nil, ErrNameMismatch
	}

	return props, rewind(file)
}

// validateCommon runs the checks shared by both flows.
func (v *Validator) validateCommon(ctx context.Context, file io.ReadSeeker, size int64) (map[string]string, error) {
	if size > MaxFileSize {
		return nil, ErrTooLarge
	}

	// Read one byte past the limit so a lying size is still caught.
	raw, err := io.ReadAll(io.LimitReader(file, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read theme file: %w", err)
	}
	if len(raw) > MaxFileSize {
		return nil, ErrTooLarge
	}

	props := themefile.Properties(raw)
	name, hasName := props[themefile.KeyName]
	version, hasVersion := props[themefile.KeyWeechat]
	if !hasName || !hasVersion {
		return nil, ErrMissingProperty
	}
	if utf8.RuneCountInString(name) > models.MaxThemeNameLen ||
		utf8.RuneCountInString(version) > models.MaxThemeVersionLen {
		return nil, ErrPropertyTooLong
	}

	accepted, err := v.acceptedVersions(ctx)
	if err != nil {
		return nil, err
	}
	if !accepted[version] {
		return nil, ErrIncompatibleVersion
	}

	return props, nil
}

// acceptedVersions returns the host versions a theme may declare: the
// stable release and the devel release without its build suffix.
func (v *Validator) acceptedVersions(ctx context.Context) (map[string]bool, error) {
	stable, err := v.release(ctx, models.ReleaseStable)
	if err != nil {
		return nil, err
	}
	devel, err := v.release(ctx, models.ReleaseDevel)
	if err != nil {
		return nil, err
	}
	return map[string]bool{
		stable.Description:      true,
		devel.BaseDescription(): true,
	}, nil
}

func (v *Validator) release(ctx context.Context, version string) (*models.Release, error) {
	r, err := v.releases.FindByVersion(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("find %s release: %w", version, err)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrReleaseMissing, version)
	}
	return r, nil
}

func rewind(file io.Seeker) error {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind theme file: %w", err)
	}
	return nil
}
