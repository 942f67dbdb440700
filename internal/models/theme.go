// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Field length limits for theme records. They match the column sizes in
// the themes table.
const (
	MaxThemeNameLen     = 64
	MaxThemeVersionLen  = 32
	MaxThemeMD5SumLen   = 256
	MaxThemeDescLen     = 1024
	MaxThemeApprovalLen = 1024
	MaxThemeAuthorLen   = 256
	MaxThemeMailLen     = 256
)

const (
	// ThemeSuffix is the file name suffix every theme must carry.
	ThemeSuffix = ".theme"

	// ThemesDir holds published theme files, relative to the files root.
	ThemesDir = "themes"

	// PendingThemesDir holds theme files awaiting moderation.
	PendingThemesDir = "themes/pending"

	// previewDir holds optional pre-rendered HTML previews.
	previewDir = "themes/html"
)

// Theme is a user-submitted theme file and its metadata. Pending themes
// (Visible == false) live under themes/pending until a moderator approves
// them.
type Theme struct {
	ID          int64     `json:"id"`
	Visible     bool      `json:"visible"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	MD5Sum      string    `json:"md5sum"`
	Description string    `json:"desc"`
	Approval    string    `json:"-"`
	Author      string    `json:"author"`
	Mail        string    `json:"-"`
	Added       time.Time `json:"added"`
	Updated     time.Time `json:"updated"`
}

// Path returns the directory holding the theme file, relative to the
// files root.
func (t *Theme) Path() string {
	if t.Visible {
		return ThemesDir
	}
	return PendingThemesDir
}

// ShortName returns the name up to its first dot ("foo.theme" -> "foo").
func (t *Theme) ShortName() string {
	if pos := strings.Index(t.Name, "."); pos > 0 {
		return t.Name[:pos]
	}
	return t.Name
}

// BuildURL returns the site-relative URL of the theme file.
func (t *Theme) BuildURL() string {
	return "/files/" + t.Path() + "/" + t.Name
}

// FilePath returns the absolute location of the theme file under root.
func (t *Theme) FilePath(root string) string {
	return filepath.Join(root, filepath.FromSlash(t.Path()), filepath.Base(t.Name))
}

// FileExists reports whether the theme file is present under root.
func (t *Theme) FileExists(root string) bool {
	info, err := os.Stat(t.FilePath(root))
	return err == nil && info.Mode().IsRegular()
}

// HTMLPreview returns the pre-rendered HTML preview for the theme, or nil
// if none has been generated.
func (t *Theme) HTMLPreview(root string) []byte {
	name := filepath.Base(t.Name + ".html")
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(previewDir), name))
	if err != nil {
		return nil
	}
	return data
}

// String returns a short human-readable description used in logs.
func (t *Theme) String() string {
	return t.Name + " - " + t.Author + " (" + t.Version + ", " + t.Added.Format(time.DateTime) + ")"
}
