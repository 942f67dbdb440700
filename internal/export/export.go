// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package export regenerates the static theme feeds served from the files
// root: themes.xml, themes.json, their gzip copies and themes.tar.bz2.
// Every run rebuilds all five from the published themes; nothing is
// updated incrementally.
package export

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
	"path/filepath"
	"sync"
	"time"

	"weechatorg/internal/models"
)

// Artifact file names, relative to the files root.
const (
	XMLFile      = "themes.xml"
	XMLGzipFile  = "themes.xml.gz"
	JSONFile     = "themes.json"
	JSONGzipFile = "themes.json.gz"
	TarballFile  = "themes.tar.bz2"
)

// ThemeLister returns the published themes in insertion order.
type ThemeLister interface {
	ListVisibleByID(ctx context.Context) ([]models.Theme, error)
}

// Locker serializes regeneration across processes sharing a files root.
// Acquire blocks until the lock is held and returns its release function.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Mirror receives a copy of every artifact after a successful run.
type Mirror interface {
	PutArtifact(ctx context.Context, name, contentType string, data []byte) error
}

// Error is returned when a run fails. The previous artifacts are left in
// place.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "export " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Pipeline rebuilds the export artifacts. It is safe for concurrent use;
// runs are serialized.
type Pipeline struct {
	themes  ThemeLister
	root    string
	siteURL string
	locker  Locker
	mirror  Mirror

	mu sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLocker adds a cross-process lock around each run.
func WithLocker(l Locker) Option {
	return func(p *Pipeline) { p.locker = l }
}

// WithMirror uploads the artifacts after each successful run.
func WithMirror(m Mirror) Option {
	return func(p *Pipeline) { p.mirror = m }
}

// New creates a Pipeline writing under root. siteURL is the public origin
// used to build theme download URLs, without a trailing slash.
func New(themes ThemeLister, root, siteURL string, opts ...Option) *Pipeline {
	p := &Pipeline{themes: themes, root: root, siteURL: siteURL}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EnsureDirs creates the theme directories under the files root.
func (p *Pipeline) EnsureDirs() error {
	for _, dir := range []string{models.ThemesDir, models.PendingThemesDir} {
		if err := os.MkdirAll(filepath.Join(p.root, filepath.FromSlash(dir)), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Regenerate rebuilds all artifacts from the current published themes.
// It has the signature of a store save hook.
func (p *Pipeline) Regenerate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.locker != nil {
		release, err := p.locker.Acquire(ctx)
		if err != nil {
			return &Error{Op: "lock", Err: err}
		}
		defer release()
	}

	start := time.Now()
	themes, err := p.themes.ListVisibleByID(ctx)
	if err != nil {
		return &Error{Op: "list themes", Err: err}
	}

	records := make([]record, 0, len(themes))
	for i := range themes {
		t := &themes[i]
		records = append(records, newRecord(t, p.checksum(t), p.siteURL))
	}

	artifacts, err := p.build(records)
	if err != nil {
		return err
	}

	dir, err := stage(p.root, artifacts)
	if err != nil {
		return &Error{Op: "stage", Err: err}
	}
	defer os.RemoveAll(dir)

	if err := swap(dir, p.root, artifacts); err != nil {
		return &Error{Op: "swap", Err: err}
	}

	slog.Info("theme export regenerated",
		"themes", len(records),
		"duration", time.Since(start).String(),
	)

	p.mirrorArtifacts(ctx, artifacts)
	return nil
}

// build renders every artifact in memory.
func (p *Pipeline) build(records []record) ([]artifact, error) {
	xmlData := renderXML(records)
	jsonData := renderJSON(records)

	xmlGz, err := gzipBytes(xmlData, XMLFile)
	if err != nil {
		return nil, &Error{Op: "compress " + XMLFile, Err: err}
	}
	jsonGz, err := gzipBytes(jsonData, JSONFile)
	if err != nil {
		return nil, &Error{Op: "compress " + JSONFile, Err: err}
	}

	files, err := visibleThemeFiles(p.root)
	if err != nil {
		return nil, &Error{Op: "collect theme files", Err: err}
	}
	entries := append([]tarEntry{{name: XMLFile, data: xmlData, modTime: latestUpdate(records)}}, files...)
	tarball, err := tarBzip2(entries)
	if err != nil {
		return nil, &Error{Op: "build " + TarballFile, Err: err}
	}

	return []artifact{
		{name: XMLFile, contentType: "application/xml", data: xmlData},
		{name: XMLGzipFile, contentType: "application/gzip", data: xmlGz},
		{name: JSONFile, contentType: "application/json", data: jsonData},
		{name: JSONGzipFile, contentType: "application/gzip", data: jsonGz},
		{name: TarballFile, contentType: "application/x-bzip2", data: tarball},
	}, nil
}

// checksum returns the MD5 of the theme file on disk, or "" if it cannot
// be read. One bad file never fails the whole export.
func (p *Pipeline) checksum(t *models.Theme) string {
	f, err := os.Open(t.FilePath(p.root))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("theme file missing, exporting empty checksum", "theme", t.Name)
		} else {
			slog.Warn("theme file unreadable", "theme", t.Name, "error", err)
		}
		return ""
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		slog.Warn("theme file unreadable", "theme", t.Name, "error", err)
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// mirrorArtifacts uploads the artifacts to the mirror, if any. The local
// files are authoritative, so failures are only logged.
func (p *Pipeline) mirrorArtifacts(ctx context.Context, artifacts []artifact) {
	if p.mirror == nil {
		return
	}
	for _, a := range artifacts {
		if err := p.mirror.PutArtifact(ctx, a.name, a.contentType, a.data); err != nil {
			slog.Warn("export mirror upload failed", "artifact", a.name, "error", err)
		}
	}
}

// latestUpdate is used as the bundle's themes.xml timestamp so an
// unchanged data set yields an identical tar header.
func latestUpdate(records []record) time.Time {
	var latest time.Time
	for _, r := range records {
		if r.updated.After(latest) {
			latest = r.updated
		}
	}
	if latest.IsZero() {
		return time.Unix(0, 0)
	}
	return latest
}
