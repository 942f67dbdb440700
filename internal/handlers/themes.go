// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the JSON HTTP API over the theme workflow.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"weechatorg/internal/models"
	"weechatorg/internal/store"
	"weechatorg/internal/submission"
	"weechatorg/internal/themes"
)

const (
	// maxFormOverhead is the room left for the text fields and multipart
	// framing on top of the largest accepted theme file.
	maxFormOverhead = 64 * 1024

	// maxFormMemory is held in memory before multipart spills to disk.
	maxFormMemory = 1 << 20

	// maxNoteBody bounds the moderation JSON body.
	maxNoteBody = 16 * 1024
)

// ThemeService is the theme workflow the handlers drive.
type ThemeService interface {
	Submit(ctx context.Context, in themes.SubmitInput) (*models.Theme, error)
	Update(ctx context.Context, id int64, in themes.UpdateInput) (*models.Theme, error)
	Approve(ctx context.Context, id int64, note string) (*models.Theme, error)
	Unpublish(ctx context.Context, id int64, note string) (*models.Theme, error)
}

// ThemeLister serves the read-only listings.
type ThemeLister interface {
	FindByID(ctx context.Context, id int64) (*models.Theme, error)
	ListVisible(ctx context.Context) ([]models.Theme, error)
	Choices(ctx context.Context) ([]store.Choice, error)
}

// Exporter rebuilds the export artifacts on demand.
type Exporter interface {
	Regenerate(ctx context.Context) error
}

// Themes groups the theme API handlers.
type Themes struct {
	service  ThemeService
	lister   ThemeLister
	exporter Exporter
	root     string
}

// NewThemes creates the theme handlers. root is the files root holding the
// theme files and their previews.
func NewThemes(service ThemeService, lister ThemeLister, exporter Exporter, root string) *Themes {
	return &Themes{service: service, lister: lister, exporter: exporter, root: root}
}

// themeDetail is a published theme with its derived download fields.
type themeDetail struct {
	*models.Theme
	ShortName string `json:"short_name"`
	URL       string `json:"url"`
	Available bool   `json:"available"`
}

// List returns the published themes, newest first.
func (h *Themes) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.lister.ListVisible(r.Context())
	if err != nil {
		writeServiceError(w, r, err, 0)
		return
	}
	if items == nil {
		items = []models.Theme{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Choices returns the selector entries of the update form.
func (h *Themes) Choices(w http.ResponseWriter, r *http.Request) {
	choices, err := h.lister.Choices(r.Context())
	if err != nil {
		writeServiceError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, choices)
}

// Show returns one published theme. Pending themes are not found.
func (h *Themes) Show(w http.ResponseWriter, r *http.Request) {
	theme, ok := h.published(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, themeDetail{
		Theme:     theme,
		ShortName: theme.ShortName(),
		URL:       theme.BuildURL(),
		Available: theme.FileExists(h.root),
	})
}

// Preview serves the pre-rendered HTML preview of a published theme.
func (h *Themes) Preview(w http.ResponseWriter, r *http.Request) {
	theme, ok := h.published(w, r)
	if !ok {
		return
	}
	page := theme.HTMLPreview(h.root)
	if page == nil {
		writeError(w, http.StatusNotFound, "not_found", "No preview for this theme.")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// published loads the visible theme named by the id URL parameter. It
// writes the error response itself when it returns false.
func (h *Themes) published(w http.ResponseWriter, r *http.Request) (*models.Theme, bool) {
	id, ok := themeID(w, r)
	if !ok {
		return nil, false
	}
	theme, err := h.lister.FindByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, 0)
		return nil, false
	}
	if theme == nil || !theme.Visible {
		writeError(w, http.StatusNotFound, "not_found", "Theme not found.")
		return nil, false
	}
	return theme, true
}

// Submit accepts a new theme into the moderation queue.
func (h *Themes) Submit(w http.ResponseWriter, r *http.Request) {
	file, header, ok := parseUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	theme, err := h.service.Submit(r.Context(), themes.SubmitInput{
		File:        file,
		Size:        header.Size,
		Description: formValue(r, "description"),
		Author:      formValue(r, "author"),
		Mail:        formValue(r, "mail"),
		Comment:     formValue(r, "comment"),
	})
	if err != nil {
		writeServiceError(w, r, err, committedID(theme))
		return
	}
	writeJSON(w, http.StatusCreated, theme)
}

// Update accepts a new revision of an existing theme.
func (h *Themes) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := themeID(w, r)
	if !ok {
		return
	}
	file, header, ok := parseUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	theme, err := h.service.Update(r.Context(), id, themes.UpdateInput{
		File:    file,
		Size:    header.Size,
		Author:  formValue(r, "author"),
		Mail:    formValue(r, "mail"),
		Comment: formValue(r, "comment"),
	})
	if err != nil {
		writeServiceError(w, r, err, committedID(theme))
		return
	}
	writeJSON(w, http.StatusOK, theme)
}

// Approve publishes a pending theme.
func (h *Themes) Approve(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.service.Approve)
}

// Unpublish moves a published theme back to the moderation queue.
func (h *Themes) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.service.Unpublish)
}

type moderationRequest struct {
	Note string `json:"note"`
}

func (h *Themes) moderate(w http.ResponseWriter, r *http.Request, action func(context.Context, int64, string) (*models.Theme, error)) {
	id, ok := themeID(w, r)
	if !ok {
		return
	}

	var req moderationRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNoteBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body.")
			return
		}
	}

	theme, err := action(r.Context(), id, strings.TrimSpace(req.Note))
	if err != nil {
		writeServiceError(w, r, err, committedID(theme))
		return
	}
	writeJSON(w, http.StatusOK, theme)
}

// Export forces a regeneration of the export artifacts.
func (h *Themes) Export(w http.ResponseWriter, r *http.Request) {
	if err := h.exporter.Regenerate(r.Context()); err != nil {
		writeServiceError(w, r, err, 0)
		return
	}
	slog.Info("theme export forced", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseUpload reads the multipart form and returns the theme file part.
// It writes the error response itself when it returns false.
func parseUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, submission.MaxFileSize+maxFormOverhead)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusUnprocessableEntity, submission.ErrTooLarge.Code, submission.ErrTooLarge.Message)
			return nil, nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "Expected a multipart form.")
		return nil, nil, false
	}

	file, header, err := r.FormFile("themefile")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file", "No theme file provided.")
		return nil, nil, false
	}
	return file, header, true
}

func themeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "not_found", "Theme not found.")
		return 0, false
	}
	return id, true
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

// committedID returns the id of a theme the service saved before failing.
func committedID(t *models.Theme) int64 {
	if t == nil {
		return 0
	}
	return t.ID
}
