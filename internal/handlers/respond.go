// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"weechatorg/internal/export"
	"weechatorg/internal/middleware"
	"weechatorg/internal/store"
	"weechatorg/internal/submission"
	"weechatorg/internal/themes"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// writeServiceError maps an error from the theme workflow to a response.
// id is the affected theme, if the write was committed before the error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, id int64) {
	if ve, ok := submission.AsValidationError(err); ok {
		writeError(w, http.StatusUnprocessableEntity, ve.Code, ve.Message)
		return
	}

	reqID := middleware.RequestIDFromCtx(r.Context())
	switch {
	case errors.Is(err, themes.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Theme not found.")
	case errors.Is(err, submission.ErrReleaseMissing):
		slog.Error("release configuration missing", "error", err, "request_id", reqID)
		writeError(w, http.StatusInternalServerError, "configuration", "Release versions are not configured.")
	case errors.Is(err, store.ErrSaveHook), isExportError(err):
		slog.Error("theme export failed", "error", err, "theme_id", id, "request_id", reqID)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "export_failed",
			Message: "Theme saved but the export could not be regenerated.",
			ID:      id,
		})
	default:
		slog.Error("theme request failed", "error", err, "request_id", reqID)
		writeError(w, http.StatusInternalServerError, "internal", "Internal Server Error")
	}
}

func isExportError(err error) bool {
	var exportErr *export.Error
	return errors.As(err, &exportErr)
}
