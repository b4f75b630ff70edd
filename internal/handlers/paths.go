package handlers

import (
	"context"
	"fmt"
	"net/http"

	"media-curator/internal/workers"
)

// RenameRequest renames a file or directory.
type RenameRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MoveRequest moves files into a directory.
type MoveRequest struct {
	Paths       []string `json:"paths"`
	Destination string   `json:"destination"`
}

// HideRequest hides or unhides a file or directory.
type HideRequest struct {
	Path   string `json:"path"`
	Hidden bool   `json:"hidden"`
}

// FavoriteRequest marks or unmarks files as favorites.
type FavoriteRequest struct {
	Paths    []string `json:"paths"`
	Favorite bool     `json:"favorite"`
}

// RotateRequest rotates an image clockwise by Degrees. NewPath defaults to
// Path.
type RotateRequest struct {
	Path    string `json:"path"`
	NewPath string `json:"newPath,omitempty"`
	Degrees int    `json:"degrees"`
}

// Rename renames a file or a directory and rewrites the index below it.
func (h *Handlers) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	paths, err := checkPaths([]string{req.From, req.To}, h.mediaDir)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.bin.Rename(r.Context(), paths[0], paths[1]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "renamed", "path": paths[1]})
}

// Move moves files into the destination directory.
func (h *Handlers) Move(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	dest, err := checkPaths([]string{req.Destination}, h.mediaDir)
	if err != nil {
		writeError(w, err)
		return
	}
	paths, err := checkPaths(req.Paths, h.mediaDir)
	if err != nil {
		writeError(w, err)
		return
	}

	if wantsAsync(r) {
		task := h.bin.SubmitMove(paths, dest[0])
		taskAccepted(w, task.ID, task.Kind)
		return
	}
	writeBatch(w, h.bin.MoveFiles(r.Context(), paths, dest[0]))
}

// Hide toggles the hidden state of a file or directory.
func (h *Handlers) Hide(w http.ResponseWriter, r *http.Request) {
	var req HideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	paths, err := checkPaths([]string{req.Path}, h.mediaDir)
	if err != nil {
		writeError(w, err)
		return
	}

	newPath, err := h.bin.ToggleHidden(r.Context(), paths[0], req.Hidden)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"path": newPath, "hidden": req.Hidden})
}

// Rotate rotates an image. Images above the pixel budget are answered with
// 413 so clients can tell them from other failures.
func (h *Handlers) Rotate(w http.ResponseWriter, r *http.Request) {
	var req RotateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.NewPath == "" {
		req.NewPath = req.Path
	}
	paths, err := checkPaths([]string{req.Path, req.NewPath}, h.mediaDir)
	if err != nil {
		writeError(w, err)
		return
	}

	rotate := func(ctx context.Context) (string, error) {
		return paths[1], h.rotator.Rotate(ctx, paths[0], paths[1], req.Degrees)
	}
	if wantsAsync(r) {
		task := workers.Submit(h.runner, "rotate", rotate)
		taskAccepted(w, task.ID, task.Kind)
		return
	}
	if _, err := rotate(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "rotated",
		"path":    paths[1],
		"degrees": req.Degrees,
	})
}

// Favorite sets the favorite flag of indexed files. Favorites keep their
// date taken across a date repair.
func (h *Handlers) Favorite(w http.ResponseWriter, r *http.Request) {
	var req FavoriteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	paths, err := checkPaths(req.Paths, h.mediaDir)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, p := range paths {
		if err := h.db.SetFavorite(r.Context(), p, req.Favorite); err != nil {
			writeError(w, fmt.Errorf("%s: %w", p, err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"paths": paths, "favorite": req.Favorite})
}
