package handlers

import (
	"net/http"

	"media-curator/internal/database"
)

// ListDirectories returns every directory row, or with ?path= the media
// indexed in that directory.
func (h *Handlers) ListDirectories(w http.ResponseWriter, r *http.Request) {
	if dir := r.URL.Query().Get("path"); dir != "" {
		paths, err := checkPaths([]string{dir}, h.mediaDir)
		if err != nil {
			writeError(w, err)
			return
		}
		items, err := h.db.GetMediaInDirectory(r.Context(), paths[0])
		if err != nil {
			writeError(w, err)
			return
		}
		if items == nil {
			items = []database.Media{}
		}
		writeJSON(w, http.StatusOK, items)
		return
	}

	dirs, err := h.db.GetAllDirectories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if dirs == nil {
		dirs = []database.Directory{}
	}
	writeJSON(w, http.StatusOK, dirs)
}
