package handlers

import (
	"net/http"
	"strconv"

	"media-curator/internal/database"
	"media-curator/internal/recyclebin"
)

// PathsRequest carries the paths of a batch operation.
type PathsRequest struct {
	Paths []string `json:"paths"`
}

// BatchResponse reports a finished batch.
type BatchResponse struct {
	Success bool `json:"success"`
	*recyclebin.BatchResult
}

// TrashedItem is one entry of the recycle bin listing.
type TrashedItem struct {
	database.Media
	OriginalPath string `json:"originalPath"`
	StagedPath   string `json:"stagedPath"`
}

// RecycleBinListing is the response of GET /api/recycle-bin.
type RecycleBinListing struct {
	Enabled    bool          `json:"enabled"`
	Items      []TrashedItem `json:"items"`
	TotalBytes int64         `json:"totalBytes"`
}

// writeBatch answers 200 when every path succeeded and 207 otherwise.
func writeBatch(w http.ResponseWriter, res *recyclebin.BatchResult) {
	status := http.StatusOK
	if !res.Succeeded() {
		status = http.StatusMultiStatus
	}
	if res.Results == nil {
		res.Results = []recyclebin.PathResult{}
	}
	writeJSON(w, status, BatchResponse{Success: res.Succeeded(), BatchResult: res})
}

// ListRecycleBin lists trashed media with their original and staged paths.
func (h *Handlers) ListRecycleBin(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.db.RecycleBinEnabled(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	trashed, err := h.db.GetTrashedMedia(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	tr := h.bin.Translator()
	listing := RecycleBinListing{Enabled: enabled, Items: make([]TrashedItem, 0, len(trashed))}
	for _, m := range trashed {
		orig := tr.OriginalFromIndexKey(m.Path)
		listing.Items = append(listing.Items, TrashedItem{
			Media:        m,
			OriginalPath: orig,
			StagedPath:   tr.ToRecycleBinPath(orig),
		})
		listing.TotalBytes += m.Size
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, listing)
}

func (h *Handlers) readPaths(w http.ResponseWriter, r *http.Request, roots ...string) ([]string, bool) {
	var req PathsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return nil, false
	}
	paths, err := checkPaths(req.Paths, roots...)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return paths, true
}

// Trash moves files into the recycle bin.
func (h *Handlers) Trash(w http.ResponseWriter, r *http.Request) {
	paths, ok := h.readPaths(w, r, h.mediaDir)
	if !ok {
		return
	}
	if wantsAsync(r) {
		task := h.bin.SubmitTrash(paths)
		taskAccepted(w, task.ID, task.Kind)
		return
	}
	writeBatch(w, h.bin.Trash(r.Context(), paths))
}

// Restore moves staged files back to their original location. Original
// paths are accepted as well and translated to their staged location.
func (h *Handlers) Restore(w http.ResponseWriter, r *http.Request) {
	paths, ok := h.readPaths(w, r, h.mediaDir, h.stagingDir)
	if !ok {
		return
	}
	tr := h.bin.Translator()
	for i, p := range paths {
		if !tr.IsStaged(p) {
			paths[i] = tr.ToRecycleBinPath(p)
		}
	}

	if wantsAsync(r) {
		task := h.bin.SubmitRestore(paths)
		taskAccepted(w, task.ID, task.Kind)
		return
	}
	writeBatch(w, h.bin.Restore(r.Context(), paths))
}

// Delete trashes files while the recycle bin is enabled and removes them
// permanently otherwise. Staged paths are always removed permanently.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	paths, ok := h.readPaths(w, r, h.mediaDir, h.stagingDir)
	if !ok {
		return
	}
	if wantsAsync(r) {
		task := h.bin.SubmitDelete(paths)
		taskAccepted(w, task.ID, task.Kind)
		return
	}
	writeBatch(w, h.bin.Delete(r.Context(), paths))
}

// EmptyRecycleBin permanently deletes everything in the recycle bin. With
// ?disable=true the recycle bin is also turned off.
func (h *Handlers) EmptyRecycleBin(w http.ResponseWriter, r *http.Request) {
	disable := false
	if v := r.URL.Query().Get("disable"); v != "" {
		var err error
		if disable, err = strconv.ParseBool(v); err != nil {
			writeJSONError(w, "disable must be a boolean", http.StatusBadRequest)
			return
		}
	}

	if wantsAsync(r) {
		task := h.bin.SubmitEmpty(disable)
		taskAccepted(w, task.ID, task.Kind)
		return
	}

	var err error
	if disable {
		err = h.bin.EmptyAndDisable(r.Context())
	} else {
		err = h.bin.Empty(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "emptied",
		"recycleBinEnabled": !disable,
	})
}

// SetRecycleBinEnabled turns the recycle bin on or off without emptying it.
func (h *Handlers) SetRecycleBinEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Enabled == nil {
		writeJSONError(w, "enabled is required", http.StatusBadRequest)
		return
	}
	if err := h.db.SetRecycleBinEnabled(r.Context(), *req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
}
