package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"media-curator/internal/indexer"
	"media-curator/internal/repair"
	"media-curator/internal/workers"
)

// FixDatesRequest names the files whose date taken is repaired, either
// explicitly or as every indexed file of Directory.
type FixDatesRequest struct {
	Paths     []string `json:"paths,omitempty"`
	Directory string   `json:"directory,omitempty"`
}

// FixDates re-reads EXIF dates and pushes them to the content index.
func (h *Handlers) FixDates(w http.ResponseWriter, r *http.Request) {
	if h.repairer == nil {
		writeJSONError(w, "date repair is unavailable: content index not open", http.StatusServiceUnavailable)
		return
	}

	var req FixDatesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	targets := req.Paths
	if req.Directory != "" {
		dir, err := checkPaths([]string{req.Directory}, h.mediaDir)
		if err != nil {
			writeError(w, err)
			return
		}
		items, err := h.db.GetMediaInDirectory(r.Context(), dir[0])
		if err != nil {
			writeError(w, err)
			return
		}
		for _, m := range items {
			targets = append(targets, m.Path)
		}
		if len(targets) == 0 {
			writeError(w, fmt.Errorf("%w: %s contains no indexed media", errBadRequest, dir[0]))
			return
		}
	}
	paths, err := checkPaths(targets, h.mediaDir)
	if err != nil {
		writeError(w, err)
		return
	}

	run := func(ctx context.Context) (*repair.Report, error) {
		return h.repairer.Run(ctx, paths)
	}
	if wantsAsync(r) {
		task := workers.Submit(h.runner, "fix-dates", run)
		taskAccepted(w, task.ID, task.Kind)
		return
	}

	report, err := run(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Rescan rebuilds the index from disk.
func (h *Handlers) Rescan(w http.ResponseWriter, r *http.Request) {
	if wantsAsync(r) {
		if h.indexer.IsIndexing() {
			writeError(w, indexer.ErrAlreadyRunning)
			return
		}
		task := workers.Submit(h.runner, "rescan", h.indexer.Rescan)
		taskAccepted(w, task.ID, task.Kind)
		return
	}

	result, err := h.indexer.Rescan(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetTask reports the state of a background task.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	info, ok := h.runner.Status(id)
	if !ok {
		writeJSONError(w, "task not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, info)
}
