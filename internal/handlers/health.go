package handlers

import (
	"net/http"
	"runtime"

	"media-curator/internal/indexer"
	"media-curator/internal/startup"
)

const (
	statusHealthy   = "healthy"
	statusIndexing  = "indexing"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	Indexer indexer.HealthStatus `json:"indexer"`

	ActiveMedia       int   `json:"activeMedia"`
	TrashedMedia      int   `json:"trashedMedia"`
	TrashedBytes      int64 `json:"trashedBytes"`
	Directories       int   `json:"directories"`
	RecycleBinEnabled bool  `json:"recycleBinEnabled"`
	DateRepair        bool  `json:"dateRepair"`

	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
	Error        string `json:"error,omitempty"`
}

// HealthCheck reports service health. It answers 503 only when the
// metadata store cannot be queried; a failed rescan is reported as
// degraded.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	idxStatus := h.indexer.GetHealthStatus()
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       idxStatus.Uptime,
		Indexer:      idxStatus,
		DateRepair:   h.repairer != nil,
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	switch {
	case idxStatus.Indexing:
		response.Status = statusIndexing
	case idxStatus.LastError != "":
		response.Status = statusDegraded
	}

	stats, err := h.db.IndexStats(r.Context())
	if err == nil {
		response.ActiveMedia = stats.ActiveMedia
		response.TrashedMedia = stats.TrashedMedia
		response.TrashedBytes = stats.TrashedBytes
		response.Directories = stats.Directories
		response.RecycleBinEnabled, err = h.db.RecycleBinEnabled(r.Context())
	}
	if err != nil {
		response.Status = statusUnhealthy
		response.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
