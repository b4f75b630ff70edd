package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"media-curator/internal/database"
	"media-curator/internal/filesystem"
	"media-curator/internal/indexer"
	"media-curator/internal/logging"
	"media-curator/internal/media"
	"media-curator/internal/recyclebin"
	"media-curator/internal/repair"
	"media-curator/internal/trashpath"
)

// maxBodyBytes bounds request bodies; a batch of paths fits comfortably.
const maxBodyBytes = 4 << 20

// errBadRequest marks request validation failures.
var errBadRequest = errors.New("bad request")

// writeJSON encodes v as JSON with the given status code. Encoding errors
// are logged since the header is already sent.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes {"error": message} with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeError maps err onto a status code. Unclassified errors are logged
// and reported generically.
func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		logging.Error("request failed: %v", err)
		writeJSONError(w, "unknown error", status)
		return
	}
	writeJSONError(w, err.Error(), status)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, recyclebin.ErrStagedPath),
		errors.Is(err, recyclebin.ErrAlreadyTrashed),
		errors.Is(err, trashpath.ErrNotStaged),
		errors.Is(err, filesystem.ErrIsDirectory):
		return http.StatusBadRequest
	case errors.Is(err, filesystem.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, database.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, os.ErrExist), errors.Is(err, indexer.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, media.ErrResourceExhausted):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, repair.ErrUnknown):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

// wantsAsync reports whether the request asked to run in the background.
func wantsAsync(r *http.Request) bool {
	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	return async
}

// isSubPath reports whether child is parent or lies below it.
func isSubPath(parent, child string) bool {
	parent, child = filepath.Clean(parent), filepath.Clean(child)
	if parent == child {
		return true
	}
	if !strings.HasSuffix(parent, string(filepath.Separator)) {
		parent += string(filepath.Separator)
	}
	return strings.HasPrefix(child, parent)
}

// checkPaths requires every path to be absolute and below one of roots.
func checkPaths(paths []string, roots ...string) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: paths is required", errBadRequest)
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			return nil, fmt.Errorf("%w: %q is not absolute", errBadRequest, p)
		}
		p = filepath.Clean(p)
		inside := false
		for _, root := range roots {
			if isSubPath(root, p) {
				inside = true
				break
			}
		}
		if !inside {
			return nil, fmt.Errorf("%w: %q is outside the library", errBadRequest, p)
		}
		out = append(out, p)
	}
	return out, nil
}

// taskAccepted reports a background task.
func taskAccepted(w http.ResponseWriter, id, kind string) {
	w.Header().Set("Location", "/api/tasks/"+id)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"taskId": id,
		"kind":   kind,
		"status": "accepted",
	})
}
