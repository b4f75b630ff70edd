package recyclebin

import (
	"errors"
	"fmt"

	"media-curator/internal/repair"
)

// Outcome classifies what happened to one path.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeIOError      Outcome = "io_error"
	OutcomeVerifyFailed Outcome = "verify_failed"
	OutcomeIndexError   Outcome = "index_error"
)

// PathResult is the outcome of one path in a batch.
type PathResult struct {
	Path    string  `json:"path"`
	NewPath string  `json:"newPath,omitempty"`
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`

	err error
}

// Err returns the failure of this path, or nil.
func (r PathResult) Err() error {
	return r.err
}

func ok(path, newPath string) PathResult {
	return PathResult{Path: path, NewPath: newPath, Outcome: OutcomeOK}
}

func failed(path string, outcome Outcome, err error) PathResult {
	return PathResult{Path: path, Outcome: outcome, Error: err.Error(), err: err}
}

// BatchResult collects the per-path outcomes of a batch operation.
type BatchResult struct {
	Operation string       `json:"operation"`
	Results   []PathResult `json:"results"`

	// Repair is set by Restore when the restored files were re-dated.
	Repair      *repair.Report `json:"repair,omitempty"`
	RepairError string         `json:"repairError,omitempty"`
}

// Succeeded reports whether every path succeeded.
func (b *BatchResult) Succeeded() bool {
	return len(b.Failed()) == 0
}

// Failed returns the failing paths.
func (b *BatchResult) Failed() []PathResult {
	var out []PathResult
	for _, r := range b.Results {
		if r.Outcome != OutcomeOK {
			out = append(out, r)
		}
	}
	return out
}

// Done returns the successful paths, using the new location when one exists.
func (b *BatchResult) Done() []string {
	var out []string
	for _, r := range b.Results {
		if r.Outcome != OutcomeOK {
			continue
		}
		if r.NewPath != "" {
			out = append(out, r.NewPath)
		} else {
			out = append(out, r.Path)
		}
	}
	return out
}

// Err joins the failures of all paths, or returns nil on full success.
func (b *BatchResult) Err() error {
	var errs []error
	for _, r := range b.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", r.Path, r.err))
	}
	return errors.Join(errs...)
}
