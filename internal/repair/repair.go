package repair

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"media-curator/internal/contentindex"
	"media-curator/internal/logging"
	"media-curator/internal/metrics"
)

// ErrUnknown is returned when no batch updated anything.
var ErrUnknown = errors.New("unknown error")

// DefaultBatchSize is the number of updates sent per content index call.
const DefaultBatchSize = contentindex.MaxBatchSize

// FavoriteStore mirrors repaired dates onto the metadata index.
type FavoriteStore interface {
	UpdateFavoriteDateTaken(ctx context.Context, path string, dateTaken int64) error
}

// Config tunes a Repairer.
type Config struct {
	// BatchSize is capped at contentindex.MaxBatchSize.
	BatchSize int
	// RequestsPerSecond limits content index calls. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// Location is the time zone EXIF dates are interpreted in.
	Location *time.Location
}

// BatchOutcome records one content index call.
type BatchOutcome struct {
	Size    int `json:"size"`
	Applied int `json:"applied"`
}

// Report summarizes a repair run.
type Report struct {
	Processed int            `json:"processed"`
	Skipped   int            `json:"skipped"`
	Applied   int            `json:"applied"`
	Batches   []BatchOutcome `json:"batches"`
}

// Repairer re-reads "date taken" from files and pushes it to the content
// index in rate-limited batches.
type Repairer struct {
	reader    DateReader
	index     contentindex.Index
	store     FavoriteStore
	limiter   *rate.Limiter
	batchSize int
	loc       *time.Location
}

// New creates a Repairer.
func New(reader DateReader, index contentindex.Index, store FavoriteStore, cfg Config) *Repairer {
	size := cfg.BatchSize
	if size <= 0 || size > contentindex.MaxBatchSize {
		size = DefaultBatchSize
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	return &Repairer{
		reader:    reader,
		index:     index,
		store:     store,
		limiter:   rate.NewLimiter(limit, burst),
		batchSize: size,
		loc:       loc,
	}
}

// Run repairs the date taken of every path. Files without a readable date
// are skipped. A file that cannot be opened or a failing content index call
// aborts the run. The report is returned in every case.
func (r *Repairer) Run(ctx context.Context, paths []string) (report *Report, err error) {
	start := time.Now()
	report = &Report{Batches: []BatchOutcome{}}

	defer func() {
		status := "success"
		switch {
		case errors.Is(err, ErrUnknown):
			status = "unknown_error"
		case err != nil:
			status = "error"
		}
		metrics.RepairRunsTotal.WithLabelValues(status).Inc()
		logging.Info("Date repair finished in %v: processed=%d skipped=%d applied=%d batches=%d err=%v",
			time.Since(start), report.Processed, report.Skipped, report.Applied, len(report.Batches), err)
	}()

	pending := make([]contentindex.Update, 0, r.batchSize)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		raw, ok, err := r.reader.ReadDate(path)
		if err != nil {
			return report, err
		}
		if !ok {
			r.skip(report, path, "no date tag")
			continue
		}

		ts, err := ParseDateTaken(raw, r.loc)
		if err != nil {
			r.skip(report, path, err.Error())
			continue
		}

		report.Processed++
		metrics.RepairFilesTotal.WithLabelValues("updated").Inc()
		pending = append(pending, contentindex.Update{Path: path, DateTaken: ts})

		if len(pending) == r.batchSize {
			if err := r.flush(ctx, report, pending); err != nil {
				return report, err
			}
			pending = pending[:0]
		}
	}

	if len(pending) > 0 {
		if err := r.flush(ctx, report, pending); err != nil {
			return report, err
		}
	}

	for _, b := range report.Batches {
		if b.Applied > 0 {
			return report, nil
		}
	}
	return report, ErrUnknown
}

func (r *Repairer) skip(report *Report, path, reason string) {
	report.Skipped++
	metrics.RepairFilesTotal.WithLabelValues("skipped").Inc()
	logging.Debug("Skipping date repair for %s: %s", path, reason)
}

func (r *Repairer) flush(ctx context.Context, report *Report, batch []contentindex.Update) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	metrics.RepairBatchSize.Observe(float64(len(batch)))
	applied, err := r.index.ApplyBatch(ctx, batch)
	if err != nil {
		metrics.RepairBatchesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("content index batch of %d: %w", len(batch), err)
	}

	status := "applied"
	if applied == 0 {
		status = "empty"
	}
	metrics.RepairBatchesTotal.WithLabelValues(status).Inc()
	report.Batches = append(report.Batches, BatchOutcome{Size: len(batch), Applied: applied})
	report.Applied += applied

	for _, u := range batch {
		if err := r.store.UpdateFavoriteDateTaken(ctx, u.Path, u.DateTaken); err != nil {
			logging.Warn("Failed to update date taken of %s in the index: %v", u.Path, err)
		}
	}
	return nil
}
