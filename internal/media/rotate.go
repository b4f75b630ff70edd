package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"media-curator/internal/database"
	"media-curator/internal/filesystem"
	"media-curator/internal/invalidation"
	"media-curator/internal/logging"
	"media-curator/internal/mediatypes"
	"media-curator/internal/metrics"
	"media-curator/internal/trashpath"
)

// TempPrefix starts the name of the scratch file written while rotating.
// Rescans and emptying the recycle bin leave such files alone.
const TempPrefix = trashpath.ScratchPrefix

// JPEGQuality is used when re-encoding rotated JPEGs.
const JPEGQuality = 90

// Store is the part of the metadata index a Rotator updates.
type Store interface {
	GetMedia(ctx context.Context, path string) (*database.Media, error)
	UpsertMedia(ctx context.Context, m *database.Media) error
	UpdateLastModified(ctx context.Context, path string, lastModified int64) error
}

// RotatorOptions configures a Rotator.
type RotatorOptions struct {
	// ScratchDir holds temporary files, normally the staging root.
	ScratchDir string
	// MaxPixels is the decode budget. Zero selects MaxImagePixels.
	MaxPixels int
	// Gate holds decodes back under memory pressure. Nil never waits.
	Gate Gate
}

// Gate is satisfied by memory.Monitor.
type Gate interface {
	WaitIfPaused() bool
}

// Rotator rotates images through a Mover and records the result in the
// index.
type Rotator struct {
	mover    *filesystem.Mover
	store    Store
	notifier invalidation.Notifier
	opts     RotatorOptions
}

// NewRotator creates a Rotator. A nil notifier disables invalidation.
func NewRotator(mover *filesystem.Mover, store Store, notifier invalidation.Notifier, opts RotatorOptions) *Rotator {
	if notifier == nil {
		notifier = invalidation.Nop{}
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = MaxImagePixels
	}
	return &Rotator{mover: mover, store: store, notifier: notifier, opts: opts}
}

// NormalizeDegrees maps any angle onto [0, 360).
func NormalizeDegrees(degrees int) int {
	degrees %= 360
	if degrees < 0 {
		degrees += 360
	}
	return degrees
}

// rotateClockwise turns img by degrees clockwise.
func rotateClockwise(img image.Image, degrees int) image.Image {
	switch degrees {
	case 0:
		return img
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	default:
		// imaging turns counter-clockwise
		return imaging.Rotate(img, float64(360-degrees), image.Transparent)
	}
}

// outputFormat picks the encoder for path, falling back to JPEG.
func outputFormat(path string) imaging.Format {
	f, err := imaging.FormatFromFilename(path)
	if err != nil {
		return imaging.JPEG
	}
	return f
}

// Rotate reads oldPath, rotates it clockwise by degrees and stores the
// result at newPath, which may equal oldPath. Negative angles turn
// counter-clockwise. With keep-last-modified configured on the Mover the
// destination keeps the source's modification time on disk and in the
// index.
//
// Pixels are always re-encoded, JPEGs at JPEGQuality. There is no lossless
// path that only rewrites the EXIF orientation tag.
func (r *Rotator) Rotate(ctx context.Context, oldPath, newPath string, degrees int) (err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.PathMutationsTotal.WithLabelValues("rotate", status).Inc()
	}()

	oldPath, newPath = filepath.Clean(oldPath), filepath.Clean(newPath)
	degrees = NormalizeDegrees(degrees)

	if mediatypes.FromPath(oldPath)&mediatypes.TypeImage == 0 {
		return fmt.Errorf("rotate %s: not an image", oldPath)
	}

	srcInfo, err := r.mover.Stat(oldPath)
	if err != nil {
		return err
	}

	if r.opts.Gate != nil && !r.opts.Gate.WaitIfPaused() {
		return fmt.Errorf("rotate %s: %w", oldPath, ErrResourceExhausted)
	}

	img, err := loadConstrained(oldPath, func() (io.ReadCloser, error) {
		return r.mover.Open(oldPath)
	}, r.opts.MaxPixels)
	if err != nil {
		return err
	}
	rotated := rotateClockwise(img, degrees)

	tmp := filepath.Join(r.opts.ScratchDir, TempPrefix+filepath.Base(newPath))
	defer r.removeTemp(tmp)

	if err := r.encode(tmp, rotated, outputFormat(newPath)); err != nil {
		return err
	}
	if err := r.mover.Copy(tmp, newPath); err != nil {
		return fmt.Errorf("replace %s: %w", newPath, err)
	}
	if err := r.mover.VerifySameSize(tmp, newPath); err != nil {
		return err
	}

	if r.mover.KeepLastModified() {
		if err := r.mover.SetModTime(newPath, srcInfo.ModTime()); err != nil {
			logging.Warn("Failed to keep last-modified on %s: %v", newPath, err)
		}
	}
	if err := r.index(ctx, newPath); err != nil {
		return fmt.Errorf("update index for %s: %w", newPath, err)
	}
	if r.mover.KeepLastModified() {
		if err := r.store.UpdateLastModified(ctx, newPath, srcInfo.ModTime().UnixMilli()); err != nil {
			return fmt.Errorf("keep last-modified for %s: %w", newPath, err)
		}
	}

	r.notifier.Invalidate(newPath)
	logging.Info("Rotated %s by %d degrees into %s in %v", oldPath, degrees, newPath, time.Since(start))
	return nil
}

func (r *Rotator) encode(path string, img image.Image, format imaging.Format) error {
	w, err := r.mover.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	encErr := imaging.Encode(w, img, format, imaging.JPEGQuality(JPEGQuality))
	closeErr := w.Close()
	if err := errors.Join(encErr, closeErr); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

// index records the new size and modification time of path, creating its
// row when it is a new file.
func (r *Rotator) index(ctx context.Context, path string) error {
	info, err := r.mover.Stat(path)
	if err != nil {
		return err
	}

	row, err := r.store.GetMedia(ctx, path)
	switch {
	case errors.Is(err, database.ErrNotFound):
		mtime := info.ModTime().UnixMilli()
		row = &database.Media{
			Path:       path,
			Name:       filepath.Base(path),
			ParentPath: filepath.Dir(path),
			DateTaken:  mtime,
			Type:       mediatypes.FromPath(path),
		}
	case err != nil:
		return err
	}
	row.Size = info.Size()
	row.LastModified = info.ModTime().UnixMilli()
	return r.store.UpsertMedia(ctx, row)
}

func (r *Rotator) removeTemp(path string) {
	if !trashpath.IsScratch(path) {
		return
	}
	if err := r.mover.Delete(path, false); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Failed to remove temporary file %s: %v", path, err)
	}
}
