package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-curator/internal/logging"
)

// NoMediaFile marks a folder whose media should not be indexed.
const NoMediaFile = ".nomedia"

var (
	// ErrIsDirectory is returned by Delete for a directory when directories
	// are not allowed.
	ErrIsDirectory = errors.New("path is a directory")
	// ErrSizeMismatch is returned when a copy does not match the source size.
	ErrSizeMismatch = errors.New("copied size does not match source")
)

// MoverOptions configures a Mover.
type MoverOptions struct {
	// KeepLastModified copies the source modification time onto copies.
	KeepLastModified bool
	Retry            RetryConfig
}

// Mover performs physical file operations. It never touches the index.
type Mover struct {
	sel  *Selector
	opts MoverOptions
}

// NewMover returns a Mover using sel to choose backends.
func NewMover(sel *Selector, opts MoverOptions) *Mover {
	return &Mover{sel: sel, opts: opts}
}

// KeepLastModified reports whether copies keep the source mtime.
func (m *Mover) KeepLastModified() bool {
	return m.opts.KeepLastModified
}

func (m *Mover) record(path, operation string, start time.Time, err error) {
	volume := m.opts.Retry.resolveVolume(path)
	observe().ObserveOperation(volume, operation, time.Since(start).Seconds(), err)
}

// Stat returns file info for path, retrying stale NFS handles.
func (m *Mover) Stat(path string) (os.FileInfo, error) {
	st, err := m.sel.For(path)
	if err != nil {
		return nil, err
	}
	return withRetry("stat", path, m.opts.Retry, func() (os.FileInfo, error) {
		return st.Stat(path)
	})
}

// Exists reports whether path exists.
func (m *Mover) Exists(path string) bool {
	st, err := m.sel.For(path)
	if err != nil {
		return false
	}
	ok, err := st.Exists(path)
	return err == nil && ok
}

// Open opens path for reading, retrying stale NFS handles.
func (m *Mover) Open(path string) (io.ReadCloser, error) {
	st, err := m.sel.For(path)
	if err != nil {
		return nil, err
	}
	return withRetry("open", path, m.opts.Retry, func() (io.ReadCloser, error) {
		return st.OpenRead(path)
	})
}

// Create creates or truncates path, making parent directories as needed.
func (m *Mover) Create(path string) (io.WriteCloser, error) {
	st, err := m.sel.For(path)
	if err != nil {
		return nil, err
	}
	if err := st.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent of %s: %w", path, err)
	}
	return st.OpenWrite(path)
}

// ReadDir lists the entries of dir.
func (m *Mover) ReadDir(dir string) ([]os.FileInfo, error) {
	st, err := m.sel.For(dir)
	if err != nil {
		return nil, err
	}
	return st.ReadDir(dir)
}

// Walk walks the tree rooted at root.
func (m *Mover) Walk(root string, fn filepath.WalkFunc) error {
	st, err := m.sel.For(root)
	if err != nil {
		return err
	}
	return st.Walk(root, fn)
}

// SetModTime sets the modification time of path.
func (m *Mover) SetModTime(path string, mtime time.Time) error {
	st, err := m.sel.For(path)
	if err != nil {
		return err
	}
	return st.Chtimes(path, mtime, mtime)
}

// Copy streams src into dst, creating parent directories. On failure the
// partial destination is removed.
func (m *Mover) Copy(src, dst string) (err error) {
	start := time.Now()
	defer func() { m.record(dst, "copy", start, err) }()

	srcStore, err := m.sel.For(src)
	if err != nil {
		return err
	}
	dstStore, err := m.sel.For(dst)
	if err != nil {
		return err
	}

	info, err := withRetry("stat", src, m.opts.Retry, func() (os.FileInfo, error) {
		return srcStore.Stat(src)
	})
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if info.IsDir() {
		return fmt.Errorf("copy %s: %w", src, ErrIsDirectory)
	}

	in, err := withRetry("open", src, m.opts.Retry, func() (io.ReadCloser, error) {
		return srcStore.OpenRead(src)
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	if err := dstStore.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", dst, err)
	}

	out, err := dstStore.OpenWrite(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	n, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		if rmErr := dstStore.Remove(dst); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.Warn("Failed to remove partial copy %s: %v", dst, rmErr)
		}
		return fmt.Errorf("copy %s to %s: %w", src, dst, errors.Join(copyErr, closeErr))
	}
	observe().ObserveBytesCopied(m.opts.Retry.resolveVolume(dst), n)

	if m.opts.KeepLastModified {
		mtime := info.ModTime()
		if err := dstStore.Chtimes(dst, mtime, mtime); err != nil {
			logging.Warn("Failed to keep last-modified on %s: %v", dst, err)
		}
	}

	logging.Debug("Copied %s to %s (%d bytes)", src, dst, n)
	return nil
}

// Move relocates src to dst. A rename is attempted when both paths share a
// backend; otherwise the file is copied, the copy's size is confirmed and
// only then is the source removed.
func (m *Mover) Move(src, dst string) (err error) {
	start := time.Now()
	defer func() { m.record(dst, "move", start, err) }()

	srcStore, err := m.sel.For(src)
	if err != nil {
		return err
	}
	dstStore, err := m.sel.For(dst)
	if err != nil {
		return err
	}

	if srcStore == dstStore {
		if err := dstStore.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("create parent of %s: %w", dst, err)
		}
		renameErr := srcStore.Rename(src, dst)
		if renameErr == nil {
			logging.Debug("Renamed %s to %s", src, dst)
			return nil
		}
		logging.Debug("Rename %s failed, falling back to copy: %v", src, renameErr)
	}

	if err := m.Copy(src, dst); err != nil {
		return err
	}
	if err := m.VerifySameSize(src, dst); err != nil {
		if rmErr := dstStore.Remove(dst); rmErr != nil {
			logging.Warn("Failed to remove unverified copy %s: %v", dst, rmErr)
		}
		return err
	}
	if err := srcStore.Remove(src); err != nil {
		return fmt.Errorf("remove source %s after copy: %w", src, err)
	}
	return nil
}

// VerifySameSize returns ErrSizeMismatch unless src and dst have equal sizes.
func (m *Mover) VerifySameSize(src, dst string) error {
	srcInfo, err := m.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	dstInfo, err := m.Stat(dst)
	if err != nil {
		return fmt.Errorf("stat %s: %w", dst, err)
	}
	if srcInfo.Size() != dstInfo.Size() {
		return fmt.Errorf("%s (%d bytes) vs %s (%d bytes): %w",
			src, srcInfo.Size(), dst, dstInfo.Size(), ErrSizeMismatch)
	}
	return nil
}

// Rename renames oldPath to newPath within one backend.
func (m *Mover) Rename(oldPath, newPath string) (err error) {
	start := time.Now()
	defer func() { m.record(newPath, "rename", start, err) }()

	st, err := m.sel.For(oldPath)
	if err != nil {
		return err
	}
	dstStore, err := m.sel.For(newPath)
	if err != nil {
		return err
	}
	if st != dstStore {
		return fmt.Errorf("rename %s to %s crosses storage backends", oldPath, newPath)
	}
	if ok, _ := st.Exists(newPath); ok {
		return fmt.Errorf("rename %s: %s: %w", oldPath, newPath, os.ErrExist)
	}
	return st.Rename(oldPath, newPath)
}

// Delete removes path. Directories are refused unless allowDirectory is set,
// in which case they are removed recursively.
func (m *Mover) Delete(path string, allowDirectory bool) (err error) {
	start := time.Now()
	defer func() { m.record(path, "delete", start, err) }()

	st, err := m.sel.For(path)
	if err != nil {
		return err
	}
	info, err := st.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		if !allowDirectory {
			return fmt.Errorf("delete %s: %w", path, ErrIsDirectory)
		}
		return st.RemoveAll(path)
	}
	return st.Remove(path)
}

// RemoveAll removes path and everything below it. A missing path is not an error.
func (m *Mover) RemoveAll(path string) (err error) {
	start := time.Now()
	defer func() { m.record(path, "delete", start, err) }()

	st, err := m.sel.For(path)
	if err != nil {
		return err
	}
	return st.RemoveAll(path)
}

// HiddenName returns the file name with or without a leading dot.
func HiddenName(name string, hide bool) string {
	if hide {
		if strings.HasPrefix(name, ".") {
			return name
		}
		return "." + name
	}
	return strings.TrimLeft(name, ".")
}

// ToggleHidden renames path so that its name gains or loses a leading dot
// and returns the resulting path. It is a no-op when already in the
// requested state.
func (m *Mover) ToggleHidden(path string, hide bool) (string, error) {
	name := filepath.Base(path)
	newName := HiddenName(name, hide)
	if newName == name {
		return path, nil
	}
	if newName == "" {
		return path, fmt.Errorf("unhide %s: name would be empty", path)
	}

	newPath := filepath.Join(filepath.Dir(path), newName)
	if err := m.Rename(path, newPath); err != nil {
		return path, err
	}
	return newPath, nil
}

// AddNoMedia hides dir from indexing by creating its marker file.
func (m *Mover) AddNoMedia(dir string) error {
	marker := filepath.Join(dir, NoMediaFile)
	if m.Exists(marker) {
		return nil
	}
	w, err := m.Create(marker)
	if err != nil {
		return fmt.Errorf("create %s: %w", marker, err)
	}
	return w.Close()
}

// RemoveNoMedia deletes the marker file of dir if present.
func (m *Mover) RemoveNoMedia(dir string) error {
	marker := filepath.Join(dir, NoMediaFile)
	if !m.Exists(marker) {
		return nil
	}
	return m.Delete(marker, false)
}

// Size returns the size of a file, or the total size of the files below a
// directory.
func (m *Mover) Size(path string) (int64, error) {
	info, err := m.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total int64
	err = m.Walk(path, func(_ string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			total += fi.Size()
		}
		return nil
	})
	return total, err
}
