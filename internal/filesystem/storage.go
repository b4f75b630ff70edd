package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// ErrPermissionDenied is returned when a path is outside every granted tree.
var ErrPermissionDenied = errors.New("permission denied: path is outside the granted tree")

// Storage is the capability set the file mover needs from a backend.
type Storage interface {
	Name() string
	OpenRead(path string) (io.ReadCloser, error)
	// OpenWrite creates or truncates path.
	OpenWrite(path string) (io.WriteCloser, error)
	Remove(path string) error
	RemoveAll(path string) error
	Exists(path string) (bool, error)
	Rename(oldPath, newPath string) error
	Stat(path string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	Chtimes(path string, atime, mtime time.Time) error
	ReadDir(path string) ([]os.FileInfo, error)
	Walk(root string, fn filepath.WalkFunc) error
}

// DirectStorage accesses paths directly through file descriptors.
type DirectStorage struct {
	fs afero.Fs
}

// NewDirectStorage returns a backend on the host filesystem.
func NewDirectStorage() *DirectStorage {
	return &DirectStorage{fs: afero.NewOsFs()}
}

// NewDirectStorageFs returns a backend over fs, typically an in-memory
// filesystem in tests.
func NewDirectStorageFs(fs afero.Fs) *DirectStorage {
	return &DirectStorage{fs: fs}
}

func (s *DirectStorage) Name() string { return "direct" }

func (s *DirectStorage) OpenRead(path string) (io.ReadCloser, error) {
	return s.fs.Open(path)
}

func (s *DirectStorage) OpenWrite(path string) (io.WriteCloser, error) {
	return s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

func (s *DirectStorage) Remove(path string) error    { return s.fs.Remove(path) }
func (s *DirectStorage) RemoveAll(path string) error { return s.fs.RemoveAll(path) }

func (s *DirectStorage) Exists(path string) (bool, error) {
	return afero.Exists(s.fs, path)
}

func (s *DirectStorage) Rename(oldPath, newPath string) error {
	return s.fs.Rename(oldPath, newPath)
}

func (s *DirectStorage) Stat(path string) (os.FileInfo, error) { return s.fs.Stat(path) }

func (s *DirectStorage) MkdirAll(path string, perm os.FileMode) error {
	return s.fs.MkdirAll(path, perm)
}

func (s *DirectStorage) Chtimes(path string, atime, mtime time.Time) error {
	return s.fs.Chtimes(path, atime, mtime)
}

func (s *DirectStorage) ReadDir(path string) ([]os.FileInfo, error) {
	return afero.ReadDir(s.fs, path)
}

func (s *DirectStorage) Walk(root string, fn filepath.WalkFunc) error {
	return afero.Walk(s.fs, root, fn)
}

// TreeStorage is a permission-gated backend: only paths below the granted
// root are reachable.
type TreeStorage struct {
	root string
	fs   afero.Fs
}

// NewTreeStorage grants access to the host directory tree at root.
func NewTreeStorage(root string) *TreeStorage {
	return NewTreeStorageFs(afero.NewOsFs(), root)
}

// NewTreeStorageFs grants access to the tree at root inside base.
func NewTreeStorageFs(base afero.Fs, root string) *TreeStorage {
	root = filepath.Clean(root)
	return &TreeStorage{root: root, fs: afero.NewBasePathFs(base, root)}
}

// Root returns the granted tree root.
func (s *TreeStorage) Root() string { return s.root }

// Contains reports whether path is the root or lies below it.
func (s *TreeStorage) Contains(path string) bool {
	path = filepath.Clean(path)
	return path == s.root || strings.HasPrefix(path, s.root+string(filepath.Separator))
}

// rel converts an absolute path into the tree-relative name afero expects.
func (s *TreeStorage) rel(path string) (string, error) {
	if !s.Contains(path) {
		return "", fmt.Errorf("%s: %w", path, ErrPermissionDenied)
	}
	return string(filepath.Separator) + strings.TrimPrefix(filepath.Clean(path), s.root), nil
}

func (s *TreeStorage) Name() string { return "tree:" + s.root }

func (s *TreeStorage) OpenRead(path string) (io.ReadCloser, error) {
	p, err := s.rel(path)
	if err != nil {
		return nil, err
	}
	return s.fs.Open(p)
}

func (s *TreeStorage) OpenWrite(path string) (io.WriteCloser, error) {
	p, err := s.rel(path)
	if err != nil {
		return nil, err
	}
	return s.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

func (s *TreeStorage) Remove(path string) error {
	p, err := s.rel(path)
	if err != nil {
		return err
	}
	return s.fs.Remove(p)
}

func (s *TreeStorage) RemoveAll(path string) error {
	p, err := s.rel(path)
	if err != nil {
		return err
	}
	return s.fs.RemoveAll(p)
}

func (s *TreeStorage) Exists(path string) (bool, error) {
	p, err := s.rel(path)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, p)
}

func (s *TreeStorage) Rename(oldPath, newPath string) error {
	op, err := s.rel(oldPath)
	if err != nil {
		return err
	}
	np, err := s.rel(newPath)
	if err != nil {
		return err
	}
	return s.fs.Rename(op, np)
}

func (s *TreeStorage) Stat(path string) (os.FileInfo, error) {
	p, err := s.rel(path)
	if err != nil {
		return nil, err
	}
	return s.fs.Stat(p)
}

func (s *TreeStorage) MkdirAll(path string, perm os.FileMode) error {
	p, err := s.rel(path)
	if err != nil {
		return err
	}
	return s.fs.MkdirAll(p, perm)
}

func (s *TreeStorage) Chtimes(path string, atime, mtime time.Time) error {
	p, err := s.rel(path)
	if err != nil {
		return err
	}
	return s.fs.Chtimes(p, atime, mtime)
}

func (s *TreeStorage) ReadDir(path string) ([]os.FileInfo, error) {
	p, err := s.rel(path)
	if err != nil {
		return nil, err
	}
	return afero.ReadDir(s.fs, p)
}

// Walk walks the tree below root, reporting absolute paths to fn.
func (s *TreeStorage) Walk(root string, fn filepath.WalkFunc) error {
	p, err := s.rel(root)
	if err != nil {
		return err
	}
	return afero.Walk(s.fs, p, func(rel string, info os.FileInfo, err error) error {
		return fn(filepath.Join(s.root, rel), info, err)
	})
}

// Selector picks the backend for a path. Paths under a restricted root
// must go through a granted tree; everything else uses direct access.
type Selector struct {
	direct     Storage
	restricted []string
	trees      []*TreeStorage
}

// NewSelector builds a selector. restrictedRoots lists the locations that
// cannot be written with direct file descriptors.
func NewSelector(direct Storage, restrictedRoots []string, trees ...*TreeStorage) *Selector {
	roots := make([]string, 0, len(restrictedRoots))
	for _, r := range restrictedRoots {
		roots = append(roots, filepath.Clean(r))
	}
	return &Selector{direct: direct, restricted: roots, trees: trees}
}

// IsRestricted reports whether path needs a granted tree.
func (s *Selector) IsRestricted(path string) bool {
	path = filepath.Clean(path)
	for _, r := range s.restricted {
		if path == r || strings.HasPrefix(path, r+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// For returns the backend serving path.
func (s *Selector) For(path string) (Storage, error) {
	if !s.IsRestricted(path) {
		return s.direct, nil
	}
	// Longest granted root wins
	var best *TreeStorage
	for _, t := range s.trees {
		if t.Contains(path) && (best == nil || len(t.root) > len(best.root)) {
			best = t
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrPermissionDenied)
	}
	return best, nil
}
