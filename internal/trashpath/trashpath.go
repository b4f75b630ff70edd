package trashpath

import (
	"errors"
	"path/filepath"
	"strings"
)

// SentinelPath is the reserved directory key that stands for the recycle
// bin in the directory index. It is also the default key prefix for
// trashed media rows. It is never an absolute filesystem path.
const SentinelPath = "recycle_bin"

// DefaultPrefix is the key prefix applied to trashed media rows.
const DefaultPrefix = SentinelPath

// ScratchPrefix starts the names of scratch files written into the staging
// root. They are not trashed files.
const ScratchPrefix = ".tmp_"

// IsScratch reports whether the base name of path marks a scratch file.
func IsScratch(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ScratchPrefix)
}

// ErrNotStaged is returned when a path does not live under the staging root.
var ErrNotStaged = errors.New("path is not inside the recycle bin")

// Translator maps real paths to their staged equivalents and index keys.
type Translator struct {
	// StagingRoot is the absolute directory that mirrors trashed files.
	StagingRoot string
	// Prefix marks trashed keys in the media index.
	Prefix string
}

// New returns a Translator rooted at stagingRoot. An empty prefix selects
// DefaultPrefix.
func New(stagingRoot, prefix string) Translator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Translator{
		StagingRoot: filepath.Clean(stagingRoot),
		Prefix:      prefix,
	}
}

// ToRecycleBinPath returns where original is stored while trashed.
func (t Translator) ToRecycleBinPath(original string) string {
	return t.StagingRoot + filepath.Clean(original)
}

// ToOriginalPath strips the staging root from a staged path.
func (t Translator) ToOriginalPath(staged string) (string, error) {
	if !t.IsStaged(staged) {
		return "", ErrNotStaged
	}
	original := strings.TrimPrefix(filepath.Clean(staged), t.StagingRoot)
	if original == "" {
		return "", ErrNotStaged
	}
	return original, nil
}

// IsStaged reports whether path lies strictly inside the staging root.
func (t Translator) IsStaged(path string) bool {
	clean := filepath.Clean(path)
	return strings.HasPrefix(clean, t.StagingRoot+string(filepath.Separator))
}

// IndexKey returns the media row key of a trashed original.
func (t Translator) IndexKey(original string) string {
	return t.Prefix + original
}

// IsTrashedKey reports whether key carries the trash prefix.
func (t Translator) IsTrashedKey(key string) bool {
	return strings.HasPrefix(key, t.Prefix)
}

// OriginalFromIndexKey strips the trash prefix from key. Keys without the
// prefix are returned unchanged.
func (t Translator) OriginalFromIndexKey(key string) string {
	return strings.TrimPrefix(key, t.Prefix)
}
