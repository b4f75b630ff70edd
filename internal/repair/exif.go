package repair

import (
	"fmt"
	"io"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"media-curator/internal/logging"
)

// Opener opens files for reading.
type Opener interface {
	Open(path string) (io.ReadCloser, error)
}

// DateReader extracts the raw "date taken" string of a file.
type DateReader interface {
	// ReadDate returns ok=false when the file carries no usable date. An
	// error means the file could not be read at all.
	ReadDate(path string) (raw string, ok bool, err error)
}

// ExifReader reads DateTimeOriginal, falling back to DateTime.
type ExifReader struct {
	open Opener
}

// NewExifReader returns a DateReader that reads files through open.
func NewExifReader(open Opener) *ExifReader {
	return &ExifReader{open: open}
}

// ReadDate implements DateReader.
func (r *ExifReader) ReadDate(path string) (string, bool, error) {
	f, err := r.open.Open(path)
	if err != nil {
		return "", false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		logging.Debug("No EXIF data in %s: %v", path, err)
		return "", false, nil
	}

	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		s = strings.Trim(s, "\x00 ")
		if s != "" {
			return s, true, nil
		}
	}
	return "", false, nil
}
