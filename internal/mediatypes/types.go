package mediatypes

import (
	"path/filepath"
	"strings"
)

// Mask is a bitmask of media kinds. Directory rows carry the union of the
// kinds of the media they contain.
type Mask int

const (
	// TypeImage marks still images other than gif, raw and svg.
	TypeImage Mask = 1 << iota
	// TypeVideo marks video files.
	TypeVideo
	// TypeGIF marks gif images.
	TypeGIF
	// TypeRaw marks camera raw images.
	TypeRaw
	// TypeSVG marks vector images.
	TypeSVG
)

// TypeNone is the empty mask.
const TypeNone Mask = 0

// TypeAll has every known bit set.
const TypeAll = TypeImage | TypeVideo | TypeGIF | TypeRaw | TypeSVG

// Has reports whether every bit of other is set in m.
func (m Mask) Has(other Mask) bool {
	return other != TypeNone && m&other == other
}

// String lists the set kinds, e.g. "image|gif".
func (m Mask) String() string {
	if m == TypeNone {
		return "none"
	}
	var parts []string
	for _, k := range []struct {
		bit  Mask
		name string
	}{
		{TypeImage, "image"},
		{TypeVideo, "video"},
		{TypeGIF, "gif"},
		{TypeRaw, "raw"},
		{TypeSVG, "svg"},
	} {
		if m&k.bit != 0 {
			parts = append(parts, k.name)
		}
	}
	return strings.Join(parts, "|")
}

// ImageExtensions lists extensions treated as regular images.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
}

// VideoExtensions lists extensions treated as videos.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
}

// RawExtensions lists camera raw formats.
var RawExtensions = map[string]bool{
	".dng": true,
	".orf": true,
	".nef": true,
	".arw": true,
	".rw2": true,
	".cr2": true,
	".cr3": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".dng":  "image/x-adobe-dng",

	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
}

// FromExtension returns the single-bit mask for an extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns TypeNone if the extension is not recognized.
func FromExtension(ext string) Mask {
	switch {
	case ext == ".gif":
		return TypeGIF
	case ext == ".svg":
		return TypeSVG
	case RawExtensions[ext]:
		return TypeRaw
	case ImageExtensions[ext]:
		return TypeImage
	case VideoExtensions[ext]:
		return TypeVideo
	}
	return TypeNone
}

// FromPath returns the mask for a file path using its extension.
func FromPath(path string) Mask {
	return FromExtension(strings.ToLower(filepath.Ext(path)))
}

// IsMediaFile returns true if the path has a supported media extension.
func IsMediaFile(path string) bool {
	return FromPath(path) != TypeNone
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsJPEG reports whether the path names a jpeg file.
func IsJPEG(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jpg" || ext == ".jpeg"
}
