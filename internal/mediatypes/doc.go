// Package mediatypes provides shared type definitions for media file
// classification.
//
// This package is a dependency-free foundation that can be imported by other
// packages without creating import cycles.
//
// # Kinds
//
// Media kinds form a bitmask so that a directory row can record which kinds
// it contains:
//
//	mask := mediatypes.FromPath("/photos/cat.gif") // TypeGIF
//	dirTypes |= mask
//	if dirTypes.Has(mediatypes.TypeVideo) {
//	    // directory contains at least one video
//	}
//
// # MIME Types
//
//	ext := strings.ToLower(filepath.Ext(filename))
//	mimeType := mediatypes.GetMimeType(ext) // e.g., "image/jpeg"
package mediatypes
