// Package media rotates images on disk.
//
// Images are decoded with github.com/disintegration/imaging (WebP through
// golang.org/x/image/webp) after their header has been checked against a
// pixel budget, so oversized files fail with ErrResourceExhausted instead of
// exhausting memory. The rotated image is written to a temporary file in the
// staging area and then copied over the destination.
package media
