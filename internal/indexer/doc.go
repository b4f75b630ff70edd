// Package indexer rebuilds the metadata index from the media directory.
//
// A rescan walks the media tree on a pool of workers and upserts a media row
// for every supported file, skipping hidden entries, folders holding a
// .nomedia marker and the recycle bin staging area. Favorites and repaired
// dates of unchanged files are kept. Rows for files that vanished are
// removed and directory rows are recomputed from what was found.
//
// The staging area is then reconciled with the trashed rows: staged files
// without a row are adopted, and trashed rows whose file is gone are
// dropped. The recycle bin directory row is refreshed last.
//
// Rescans run on demand or periodically; only one runs at a time.
package indexer
