// Package recyclebin moves media into and out of a staging area and keeps
// the metadata index consistent with the files on disk.
//
// A trashed file lives at its original absolute path mirrored under the
// staging root, and its index row is rekeyed to the original path with the
// recycle bin prefix. Restoring reverses both steps and re-dates the file
// from its EXIF data. Batches report an outcome per path; one failing path
// never stops the others.
//
// Every batch operation has a Submit variant that runs on a workers.Runner
// and returns a task handle.
package recyclebin
