/*
Package repair recomputes the "date taken" of media files and pushes it to
the external content index.

For each path the EXIF DateTimeOriginal tag is read, falling back to
DateTime. The value is parsed by ParseDateTaken and queued; every
DefaultBatchSize updates the queue is flushed to the content index through a
rate limiter, and the remainder is flushed at the end. Each flushed path also
has its date copied onto the metadata index.

A run succeeds when at least one batch matched a row in the content index,
otherwise it reports ErrUnknown. Files without a date are skipped. A file that
cannot be opened or a failing content index call aborts the run.
*/
package repair
