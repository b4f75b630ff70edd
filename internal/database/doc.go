// Package database provides the SQLite metadata index for the media curator.
//
// It stores two denormalized tables keyed by case-insensitive path:
//   - directories: one row per folder that contains media, with aggregate
//     count, size, newest timestamps, thumbnail and a media type bitmask
//   - media: one row per file, including files in the recycle bin
//
// A trashed media row is keyed by the recycle bin prefix followed by the
// original path and carries state "trashed". The two encodings are always
// written together; the state column exists so queries do not need to
// pattern-match keys.
//
// All writes replace on conflict, so repeating an operation is harmless.
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization.
package database
