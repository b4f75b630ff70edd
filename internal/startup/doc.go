// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [Load] merges, in increasing precedence: built-in defaults, an optional
// .env file, a YAML file (curator.yaml in the working directory unless a
// path is given) and CURATOR_* environment variables. Nested keys map to
// environment names by replacing dots with underscores, so repair.batch_size
// becomes CURATOR_REPAIR_BATCH_SIZE. List values accept comma-separated
// strings and durations use Go syntax ("30m", "50ms").
//
//   - media_dir: library root (default: /media)
//   - database_dir: holds curator.db and content-index.db (default: /database)
//   - cache_dir: thumbnail cache, optional (default: /cache)
//   - staging_dir: recycle bin staging root (default: <media_dir>/.recycle_bin)
//   - recycle_bin_prefix: index key prefix for trashed rows (default: recycle_bin)
//   - port: HTTP port (default: 8080)
//   - keep_last_modified: preserve mtimes on copy and rotate (default: true)
//   - index_interval: periodic rescan interval, 0 disables (default: 30m)
//   - restricted_roots, granted_roots: volume write permissions
//   - repair.batch_size: content index batch size, at most 50
//   - memory_limit, memory_ratio: container limit in bytes and the share
//     given to GOMEMLIMIT (default ratio: 0.85)
//   - retry.*: stale file handle retry policy
//
// [Validate] runs struct tag validation followed by cross-field checks.
// [WriteDefault] emits the defaults as YAML for `curatorctl config init`.
//
// # Directory Setup
//
// [Config.Prepare] creates the database and staging directories and fails
// when either is not writable. The thumbnail cache is optional. The media
// directory is checked but a problem there is only a warning.
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit], [LogContentIndexInit], [LogRecycleBinInit]
//   - [LogIndexerInit], [LogIndexerStarted]
//   - [LogHTTPRoutes]: registered routes (full list at debug level)
//   - [LogServerStarted], [LogShutdownInitiated], [LogShutdownComplete]
package startup
