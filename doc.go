// Package main runs the media curator server.
//
// The curator keeps a SQLite index of a media library and exposes HTTP
// operations that change it safely: moving files into and out of a recycle
// bin, renaming and moving paths, hiding folders, rotating images and
// repairing "date taken" values in the external content index.
//
// # Application Lifecycle
//
//  1. Configuration: curator.yaml (or $CURATOR_CONFIG), .env and CURATOR_*
//     environment variables are merged and validated
//  2. Stores: the metadata index and the content index are opened
//  3. Components: mover, recycle bin manager, indexer, rotator, date
//     repairer and task runner are wired by package app
//  4. Background: the initial rescan, periodic rescans, the memory monitor
//     and the metrics collector start
//  5. HTTP: routes are registered, wrapped in recover, logging and
//     compression middleware, and served
//  6. Shutdown: on SIGINT/SIGTERM the server drains, running tasks get up
//     to 30 seconds, then both stores are closed
//
// # Endpoints
//
//   - /api/*: recycle bin, path mutations, date repair, rescans, tasks
//   - /healthz, /livez: health probes
//   - /version: build information
//   - /metrics: Prometheus metrics when metrics_enabled is set
package main
