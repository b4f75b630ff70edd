// Package app wires the recycle bin, indexer, rotator and date repairer
// from a loaded configuration. The HTTP server and the curatorctl command
// both build their components through [Open].
package app
