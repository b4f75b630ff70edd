// Package logging provides a simple leveled logging interface for the
// media curator.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The level comes from the LOG_LEVEL (or DEBUG) environment variable and
// may be overridden by the loaded configuration through SetLevel.
package logging
