// Package invalidation notifies caches that a file's content or location
// changed. Notifications are fire-and-forget: callers never wait for or
// observe their outcome.
package invalidation
