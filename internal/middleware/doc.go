// Package middleware provides HTTP middleware for the curator API: access
// logging with request ids, Prometheus request metrics keyed by route
// template, panic recovery and gzip compression of JSON responses.
package middleware
