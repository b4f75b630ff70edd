// Package handlers provides the HTTP API of the curator.
//
// Mutating endpoints take JSON bodies of absolute paths below the media
// directory. Batch endpoints (trash, restore, delete, move) answer 200 when
// every path succeeded and 207 with per-path outcomes otherwise. Adding
// ?async=true runs the operation on the task runner instead; the response is
// 202 with a task id that GET /api/tasks/{id} reports on.
//
// Errors are JSON objects of the form {"error": "..."}. Rotating an image
// above the pixel budget is answered with 413, distinct from other failures.
package handlers
