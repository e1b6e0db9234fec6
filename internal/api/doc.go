// Package api provides the HTTP handlers for the screening service: task
// upload and status, search submission, notification management, and the
// current-job probe. Handlers persist records first and enqueue background
// work second, so a full queue never loses a record.
package api
