// Package api translates HTTP requests into task and report service calls.
// Handlers read the authenticated owner from the request context, decode and
// validate JSON bodies, and map service errors to status codes in one place
// (MapErrorToStatusCode) so internal messages never reach clients.
package api
