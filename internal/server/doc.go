// Package server implements the HTTP side of the autopull webhook receiver.
//
// This package provides:
//   - POST /<namespace>/<key> hook endpoint with HMAC-SHA1 signature checks
//   - Pull mode: runs the pull command in every mapped directory and returns
//     the joined output
//   - Script mode: launches every mapped script, returns at once and logs the
//     script output when it exits
//   - Health and run status endpoints
//   - Optional per-IP rate limiting of the hook endpoint
//
// The server integrates with other packages:
//   - internal/mapping: key to target resolution
//   - internal/runner: pull and script execution
//   - internal/history: in-memory run log
//
// Every failure is answered with {"error-message": "..."} and a status code
// chosen by StatusFor.
package server
