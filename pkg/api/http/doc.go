// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Graph validation and planning
//   - Synchronous and asynchronous runs
//   - Run queries and cancellation
//   - Worker pool status
//   - Health checks
//   - Prometheus metrics
package http
