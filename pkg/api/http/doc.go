// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Orchestration creation and management
//   - Lifecycle actions
//   - Revision history
//   - Health checks
//   - Prometheus metrics
package http
