// Package api implements the agent's local HTTP API.
//
// This package provides:
//   - Health and status endpoints (ingestion state, sink states, host snapshot)
//   - Read and replace of the runtime settings, with generation history
//   - Prometheus exposition of the agent's own metrics on /metrics
//   - Middleware stack (request ID, request log and counters, recovery, CORS,
//     JSON-only settings bodies)
//
// # Reconfiguration
//
// PUT /api/v1/config validates the submitted settings, swaps them into the
// store and records the generation. Running loops notice the new token on
// their next decision point and reconnect; the handler never touches them.
//
// Every settings response carries the generation token as its ETag. A PUT
// with If-Match naming an older generation is refused with 409, so two
// dashboards editing at once cannot silently undo each other.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	if err := server.Start(ctx); err != nil { ... } // bind failure is fatal
//	defer server.Close()
//
// Secrets are always returned redacted.
package api
