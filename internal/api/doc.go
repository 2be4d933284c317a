// Package api hosts the HTTP server, middleware, and REST handlers for client
// access. Notable routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /api/v1/jobs for job submission; GET/POST under
//     /api/v1/jobs/{client_id}/{search_id} for status and cancellation.
//   - GET /api/v1/jobs/recent and /api/v1/pool for history and occupancy.
//   - GET /ws for the websocket progress stream.
package api
