// Package main hosts the publication collection service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, job submission,
//     status, cancellation, recent-history, and pool endpoints. Submissions are
//     validated and registered with the engine before the request returns.
//   - Engine & queue: jobs flow through a bounded in-memory queue and are
//     fanned out to a fixed worker pool sized by engine.max_workers. A job is
//     identified by (client_id, search_id); resubmitting a running identity is
//     idempotent. Completed jobs land in a bounded FIFO history cache.
//   - Collection pipeline: each worker drives one browser session per job via
//     chromedp (or the colly-based static session when headless is disabled),
//     discovers the profile's publication list, then visits each publication
//     page and extracts structured metadata with selector fallback chains.
//   - Progress streaming: every state transition publishes a full job snapshot
//     through the progress hub, which batches events and fans them out to the
//     log, Prometheus, and websocket sinks. Clients follow a job live over
//     GET /ws, optionally filtered by client_id.
//   - Configuration & plumbing: Viper populates config from env/files; zap
//     provides structured logging; Prometheus metrics are exported on
//     /metrics. No durable persistence: state lives in process memory.
//
// Operational notes:
//   - Concurrency model: bounded queue + fixed worker pool; browser tabs have
//     their own semaphore inside the headless factory. Shutdown is coordinated
//     via context cancellation from main through the engine to workers.
//   - Cancellation: POST .../cancel withdraws a job only while it is still
//     queued. Once a worker holds the browser session the job runs to its
//     natural terminal state.
//   - Observability: zap logs carry job IDs and URLs at key transitions;
//     Prometheus counters/histograms track job and extraction activity.
//
// Quick checklist:
//   - Configure env vars: SCHOLAR_SERVER_PORT, SCHOLAR_ENGINE_MAX_WORKERS,
//     SCHOLAR_SESSION_HEADLESS, SCHOLAR_SESSION_USER_AGENT, and
//     SCHOLAR_PROGRESS_THROTTLE_MS as needed.
//   - Run locally: go run ./cmd/scholarstream -config config.yaml (or rely
//     solely on env overrides).
package main
