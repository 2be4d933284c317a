package scholar

import "errors"

// Sentinel errors shared across the engine and its adapters. Session and
// discovery failures are terminal for the job that hit them; everything else
// degrades output locally without aborting the run.
var (
	// ErrNotFound is returned when a job exists neither in the running set
	// nor in the history cache.
	ErrNotFound = errors.New("job not found")

	// ErrEngineStopped rejects submissions after shutdown has begun.
	ErrEngineStopped = errors.New("engine stopped")

	// ErrQueueFull rejects submissions when the dispatch queue is saturated.
	ErrQueueFull = errors.New("submission queue full")

	// ErrSessionInit wraps page-session acquisition failures.
	ErrSessionInit = errors.New("session init failed")

	// ErrDiscovery wraps subject-identity or item-URL discovery failures.
	ErrDiscovery = errors.New("discovery failed")

	// ErrUnsupported marks session operations a backend cannot perform,
	// such as clicking in a static document.
	ErrUnsupported = errors.New("operation not supported by session")
)
