package scholar

import (
	"context"
	"time"
)

// Session is an open browsing context positioned on remote documents. A job
// owns exactly one Session for its entire run and must Close it on every exit
// path. Close is idempotent.
//
// Query methods take an ordered list of candidate selectors and report the
// first non-empty result; a missing element is a normal miss, never an error.
type Session interface {
	// Navigate loads the given URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// FirstText returns the trimmed text of the first candidate selector
	// that matches a non-empty element.
	FirstText(ctx context.Context, candidates []string) (string, bool)
	// Attr returns the named attribute of the first match of selector.
	Attr(ctx context.Context, selector, name string) (string, bool)
	// AllAttrs collects the named attribute from every match of the first
	// candidate selector that yields any elements.
	AllAttrs(ctx context.Context, candidates []string, name string) []string
	// Title returns the document title.
	Title(ctx context.Context) (string, bool)
	// Click activates the first visible, enabled candidate element. It
	// reports whether a click happened.
	Click(ctx context.Context, candidates []string) bool
	// WaitVisible blocks until selector is visible or the timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool
	// Close tears the session down. Safe to call multiple times.
	Close()
}

// SessionFactory opens page sessions. Open blocks while the factory's
// parallelism limit is saturated; the pool size above it bounds how many
// sessions are ever requested concurrently.
type SessionFactory interface {
	Open(ctx context.Context) (Session, error)
}

// EventKind labels progress pushes sent to the submitting client.
type EventKind string

// Push-channel event kinds, mirroring the client protocol.
const (
	EventJobAccepted EventKind = "job_accepted"
	EventProgress    EventKind = "update_fetch_progress"
	EventCompleted   EventKind = "fetch_completed"
	EventFailed      EventKind = "fetch_failed"
)

// Publisher streams job snapshots to the submitting client. Publish is
// best-effort: it reports false on failure and never panics or blocks the
// caller; a lost push must not abort the job.
type Publisher interface {
	Publish(kind EventKind, snap Job, clientID string) bool
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real-time Clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
