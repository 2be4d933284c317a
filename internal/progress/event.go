package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/pubview/scholarstream/internal/scholar"
)

// Event captures a single job milestone together with the full job snapshot
// at that moment. Consumers get the whole picture on every event rather than
// a delta.
type Event struct {
	// Kind denotes which lifecycle milestone occurred.
	Kind scholar.EventKind
	// JobID is the composite job identity in its string form.
	JobID string
	// ClientID routes the event to the submitting client's stream.
	ClientID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Snapshot is a detached copy of the job at emission time.
	Snapshot scholar.Job
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.ClientID == "" {
		return errors.New("client id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case scholar.EventJobAccepted, scholar.EventProgress,
		scholar.EventCompleted, scholar.EventFailed:
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.Snapshot.Progress < 0 || e.Snapshot.Progress > 100 {
		return fmt.Errorf("progress %v out of range", e.Snapshot.Progress)
	}
	return nil
}

// Terminal reports whether the event closes the job's stream.
func (e Event) Terminal() bool {
	return e.Kind == scholar.EventCompleted || e.Kind == scholar.EventFailed
}
