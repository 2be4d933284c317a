package progress

import (
	"github.com/pubview/scholarstream/internal/scholar"
)

// HubPublisher adapts a Hub to the scholar.Publisher interface used by
// running jobs. Each published snapshot becomes one Event.
type HubPublisher struct {
	hub   *Hub
	clock scholar.Clock
}

// NewHubPublisher wires a Hub behind the publisher interface. A nil clock
// falls back to the system clock.
func NewHubPublisher(hub *Hub, clock scholar.Clock) *HubPublisher {
	if clock == nil {
		clock = scholar.SystemClock{}
	}
	return &HubPublisher{hub: hub, clock: clock}
}

// Publish converts the snapshot into an Event and emits it. It reports false
// once the hub has shut down or the event was dropped; callers treat that as
// advisory and keep working.
func (p *HubPublisher) Publish(kind scholar.EventKind, snap scholar.Job, clientID string) bool {
	return p.hub.Emit(Event{
		Kind:     kind,
		JobID:    snap.Key.String(),
		ClientID: clientID,
		TS:       p.clock.Now(),
		Snapshot: snap,
	})
}
