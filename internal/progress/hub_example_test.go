package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/pubview/scholarstream/internal/scholar"
)

type exampleCountingSink struct {
	total int
}

func (s *exampleCountingSink) Consume(_ context.Context, batch []Event) error {
	s.total += len(batch)
	return nil
}

func (s *exampleCountingSink) Close(context.Context) error {
	return nil
}

// ExampleHub_Emit demonstrates emitting an event and flushing via Close.
func ExampleHub_Emit() {
	sink := &exampleCountingSink{}
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 1,
		MaxBatchWait:   time.Second,
	}, sink)

	hub.Emit(Event{
		Kind:     scholar.EventJobAccepted,
		JobID:    "client-1_search-1",
		ClientID: "client-1",
		TS:       time.Unix(0, 0),
	})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("events forwarded: %d\n", sink.total)
	// Output:
	// events forwarded: 1
}

// ExampleSink implements a custom Sink that totals fetched items.
func ExampleSink() {
	type fetchedSink struct {
		items int
	}
	var s fetchedSink
	capture := sinkFunc(func(_ context.Context, batch []Event) error {
		for _, evt := range batch {
			if evt.Kind == scholar.EventCompleted {
				s.items += len(evt.Snapshot.Items)
			}
		}
		return nil
	})
	hub := NewHub(Config{
		BufferSize:     2,
		MaxBatchEvents: 1,
		MaxBatchWait:   time.Second,
	}, capture)

	hub.Emit(Event{
		Kind:     scholar.EventCompleted,
		JobID:    "client-1_search-2",
		ClientID: "client-1",
		TS:       time.Unix(0, 0),
		Snapshot: scholar.Job{
			Status:   scholar.StatusCompleted,
			Progress: 100,
			Items:    []scholar.Record{{Title: "On the Electrodynamics of Moving Bodies"}},
		},
	})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("items collected: %d\n", s.items)
	// Output:
	// items collected: 1
}

type sinkFunc func(context.Context, []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error {
	return f(ctx, batch)
}

func (sinkFunc) Close(context.Context) error {
	return nil
}
