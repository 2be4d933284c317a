package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pubview/scholarstream/internal/progress"
	"github.com/pubview/scholarstream/internal/scholar"
)

// PrometheusSink exports job progress metrics via Prometheus. It owns all
// collectors for jobs started/completed/running and item extraction counters.
type PrometheusSink struct {
	jobsStarted   prometheus.Counter
	jobsCompleted *prometheus.CounterVec
	jobsRunning   prometheus.Gauge
	jobRuntime    *prometheus.HistogramVec

	itemsFetched prometheus.Counter
	itemsSkipped prometheus.Counter

	tracker *jobTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scholarstream_jobs_started_total",
			Help: "Total jobs that have started.",
		}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarstream_jobs_completed_total",
			Help: "Total jobs completed partitioned by result.",
		}, []string{"result"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scholarstream_jobs_running",
			Help: "Current number of running jobs.",
		}),
		jobRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scholarstream_job_runtime_seconds",
			Help:    "Wall time per completed job.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"result"}),
		itemsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scholarstream_items_fetched_total",
			Help: "Publication pages visited across all jobs.",
		}),
		itemsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scholarstream_items_skipped_total",
			Help: "Publication pages visited but discarded during extraction.",
		}),
		tracker: newJobTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.jobsStarted,
		s.jobsCompleted,
		s.jobsRunning,
		s.jobRuntime,
		s.itemsFetched,
		s.itemsSkipped,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Kind {
	case scholar.EventJobAccepted:
		s.jobsStarted.Inc()
		if s.tracker.start(evt.JobID) {
			s.jobsRunning.Inc()
		}
	case scholar.EventProgress:
		s.tracker.observeCounts(evt.JobID, evt.Snapshot, s.itemsFetched, s.itemsSkipped)
	case scholar.EventCompleted:
		s.finishJob(evt, "success")
	case scholar.EventFailed:
		s.finishJob(evt, "error")
	}
}

func (s *PrometheusSink) finishJob(evt progress.Event, result string) {
	s.jobsCompleted.WithLabelValues(result).Inc()
	s.tracker.observeCounts(evt.JobID, evt.Snapshot, s.itemsFetched, s.itemsSkipped)
	if !evt.Snapshot.StartTime.IsZero() && evt.TS.After(evt.Snapshot.StartTime) {
		s.jobRuntime.WithLabelValues(result).Observe(evt.TS.Sub(evt.Snapshot.StartTime).Seconds())
	}
	if s.tracker.complete(evt.JobID) {
		s.jobsRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

// jobTracker deduplicates lifecycle events per job and turns the cumulative
// fetched/skipped counts carried by each snapshot into counter deltas.
type jobTracker struct {
	mu      sync.Mutex
	running map[string]itemCounts
}

type itemCounts struct {
	fetched int
	skipped int
}

func newJobTracker() *jobTracker {
	return &jobTracker{running: make(map[string]itemCounts)}
}

func (t *jobTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = itemCounts{}
	return true
}

func (t *jobTracker) observeCounts(id string, snap scholar.Job, fetched, skipped prometheus.Counter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.running[id]
	if !ok {
		return
	}
	if d := snap.FetchedCount - prev.fetched; d > 0 {
		fetched.Add(float64(d))
		prev.fetched = snap.FetchedCount
	}
	if d := snap.SkippedCount - prev.skipped; d > 0 {
		skipped.Add(float64(d))
		prev.skipped = snap.SkippedCount
	}
	t.running[id] = prev
}

func (t *jobTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
