// Package engine implements the task registry and bounded worker pool. It
// accepts job submissions, deduplicates them by (client, search) identity,
// dispatches them to a fixed set of workers, and retains completed jobs in a
// bounded FIFO history cache.
package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pubview/scholarstream/internal/scholar"
	"github.com/pubview/scholarstream/internal/task"
)

// Config sizes the pool. The worker count directly bounds how many page
// sessions are ever open at once; sessions are the scarce resource here.
type Config struct {
	MaxWorkers  int
	QueueDepth  int
	HistorySize int
	Task        task.Config
}

func (c Config) withDefaults() Config {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 5
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 64
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 20
	}
	return c
}

// runningJob pairs the worker-owned Job with the registry's bookkeeping.
// claimed/canceled/snap are guarded by the engine mutex; job itself is
// touched only by the owning worker once claimed.
type runningJob struct {
	job      *scholar.Job
	claimed  bool
	canceled bool
	snap     scholar.Job
}

// Engine is the orchestration core. Construct with New, start with Start,
// and tear down with Shutdown. All exported methods are safe for concurrent
// use.
type Engine struct {
	cfg       Config
	factory   scholar.SessionFactory
	publisher scholar.Publisher
	clock     scholar.Clock
	logger    *zap.Logger

	mu      sync.Mutex
	running map[scholar.JobKey]*runningJob
	history *historyCache
	stopped bool

	queue chan *runningJob
	wg    sync.WaitGroup
}

// New constructs an Engine. Start must be called before submissions are
// dispatched.
func New(
	factory scholar.SessionFactory,
	publisher scholar.Publisher,
	clock scholar.Clock,
	logger *zap.Logger,
	cfg Config,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = scholar.SystemClock{}
	}
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:       cfg,
		factory:   factory,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		running:   make(map[scholar.JobKey]*runningJob),
		history:   newHistoryCache(cfg.HistorySize),
		queue:     make(chan *runningJob, cfg.QueueDepth),
	}
}

// Start launches the worker pool. Workers exit when ctx is canceled or the
// queue is closed by Shutdown.
func (e *Engine) Start(ctx context.Context) {
	for i := 1; i <= e.cfg.MaxWorkers; i++ {
		e.wg.Add(1)
		go e.worker(ctx, i)
	}
	e.logger.Info("engine started", zap.Int("max_workers", e.cfg.MaxWorkers))
}

// Submit registers a new job and queues it for execution. Submitting an
// identity that is already running is idempotent: the existing job ID is
// returned and no duplicate work starts. Submit never blocks on execution.
func (e *Engine) Submit(sourceURL, clientID, searchID string) (string, error) {
	key := scholar.JobKey{ClientID: clientID, SearchID: searchID}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return "", scholar.ErrEngineStopped
	}
	if _, exists := e.running[key]; exists {
		e.mu.Unlock()
		e.logger.Debug("duplicate submission ignored", zap.String("job_id", key.String()))
		return key.String(), nil
	}

	job := &scholar.Job{
		Key:       key,
		SourceURL: sourceURL,
		Status:    scholar.StatusPending,
		StartTime: e.clock.Now(),
	}
	rj := &runningJob{job: job, snap: job.Snapshot()}

	// Enqueue under the lock: the send never blocks, and holding the lock
	// keeps Shutdown's close(queue) from racing the send.
	select {
	case e.queue <- rj:
	default:
		e.mu.Unlock()
		return "", fmt.Errorf("%w: depth %d", scholar.ErrQueueFull, e.cfg.QueueDepth)
	}
	e.running[key] = rj
	e.mu.Unlock()

	e.logger.Info("job submitted",
		zap.String("job_id", key.String()),
		zap.String("url", sourceURL),
	)
	return key.String(), nil
}

// Status returns the latest snapshot for a job, consulting the running set
// first and the history cache second.
func (e *Engine) Status(clientID, searchID string) (scholar.Job, error) {
	key := scholar.JobKey{ClientID: clientID, SearchID: searchID}

	e.mu.Lock()
	defer e.mu.Unlock()
	if rj, ok := e.running[key]; ok {
		return rj.snap.Snapshot(), nil
	}
	if job, ok := e.history.get(key); ok {
		return job.Snapshot(), nil
	}
	return scholar.Job{}, scholar.ErrNotFound
}

// Cancel withdraws a job that has not yet been claimed by a worker. Once a
// worker holds the page session the job runs to its natural terminal state
// and Cancel reports false.
func (e *Engine) Cancel(clientID, searchID string) bool {
	key := scholar.JobKey{ClientID: clientID, SearchID: searchID}

	e.mu.Lock()
	defer e.mu.Unlock()
	rj, ok := e.running[key]
	if !ok || rj.claimed {
		return false
	}
	rj.canceled = true
	delete(e.running, key)
	e.logger.Info("job canceled before execution", zap.String("job_id", key.String()))
	return true
}

// RecentCompleted lists terminal jobs, most recently completed first.
func (e *Engine) RecentCompleted(limit int) []scholar.Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.recent(limit)
}

// Stats reports pool occupancy.
func (e *Engine) Stats() scholar.PoolStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return scholar.PoolStats{
		RunningCount:   len(e.running),
		CompletedCount: e.history.size(),
		Capacity:       e.history.capacity,
		MaxWorkers:     e.cfg.MaxWorkers,
	}
}

// Shutdown stops accepting submissions and waits for in-flight jobs until
// ctx expires.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.logger.Info("engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine shutdown wait: %w", ctx.Err())
	}
}

func (e *Engine) worker(ctx context.Context, id int) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case rj, ok := <-e.queue:
			if !ok {
				return
			}
			e.runJob(ctx, id, rj)
		}
	}
}

func (e *Engine) runJob(ctx context.Context, workerID int, rj *runningJob) {
	e.mu.Lock()
	if rj.canceled {
		e.mu.Unlock()
		return
	}
	rj.claimed = true
	rj.job.WorkerID = workerID
	rj.snap = rj.job.Snapshot()
	e.mu.Unlock()

	pub := &snapshotPublisher{engine: e, key: rj.job.Key, next: e.publisher}
	final := task.New(rj.job, e.factory, pub, e.logger, e.cfg.Task).Run(ctx)

	// Terminal hand-off is atomic: observers always find the identity in
	// exactly one of the running set or the history cache.
	e.mu.Lock()
	delete(e.running, rj.job.Key)
	e.history.add(final)
	e.mu.Unlock()

	e.logger.Info("job finished",
		zap.String("job_id", rj.job.Key.String()),
		zap.String("status", string(final.Status)),
		zap.Int("worker_id", workerID),
	)
}

func (e *Engine) recordSnapshot(key scholar.JobKey, snap scholar.Job) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rj, ok := e.running[key]; ok {
		rj.snap = snap
	}
}

// snapshotPublisher tees each published snapshot into the registry so Status
// reads a lock-protected copy rather than the worker's live job.
type snapshotPublisher struct {
	engine *Engine
	key    scholar.JobKey
	next   scholar.Publisher
}

func (p *snapshotPublisher) Publish(kind scholar.EventKind, snap scholar.Job, clientID string) bool {
	p.engine.recordSnapshot(p.key, snap)
	if p.next == nil {
		return true
	}
	return p.next.Publish(kind, snap, clientID)
}
