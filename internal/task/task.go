// Package task drives one collection job through its stages: resolve the
// subject, discover item URLs, extract each item, and report a terminal
// status. A task owns exactly one page session for its entire run.
package task

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pubview/scholarstream/internal/extract"
	"github.com/pubview/scholarstream/internal/scholar"
)

// Progress checkpoints. Discovery completes at 25; per-item extraction fills
// the 70-point band above it; completion forces exactly 100.
const (
	discoveryProgress = 25.0
	itemProgressBand  = 70.0
)

// Config controls pacing and pagination bounds for a run.
type Config struct {
	// ItemDelay paces navigation between item pages.
	ItemDelay time.Duration
	// SettleDelay waits after profile navigation before querying.
	SettleDelay time.Duration
	// ShowMoreMax bounds pagination clicks on the profile page.
	ShowMoreMax int
	// WaitTimeout bounds explicit wait-for-element conditions.
	WaitTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ShowMoreMax <= 0 {
		c.ShowMoreMax = 1000
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 10 * time.Second
	}
	return c
}

// Task executes a single job. It is not reusable.
type Task struct {
	job       *scholar.Job
	factory   scholar.SessionFactory
	publisher scholar.Publisher
	logger    *zap.Logger
	cfg       Config
}

// New constructs a Task for the given job. The job must be in PENDING.
func New(
	job *scholar.Job,
	factory scholar.SessionFactory,
	publisher scholar.Publisher,
	logger *zap.Logger,
	cfg Config,
) *Task {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Task{
		job:       job,
		factory:   factory,
		publisher: publisher,
		logger:    logger.With(zap.String("job_id", job.Key.String())),
		cfg:       cfg.withDefaults(),
	}
}

// Run executes the job to a terminal state and returns the final snapshot.
// The page session is always released before the terminal event is reported,
// including when stage logic panics.
func (t *Task) Run(ctx context.Context) scholar.Job {
	t.job.Status = scholar.StatusCollectingInfo
	t.publish(scholar.EventJobAccepted)

	sess, err := t.factory.Open(ctx)
	if err != nil {
		t.fail(fmt.Errorf("%w: %v", scholar.ErrSessionInit, err))
		t.publishTerminal()
		return t.job.Snapshot()
	}

	t.runStages(ctx, sess)

	// Session is closed by the time we get here; the terminal event must
	// not be observable while the browser resource is still held.
	t.publishTerminal()
	return t.job.Snapshot()
}

func (t *Task) runStages(ctx context.Context, sess scholar.Session) {
	defer sess.Close()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("stage panicked", zap.Any("panic", r))
			t.fail(fmt.Errorf("stage panicked: %v", r))
		}
	}()

	if err := t.collectInfo(ctx, sess); err != nil {
		t.fail(err)
		return
	}
	t.searchItems(ctx, sess)
}

// collectInfo resolves the subject identity and discovers the full ordered
// set of item URLs. Any failure here is terminal for the job.
func (t *Task) collectInfo(ctx context.Context, sess scholar.Session) error {
	if err := sess.Navigate(ctx, t.job.SourceURL); err != nil {
		return fmt.Errorf("%w: navigate profile: %v", scholar.ErrDiscovery, err)
	}
	t.pause(ctx, t.cfg.SettleDelay)
	// Best effort; the selector fallbacks below handle a miss.
	sess.WaitVisible(ctx, extract.SubjectSelectors[0], t.cfg.WaitTimeout)

	name, ok := t.resolveSubject(ctx, sess)
	if !ok {
		return fmt.Errorf("%w: unable to resolve subject identity", scholar.ErrDiscovery)
	}
	t.job.SubjectName = name
	t.publish(scholar.EventProgress)

	// Best effort: a profile without a sort control still yields items.
	if sess.Click(ctx, extract.SortByYearSelectors) {
		t.pause(ctx, t.cfg.ItemDelay)
	}
	t.loadAllItems(ctx, sess)

	urls := dedupeHTTP(sess.AllAttrs(ctx, extract.ItemRowSelectors, "href"))
	if len(urls) == 0 {
		return fmt.Errorf("%w: no item urls discovered", scholar.ErrDiscovery)
	}

	t.job.ItemURLs = urls
	t.job.TotalCount = len(urls)
	t.job.FetchedCount = 0
	t.job.Status = scholar.StatusCollectedInfo
	t.job.Progress = discoveryProgress
	t.logger.Info("discovery complete",
		zap.String("subject", name),
		zap.Int("items", len(urls)),
	)
	t.publish(scholar.EventProgress)
	return nil
}

func (t *Task) resolveSubject(ctx context.Context, sess scholar.Session) (string, bool) {
	if name, ok := sess.FirstText(ctx, extract.SubjectSelectors); ok {
		return name, true
	}
	// Profile pages title themselves "<name> - <site>".
	if title, ok := sess.Title(ctx); ok {
		if idx := strings.Index(title, " - "); idx > 0 {
			return strings.TrimSpace(title[:idx]), true
		}
	}
	return "", false
}

// loadAllItems exhausts the profile's pagination by clicking "show more"
// until the control disappears or the attempt bound is hit.
func (t *Task) loadAllItems(ctx context.Context, sess scholar.Session) {
	for attempt := 0; attempt < t.cfg.ShowMoreMax; attempt++ {
		if ctx.Err() != nil {
			return
		}
		if !sess.Click(ctx, extract.ShowMoreSelectors) {
			return
		}
		t.pause(ctx, t.cfg.ItemDelay)
	}
}

// searchItems walks the discovered URLs in order, extracting one record per
// item. Per-item failures are logged and skipped; they never fail the job.
func (t *Task) searchItems(ctx context.Context, sess scholar.Session) {
	t.job.Status = scholar.StatusSearchingPapers
	total := len(t.job.ItemURLs)

	for i, url := range t.job.ItemURLs {
		t.job.FetchedCount = i + 1
		t.job.Progress = roundProgress(
			discoveryProgress + float64(i+1)/float64(total)*itemProgressBand,
		)

		rec, ok := t.extractItem(ctx, sess, url)
		if ok {
			t.job.Items = append(t.job.Items, rec)
		} else {
			t.job.SkippedCount++
			t.logger.Warn("item skipped", zap.String("url", url))
		}
		t.publish(scholar.EventProgress)
	}

	t.job.Status = scholar.StatusCompleted
	t.job.Progress = 100.0
	t.logger.Info("collection complete",
		zap.Int("items", len(t.job.Items)),
		zap.Int("skipped", t.job.SkippedCount),
	)
}

func (t *Task) extractItem(ctx context.Context, sess scholar.Session, url string) (scholar.Record, bool) {
	if err := sess.Navigate(ctx, url); err != nil {
		t.logger.Warn("item navigation failed", zap.String("url", url), zap.Error(err))
		return scholar.Record{}, false
	}
	t.pause(ctx, t.cfg.ItemDelay)
	return extract.Paper(ctx, sess, url)
}

// fail moves the job to ERROR, freezing progress at its last value.
func (t *Task) fail(err error) {
	t.job.Status = scholar.StatusError
	t.job.ErrorMessage = err.Error()
	t.logger.Error("job failed", zap.Error(err))
}

func (t *Task) publish(kind scholar.EventKind) {
	if t.publisher == nil {
		return
	}
	if !t.publisher.Publish(kind, t.job.Snapshot(), t.job.Key.ClientID) {
		t.logger.Warn("progress publish failed", zap.String("kind", string(kind)))
	}
}

func (t *Task) publishTerminal() {
	if t.job.Status == scholar.StatusCompleted {
		t.publish(scholar.EventCompleted)
		return
	}
	t.publish(scholar.EventFailed)
}

func (t *Task) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func roundProgress(p float64) float64 {
	return math.Round(p*100) / 100
}

func dedupeHTTP(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !strings.HasPrefix(u, "http") {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
