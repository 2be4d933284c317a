package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pubview/scholarstream/internal/scholar"
)

// scriptedSession serves per-URL selector text so tests can model a profile
// page plus item pages without a browser.
type scriptedSession struct {
	pages      map[string]map[string]string // url -> selector -> text
	itemHrefs  []string
	currentURL string
	navErrs    map[string]error
	closed     int
}

func (s *scriptedSession) Navigate(_ context.Context, url string) error {
	if err := s.navErrs[url]; err != nil {
		return err
	}
	s.currentURL = url
	return nil
}

func (s *scriptedSession) FirstText(_ context.Context, candidates []string) (string, bool) {
	page := s.pages[s.currentURL]
	for _, sel := range candidates {
		if text, ok := page[sel]; ok && text != "" {
			return text, true
		}
	}
	return "", false
}

func (s *scriptedSession) Attr(_ context.Context, selector, _ string) (string, bool) {
	text, ok := s.pages[s.currentURL][selector]
	return text, ok
}

func (s *scriptedSession) AllAttrs(_ context.Context, _ []string, _ string) []string {
	return s.itemHrefs
}

func (s *scriptedSession) Title(_ context.Context) (string, bool) {
	title, ok := s.pages[s.currentURL]["__title__"]
	return title, ok
}

func (s *scriptedSession) Click(context.Context, []string) bool { return false }

func (s *scriptedSession) WaitVisible(context.Context, string, time.Duration) bool { return true }

func (s *scriptedSession) Close() { s.closed++ }

type fakeFactory struct {
	sess    scholar.Session
	openErr error
}

func (f *fakeFactory) Open(context.Context) (scholar.Session, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.sess, nil
}

// recordingPublisher captures every published snapshot in order.
type recordingPublisher struct {
	mu     sync.Mutex
	kinds  []scholar.EventKind
	snaps  []scholar.Job
	refuse bool
}

func (p *recordingPublisher) Publish(kind scholar.EventKind, snap scholar.Job, _ string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, kind)
	p.snaps = append(p.snaps, snap)
	return !p.refuse
}

func profilePage(subject string) map[string]string {
	return map[string]string{"#gsc_prf_in": subject}
}

func itemPage(title string) map[string]string {
	return map[string]string{
		".gs_rt a": title,
		".gs_a":    "A Martinez, B Okafor - Journal of Testing, 2019",
	}
}

func newJob() *scholar.Job {
	return &scholar.Job{
		Key:       scholar.JobKey{ClientID: "c1", SearchID: "s1"},
		SourceURL: "https://scholar.example/profile",
		Status:    scholar.StatusPending,
		StartTime: time.Unix(100, 0),
	}
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()

	sess := &scriptedSession{
		pages: map[string]map[string]string{
			"https://scholar.example/profile": profilePage("Junzhou Huang"),
			"https://scholar.example/item/1":  itemPage("First Publication Title"),
			"https://scholar.example/item/2":  itemPage("Second Publication Title"),
			"https://scholar.example/item/3":  itemPage("Third Publication Title"),
		},
		itemHrefs: []string{
			"https://scholar.example/item/1",
			"https://scholar.example/item/2",
			"https://scholar.example/item/3",
		},
	}
	pub := &recordingPublisher{}
	job := newJob()

	final := New(job, &fakeFactory{sess: sess}, pub, nil, Config{}).Run(context.Background())

	require.Equal(t, scholar.StatusCompleted, final.Status)
	require.Equal(t, 100.0, final.Progress)
	require.Equal(t, "Junzhou Huang", final.SubjectName)
	require.Equal(t, 3, final.FetchedCount)
	require.Equal(t, 3, final.TotalCount)
	require.Len(t, final.Items, 3)
	require.Zero(t, final.SkippedCount)
	require.Equal(t, 1, sess.closed)

	// Terminal event is last and carries the completed snapshot.
	require.Equal(t, scholar.EventCompleted, pub.kinds[len(pub.kinds)-1])
	require.Equal(t, scholar.EventJobAccepted, pub.kinds[0])
}

// TestRunProgressMonotonic asserts snapshots never move backwards and only
// the completed snapshot reads exactly 100.
func TestRunProgressMonotonic(t *testing.T) {
	t.Parallel()

	sess := &scriptedSession{
		pages: map[string]map[string]string{
			"https://scholar.example/profile": profilePage("A Subject"),
			"https://scholar.example/item/1":  itemPage("Publication Alpha Title"),
			"https://scholar.example/item/2":  itemPage("Publication Beta Title"),
		},
		itemHrefs: []string{
			"https://scholar.example/item/1",
			"https://scholar.example/item/2",
		},
	}
	pub := &recordingPublisher{}
	New(newJob(), &fakeFactory{sess: sess}, pub, nil, Config{}).Run(context.Background())

	last := -1.0
	for _, snap := range pub.snaps {
		require.GreaterOrEqual(t, snap.Progress, last)
		last = snap.Progress
		if snap.Progress == 100.0 {
			require.Equal(t, scholar.StatusCompleted, snap.Status)
		}
		require.LessOrEqual(t, len(snap.Items), len(snap.ItemURLs))
	}
	require.Equal(t, 100.0, last)
}

func TestRunItemProgressCheckpoints(t *testing.T) {
	t.Parallel()

	sess := &scriptedSession{
		pages: map[string]map[string]string{
			"https://scholar.example/profile": profilePage("A Subject"),
			"https://scholar.example/item/1":  itemPage("Publication Alpha Title"),
			"https://scholar.example/item/2":  itemPage("Publication Beta Title"),
			"https://scholar.example/item/3":  itemPage("Publication Gamma Title"),
		},
		itemHrefs: []string{
			"https://scholar.example/item/1",
			"https://scholar.example/item/2",
			"https://scholar.example/item/3",
		},
	}
	pub := &recordingPublisher{}
	New(newJob(), &fakeFactory{sess: sess}, pub, nil, Config{}).Run(context.Background())

	var itemProgress []float64
	for _, snap := range pub.snaps {
		if snap.Status == scholar.StatusSearchingPapers {
			itemProgress = append(itemProgress, snap.Progress)
		}
	}
	require.Equal(t, []float64{48.33, 71.67, 95}, itemProgress)
}

func TestRunDiscoveryFailureNoSubject(t *testing.T) {
	t.Parallel()

	sess := &scriptedSession{
		pages: map[string]map[string]string{
			"https://scholar.example/profile": {},
		},
	}
	pub := &recordingPublisher{}
	final := New(newJob(), &fakeFactory{sess: sess}, pub, nil, Config{}).Run(context.Background())

	require.Equal(t, scholar.StatusError, final.Status)
	require.Contains(t, final.ErrorMessage, "subject identity")
	require.Empty(t, final.Items)
	require.Equal(t, 1, sess.closed)
	require.Equal(t, scholar.EventFailed, pub.kinds[len(pub.kinds)-1])
}

func TestRunSubjectFromPageTitleFallback(t *testing.T) {
	t.Parallel()

	sess := &scriptedSession{
		pages: map[string]map[string]string{
			"https://scholar.example/profile": {
				"__title__": "Jane Renwick - Scholar Profiles",
			},
			"https://scholar.example/item/1": itemPage("Publication Alpha Title"),
		},
		itemHrefs: []string{"https://scholar.example/item/1"},
	}
	final := New(newJob(), &fakeFactory{sess: sess}, &recordingPublisher{}, nil, Config{}).
		Run(context.Background())

	require.Equal(t, scholar.StatusCompleted, final.Status)
	require.Equal(t, "Jane Renwick", final.SubjectName)
}

func TestRunDiscoveryFailureNoItems(t *testing.T) {
	t.Parallel()

	sess := &scriptedSession{
		pages: map[string]map[string]string{
			"https://scholar.example/profile": profilePage("A Subject"),
		},
		itemHrefs: nil,
	}
	final := New(newJob(), &fakeFactory{sess: sess}, &recordingPublisher{}, nil, Config{}).
		Run(context.Background())

	require.Equal(t, scholar.StatusError, final.Status)
	require.Contains(t, final.ErrorMessage, "no item urls")
	require.Contains(t, final.ErrorMessage, "discovery failed")
}

func TestRunPartialExtractionSkipsItem(t *testing.T) {
	t.Parallel()

	sess := &scriptedSession{
		pages: map[string]map[string]string{
			"https://scholar.example/profile": profilePage("A Subject"),
			"https://scholar.example/item/1":  itemPage("Publication Alpha Title"),
			"https://scholar.example/item/2":  {}, // no title, extraction yields nothing
			"https://scholar.example/item/3":  itemPage("Publication Gamma Title"),
		},
		itemHrefs: []string{
			"https://scholar.example/item/1",
			"https://scholar.example/item/2",
			"https://scholar.example/item/3",
		},
	}
	final := New(newJob(), &fakeFactory{sess: sess}, &recordingPublisher{}, nil, Config{}).
		Run(context.Background())

	require.Equal(t, scholar.StatusCompleted, final.Status)
	require.Equal(t, 3, final.FetchedCount)
	require.Len(t, final.Items, 2)
	require.Equal(t, 1, final.SkippedCount)
}

func TestRunItemNavigationFailureSkipsItem(t *testing.T) {
	t.Parallel()

	sess := &scriptedSession{
		pages: map[string]map[string]string{
			"https://scholar.example/profile": profilePage("A Subject"),
			"https://scholar.example/item/1":  itemPage("Publication Alpha Title"),
		},
		itemHrefs: []string{
			"https://scholar.example/item/1",
			"https://scholar.example/item/2",
		},
		navErrs: map[string]error{
			"https://scholar.example/item/2": errors.New("net::ERR_TIMED_OUT"),
		},
	}
	final := New(newJob(), &fakeFactory{sess: sess}, &recordingPublisher{}, nil, Config{}).
		Run(context.Background())

	require.Equal(t, scholar.StatusCompleted, final.Status)
	require.Len(t, final.Items, 1)
	require.Equal(t, 1, final.SkippedCount)
}

func TestRunSessionInitFailure(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	final := New(
		newJob(),
		&fakeFactory{openErr: errors.New("chrome exited")},
		pub,
		nil,
		Config{},
	).Run(context.Background())

	require.Equal(t, scholar.StatusError, final.Status)
	require.Contains(t, final.ErrorMessage, "session init failed")
	require.Zero(t, final.FetchedCount)
	require.Equal(t, scholar.EventFailed, pub.kinds[len(pub.kinds)-1])
}

// TestRunPublishFailureDoesNotAbort covers the fire-and-forget publish rule.
func TestRunPublishFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	sess := &scriptedSession{
		pages: map[string]map[string]string{
			"https://scholar.example/profile": profilePage("A Subject"),
			"https://scholar.example/item/1":  itemPage("Publication Alpha Title"),
		},
		itemHrefs: []string{"https://scholar.example/item/1"},
	}
	pub := &recordingPublisher{refuse: true}
	final := New(newJob(), &fakeFactory{sess: sess}, pub, nil, Config{}).Run(context.Background())

	require.Equal(t, scholar.StatusCompleted, final.Status)
	require.Len(t, final.Items, 1)
}
