package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pubview/scholarstream/internal/scholar"
)

type fakeEngine struct {
	mu        sync.Mutex
	submitErr error
	jobs      map[scholar.JobKey]scholar.Job
	recent    []scholar.Job
	cancelOK  bool
	submitted []submitJobRequest
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{jobs: make(map[scholar.JobKey]scholar.Job)}
}

func (f *fakeEngine) Submit(sourceURL, clientID, searchID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, submitJobRequest{URL: sourceURL, ClientID: clientID, SearchID: searchID})
	return scholar.JobKey{ClientID: clientID, SearchID: searchID}.String(), nil
}

func (f *fakeEngine) Status(clientID, searchID string) (scholar.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[scholar.JobKey{ClientID: clientID, SearchID: searchID}]
	if !ok {
		return scholar.Job{}, scholar.ErrNotFound
	}
	return job, nil
}

func (f *fakeEngine) Cancel(string, string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelOK
}

func (f *fakeEngine) RecentCompleted(limit int) []scholar.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit < len(f.recent) {
		return f.recent[:limit]
	}
	return f.recent
}

func (f *fakeEngine) Stats() scholar.PoolStats {
	return scholar.PoolStats{RunningCount: 1, CompletedCount: 2, Capacity: 20, MaxWorkers: 5}
}

func newTestServer(engine Engine) *Server {
	return NewServer(engine, nil, nil, zap.NewNop(), Config{RequestTimeout: 5 * time.Second})
}

func TestServerSubmitJobAccepted(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	server := newTestServer(engine)

	body := []byte(`{"url":"https://scholar.example/profile","client_id":"c1","search_id":"s1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "c1_s1")
	require.Len(t, engine.submitted, 1)
	require.Equal(t, "https://scholar.example/profile", engine.submitted[0].URL)
}

func TestServerSubmitJobValidation(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeEngine())

	cases := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", "{invalid", "invalid JSON"},
		{"missing client", `{"url":"https://x.example","search_id":"s1"}`, "client_id required"},
		{"missing search", `{"url":"https://x.example","client_id":"c1"}`, "search_id required"},
		{"missing url", `{"client_id":"c1","search_id":"s1"}`, "url required"},
		{"relative url", `{"url":"/profile","client_id":"c1","search_id":"s1"}`, "absolute"},
		{"bad scheme", `{"url":"ftp://x.example","client_id":"c1","search_id":"s1"}`, "absolute"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), tc.want)
		})
	}
}

func TestServerSubmitJobQueueFull(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.submitErr = scholar.ErrQueueFull
	server := newTestServer(engine)

	body := []byte(`{"url":"https://scholar.example/p","client_id":"c1","search_id":"s1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "queue full")
}

func TestServerJobStatus(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	key := scholar.JobKey{ClientID: "c1", SearchID: "s1"}
	engine.jobs[key] = scholar.Job{
		Key:      key,
		Status:   scholar.StatusSearchingPapers,
		Progress: 48.33,
	}
	server := newTestServer(engine)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/c1/s1/", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var job scholar.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.Equal(t, scholar.StatusSearchingPapers, job.Status)
	require.Equal(t, 48.33, job.Progress)
}

func TestServerJobStatusNotFound(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeEngine())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/c1/missing/", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerCancelJob(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.cancelOK = true
	server := newTestServer(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/c1/s1/cancel", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"canceled":true`)
}

func TestServerCancelJobConflict(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeEngine())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/c1/s1/cancel", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), `"canceled":false`)
}

func TestServerRecentJobs(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.recent = []scholar.Job{
		{Key: scholar.JobKey{ClientID: "c1", SearchID: "s2"}, Status: scholar.StatusCompleted},
		{Key: scholar.JobKey{ClientID: "c1", SearchID: "s1"}, Status: scholar.StatusError},
	}
	server := newTestServer(engine)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/recent", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":2`)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/recent?limit=1", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Contains(t, rec.Body.String(), `"count":1`)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/recent?limit=zero", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerPoolStats(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeEngine())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pool", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats scholar.PoolStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.RunningCount)
	require.Equal(t, 20, stats.Capacity)
}

func TestServerHealthz(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeEngine())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
