package engine

import "github.com/pubview/scholarstream/internal/scholar"

// historyCache keeps the most recent terminal jobs, evicting strict FIFO by
// completion order once capacity is exceeded. It bounds memory for a
// long-lived server and is explicitly not a durable store. Callers hold the
// engine lock.
type historyCache struct {
	capacity int
	entries  map[scholar.JobKey]scholar.Job
	order    []scholar.JobKey
}

func newHistoryCache(capacity int) *historyCache {
	return &historyCache{
		capacity: capacity,
		entries:  make(map[scholar.JobKey]scholar.Job, capacity),
	}
}

func (h *historyCache) add(job scholar.Job) {
	if _, exists := h.entries[job.Key]; !exists {
		h.order = append(h.order, job.Key)
	}
	h.entries[job.Key] = job

	for len(h.order) > h.capacity {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.entries, oldest)
	}
}

func (h *historyCache) get(key scholar.JobKey) (scholar.Job, bool) {
	job, ok := h.entries[key]
	return job, ok
}

// recent returns up to limit completed jobs, most recently completed first.
func (h *historyCache) recent(limit int) []scholar.Job {
	if limit <= 0 || limit > len(h.order) {
		limit = len(h.order)
	}
	out := make([]scholar.Job, 0, limit)
	for i := len(h.order) - 1; i >= 0 && len(out) < limit; i-- {
		if job, ok := h.entries[h.order[i]]; ok {
			out = append(out, job.Snapshot())
		}
	}
	return out
}

func (h *historyCache) size() int {
	return len(h.order)
}
