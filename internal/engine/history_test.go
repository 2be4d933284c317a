package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pubview/scholarstream/internal/scholar"
)

func completedJob(i int) scholar.Job {
	return scholar.Job{
		Key:      scholar.JobKey{ClientID: "c", SearchID: fmt.Sprintf("s%d", i)},
		Status:   scholar.StatusCompleted,
		Progress: 100.0,
	}
}

func TestHistoryEvictsOldestBeyondCapacity(t *testing.T) {
	t.Parallel()

	h := newHistoryCache(20)
	for i := 0; i < 25; i++ {
		h.add(completedJob(i))
	}

	require.Equal(t, 20, h.size())

	// The five oldest are gone.
	for i := 0; i < 5; i++ {
		_, ok := h.get(scholar.JobKey{ClientID: "c", SearchID: fmt.Sprintf("s%d", i)})
		require.False(t, ok, "job s%d should have been evicted", i)
	}
	_, ok := h.get(scholar.JobKey{ClientID: "c", SearchID: "s5"})
	require.True(t, ok)
	_, ok = h.get(scholar.JobKey{ClientID: "c", SearchID: "s24"})
	require.True(t, ok)
}

func TestHistoryRecentOrder(t *testing.T) {
	t.Parallel()

	h := newHistoryCache(20)
	for i := 0; i < 5; i++ {
		h.add(completedJob(i))
	}

	recent := h.recent(3)
	require.Len(t, recent, 3)
	require.Equal(t, "s4", recent[0].Key.SearchID)
	require.Equal(t, "s3", recent[1].Key.SearchID)
	require.Equal(t, "s2", recent[2].Key.SearchID)

	all := h.recent(0)
	require.Len(t, all, 5)
	require.Equal(t, "s4", all[0].Key.SearchID)
	require.Equal(t, "s0", all[4].Key.SearchID)
}

func TestHistoryReAddSameKeyKeepsSingleEntry(t *testing.T) {
	t.Parallel()

	h := newHistoryCache(20)
	job := completedJob(1)
	h.add(job)

	job.Status = scholar.StatusError
	h.add(job)

	require.Equal(t, 1, h.size())
	got, ok := h.get(job.Key)
	require.True(t, ok)
	require.Equal(t, scholar.StatusError, got.Status)
}
