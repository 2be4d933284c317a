// Package scholar defines the domain types and interfaces shared by the
// collection engine, page session implementations, and transport adapters.
package scholar

import (
	"fmt"
	"time"
)

// JobStatus tracks a job through its collection stages.
type JobStatus string

// Job lifecycle states, in stage order. Completed and Error are terminal.
const (
	StatusPending         JobStatus = "PENDING"
	StatusCollectingInfo  JobStatus = "COLLECTING_INFO"
	StatusCollectedInfo   JobStatus = "COLLECTED_INFO"
	StatusSearchingPapers JobStatus = "SEARCHING_PAPERS"
	StatusCompleted       JobStatus = "COMPLETED"
	StatusError           JobStatus = "ERROR"
)

// Terminal reports whether no further transitions can leave the status.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// VenueType is a coarse classification of where a publication appeared.
type VenueType string

// Supported venue classes.
const (
	VenueJournal    VenueType = "Journal"
	VenueConference VenueType = "Conference"
	VenuePreprint   VenueType = "Preprint"
	VenueUnknown    VenueType = "Unknown"
)

// JobKey identifies a job. A client may run many searches; resubmitting the
// same (client, search) pair while the first run is in flight is a no-op.
type JobKey struct {
	ClientID string `json:"client_id"`
	SearchID string `json:"search_id"`
}

// String renders the key in the wire form used as a job ID.
func (k JobKey) String() string {
	return fmt.Sprintf("%s_%s", k.ClientID, k.SearchID)
}

// Record is one publication's extracted metadata. Records are created once by
// the extraction pipeline and never mutated afterward.
type Record struct {
	Title           string    `json:"title"`
	Authors         []string  `json:"authors"`
	Year            int       `json:"year"`
	PublicationDate string    `json:"publication_date"`
	SourceURL       string    `json:"source_url"`
	ArtifactURL     string    `json:"artifact_url,omitempty"`
	CitationCount   int       `json:"citation_count"`
	Venue           string    `json:"venue,omitempty"`
	VenueType       VenueType `json:"venue_type"`
	Summary         string    `json:"summary,omitempty"`
}

// Job is the full state of one collection run. During execution it is mutated
// only by its owning worker; everyone else observes Snapshot copies.
type Job struct {
	Key          JobKey    `json:"key"`
	SourceURL    string    `json:"source_url"`
	SubjectName  string    `json:"subject_name"`
	Status       JobStatus `json:"status"`
	Progress     float64   `json:"progress"`
	FetchedCount int       `json:"fetched_count"`
	TotalCount   int       `json:"total_count"`
	ItemURLs     []string  `json:"item_urls"`
	Items        []Record  `json:"items"`
	SkippedCount int       `json:"skipped_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StartTime    time.Time `json:"start_time"`
	WorkerID     int       `json:"worker_id"`
}

// Snapshot returns a copy safe to hand to observers while the owning worker
// keeps mutating the job. Slices are copied; Record values are immutable.
func (j *Job) Snapshot() Job {
	cp := *j
	if len(j.ItemURLs) > 0 {
		cp.ItemURLs = append([]string(nil), j.ItemURLs...)
	}
	if len(j.Items) > 0 {
		cp.Items = append([]Record(nil), j.Items...)
	}
	return cp
}

// PoolStats summarizes engine occupancy for the stats endpoint.
type PoolStats struct {
	RunningCount   int `json:"running_count"`
	CompletedCount int `json:"completed_count"`
	Capacity       int `json:"capacity"`
	MaxWorkers     int `json:"max_workers"`
}
