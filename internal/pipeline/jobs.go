package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/zenview/internal/catalog"
	"github.com/dgallion1/zenview/internal/doctree"
	"github.com/dgallion1/zenview/internal/reveal"
)

// JobStatus represents the state of a document load.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusLoading   JobStatus = "loading"
	StatusParsing   JobStatus = "parsing"
	StatusPreparing JobStatus = "preparing"
	StatusReady     JobStatus = "ready"
	StatusFailed    JobStatus = "failed"
)

// Prepared is a parsed document together with the reveal units of every
// section, ready to hand to a front-end.
type Prepared struct {
	Entry     catalog.Entry            `json:"entry"`
	Markdown  string                   `json:"-"`
	Doc       *doctree.Document        `json:"document"`
	Units     map[string][]reveal.Unit `json:"units"`
	LoadError string                   `json:"load_error,omitempty"`
}

// Job tracks the loading of one catalog document.
type Job struct {
	mu sync.Mutex

	ID    string        `json:"job_id"`
	Entry catalog.Entry `json:"entry"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Attempts int       `json:"attempts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	result *Prepared
	errors []string
	done   chan struct{}
}

// NewJob creates a queued job for entry.
func NewJob(entry catalog.Entry) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Entry:     entry,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		done:      make(chan struct{}),
	}
}

// JobStore is a thread-safe in-memory registry of the latest job per slug
// with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Entry.Slug] = job
}

func (s *JobStore) Get(slug string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[slug]
}

// Delete removes the job for slug.
func (s *JobStore) Delete(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, slug)
}

// Len returns the number of cached jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes settled jobs that have not been touched within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for slug, job := range s.jobs {
		if job.Settled() && now.Sub(job.LastUpdate()) > s.ttl {
			delete(s.jobs, slug)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.UpdatedAt = time.Now()
}

// IncrAttempts counts one load attempt.
func (j *Job) IncrAttempts() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Attempts++
	j.UpdatedAt = time.Now()
}

// Finish settles the job. A nil result marks it failed.
func (j *Job) Finish(result *Prepared) {
	j.mu.Lock()
	defer j.mu.Unlock()
	select {
	case <-j.done:
		return
	default:
	}
	j.result = result
	if result != nil {
		j.Status = StatusReady
		j.Phase = "ready"
	} else {
		j.Status = StatusFailed
	}
	j.UpdatedAt = time.Now()
	close(j.done)
}

// Done is closed once the job is settled.
func (j *Job) Done() <-chan struct{} { return j.done }

// Settled reports whether the job has finished.
func (j *Job) Settled() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Result returns the prepared document of a ready job.
func (j *Job) Result() *Prepared {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// LastUpdate returns the time of the last state change.
func (j *Job) LastUpdate() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string    `json:"job_id"`
	Slug     string    `json:"slug"`
	Name     string    `json:"name"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Attempts int       `json:"attempts"`
	Sections int       `json:"sections"`
	Hash     string    `json:"hash,omitempty"`
	Errors   []string  `json:"errors"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.errors...)
	snap := JobSnapshot{
		ID:       j.ID,
		Slug:     j.Entry.Slug,
		Name:     j.Entry.Name,
		Status:   j.Status,
		Phase:    j.Phase,
		Attempts: j.Attempts,
		Errors:   errs,
	}
	if j.result != nil && j.result.Doc != nil {
		snap.Sections = len(j.result.Doc.Sections)
		snap.Hash = j.result.Doc.Hash
	}
	return snap
}
