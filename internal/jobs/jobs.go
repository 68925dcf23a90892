// Package jobs keeps the recent batch validation jobs of the HTTP service
// in memory, keyed by ULID.
package jobs

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/optimode/mxverify"
)

// DefaultLimit is how many jobs a Registry keeps.
const DefaultLimit = 32

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Snapshot is the externally visible state of a job.
type Snapshot struct {
	ID             string    `json:"id"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	Processed      int       `json:"processed"`
	Progress       int       `json:"progress"` // percent
	TotalCount     int       `json:"totalCount"`
	ValidCount     int       `json:"validCount"`
	InvalidCount   int       `json:"invalidCount"`
	ElapsedSeconds float64   `json:"timeElapsedSeconds"`
	Error          string    `json:"error,omitempty"`
}

// Done reports whether the job reached a final state.
func (s Snapshot) Done() bool {
	return s.Status == StatusDone || s.Status == StatusFailed
}

// Job is one batch validation run.
type Job struct {
	mu     sync.Mutex
	snap   Snapshot
	report mxverify.BatchReport
	subs   map[chan Snapshot]struct{}
}

// ID returns the job's ULID.
func (j *Job) ID() string {
	return j.snap.ID
}

// Snapshot returns the current state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snap
}

// Report returns the batch report once the job is done.
func (j *Job) Report() (mxverify.BatchReport, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.report, j.snap.Status == StatusDone
}

// Start marks the job running.
func (j *Job) Start() {
	j.update(func(s *Snapshot) { s.Status = StatusRunning })
}

// Update records batch progress.
func (j *Job) Update(p mxverify.Progress) {
	j.update(func(s *Snapshot) {
		s.Processed = p.Processed
		s.Progress = p.Percent
	})
}

// Finish stores the report and marks the job done.
func (j *Job) Finish(r mxverify.BatchReport) {
	j.mu.Lock()
	j.report = r
	j.mu.Unlock()
	j.update(func(s *Snapshot) {
		s.Status = StatusDone
		s.Processed = r.Total
		s.Progress = 100
		s.ValidCount = r.ValidCount
		s.InvalidCount = r.InvalidCount
		s.ElapsedSeconds = r.ElapsedSeconds()
	})
}

// Fail marks the job failed.
func (j *Job) Fail(err error) {
	j.update(func(s *Snapshot) {
		s.Status = StatusFailed
		s.Error = err.Error()
	})
}

// Subscribe returns a channel receiving every state change, starting with
// the current one. It is closed after the final state or when cancel is
// called. Slow readers miss intermediate states, never the final one.
func (j *Job) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	j.mu.Lock()
	ch <- j.snap
	if j.snap.Done() {
		j.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	j.subs[ch] = struct{}{}
	j.mu.Unlock()

	cancel := func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if _, ok := j.subs[ch]; ok {
			delete(j.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (j *Job) update(fn func(*Snapshot)) {
	j.mu.Lock()
	defer j.mu.Unlock()

	fn(&j.snap)
	for ch := range j.subs {
		// Keep only the newest state in the buffer.
		select {
		case <-ch:
		default:
		}
		ch <- j.snap
		if j.snap.Done() {
			delete(j.subs, ch)
			close(ch)
		}
	}
}

// Registry holds the most recent jobs. Older jobs are evicted once the
// limit is reached.
type Registry struct {
	mu     sync.Mutex
	limit  int
	jobs   map[string]*Job
	order  []string // oldest first
	latest *Job
}

// NewRegistry creates a registry keeping limit jobs (DefaultLimit if <= 0).
func NewRegistry(limit int) *Registry {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Registry{
		limit: limit,
		jobs:  make(map[string]*Job),
	}
}

// Create registers a new pending job for total addresses.
func (r *Registry) Create(total int) *Job {
	j := &Job{
		snap: Snapshot{
			ID:         ulid.Make().String(),
			Status:     StatusPending,
			CreatedAt:  time.Now().UTC(),
			TotalCount: total,
		},
		subs: make(map[chan Snapshot]struct{}),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.snap.ID] = j
	r.order = append(r.order, j.snap.ID)
	r.latest = j
	for len(r.order) > r.limit {
		delete(r.jobs, r.order[0])
		r.order = r.order[1:]
	}
	return j
}

// Get returns the job with the given id.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return j, ok
}

// Latest returns the most recently created job.
func (r *Registry) Latest() (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.latest != nil
}

// Len returns the number of jobs held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
