package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/sitebaker/internal/site"
)

// JobStore keeps bake job records in memory.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]site.BakeJob
	now  func() time.Time
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]site.BakeJob),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job site.BakeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJob updates the status and result of a job, stamping start and finish times.
func (s *JobStore) UpdateJob(
	_ context.Context,
	jobID string,
	status site.JobStatus,
	errText string,
	result site.BakeResult,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return site.ErrNotFound
	}
	job.Status = status
	job.ErrorText = errText
	job.Result = result
	now := s.now()
	if status == site.JobStatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if isTerminal(status) {
		job.Finished = pointerTime(now)
	}
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (site.BakeJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return site.BakeJob{}, site.ErrNotFound
	}
	return job, nil
}

// ListJobs returns all jobs, most recently submitted first.
func (s *JobStore) ListJobs(_ context.Context) ([]site.BakeJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]site.BakeJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Submitted.After(out[j].Submitted)
	})
	return out, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status site.JobStatus) bool {
	switch status {
	case site.JobStatusSucceeded, site.JobStatusFailed:
		return true
	default:
		return false
	}
}
