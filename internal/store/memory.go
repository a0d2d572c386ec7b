package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/insight-api/internal/model"
)

// MemoryStore keeps jobs in an in-process map. Used by tests and as a
// zero-setup dev mode; rows do not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*model.Job
	resultTTL time.Duration
}

// NewMemory creates an empty in-memory store.
func NewMemory(resultTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]*model.Job),
		resultTTL: resultTTL,
	}
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Ping(ctx context.Context) error    { return nil }
func (s *MemoryStore) Close() error                      { return nil }

func (s *MemoryStore) CreateJob(ctx context.Context, question string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	j := &model.Job{
		ID:        uuid.New().String(),
		Question:  question,
		Status:    model.JobStatusQueued,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.resultTTL),
	}
	s.jobs[j.ID] = j
	return cloneJob(j), nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, jobID string, status model.JobStatus, progress int, step string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	j.Status = status
	j.Progress = progress
	j.CurrentStep = step
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) SaveResult(ctx context.Context, jobID string, report *model.FinalReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	j.Status = model.JobStatusComplete
	j.Progress = 100
	j.CurrentStep = "Finished"
	r := *report
	j.Result = &r
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) SaveError(ctx context.Context, jobID string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	j.Status = model.JobStatusError
	j.ErrorMessage = message
	j.CurrentStep = "Error"
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *MemoryStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []model.Job
	for _, j := range s.jobs {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		jobs = append(jobs, *cloneJob(j))
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(jobs) {
			return nil, nil
		}
		jobs = jobs[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func cloneJob(j *model.Job) *model.Job {
	clone := *j
	if j.Result != nil {
		r := *j.Result
		clone.Result = &r
	}
	return &clone
}
