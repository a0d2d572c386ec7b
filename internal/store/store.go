package store

import (
	"context"
	"errors"

	"github.com/sells-group/insight-api/internal/model"
)

// ErrNotFound is returned when no job exists for the requested id.
var ErrNotFound = errors.New("job not found")

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis jobs. Every
// mutation is a single independently committed statement, so a poller
// always sees the most recently completed stage.
type Store interface {
	// CreateJob inserts a QUEUED job with progress 0 and returns it.
	CreateJob(ctx context.Context, question string) (*model.Job, error)

	// SetStatus updates status, progress, and the current-step label.
	SetStatus(ctx context.Context, jobID string, status model.JobStatus, progress int, step string) error

	// SaveResult atomically marks the job COMPLETE at progress 100 with
	// step "Finished" and stores the final report.
	SaveResult(ctx context.Context, jobID string, report *model.FinalReport) error

	// SaveError atomically marks the job ERROR with step "Error" and
	// stores the user-visible message. Progress is left unchanged.
	SaveError(ctx context.Context, jobID string, message string) error

	// GetJob returns the job or ErrNotFound.
	GetJob(ctx context.Context, jobID string) (*model.Job, error)

	// ListJobs returns jobs matching the filter, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
