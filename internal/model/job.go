package model

import "time"

// JobStatus represents the current state of an analysis job.
type JobStatus string

const (
	JobStatusQueued       JobStatus = "QUEUED"
	JobStatusProcessing   JobStatus = "PROCESSING"
	JobStatusSynthesizing JobStatus = "SYNTHESIZING"
	JobStatusComplete     JobStatus = "COMPLETE"
	JobStatusError        JobStatus = "ERROR"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// Question length bounds enforced at submission time.
const (
	MinQuestionLen = 10
	MaxQuestionLen = 500
)

// Job is one end-to-end research-question analysis request and its
// tracked lifecycle. Mutated only by the orchestrator after creation.
type Job struct {
	ID           string       `json:"id"`
	Question     string       `json:"research_question"`
	Status       JobStatus    `json:"status"`
	Progress     int          `json:"progress"`
	CurrentStep  string       `json:"current_step,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Result       *FinalReport `json:"result,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// Expired reports whether the job's result has passed its retention TTL.
func (j *Job) Expired(now time.Time) bool {
	return !j.ExpiresAt.IsZero() && now.After(j.ExpiresAt)
}
