package queue

import (
	"context"
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	// JobTypeContributionReminder notifies a member that a contribution is due
	JobTypeContributionReminder JobType = "contribution_reminder"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// DefaultMaxRetries is the number of attempts a job gets before it is parked
// on the dead queue
const DefaultMaxRetries = 3

// Job represents a background job
type Job struct {
	ID         string          `json:"id"`
	Type       JobType         `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	CreatedAt  time.Time       `json:"created_at"`
	Error      string          `json:"error,omitempty"`
}

// JobHandler processes a dequeued job
type JobHandler func(ctx context.Context, job Job) error
