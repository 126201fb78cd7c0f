package driven

import (
	"context"
	"time"

	"github.com/openexams/paperd/internal/core/domain"
)

// ExtractionJob is one unit of background extraction work.
// Exactly one of Text or FilePath is set, matching the task type.
type ExtractionJob struct {
	TaskID     string          `json:"task_id"`
	Type       domain.TaskType `json:"type"`
	Text       string          `json:"text,omitempty"`
	FilePath   string          `json:"file_path,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// JobQueue hands extraction jobs from the HTTP layer to the worker pool.
// Jobs are one-shot: there is no retry, priority or cancellation - a failed
// job terminates in the task record, not back on the queue.
// Implementations can use Redis Streams (preferred) or Postgres (fallback).
type JobQueue interface {
	// Enqueue adds a job for processing.
	Enqueue(ctx context.Context, job *ExtractionJob) error

	// DequeueWithTimeout retrieves the next job, waiting up to timeout
	// seconds. Returns nil, nil if none became available.
	DequeueWithTimeout(ctx context.Context, timeout int) (*ExtractionJob, error)

	// Ack acknowledges that a dequeued job has been processed.
	Ack(ctx context.Context, taskID string) error

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}
