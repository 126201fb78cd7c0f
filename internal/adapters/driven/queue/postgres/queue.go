package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openexams/paperd/internal/core/ports/driven"
)

// Ensure Queue implements JobQueue
var _ driven.JobQueue = (*Queue)(nil)

const pollInterval = 250 * time.Millisecond

// Queue implements JobQueue using PostgreSQL with SKIP LOCKED.
// This is the fallback queue when Redis is not available: jobs live in the
// extraction_jobs table, are claimed atomically by one worker at a time, and
// are deleted on acknowledgement.
type Queue struct {
	db *sql.DB
}

// NewQueue creates a new PostgreSQL-backed job queue.
// Assumes the extraction_jobs table has been created via InitSchema.
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue adds a job to the queue
func (q *Queue) Enqueue(ctx context.Context, job *driven.ExtractionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	query := `
		INSERT INTO extraction_jobs (task_id, payload, status, enqueued_at)
		VALUES ($1, $2, 'pending', $3)
	`
	if _, err := q.db.ExecContext(ctx, query, job.TaskID, payload, time.Now()); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// DequeueWithTimeout polls for the next pending job for up to timeout
// seconds. Returns (nil, nil) when nothing becomes available.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*driven.ExtractionJob, error) {
	deadline := time.Now().Add(time.Duration(timeout) * time.Second)

	for {
		job, err := q.claim(ctx)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}

		if !time.Now().Before(deadline) {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// claim atomically selects and marks the oldest pending job.
func (q *Queue) claim(ctx context.Context) (*driven.ExtractionJob, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	selectQuery := `
		SELECT task_id, payload
		FROM extraction_jobs
		WHERE status = 'pending'
		ORDER BY enqueued_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	var taskID string
	var payload []byte
	err = tx.QueryRowContext(ctx, selectQuery).Scan(&taskID, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}

	updateQuery := `
		UPDATE extraction_jobs
		SET status = 'processing', claimed_at = $1
		WHERE task_id = $2
	`
	if _, err := tx.ExecContext(ctx, updateQuery, time.Now(), taskID); err != nil {
		return nil, fmt.Errorf("mark job processing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	var job driven.ExtractionJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// Ack removes a processed job from the queue
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	query := `DELETE FROM extraction_jobs WHERE task_id = $1`
	if _, err := q.db.ExecContext(ctx, query, taskID); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// Ping checks database connectivity
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close is a no-op for the Postgres queue (db connection managed externally)
func (q *Queue) Close() error {
	return nil
}
