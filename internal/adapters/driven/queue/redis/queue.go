package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openexams/paperd/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

const (
	// Stream and consumer group names
	jobStream = "paperd:extraction"
	jobGroup  = "paperd:workers"

	// Default consumer name prefix
	consumerPrefix = "worker-"
)

// Verify interface compliance
var _ driven.JobQueue = (*Queue)(nil)

// Queue implements JobQueue using Redis Streams.
// Jobs are delivered at least once through a consumer group; a job stays
// pending until the worker acknowledges it after processing.
type Queue struct {
	client       *redis.Client
	consumerName string

	mu      sync.Mutex
	pending map[string]string // task id -> stream message id
}

// NewQueue creates a new Redis-backed job queue.
// The consumerName should be unique per worker instance (e.g., hostname + PID).
func NewQueue(client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("%s%d", consumerPrefix, time.Now().UnixNano())
	}

	q := &Queue{
		client:       client,
		consumerName: consumerName,
		pending:      make(map[string]string),
	}

	// Create consumer group if it doesn't exist
	ctx := context.Background()
	err := q.client.XGroupCreateMkStream(ctx, jobStream, jobGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return q, nil
}

// Enqueue adds an extraction job to the stream
func (q *Queue) Enqueue(ctx context.Context, job *driven.ExtractionJob) error {
	if job == nil {
		return errors.New("job is required")
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: jobStream,
		Values: map[string]interface{}{
			"job": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	return nil
}

// DequeueWithTimeout retrieves the next job, waiting up to timeout seconds.
// Returns (nil, nil) when no job arrives within the window.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*driven.ExtractionJob, error) {
	blockDuration := time.Duration(timeout) * time.Second
	if timeout <= 0 {
		blockDuration = time.Second
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    jobGroup,
		Consumer: q.consumerName,
		Streams:  []string{jobStream, ">"},
		Count:    1,
		Block:    blockDuration,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No jobs available
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	msg := streams[0].Messages[0]
	payload, ok := msg.Values["job"].(string)
	if !ok {
		// Invalid message, acknowledge and skip
		q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
		q.client.XDel(ctx, jobStream, msg.ID)
		return nil, nil
	}

	var job driven.ExtractionJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
		q.client.XDel(ctx, jobStream, msg.ID)
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	q.mu.Lock()
	q.pending[job.TaskID] = msg.ID
	q.mu.Unlock()

	return &job, nil
}

// Ack acknowledges a processed job and removes it from the stream
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	q.mu.Lock()
	msgID, ok := q.pending[taskID]
	delete(q.pending, taskID)
	q.mu.Unlock()

	if !ok {
		return nil // Not dequeued by this consumer
	}

	pipe := q.client.Pipeline()
	pipe.XAck(ctx, jobStream, jobGroup, msgID)
	pipe.XDel(ctx, jobStream, msgID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Ping checks if the queue backend is healthy
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close cleans up resources
func (q *Queue) Close() error {
	// Redis client is shared, don't close it here
	return nil
}

func isGroupExistsError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
