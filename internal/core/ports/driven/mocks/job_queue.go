package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/openexams/paperd/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.JobQueue = (*MockJobQueue)(nil)

// MockJobQueue is a channel-backed JobQueue for testing
type MockJobQueue struct {
	mu    sync.Mutex
	jobs  chan *driven.ExtractionJob
	acked []string

	// EnqueueErr forces Enqueue to fail when set.
	EnqueueErr error
}

// NewMockJobQueue creates a new MockJobQueue
func NewMockJobQueue() *MockJobQueue {
	return &MockJobQueue{
		jobs: make(chan *driven.ExtractionJob, 64),
	}
}

func (m *MockJobQueue) Enqueue(ctx context.Context, job *driven.ExtractionJob) error {
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	m.jobs <- job
	return nil
}

func (m *MockJobQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*driven.ExtractionJob, error) {
	wait := time.Duration(timeout) * time.Second
	if timeout <= 0 {
		wait = 100 * time.Millisecond
	}
	select {
	case job := <-m.jobs:
		return job, nil
	case <-time.After(wait):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *MockJobQueue) Ack(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, taskID)
	return nil
}

func (m *MockJobQueue) Ping(ctx context.Context) error { return nil }

func (m *MockJobQueue) Close() error { return nil }

// Acked returns the task ids acknowledged so far.
func (m *MockJobQueue) Acked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.acked))
	copy(out, m.acked)
	return out
}

// Pending returns the number of jobs not yet dequeued.
func (m *MockJobQueue) Pending() int {
	return len(m.jobs)
}
