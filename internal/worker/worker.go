package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/openexams/paperd/internal/core/domain"
	"github.com/openexams/paperd/internal/core/ports/driven"
	"github.com/openexams/paperd/internal/core/ports/driving"
	"github.com/openexams/paperd/internal/core/services"
)

// Worker processes extraction jobs from the job queue.
// Each job runs inside its own error boundary: extraction failures and
// panics are recorded into the task record and never escape the worker.
type Worker struct {
	queue     driven.JobQueue
	extractor driven.ContentExtractor
	papers    driving.PaperService
	registry  *services.TaskRegistry
	logger    *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Config holds configuration for the worker.
type Config struct {
	Queue          driven.JobQueue
	Extractor      driven.ContentExtractor
	Papers         driving.PaperService
	Registry       *services.TaskRegistry
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent job processors
	DequeueTimeout int // Seconds to wait for a job before checking again
}

// New creates a new extraction worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		queue:          cfg.Queue,
		extractor:      cfg.Extractor,
		papers:         cfg.Papers,
		registry:       cfg.Registry,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		job, err := w.queue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue job", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if job == nil {
			continue
		}

		w.processJob(ctx, job, logger)

		if ackErr := w.queue.Ack(ctx, job.TaskID); ackErr != nil {
			logger.Error("failed to ack job", "task_id", job.TaskID, "ack_error", ackErr)
		}
	}
}

// processJob runs one extraction end to end and records the terminal state.
// It never returns an error: every failure path ends in MarkError.
func (w *Worker) processJob(ctx context.Context, job *driven.ExtractionJob, logger *slog.Logger) {
	logger = logger.With("task_id", job.TaskID, "task_type", job.Type)
	logger.Info("processing extraction job")

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in extraction job", "panic", r)
			w.markError(ctx, job.TaskID, fmt.Sprintf("panic: %v", r), logger)
		}
	}()

	if job.Type == domain.TaskTypePDF {
		// The upload is scoped to this task and removed on both paths.
		defer func() {
			if err := os.Remove(job.FilePath); err != nil && !os.IsNotExist(err) {
				logger.Error("remove upload", "file", job.FilePath, "error", err)
			}
		}()
	}

	startTime := time.Now()

	var paper *domain.SamplePaper
	var err error
	switch job.Type {
	case domain.TaskTypePDF:
		paper, err = w.extractor.ExtractFile(ctx, job.FilePath)
	case domain.TaskTypeText:
		paper, err = w.extractor.ExtractText(ctx, job.Text)
	default:
		err = fmt.Errorf("unknown task type: %s", job.Type)
	}
	if err != nil {
		logger.Error("extraction failed", "duration", time.Since(startTime), "error", err)
		w.markError(ctx, job.TaskID, err.Error(), logger)
		return
	}

	paperID, err := w.papers.Create(ctx, paper)
	if err != nil {
		logger.Error("store extracted paper", "error", err)
		w.markError(ctx, job.TaskID, err.Error(), logger)
		return
	}

	if err := w.registry.MarkCompleted(ctx, job.TaskID, paperID); err != nil {
		logger.Error("mark task completed", "error", err)
		return
	}

	logger.Info("extraction completed",
		"duration", time.Since(startTime),
		"sample_paper_id", paperID,
	)
}

func (w *Worker) markError(ctx context.Context, taskID, message string, logger *slog.Logger) {
	if err := w.registry.MarkError(ctx, taskID, message); err != nil {
		logger.Error("mark task error", "error", err)
	}
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	if err := w.queue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
