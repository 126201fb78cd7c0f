package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openexams/paperd/internal/core/domain"
	"github.com/openexams/paperd/internal/core/ports/driven"
)

// TaskRegistry persists extraction task lifecycle records in the document
// store. The state machine is submitted -> completed|error; terminal states
// are written with partial updates and the store does not guard against a
// second transition - callers must not mark a task twice.
type TaskRegistry struct {
	store      driven.DocumentStore
	collection string
	logger     *slog.Logger
}

// NewTaskRegistry creates a new TaskRegistry
func NewTaskRegistry(store driven.DocumentStore, collection string, logger *slog.Logger) *TaskRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskRegistry{
		store:      store,
		collection: collection,
		logger:     logger,
	}
}

// EnsureIndexes creates the task_id lookup index. Idempotent.
func (r *TaskRegistry) EnsureIndexes(ctx context.Context) error {
	return r.store.CreateIndexes(ctx, r.collection, []driven.IndexSpec{
		{Name: "idx_tasks_task_id", Keys: []string{"task_id"}, Unique: true},
	})
}

// Create inserts a task record in the submitted state
func (r *TaskRegistry) Create(ctx context.Context, taskID string, taskType domain.TaskType) error {
	_, err := r.store.InsertOne(ctx, r.collection, map[string]any{
		"task_id":         taskID,
		"task_type":       string(taskType),
		"status":          string(domain.TaskStatusSubmitted),
		"error":           nil,
		"sample_paper_id": nil,
	})
	if err != nil {
		r.logger.Error("create task", "task_id", taskID, "error", err)
		return fmt.Errorf("create task %s: %w", taskID, err)
	}
	return nil
}

// MarkCompleted records a successful extraction and the stored paper id
func (r *TaskRegistry) MarkCompleted(ctx context.Context, taskID, samplePaperID string) error {
	return r.update(ctx, taskID, map[string]any{
		"status":          string(domain.TaskStatusCompleted),
		"sample_paper_id": samplePaperID,
	})
}

// MarkError records a failed extraction with its message
func (r *TaskRegistry) MarkError(ctx context.Context, taskID, message string) error {
	return r.update(ctx, taskID, map[string]any{
		"status": string(domain.TaskStatusError),
		"error":  message,
	})
}

// Status returns the task record, or domain.ErrTaskNotFound.
func (r *TaskRegistry) Status(ctx context.Context, taskID string) (*domain.ExtractionTask, error) {
	doc, err := r.store.FindOne(ctx, r.collection, driven.Eq{"task_id": taskID})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrTaskNotFound)
	}
	if err != nil {
		r.logger.Error("find task", "task_id", taskID, "error", err)
		return nil, fmt.Errorf("find task %s: %w", taskID, err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal task %s: %w", taskID, err)
	}
	var task domain.ExtractionTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", taskID, err)
	}
	return &task, nil
}

func (r *TaskRegistry) update(ctx context.Context, taskID string, fields map[string]any) error {
	_, err := r.store.UpdateOne(ctx, r.collection, driven.Eq{"task_id": taskID}, fields)
	if err != nil {
		r.logger.Error("update task", "task_id", taskID, "error", err)
		return fmt.Errorf("update task %s: %w", taskID, err)
	}
	return nil
}
