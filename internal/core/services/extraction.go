package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openexams/paperd/internal/core/domain"
	"github.com/openexams/paperd/internal/core/ports/driven"
	"github.com/openexams/paperd/internal/core/ports/driving"
)

// Ensure extractionService implements ExtractionService
var _ driving.ExtractionService = (*extractionService)(nil)

// ExtractionConfig holds dependencies for the extraction service.
type ExtractionConfig struct {
	Registry  *TaskRegistry
	Queue     driven.JobQueue
	UploadDir string
	Logger    *slog.Logger
}

// extractionService admits extraction requests: it creates the task record,
// persists PDF uploads to a task-scoped temporary file, and hands the job to
// the queue. The caller gets the task id back immediately; the worker does
// the rest.
type extractionService struct {
	registry  *TaskRegistry
	queue     driven.JobQueue
	uploadDir string
	logger    *slog.Logger
}

// NewExtractionService creates a new ExtractionService
func NewExtractionService(cfg ExtractionConfig) driving.ExtractionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	uploadDir := cfg.UploadDir
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &extractionService{
		registry:  cfg.Registry,
		queue:     cfg.Queue,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// SubmitText admits a text extraction request
func (s *extractionService) SubmitText(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text must not be empty", domain.ErrInvalidInput)
	}

	taskID := uuid.NewString()
	if err := s.registry.Create(ctx, taskID, domain.TaskTypeText); err != nil {
		return "", err
	}

	job := &driven.ExtractionJob{
		TaskID:     taskID,
		Type:       domain.TaskTypeText,
		Text:       text,
		EnqueuedAt: time.Now(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Error("enqueue text extraction", "task_id", taskID, "error", err)
		s.failTask(ctx, taskID, err)
		return "", fmt.Errorf("enqueue extraction job: %w", err)
	}

	s.logger.Info("text extraction submitted", "task_id", taskID)
	return taskID, nil
}

// SubmitPDF persists the upload before admitting the background job, so the
// response is only sent once the file is safely on disk.
func (s *extractionService) SubmitPDF(ctx context.Context, filename string, file io.Reader) (string, error) {
	taskID := uuid.NewString()
	if err := s.registry.Create(ctx, taskID, domain.TaskTypePDF); err != nil {
		return "", err
	}

	path, err := s.saveUpload(taskID, filename, file)
	if err != nil {
		s.logger.Error("persist pdf upload", "task_id", taskID, "error", err)
		s.failTask(ctx, taskID, err)
		return "", fmt.Errorf("persist upload: %w", err)
	}

	job := &driven.ExtractionJob{
		TaskID:     taskID,
		Type:       domain.TaskTypePDF,
		FilePath:   path,
		EnqueuedAt: time.Now(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Error("enqueue pdf extraction", "task_id", taskID, "error", err)
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Error("remove upload", "task_id", taskID, "error", rmErr)
		}
		s.failTask(ctx, taskID, err)
		return "", fmt.Errorf("enqueue extraction job: %w", err)
	}

	s.logger.Info("pdf extraction submitted", "task_id", taskID, "file", path)
	return taskID, nil
}

// Status returns the task record for polling
func (s *extractionService) Status(ctx context.Context, taskID string) (*domain.ExtractionTask, error) {
	return s.registry.Status(ctx, taskID)
}

func (s *extractionService) saveUpload(taskID, filename string, file io.Reader) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(s.uploadDir, taskID+"_"+filepath.Base(filename))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

// failTask moves an already-created task to the error state during
// admission failures. Best effort: the admission error is what the caller
// sees either way.
func (s *extractionService) failTask(ctx context.Context, taskID string, cause error) {
	if err := s.registry.MarkError(ctx, taskID, cause.Error()); err != nil {
		s.logger.Error("mark task error", "task_id", taskID, "error", err)
	}
}
