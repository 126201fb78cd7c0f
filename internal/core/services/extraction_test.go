package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openexams/paperd/internal/core/domain"
	"github.com/openexams/paperd/internal/core/ports/driven"
	"github.com/openexams/paperd/internal/core/ports/driven/mocks"
	"github.com/openexams/paperd/internal/core/ports/driving"
)

func newExtractionFixture(t *testing.T) (*mocks.MockDocumentStore, *mocks.MockJobQueue, string, driving.ExtractionService) {
	t.Helper()
	store := mocks.NewMockDocumentStore()
	queue := mocks.NewMockJobQueue()
	uploadDir := t.TempDir()
	svc := NewExtractionService(ExtractionConfig{
		Registry:  NewTaskRegistry(store, tasksCollection, nil),
		Queue:     queue,
		UploadDir: uploadDir,
	})
	return store, queue, uploadDir, svc
}

// onlyTask returns the single task record in the store.
func onlyTask(t *testing.T, store *mocks.MockDocumentStore) *domain.ExtractionTask {
	t.Helper()
	ctx := context.Background()
	docs, err := store.FindMany(ctx, tasksCollection, driven.Eq{}, driven.FindOptions{})
	if err != nil {
		t.Fatalf("FindMany failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("task records = %d, want 1", len(docs))
	}
	taskID, _ := docs[0]["task_id"].(string)
	task, err := NewTaskRegistry(store, tasksCollection, nil).Status(ctx, taskID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	return task
}

func TestExtractionService_SubmitText(t *testing.T) {
	store, queue, _, svc := newExtractionFixture(t)
	ctx := context.Background()

	taskID, err := svc.SubmitText(ctx, "Q1. Prove that sqrt(2) is irrational.")
	if err != nil {
		t.Fatalf("SubmitText failed: %v", err)
	}
	if taskID == "" {
		t.Fatal("empty task id")
	}
	if store.Count(tasksCollection) != 1 {
		t.Errorf("task records = %d, want 1", store.Count(tasksCollection))
	}

	job, err := queue.DequeueWithTimeout(ctx, 1)
	if err != nil || job == nil {
		t.Fatalf("no job enqueued: %v", err)
	}
	if job.TaskID != taskID {
		t.Errorf("job.TaskID = %q, want %q", job.TaskID, taskID)
	}
	if job.Type != domain.TaskTypeText {
		t.Errorf("job.Type = %q", job.Type)
	}
	if !strings.Contains(job.Text, "sqrt(2)") {
		t.Errorf("job.Text = %q", job.Text)
	}
}

func TestExtractionService_SubmitText_Empty(t *testing.T) {
	store, queue, _, svc := newExtractionFixture(t)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := svc.SubmitText(context.Background(), text)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("text %q: expected ErrInvalidInput, got %v", text, err)
		}
	}
	if store.Count(tasksCollection) != 0 {
		t.Error("rejected text created a task record")
	}
	if queue.Pending() != 0 {
		t.Error("rejected text reached the queue")
	}
}

func TestExtractionService_SubmitText_EnqueueFailure(t *testing.T) {
	store, queue, _, svc := newExtractionFixture(t)
	queue.EnqueueErr = errors.New("queue down")

	_, err := svc.SubmitText(context.Background(), "some exam text")
	if err == nil {
		t.Fatal("expected enqueue failure to surface")
	}

	// The task record exists and carries the failure.
	task := onlyTask(t, store)
	if task.Status != domain.TaskStatusError {
		t.Errorf("Status = %q, want error", task.Status)
	}
	if task.Error == nil || !strings.Contains(*task.Error, "queue down") {
		t.Errorf("Error = %v", task.Error)
	}
}

func TestExtractionService_SubmitPDF(t *testing.T) {
	store, queue, uploadDir, svc := newExtractionFixture(t)
	ctx := context.Background()

	content := "%PDF-1.4 fake body"
	taskID, err := svc.SubmitPDF(ctx, "maths_sample.pdf", strings.NewReader(content))
	if err != nil {
		t.Fatalf("SubmitPDF failed: %v", err)
	}
	if store.Count(tasksCollection) != 1 {
		t.Errorf("task records = %d", store.Count(tasksCollection))
	}

	// The upload is on disk under a task-scoped name before the job runs.
	path := filepath.Join(uploadDir, taskID+"_maths_sample.pdf")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("upload not persisted: %v", err)
	}
	if string(data) != content {
		t.Errorf("upload content = %q", data)
	}

	job, err := queue.DequeueWithTimeout(ctx, 1)
	if err != nil || job == nil {
		t.Fatalf("no job enqueued: %v", err)
	}
	if job.Type != domain.TaskTypePDF {
		t.Errorf("job.Type = %q", job.Type)
	}
	if job.FilePath != path {
		t.Errorf("job.FilePath = %q, want %q", job.FilePath, path)
	}
}

func TestExtractionService_SubmitPDF_SanitizesFilename(t *testing.T) {
	_, queue, uploadDir, svc := newExtractionFixture(t)
	ctx := context.Background()

	// Path components in the client filename must not escape the upload dir.
	taskID, err := svc.SubmitPDF(ctx, "../../etc/passwd.pdf", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("SubmitPDF failed: %v", err)
	}

	job, _ := queue.DequeueWithTimeout(ctx, 1)
	want := filepath.Join(uploadDir, taskID+"_passwd.pdf")
	if job.FilePath != want {
		t.Errorf("job.FilePath = %q, want %q", job.FilePath, want)
	}
}

func TestExtractionService_SubmitPDF_EnqueueFailure(t *testing.T) {
	store, queue, uploadDir, svc := newExtractionFixture(t)
	queue.EnqueueErr = errors.New("queue down")

	_, err := svc.SubmitPDF(context.Background(), "paper.pdf", strings.NewReader("body"))
	if err == nil {
		t.Fatal("expected enqueue failure to surface")
	}

	// The orphaned upload is cleaned up and the task is marked failed.
	entries, readErr := os.ReadDir(uploadDir)
	if readErr != nil {
		t.Fatalf("read upload dir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Errorf("upload dir has %d leftover files", len(entries))
	}
	task := onlyTask(t, store)
	if task.Status != domain.TaskStatusError {
		t.Errorf("Status = %q, want error", task.Status)
	}
}

func TestExtractionService_Status(t *testing.T) {
	_, _, _, svc := newExtractionFixture(t)

	taskID, err := svc.SubmitText(context.Background(), "some text")
	if err != nil {
		t.Fatalf("SubmitText failed: %v", err)
	}

	task, err := svc.Status(context.Background(), taskID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if task.Status != domain.TaskStatusSubmitted {
		t.Errorf("Status = %q", task.Status)
	}

	if _, err := svc.Status(context.Background(), "missing"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}
