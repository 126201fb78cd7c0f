package domain

import (
	"encoding/json"
	"testing"
)

func TestNewExtractionTask(t *testing.T) {
	task := NewExtractionTask("task-1", TaskTypePDF)

	if task.TaskID != "task-1" {
		t.Errorf("TaskID = %q", task.TaskID)
	}
	if task.TaskType != TaskTypePDF {
		t.Errorf("TaskType = %q", task.TaskType)
	}
	if task.Status != TaskStatusSubmitted {
		t.Errorf("Status = %q", task.Status)
	}
	if task.Error != nil || task.SamplePaperID != nil {
		t.Error("new task should have nil error and sample paper id")
	}
}

func TestExtractionTask_IsTerminal(t *testing.T) {
	task := NewExtractionTask("task-1", TaskTypeText)
	if task.IsTerminal() {
		t.Error("submitted task should not be terminal")
	}

	task.Status = TaskStatusCompleted
	if !task.IsTerminal() {
		t.Error("completed task should be terminal")
	}

	task.Status = TaskStatusError
	if !task.IsTerminal() {
		t.Error("errored task should be terminal")
	}
}

func TestExtractionTask_JSONShape(t *testing.T) {
	paperID := "paper-1"
	task := &ExtractionTask{
		TaskID:        "task-1",
		TaskType:      TaskTypeText,
		Status:        TaskStatusCompleted,
		SamplePaperID: &paperID,
	}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}

	// Clients poll on these exact keys; error stays present when nil.
	for _, key := range []string{"task_id", "task_type", "status", "error", "sample_paper_id"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if raw["error"] != nil {
		t.Errorf("error = %v, want null", raw["error"])
	}
	if raw["sample_paper_id"] != "paper-1" {
		t.Errorf("sample_paper_id = %v", raw["sample_paper_id"])
	}
}
