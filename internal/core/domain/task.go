package domain

// TaskType identifies the kind of content an extraction task was created for
type TaskType string

const (
	TaskTypePDF  TaskType = "pdf"
	TaskTypeText TaskType = "text"
)

// TaskStatus represents the current state of an extraction task.
// A task is created as submitted and moves exactly once to a terminal state.
type TaskStatus string

const (
	TaskStatusSubmitted TaskStatus = "submitted"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusError     TaskStatus = "error"
)

// ExtractionTask tracks one asynchronous extraction request.
// SamplePaperID is set only when the task completes successfully; Error is
// set only when it fails. Tasks are never deleted.
type ExtractionTask struct {
	TaskID        string     `json:"task_id"`
	TaskType      TaskType   `json:"task_type"`
	Status        TaskStatus `json:"status"`
	Error         *string    `json:"error"`
	SamplePaperID *string    `json:"sample_paper_id"`
}

// NewExtractionTask creates a task in the submitted state
func NewExtractionTask(taskID string, taskType TaskType) *ExtractionTask {
	return &ExtractionTask{
		TaskID:   taskID,
		TaskType: taskType,
		Status:   TaskStatusSubmitted,
	}
}

// IsTerminal reports whether the task has reached a final state
func (t *ExtractionTask) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusError
}
