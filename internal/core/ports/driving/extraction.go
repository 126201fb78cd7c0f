package driving

import (
	"context"
	"io"

	"github.com/openexams/paperd/internal/core/domain"
)

// ExtractionService admits extraction requests and exposes task status.
// Submissions return immediately with a task id; the extraction itself runs
// on a background worker and is observable only by polling Status.
type ExtractionService interface {
	// SubmitText admits a text extraction request and returns its task id.
	// Returns domain.ErrInvalidInput for empty text; no task is created.
	SubmitText(ctx context.Context, text string) (string, error)

	// SubmitPDF persists the uploaded PDF to a task-scoped temporary file
	// and admits a background extraction job for it.
	SubmitPDF(ctx context.Context, filename string, file io.Reader) (string, error)

	// Status returns the task record, or domain.ErrTaskNotFound.
	Status(ctx context.Context, taskID string) (*domain.ExtractionTask, error)
}
