package driven

import (
	"context"

	"github.com/openexams/paperd/internal/core/domain"
)

// ContentExtractor turns raw content into a structured sample paper using a
// generative model. Implementations must return papers that already pass
// domain validation.
type ContentExtractor interface {
	// ExtractText extracts a sample paper from plain text content.
	ExtractText(ctx context.Context, text string) (*domain.SamplePaper, error)

	// ExtractFile extracts a sample paper from a PDF file on disk.
	ExtractFile(ctx context.Context, path string) (*domain.SamplePaper, error)
}
