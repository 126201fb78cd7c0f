package driving

import (
	"context"

	"github.com/openexams/paperd/internal/core/domain"
)

// SearchResult is a page of full-text search results.
// Each result is a stored document augmented with its matched_questions.
type SearchResult struct {
	Results    []map[string]any `json:"results"`
	TotalCount int64            `json:"total_count"`
	Limit      int              `json:"limit"`
	Skip       int              `json:"skip"`
}

// PaperService provides cache-aside CRUD and search over sample papers
type PaperService interface {
	// Create validates and stores a paper, returning its generated id.
	Create(ctx context.Context, paper *domain.SamplePaper) (string, error)

	// Get returns the stored document for id, served from cache when
	// possible. Returns domain.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (map[string]any, error)

	// Update merges the given fields into the stored document and returns
	// the merged result. Returns domain.ErrNoFieldsUpdated when nothing
	// was modified.
	Update(ctx context.Context, id string, fields map[string]any) (map[string]any, error)

	// Delete removes the document from store and cache.
	// Returns domain.ErrNotFound for unknown ids and domain.ErrDeleteFailed
	// when the store reports zero deletions despite the existence check.
	Delete(ctx context.Context, id string) error

	// Search runs a case-insensitive substring search over nested question
	// and answer fields. Limit must be in [1,100] and skip >= 0, validated
	// by the caller.
	Search(ctx context.Context, query string, limit, skip int) (*SearchResult, error)
}
