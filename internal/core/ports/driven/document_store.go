package driven

import "context"

// Filter selects documents within a collection.
// Eq matches on field equality; QuestionText matches a case-insensitive
// substring against the question/answer fields nested under
// sections[].questions[].
type Filter interface {
	filter()
}

// Eq matches documents whose top-level fields equal the given values.
// The reserved key "id" targets the store-generated identifier.
type Eq map[string]any

func (Eq) filter() {}

// QuestionText matches documents containing at least one nested question
// whose question or answer contains Query (case-insensitive substring).
type QuestionText struct {
	Query string
}

func (QuestionText) filter() {}

// SortField orders results by a document field.
type SortField struct {
	Field string
	Desc  bool
}

// FindOptions carries pagination and ordering for multi-document reads.
type FindOptions struct {
	Limit int
	Skip  int
	Sort  []SortField
}

// IndexSpec describes a secondary index over document fields.
type IndexSpec struct {
	Name   string
	Keys   []string
	Unique bool
}

// MatchedQuestion is one question/answer pair that matched a text search.
type MatchedQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SearchHit is a document returned by TextSearch together with the
// individually matched question/answer pairs.
type SearchHit struct {
	Document         map[string]any
	MatchedQuestions []MatchedQuestion
}

// DocumentStore abstracts a collection-keyed document database.
// The store is authoritative for document identity: InsertOne assigns a new
// unique identifier, and every returned document carries it under "id".
type DocumentStore interface {
	// InsertOne stores a new document and returns its generated identifier.
	InsertOne(ctx context.Context, collection string, doc map[string]any) (string, error)

	// FindOne returns the first document matching the filter.
	// Returns domain.ErrNotFound if nothing matches.
	FindOne(ctx context.Context, collection string, filter Filter) (map[string]any, error)

	// FindMany returns documents matching the filter, paginated and ordered
	// per opts (newest first by default).
	FindMany(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]map[string]any, error)

	// UpdateOne merges the update fields into the first matching document.
	// It returns the number of documents actually modified (0 or 1): an
	// update that leaves the document byte-identical reports 0.
	UpdateOne(ctx context.Context, collection string, filter Filter, update map[string]any) (int64, error)

	// DeleteOne removes the first matching document, returning the number
	// of documents deleted (0 or 1).
	DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error)

	// CountDocuments counts documents matching the filter.
	CountDocuments(ctx context.Context, collection string, filter Filter) (int64, error)

	// TextSearch returns documents with at least one nested question
	// matching the filter, each augmented with its matched pairs.
	// Documents without a matching nested question are excluded.
	TextSearch(ctx context.Context, collection string, filter QuestionText, opts FindOptions) ([]SearchHit, error)

	// CreateIndexes ensures the given indexes exist. Idempotent: an index
	// whose name exists with conflicting options is dropped and recreated;
	// any other failure propagates.
	CreateIndexes(ctx context.Context, collection string, specs []IndexSpec) error
}
