package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/openexams/paperd/internal/core/domain"
	"github.com/openexams/paperd/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*MockDocumentStore)(nil)

// MockDocumentStore is an in-memory implementation of DocumentStore for
// testing. Documents are deep-copied on the way in and out so tests cannot
// alias store state.
type MockDocumentStore struct {
	mu          sync.RWMutex
	collections map[string][]*storedDoc

	// InsertErr, UpdateErr, DeleteErr and FindErr force the corresponding
	// operation to fail when set.
	InsertErr error
	UpdateErr error
	DeleteErr error
	FindErr   error

	// DeleteZero makes DeleteOne report zero deletions without removing
	// anything, to simulate the existence-check/delete race.
	DeleteZero bool

	// Indexes records CreateIndexes calls per collection.
	Indexes map[string][]driven.IndexSpec
}

type storedDoc struct {
	id  string
	doc map[string]any
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		collections: make(map[string][]*storedDoc),
		Indexes:     make(map[string][]driven.IndexSpec),
	}
}

func (m *MockDocumentStore) InsertOne(ctx context.Context, collection string, doc map[string]any) (string, error) {
	if m.InsertErr != nil {
		return "", m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.collections[collection] = append(m.collections[collection], &storedDoc{id: id, doc: deepCopy(doc)})
	return id, nil
}

func (m *MockDocumentStore) FindOne(ctx context.Context, collection string, filter driven.Filter) (map[string]any, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sd := range m.collections[collection] {
		if matches(sd, filter) {
			return withID(sd), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockDocumentStore) FindMany(ctx context.Context, collection string, filter driven.Filter, opts driven.FindOptions) ([]map[string]any, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []map[string]any
	for _, sd := range m.collections[collection] {
		if matches(sd, filter) {
			out = append(out, withID(sd))
		}
	}
	return paginate(out, opts), nil
}

func (m *MockDocumentStore) UpdateOne(ctx context.Context, collection string, filter driven.Filter, update map[string]any) (int64, error) {
	if m.UpdateErr != nil {
		return 0, m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sd := range m.collections[collection] {
		if !matches(sd, filter) {
			continue
		}
		merged := deepCopy(sd.doc)
		for k, v := range update {
			merged[k] = normalize(v)
		}
		if reflect.DeepEqual(merged, sd.doc) {
			return 0, nil
		}
		sd.doc = merged
		return 1, nil
	}
	return 0, nil
}

func (m *MockDocumentStore) DeleteOne(ctx context.Context, collection string, filter driven.Filter) (int64, error) {
	if m.DeleteErr != nil {
		return 0, m.DeleteErr
	}
	if m.DeleteZero {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := m.collections[collection]
	for i, sd := range docs {
		if matches(sd, filter) {
			m.collections[collection] = append(docs[:i], docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *MockDocumentStore) CountDocuments(ctx context.Context, collection string, filter driven.Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, sd := range m.collections[collection] {
		if matches(sd, filter) {
			n++
		}
	}
	return n, nil
}

func (m *MockDocumentStore) TextSearch(ctx context.Context, collection string, filter driven.QuestionText, opts driven.FindOptions) ([]driven.SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var hits []driven.SearchHit
	for _, sd := range m.collections[collection] {
		matched := matchedQuestions(sd.doc, filter.Query)
		if len(matched) == 0 {
			continue
		}
		hits = append(hits, driven.SearchHit{Document: withID(sd), MatchedQuestions: matched})
	}
	if opts.Skip > 0 {
		if opts.Skip >= len(hits) {
			return nil, nil
		}
		hits = hits[opts.Skip:]
	}
	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

func (m *MockDocumentStore) CreateIndexes(ctx context.Context, collection string, specs []driven.IndexSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Indexes[collection] = append(m.Indexes[collection], specs...)
	return nil
}

// Mutate modifies a stored document directly, bypassing UpdateOne.
// Tests use it to change store state behind the cache's back.
func (m *MockDocumentStore) Mutate(collection, id string, fn func(doc map[string]any)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sd := range m.collections[collection] {
		if sd.id == id {
			fn(sd.doc)
			return true
		}
	}
	return false
}

// Count returns the number of documents in a collection.
func (m *MockDocumentStore) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

func matches(sd *storedDoc, filter driven.Filter) bool {
	switch f := filter.(type) {
	case driven.Eq:
		for k, v := range f {
			if k == "id" {
				if sd.id != fmt.Sprint(v) {
					return false
				}
				continue
			}
			if !reflect.DeepEqual(sd.doc[k], normalize(v)) {
				return false
			}
		}
		return true
	case driven.QuestionText:
		return len(matchedQuestions(sd.doc, f.Query)) > 0
	default:
		return false
	}
}

func matchedQuestions(doc map[string]any, query string) []driven.MatchedQuestion {
	q := strings.ToLower(query)
	var matched []driven.MatchedQuestion
	sections, _ := doc["sections"].([]any)
	for _, s := range sections {
		section, _ := s.(map[string]any)
		questions, _ := section["questions"].([]any)
		for _, qq := range questions {
			question, _ := qq.(map[string]any)
			qText, _ := question["question"].(string)
			aText, _ := question["answer"].(string)
			if strings.Contains(strings.ToLower(qText), q) || strings.Contains(strings.ToLower(aText), q) {
				matched = append(matched, driven.MatchedQuestion{Question: qText, Answer: aText})
			}
		}
	}
	return matched
}

func withID(sd *storedDoc) map[string]any {
	doc := deepCopy(sd.doc)
	doc["id"] = sd.id
	return doc
}

func paginate(docs []map[string]any, opts driven.FindOptions) []map[string]any {
	if opts.Skip > 0 {
		if opts.Skip >= len(docs) {
			return nil
		}
		docs = docs[opts.Skip:]
	}
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return docs
}

// deepCopy roundtrips through JSON so stored documents use the same value
// types the real store produces.
func deepCopy(doc map[string]any) map[string]any {
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}

func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}
