package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openexams/paperd/internal/core/domain"
	"github.com/openexams/paperd/internal/core/ports/driven"
	"github.com/openexams/paperd/internal/core/ports/driving"
)

// DefaultCacheTTL is how long cached sample papers live
const DefaultCacheTTL = 3600 * time.Second

// Ensure paperService implements PaperService
var _ driving.PaperService = (*paperService)(nil)

// paperService implements cache-aside CRUD and search over sample papers.
// The document store is authoritative; the cache holds a time-bounded copy
// keyed by "<collection>:<id>". Consistency is best effort: a read served
// from cache may be stale relative to a concurrent write, and two concurrent
// updates may leave the cache holding the version of whichever update wrote
// the cache last.
type paperService struct {
	store      driven.DocumentStore
	cache      driven.Cache
	collection string
	ttl        time.Duration
	logger     *slog.Logger
}

// NewPaperService creates a new PaperService
func NewPaperService(store driven.DocumentStore, cache driven.Cache, collection string, ttl time.Duration, logger *slog.Logger) driving.PaperService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &paperService{
		store:      store,
		cache:      cache,
		collection: collection,
		ttl:        ttl,
		logger:     logger,
	}
}

func (s *paperService) cacheKey(id string) string {
	return s.collection + ":" + id
}

// Create validates and inserts a paper, then writes the full document
// (including the generated id) to the cache.
func (s *paperService) Create(ctx context.Context, paper *domain.SamplePaper) (string, error) {
	if err := paper.Validate(); err != nil {
		return "", err
	}

	doc, err := paper.Document()
	if err != nil {
		return "", err
	}

	id, err := s.store.InsertOne(ctx, s.collection, doc)
	if err != nil {
		s.logger.Error("insert sample paper", "error", err)
		return "", fmt.Errorf("insert sample paper: %w", err)
	}
	doc["id"] = id

	if err := s.writeCache(ctx, id, doc); err != nil {
		return "", err
	}

	s.logger.Info("created sample paper", "id", id)
	return id, nil
}

// Get serves the document from cache when present, otherwise reads the
// store and repopulates the cache.
func (s *paperService) Get(ctx context.Context, id string) (map[string]any, error) {
	cached, err := s.cache.Get(ctx, s.cacheKey(id))
	if err == nil {
		var doc map[string]any
		if err := json.Unmarshal([]byte(cached), &doc); err == nil {
			return doc, nil
		}
		// Corrupt entry: fall through to the store.
		s.logger.Warn("dropping unreadable cache entry", "id", id)
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("cache get", "id", id, "error", err)
		return nil, fmt.Errorf("cache get: %w", err)
	}

	doc, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.writeCache(ctx, id, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Update applies a partial update, re-reads the merged document and
// overwrites the cache entry with it.
func (s *paperService) Update(ctx context.Context, id string, fields map[string]any) (map[string]any, error) {
	modified, err := s.store.UpdateOne(ctx, s.collection, driven.Eq{"id": id}, fields)
	if err != nil {
		s.logger.Error("update sample paper", "id", id, "error", err)
		return nil, fmt.Errorf("update sample paper: %w", err)
	}
	if modified == 0 {
		return nil, domain.ErrNoFieldsUpdated
	}

	doc, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.writeCache(ctx, id, doc); err != nil {
		return nil, err
	}

	s.logger.Info("updated sample paper", "id", id)
	return doc, nil
}

// Delete verifies existence, deletes from the store, then drops the cache
// entry. A zero-row store delete after a successful existence check is a
// race with a concurrent delete and is reported as ErrDeleteFailed.
func (s *paperService) Delete(ctx context.Context, id string) error {
	if _, err := s.fetch(ctx, id); err != nil {
		return err
	}

	deleted, err := s.store.DeleteOne(ctx, s.collection, driven.Eq{"id": id})
	if err != nil {
		s.logger.Error("delete sample paper", "id", id, "error", err)
		return fmt.Errorf("delete sample paper: %w", err)
	}
	if deleted == 0 {
		s.logger.Error("delete sample paper", "id", id, "error", "store reported zero deletions")
		return fmt.Errorf("sample paper %s: %w", id, domain.ErrDeleteFailed)
	}

	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Error("cache delete", "id", id, "error", err)
		return fmt.Errorf("cache delete: %w", err)
	}

	s.logger.Info("deleted sample paper", "id", id)
	return nil
}

// Search runs the same substring filter through TextSearch and
// CountDocuments and returns one page of results.
func (s *paperService) Search(ctx context.Context, query string, limit, skip int) (*driving.SearchResult, error) {
	filter := driven.QuestionText{Query: query}
	opts := driven.FindOptions{Limit: limit, Skip: skip}

	hits, err := s.store.TextSearch(ctx, s.collection, filter, opts)
	if err != nil {
		s.logger.Error("search sample papers", "query", query, "error", err)
		return nil, fmt.Errorf("search sample papers: %w", err)
	}

	total, err := s.store.CountDocuments(ctx, s.collection, filter)
	if err != nil {
		s.logger.Error("count sample papers", "query", query, "error", err)
		return nil, fmt.Errorf("count sample papers: %w", err)
	}

	results := make([]map[string]any, 0, len(hits))
	for _, hit := range hits {
		doc := hit.Document
		doc["matched_questions"] = hit.MatchedQuestions
		results = append(results, doc)
	}

	return &driving.SearchResult{
		Results:    results,
		TotalCount: total,
		Limit:      limit,
		Skip:       skip,
	}, nil
}

// fetch reads the document from the store, bypassing the cache.
func (s *paperService) fetch(ctx context.Context, id string) (map[string]any, error) {
	doc, err := s.store.FindOne(ctx, s.collection, driven.Eq{"id": id})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("sample paper %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		s.logger.Error("find sample paper", "id", id, "error", err)
		return nil, fmt.Errorf("find sample paper: %w", err)
	}
	return doc, nil
}

func (s *paperService) writeCache(ctx context.Context, id string, doc map[string]any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal sample paper: %w", err)
	}
	if err := s.cache.Set(ctx, s.cacheKey(id), string(data), s.ttl); err != nil {
		s.logger.Error("cache set", "id", id, "error", err)
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}
