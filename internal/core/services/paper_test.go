package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/openexams/paperd/internal/core/domain"
	"github.com/openexams/paperd/internal/core/ports/driven/mocks"
)

const papersCollection = "sample_papers"

func testPaper() *domain.SamplePaper {
	return &domain.SamplePaper{
		Title: "CBSE Class 10 Mathematics Sample Paper",
		Type:  "previous_year",
		Time:  180,
		Marks: 80,
		Params: domain.PaperParams{
			Board:   "CBSE",
			Grade:   10,
			Subject: "Maths",
		},
		Tags:     []string{"algebra"},
		Chapters: []string{"Triangles"},
		Sections: []domain.Section{
			{
				MarksPerQuestion: 5,
				Type:             "default",
				Questions: []domain.Question{
					{
						Question:     "State and prove Pythagoras theorem for a right triangle.",
						Answer:       "In a right triangle the square of the hypotenuse...",
						Type:         "long",
						QuestionSlug: "pythagoras-theorem",
						ReferenceID:  "Q1",
						Params:       map[string]any{},
					},
				},
			},
		},
	}
}

func newPaperFixture() (*mocks.MockDocumentStore, *mocks.MockCache, *paperService) {
	store := mocks.NewMockDocumentStore()
	cache := mocks.NewMockCache()
	svc := NewPaperService(store, cache, papersCollection, time.Hour, nil).(*paperService)
	return store, cache, svc
}

func TestPaperService_CreateAndGet(t *testing.T) {
	store, cache, svc := newPaperFixture()
	ctx := context.Background()

	id, err := svc.Create(ctx, testPaper())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == "" {
		t.Fatal("Create returned empty id")
	}
	if store.Count(papersCollection) != 1 {
		t.Errorf("store count = %d", store.Count(papersCollection))
	}

	// Create writes through to the cache, id included.
	cached, err := cache.Get(ctx, papersCollection+":"+id)
	if err != nil {
		t.Fatalf("cache miss after create: %v", err)
	}
	var cachedDoc map[string]any
	if err := json.Unmarshal([]byte(cached), &cachedDoc); err != nil {
		t.Fatalf("cached entry is not JSON: %v", err)
	}
	if cachedDoc["id"] != id {
		t.Errorf("cached id = %v", cachedDoc["id"])
	}

	doc, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc["title"] != "CBSE Class 10 Mathematics Sample Paper" {
		t.Errorf("title = %v", doc["title"])
	}
}

func TestPaperService_Create_Invalid(t *testing.T) {
	store, cache, svc := newPaperFixture()

	paper := testPaper()
	paper.Tags = nil

	_, err := svc.Create(context.Background(), paper)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if store.Count(papersCollection) != 0 {
		t.Error("invalid paper reached the store")
	}
	if cache.SetCalls != 0 {
		t.Error("invalid paper reached the cache")
	}
}

func TestPaperService_Get_ServesStaleCache(t *testing.T) {
	store, _, svc := newPaperFixture()
	ctx := context.Background()

	id, err := svc.Create(ctx, testPaper())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Change the store behind the cache's back. Reads keep serving the
	// cached copy until the entry expires.
	if !store.Mutate(papersCollection, id, func(doc map[string]any) {
		doc["title"] = "Renamed Behind The Cache"
	}) {
		t.Fatal("Mutate did not find the document")
	}

	doc, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc["title"] != "CBSE Class 10 Mathematics Sample Paper" {
		t.Errorf("expected the stale cached title, got %v", doc["title"])
	}
}

func TestPaperService_Get_RepopulatesAfterExpiry(t *testing.T) {
	store, cache, svc := newPaperFixture()
	ctx := context.Background()

	id, err := svc.Create(ctx, testPaper())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	store.Mutate(papersCollection, id, func(doc map[string]any) {
		doc["title"] = "Fresh Title"
	})
	cache.Expire(papersCollection + ":" + id)

	doc, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc["title"] != "Fresh Title" {
		t.Errorf("title = %v", doc["title"])
	}

	// The read refilled the cache.
	if _, err := cache.Get(ctx, papersCollection+":"+id); err != nil {
		t.Errorf("cache not repopulated: %v", err)
	}
}

func TestPaperService_Get_CorruptCacheEntryFallsThrough(t *testing.T) {
	_, cache, svc := newPaperFixture()
	ctx := context.Background()

	id, err := svc.Create(ctx, testPaper())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	cache.Set(ctx, papersCollection+":"+id, "{not json", time.Hour)

	doc, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc["id"] != id {
		t.Errorf("id = %v", doc["id"])
	}
}

func TestPaperService_Get_CacheErrorPropagates(t *testing.T) {
	_, cache, svc := newPaperFixture()
	cache.GetErr = errors.New("connection reset")

	if _, err := svc.Get(context.Background(), "any"); err == nil {
		t.Error("expected cache error to propagate")
	}
}

func TestPaperService_Get_NotFound(t *testing.T) {
	_, _, svc := newPaperFixture()

	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPaperService_Update(t *testing.T) {
	_, cache, svc := newPaperFixture()
	ctx := context.Background()

	id, err := svc.Create(ctx, testPaper())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	doc, err := svc.Update(ctx, id, map[string]any{"title": "Updated Title"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if doc["title"] != "Updated Title" {
		t.Errorf("title = %v", doc["title"])
	}
	// Untouched fields survive the merge.
	if doc["marks"] != float64(80) {
		t.Errorf("marks = %v", doc["marks"])
	}

	// The cache entry was overwritten with the merged document.
	cached, err := cache.Get(ctx, papersCollection+":"+id)
	if err != nil {
		t.Fatalf("cache miss after update: %v", err)
	}
	var cachedDoc map[string]any
	if err := json.Unmarshal([]byte(cached), &cachedDoc); err != nil {
		t.Fatalf("cached entry is not JSON: %v", err)
	}
	if cachedDoc["title"] != "Updated Title" {
		t.Errorf("cached title = %v", cachedDoc["title"])
	}
}

func TestPaperService_Update_NoChange(t *testing.T) {
	_, _, svc := newPaperFixture()
	ctx := context.Background()

	id, err := svc.Create(ctx, testPaper())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Writing the value already stored modifies nothing.
	_, err = svc.Update(ctx, id, map[string]any{"marks": 80})
	if !errors.Is(err, domain.ErrNoFieldsUpdated) {
		t.Errorf("expected ErrNoFieldsUpdated, got %v", err)
	}
}

func TestPaperService_Update_UnknownID(t *testing.T) {
	_, _, svc := newPaperFixture()

	// An unknown id matches nothing, which reports the same way as a
	// no-op update.
	_, err := svc.Update(context.Background(), "missing", map[string]any{"title": "x"})
	if !errors.Is(err, domain.ErrNoFieldsUpdated) {
		t.Errorf("expected ErrNoFieldsUpdated, got %v", err)
	}
}

func TestPaperService_Delete(t *testing.T) {
	store, cache, svc := newPaperFixture()
	ctx := context.Background()

	id, err := svc.Create(ctx, testPaper())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if store.Count(papersCollection) != 0 {
		t.Error("document still in store")
	}
	if _, err := cache.Get(ctx, papersCollection+":"+id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cache entry survived delete: %v", err)
	}
}

func TestPaperService_Delete_Unknown(t *testing.T) {
	_, _, svc := newPaperFixture()

	err := svc.Delete(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPaperService_Delete_RaceReportsDeleteFailed(t *testing.T) {
	store, _, svc := newPaperFixture()
	ctx := context.Background()

	id, err := svc.Create(ctx, testPaper())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Existence check passes, then the store reports zero deletions as if
	// a concurrent delete won.
	store.DeleteZero = true

	err = svc.Delete(ctx, id)
	if !errors.Is(err, domain.ErrDeleteFailed) {
		t.Errorf("expected ErrDeleteFailed, got %v", err)
	}
}

func TestPaperService_Search(t *testing.T) {
	_, _, svc := newPaperFixture()
	ctx := context.Background()

	// Two papers mention triangles, one does not.
	first := testPaper()
	if _, err := svc.Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	second := testPaper()
	second.Sections[0].Questions[0].Question = "Classify the given triangle by its sides."
	second.Sections[0].Questions[0].Answer = "It is an isosceles triangle."
	if _, err := svc.Create(ctx, second); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	third := testPaper()
	third.Sections[0].Questions[0].Question = "Find the HCF of 12 and 18."
	third.Sections[0].Questions[0].Answer = "6"
	if _, err := svc.Create(ctx, third); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	result, err := svc.Search(ctx, "triangle", 10, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", result.TotalCount)
	}
	if len(result.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(result.Results))
	}
	if result.Limit != 10 || result.Skip != 0 {
		t.Errorf("pagination echo = %d/%d", result.Limit, result.Skip)
	}

	// Each hit carries its matched question/answer pairs.
	for _, doc := range result.Results {
		if _, ok := doc["matched_questions"]; !ok {
			t.Errorf("document %v missing matched_questions", doc["id"])
		}
	}
}

func TestPaperService_Search_PaginationBeatsTotal(t *testing.T) {
	_, _, svc := newPaperFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, testPaper()); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	// One page of one result, but the count covers every match.
	result, err := svc.Search(ctx, "pythagoras", 1, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Results) != 1 {
		t.Errorf("results = %d, want 1", len(result.Results))
	}
	if result.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", result.TotalCount)
	}
}

func TestPaperService_Update_LastCacheWriterWins(t *testing.T) {
	_, cache, svc := newPaperFixture()
	ctx := context.Background()

	id, err := svc.Create(ctx, testPaper())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.Update(ctx, id, map[string]any{"title": "Second Writer"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// A slower concurrent updater finishes its cache write after ours.
	// The cache now disagrees with the store until the entry expires.
	stale, _ := json.Marshal(map[string]any{"id": id, "title": "First Writer"})
	cache.Set(ctx, papersCollection+":"+id, string(stale), time.Hour)

	doc, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc["title"] != "First Writer" {
		t.Errorf("title = %v, want the last cache writer's version", doc["title"])
	}
}
