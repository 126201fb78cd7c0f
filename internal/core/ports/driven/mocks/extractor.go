package mocks

import (
	"context"
	"errors"

	"github.com/openexams/paperd/internal/core/domain"
	"github.com/openexams/paperd/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ContentExtractor = (*MockExtractor)(nil)

// MockExtractor is a configurable ContentExtractor for testing
type MockExtractor struct {
	ExtractTextFn func(ctx context.Context, text string) (*domain.SamplePaper, error)
	ExtractFileFn func(ctx context.Context, path string) (*domain.SamplePaper, error)
}

func (m *MockExtractor) ExtractText(ctx context.Context, text string) (*domain.SamplePaper, error) {
	if m.ExtractTextFn != nil {
		return m.ExtractTextFn(ctx, text)
	}
	return nil, errors.New("not implemented")
}

func (m *MockExtractor) ExtractFile(ctx context.Context, path string) (*domain.SamplePaper, error) {
	if m.ExtractFileFn != nil {
		return m.ExtractFileFn(ctx, path)
	}
	return nil, errors.New("not implemented")
}
