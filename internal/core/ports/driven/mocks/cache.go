package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/openexams/paperd/internal/core/domain"
	"github.com/openexams/paperd/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Cache = (*MockCache)(nil)

// MockCache is an in-memory Cache for testing. TTLs are recorded but not
// enforced; use Expire to simulate expiry.
type MockCache struct {
	mu     sync.RWMutex
	values map[string]string
	ttls   map[string]time.Duration

	// GetErr and SetErr force the corresponding operation to fail when set.
	GetErr error
	SetErr error

	// SetCalls counts Set invocations.
	SetCalls int
}

// NewMockCache creates a new MockCache
func NewMockCache() *MockCache {
	return &MockCache{
		values: make(map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	if m.GetErr != nil {
		return "", m.GetErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *MockCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.ttls[key] = ttl
	m.SetCalls++
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	delete(m.ttls, key)
	return nil
}

func (m *MockCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.values[key]
	return ok, nil
}

// TTL returns the TTL recorded for key.
func (m *MockCache) TTL(key string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ttls[key]
}

// Expire drops key as if its TTL elapsed.
func (m *MockCache) Expire(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	delete(m.ttls, key)
}
