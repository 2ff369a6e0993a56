package usecases_test

import (
	"context"
	"io"
	"sync"

	"github.com/halalway/halalway/internal/adapters/memstore"
	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
)

// --- Mock DocumentStore ---

// mockStore serves from an in-memory store unless a function field overrides
// the call, and counts IN lookups per collection.
type mockStore struct {
	*memstore.Store

	mergeFn      func(ctx context.Context, collection, id string, fields domain.Document) error
	deleteFn     func(ctx context.Context, collection, id string) error
	getFn        func(ctx context.Context, collection, id string) (domain.Document, error)
	getWhereInFn func(ctx context.Context, collection, field string, values []string) ([]domain.Document, error)

	mu       sync.Mutex
	inCalls  map[string][][]string
	getCalls int
}

func newMockStore() *mockStore {
	return &mockStore{Store: memstore.New(), inCalls: make(map[string][][]string)}
}

func (m *mockStore) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	m.mu.Lock()
	m.getCalls++
	m.mu.Unlock()
	if m.getFn != nil {
		return m.getFn(ctx, collection, id)
	}
	return m.Store.Get(ctx, collection, id)
}

func (m *mockStore) GetWhereIn(ctx context.Context, collection, field string, values []string) ([]domain.Document, error) {
	m.mu.Lock()
	m.inCalls[collection] = append(m.inCalls[collection], append([]string(nil), values...))
	m.mu.Unlock()
	if m.getWhereInFn != nil {
		return m.getWhereInFn(ctx, collection, field, values)
	}
	return m.Store.GetWhereIn(ctx, collection, field, values)
}

func (m *mockStore) Merge(ctx context.Context, collection, id string, fields domain.Document) error {
	if m.mergeFn != nil {
		return m.mergeFn(ctx, collection, id, fields)
	}
	return m.Store.Merge(ctx, collection, id, fields)
}

func (m *mockStore) Delete(ctx context.Context, collection, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, collection, id)
	}
	return m.Store.Delete(ctx, collection, id)
}

func (m *mockStore) inLookups(collection string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inCalls[collection]
}

func (m *mockStore) put(collection, id string, doc domain.Document) {
	if err := m.Store.Merge(context.Background(), collection, id, doc); err != nil {
		panic(err)
	}
}

var _ ports.DocumentStore = (*mockStore)(nil)

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (c *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Mock AuthSession ---

type mockSession struct {
	mu      sync.Mutex
	current *domain.AuthUser
	subs    map[int]func(*domain.AuthUser)
	next    int
}

func newMockSession(u *domain.AuthUser) *mockSession {
	return &mockSession{current: u, subs: make(map[int]func(*domain.AuthUser))}
}

func (s *mockSession) CurrentUser() *domain.AuthUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *mockSession) Subscribe(cb func(*domain.AuthUser)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.next
	s.next++
	s.subs[key] = cb
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, key)
	}
}

func (s *mockSession) SignOut(ctx context.Context) error {
	s.set(nil)
	return nil
}

func (s *mockSession) set(u *domain.AuthUser) {
	s.mu.Lock()
	s.current = u
	cbs := make([]func(*domain.AuthUser), 0, len(s.subs))
	for _, cb := range s.subs {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()
	for _, cb := range cbs {
		cb(u)
	}
}

// --- Mock ObjectStorage ---

type mockStorage struct {
	uploadFn func(ctx context.Context, path, contentType string, body io.Reader) (string, error)
	paths    []string
}

func (m *mockStorage) Upload(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	m.paths = append(m.paths, path)
	if m.uploadFn != nil {
		return m.uploadFn(ctx, path, contentType, body)
	}
	return "https://cdn.example.com/" + path, nil
}
