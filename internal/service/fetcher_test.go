package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"quiz-solver/internal/cache"
	"quiz-solver/internal/config"
	"quiz-solver/internal/domain"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCache is an in-process domain.Cache for tests.
type memoryCache struct {
	entries map[string]string
	fail    bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]string)}
}

func (m *memoryCache) Get(ctx context.Context, key string) (string, error) {
	if m.fail {
		return "", domain.CacheError("cache unavailable")
	}
	v, ok := m.entries[key]
	if !ok {
		return "", domain.ErrCacheMiss
	}
	return v, nil
}

func (m *memoryCache) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	if m.fail {
		return domain.CacheError("cache unavailable")
	}
	m.entries[key] = value
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func (m *memoryCache) Ping(ctx context.Context) error { return nil }

func fetchConfig() *config.Config {
	return &config.Config{
		Quiz: config.Quiz{
			FetchTimeout: 5 * time.Second,
			CacheTTL:     time.Minute,
		},
	}
}

func TestFetcher_Fetch(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("id,value\n1,10\n"))
	}))
	defer server.Close()

	f := NewFetcher(fetchConfig(), nil)
	res, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, server.URL, res.URL)
	assert.Equal(t, "text/csv", res.ContentType)
	assert.Equal(t, "id,value\n1,10\n", string(res.Body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetcher_Fetch_CacheHit(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"question":"q"}`))
	}))
	defer server.Close()

	mem := newMemoryCache()
	f := NewFetcher(fetchConfig(), mem)

	first, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second fetch must be served from cache")
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, "application/json", second.ContentType)

	_, ok := mem.entries[cache.ResourceKey(server.URL)]
	assert.True(t, ok)
}

func TestFetcher_Fetch_CacheFailureDegradesToRefetch(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	mem := newMemoryCache()
	mem.fail = true
	f := NewFetcher(fetchConfig(), mem)

	res, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err, "cache failures must not fail the fetch")
	assert.Equal(t, "payload", string(res.Body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetcher_Fetch_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher(fetchConfig(), nil)
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.CodeNavigationError, domainErr.Code)
}

func TestFetcher_Fetch_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(fetchConfig(), nil)
	_, err := f.Fetch(ctx, server.URL)
	assert.ErrorIs(t, err, context.Canceled)
}
