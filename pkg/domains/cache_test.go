package domains

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wondrousdigital/gateway/pkg/accounts"
)

func TestCachingStore_CachesFoundAndNotFound(t *testing.T) {
	backend := newFakeStore()
	project := newProject("acme")
	backend.bySlug["acme"] = []*accounts.Project{project}
	cache := NewCachingStore(backend, CacheConfig{Size: 10, TTL: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := cache.ProjectBySlug(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, project.ID, got.ID)

		_, err = cache.ProjectBySlug(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	}

	assert.Equal(t, []string{"slug:acme", "slug:missing"}, backend.callLog())
	hits, misses := cache.Stats()
	assert.Equal(t, int64(4), hits)
	assert.Equal(t, int64(2), misses)
}

func TestCachingStore_KeysByLookupKind(t *testing.T) {
	backend := newFakeStore()
	cache := NewCachingStore(backend, DefaultCacheConfig())
	ctx := context.Background()

	_, _ = cache.ProjectBySlug(ctx, "acme.example")
	_, _ = cache.ProjectByVerifiedDomain(ctx, "acme.example")
	_, _ = cache.ReservedRootProject(ctx, "acme.example")

	assert.Equal(t, []string{"slug:acme.example", "domain:acme.example", "root:acme.example"}, backend.callLog())
}

func TestCachingStore_ErrorsNotCached(t *testing.T) {
	backend := newFakeStore()
	backend.err = errBackendDown
	cache := NewCachingStore(backend, DefaultCacheConfig())
	ctx := context.Background()

	_, err := cache.ProjectByVerifiedDomain(ctx, "acme.example")
	assert.ErrorIs(t, err, errBackendDown)

	backend.mu.Lock()
	backend.err = nil
	backend.byDom["acme.example"] = []*accounts.Project{newProject("acme")}
	backend.mu.Unlock()

	got, err := cache.ProjectByVerifiedDomain(ctx, "acme.example")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Slug)
	assert.Len(t, backend.callLog(), 2)
}

func TestCachingStore_AmbiguousNotCached(t *testing.T) {
	backend := newFakeStore()
	backend.bySlug["dup"] = []*accounts.Project{newProject("dup"), newProject("dup")}
	cache := NewCachingStore(backend, DefaultCacheConfig())

	for i := 0; i < 2; i++ {
		_, err := cache.ProjectBySlug(context.Background(), "dup")
		assert.ErrorIs(t, err, ErrAmbiguousMatch)
	}
	assert.Len(t, backend.callLog(), 2)
}

func TestCachingStore_Purge(t *testing.T) {
	backend := newFakeStore()
	cache := NewCachingStore(backend, DefaultCacheConfig())
	ctx := context.Background()

	_, err := cache.ProjectBySlug(ctx, "acme")
	assert.ErrorIs(t, err, ErrNotFound)

	backend.mu.Lock()
	backend.bySlug["acme"] = []*accounts.Project{newProject("acme")}
	backend.mu.Unlock()

	_, err = cache.ProjectBySlug(ctx, "acme")
	assert.ErrorIs(t, err, ErrNotFound, "not-found is cached until expiry")

	cache.Purge()
	got, err := cache.ProjectBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Slug)
}

func TestCachingStore_Expiry(t *testing.T) {
	backend := newFakeStore()
	backend.bySlug["acme"] = []*accounts.Project{newProject("acme")}
	cache := NewCachingStore(backend, CacheConfig{Size: 10, TTL: 20 * time.Millisecond})
	ctx := context.Background()

	_, err := cache.ProjectBySlug(ctx, "acme")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, _ = cache.ProjectBySlug(ctx, "acme")
		return len(backend.callLog()) >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestCachingStore_DisabledPassesThrough(t *testing.T) {
	backend := newFakeStore()
	backend.bySlug["acme"] = []*accounts.Project{newProject("acme")}
	cache := NewCachingStore(backend, CacheConfig{TTL: 0})

	for i := 0; i < 3; i++ {
		_, err := cache.ProjectBySlug(context.Background(), "acme")
		require.NoError(t, err)
	}
	assert.Len(t, backend.callLog(), 3)

	cache.Purge()
	hits, misses := cache.Stats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
}

func TestCachingStore_SharesConcurrentLookups(t *testing.T) {
	backend := newFakeStore()
	backend.bySlug["acme"] = []*accounts.Project{newProject("acme")}
	backend.block = make(chan struct{})
	backend.started = make(chan struct{}, 10)
	cache := NewCachingStore(backend, DefaultCacheConfig())

	const callers = 5
	var wg sync.WaitGroup
	results := make(chan error, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := cache.ProjectBySlug(context.Background(), "acme")
		results <- err
	}()
	<-backend.started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.ProjectBySlug(context.Background(), "acme")
			results <- err
		}()
	}

	// Give the followers time to join the in-flight lookup
	time.Sleep(50 * time.Millisecond)
	close(backend.block)
	wg.Wait()
	close(results)

	for err := range results {
		assert.NoError(t, err)
	}
	assert.Equal(t, []string{"slug:acme"}, backend.callLog())
}
