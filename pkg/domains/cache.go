package domains

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/wondrousdigital/gateway/pkg/accounts"
	"golang.org/x/sync/singleflight"
)

// CacheConfig holds lookup cache configuration
type CacheConfig struct {
	// Size is the maximum number of cached lookups
	Size int

	// TTL is how long a result is kept. Zero disables caching.
	TTL time.Duration
}

// DefaultCacheConfig returns the default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Size: 10000,
		TTL:  30 * time.Second,
	}
}

type cacheEntry struct {
	project *accounts.Project
}

// CachingStore wraps a Store with a TTL cache of found and not-found results.
// Concurrent identical lookups share one backend call. Errors other than
// ErrNotFound are never cached.
type CachingStore struct {
	next   Store
	cache  *lru.LRU[string, cacheEntry]
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachingStore creates a caching decorator around next
func NewCachingStore(next Store, config CacheConfig) *CachingStore {
	s := &CachingStore{next: next}
	if config.TTL > 0 {
		size := config.Size
		if size < 1 {
			size = DefaultCacheConfig().Size
		}
		s.cache = lru.NewLRU[string, cacheEntry](size, nil, config.TTL)
	}
	return s
}

// ProjectBySlug implements Store
func (s *CachingStore) ProjectBySlug(ctx context.Context, slug string) (*accounts.Project, error) {
	return s.lookup(ctx, "slug:"+slug, func(ctx context.Context) (*accounts.Project, error) {
		return s.next.ProjectBySlug(ctx, slug)
	})
}

// ProjectByVerifiedDomain implements Store
func (s *CachingStore) ProjectByVerifiedDomain(ctx context.Context, domain string) (*accounts.Project, error) {
	return s.lookup(ctx, "domain:"+domain, func(ctx context.Context) (*accounts.Project, error) {
		return s.next.ProjectByVerifiedDomain(ctx, domain)
	})
}

// ReservedRootProject implements Store
func (s *CachingStore) ReservedRootProject(ctx context.Context, domain string) (*accounts.Project, error) {
	return s.lookup(ctx, "root:"+domain, func(ctx context.Context) (*accounts.Project, error) {
		return s.next.ReservedRootProject(ctx, domain)
	})
}

// Purge drops every cached result
func (s *CachingStore) Purge() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// Stats returns cache hit and miss counts
func (s *CachingStore) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

func (s *CachingStore) lookup(ctx context.Context, key string, fetch func(context.Context) (*accounts.Project, error)) (*accounts.Project, error) {
	if s.cache == nil {
		return fetch(ctx)
	}

	if entry, ok := s.cache.Get(key); ok {
		s.hits.Add(1)
		if entry.project == nil {
			return nil, ErrNotFound
		}
		return entry.project, nil
	}
	s.misses.Add(1)

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		project, err := fetch(ctx)
		switch {
		case err == nil:
			s.cache.Add(key, cacheEntry{project: project})
		case errors.Is(err, ErrNotFound):
			s.cache.Add(key, cacheEntry{})
		}
		return project, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*accounts.Project), nil
}
