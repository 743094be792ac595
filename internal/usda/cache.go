package usda

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Searcher is anything that can look up a food by free text.
type Searcher interface {
	Search(ctx context.Context, query string) (*Food, error)
}

// CachedSource keeps successful lookups in memory for ttl. Misses and errors
// always reach the underlying Searcher.
type CachedSource struct {
	next  Searcher
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCachedSource wraps next with a cache holding roughly maxItems foods.
func NewCachedSource(next Searcher, maxItems int64, ttl time.Duration) (*CachedSource, error) {
	if maxItems <= 0 {
		maxItems = 1000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxItems * 10,
		MaxCost:            maxItems,
		BufferItems:        64,
		IgnoreInternalCost: true, // cost counts foods, not bytes
	})
	if err != nil {
		return nil, fmt.Errorf("creating usda cache: %w", err)
	}
	return &CachedSource{next: next, cache: cache, ttl: ttl}, nil
}

func cacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Search serves query from the cache when possible.
func (s *CachedSource) Search(ctx context.Context, query string) (*Food, error) {
	key := cacheKey(query)
	if v, ok := s.cache.Get(key); ok {
		if food, ok := v.(Food); ok {
			slog.Debug("usda cache hit", "query", query)
			return &food, nil
		}
	}

	food, err := s.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if s.ttl > 0 {
		s.cache.SetWithTTL(key, *food, 1, s.ttl)
	} else {
		s.cache.Set(key, *food, 1)
	}
	return food, nil
}

// Close releases the cache's background goroutines.
func (s *CachedSource) Close() {
	s.cache.Close()
}
