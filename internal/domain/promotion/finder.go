package promotion

import (
	"context"
	"time"

	"github.com/sanisidro/sanisidro-api/pkg/cache"
)

var _ Finder = (*CachedFinder)(nil)

// CachedFinder fronts a Finder with an LRU keyed by normalized code.
// Misses are not cached, so a freshly created promotion is visible at once.
type CachedFinder struct {
	next  Finder
	cache *cache.LRU[string, Promotion]
}

// NewCachedFinder wraps next with a cache of the given size and TTL.
func NewCachedFinder(next Finder, size int, ttl time.Duration) *CachedFinder {
	return &CachedFinder{
		next:  next,
		cache: cache.NewLRU[string, Promotion](size, ttl),
	}
}

// StartJanitor evicts expired entries in the background until ctx is done.
func (f *CachedFinder) StartJanitor(ctx context.Context, interval time.Duration) {
	f.cache.StartJanitor(ctx, interval)
}

// FindByCode returns a copy of the cached promotion or loads it from next.
func (f *CachedFinder) FindByCode(ctx context.Context, code string) (*Promotion, error) {
	code = NormalizeCode(code)
	if p, ok := f.cache.Get(code); ok {
		return &p, nil
	}

	p, err := f.next.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	f.cache.Set(code, *p)
	return p, nil
}

// Invalidate drops code from the cache.
func (f *CachedFinder) Invalidate(code string) {
	f.cache.Delete(NormalizeCode(code))
}
