package videos

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	info    Metadata
	expires time.Time
}

// CachingProvider wraps another Provider with a TTL-based in-memory cache
// for metadata lookups. Streams always go straight to the base provider.
type CachingProvider struct {
	base Provider
	ttl  time.Duration

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingProvider returns a Provider that caches metadata for the provided TTL.
func NewCachingProvider(base Provider, ttl time.Duration) *CachingProvider {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingProvider{
		base:  base,
		ttl:   ttl,
		items: make(map[string]cacheEntry),
	}
}

// FetchMetadata returns cached metadata when available, otherwise it
// delegates to the underlying provider and stores the result.
func (c *CachingProvider) FetchMetadata(ctx context.Context, remoteID string) (Metadata, error) {
	if c == nil || c.base == nil {
		return Metadata{}, ErrProviderUnavailable
	}

	now := time.Now()

	c.mu.RLock()
	entry, ok := c.items[remoteID]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.info, nil
	}

	info, err := c.base.FetchMetadata(ctx, remoteID)
	if err != nil {
		return Metadata{}, err
	}

	c.mu.Lock()
	c.items[remoteID] = cacheEntry{info: info, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return info, nil
}

// OpenStream delegates directly to the base provider.
func (c *CachingProvider) OpenStream(ctx context.Context, remoteID, byteRange string) (Stream, error) {
	if c == nil || c.base == nil {
		return Stream{}, ErrProviderUnavailable
	}
	return c.base.OpenStream(ctx, remoteID, byteRange)
}

var _ Provider = (*CachingProvider)(nil)
