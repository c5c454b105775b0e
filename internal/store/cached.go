package store

import (
	"strconv"

	"github.com/dgraph-io/ristretto"

	"github.com/labara-io/labara-go/internal/domain"
)

// CachedSource memoizes per-flag lookups from an inner source. Entries are
// keyed by the snapshot's creation time, so a configuration swap naturally
// invalidates them without coordination with readers.
type CachedSource struct {
	inner FlagSource
	cache *ristretto.Cache
}

// NewCachedSource wraps inner with a ristretto-backed memo. maxFlags
// bounds the number of cached entries.
func NewCachedSource(inner FlagSource, maxFlags int64) (*CachedSource, error) {
	if maxFlags <= 0 {
		maxFlags = 1024
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxFlags * 10,
		MaxCost:     maxFlags,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachedSource{inner: inner, cache: cache}, nil
}

// Configuration implements FlagSource.
func (c *CachedSource) Configuration() *domain.Configuration {
	return c.inner.Configuration()
}

// GetFlag implements FlagSource.
func (c *CachedSource) GetFlag(key string) (*domain.Flag, bool) {
	cfg := c.inner.Configuration()
	if cfg == nil {
		return nil, false
	}

	cacheKey := strconv.FormatInt(cfg.CreatedAt.UnixNano(), 36) + ":" + key
	if value, found := c.cache.Get(cacheKey); found {
		if flag, ok := value.(*domain.Flag); ok {
			return flag, true
		}
	}

	flag, ok := c.inner.GetFlag(key)
	if !ok {
		return nil, false
	}

	c.cache.Set(cacheKey, flag, 1)
	return flag, true
}

// Wait flushes pending cache writes. Test helper.
func (c *CachedSource) Wait() {
	c.cache.Wait()
}

// Close releases the cache.
func (c *CachedSource) Close() {
	c.cache.Close()
}
