// Package cache holds the latest stored observation per city for the
// latest-by-city read path. Collection never reads from it.
package cache

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/weather-collector-service/internal/models"
)

// Cache stores the latest observation per city with a TTL.
// Get returns (zero, false, nil) on miss or expiry.
type Cache interface {
	Get(ctx context.Context, city string) (models.StoredObservation, bool, error)
	Set(ctx context.Context, city string, value models.StoredObservation, ttl time.Duration) error
}

// Pinger is implemented by caches backed by a remote server.
type Pinger interface {
	Ping() error
}

// Backend names accepted by Open.
const (
	BackendNone      = "none"
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
)

// Options selects and configures a cache backend.
type Options struct {
	Backend       string
	MemcachedAddr string
	Timeout       time.Duration
	MaxIdleConns  int
}

// Open returns the configured cache, or nil for BackendNone.
func Open(opts Options) (Cache, error) {
	switch opts.Backend {
	case BackendNone:
		return nil, nil
	case "", BackendInMemory:
		return NewInMemoryCache(), nil
	case BackendMemcached:
		mc, err := NewMemcachedCache(opts.MemcachedAddr, opts.Timeout, opts.MaxIdleConns)
		if err != nil {
			return nil, err
		}
		return mc, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

// Key normalizes a city name into a key safe for every backend.
// Memcached rejects whitespace, so the name is query-escaped.
func Key(city string) string {
	return url.QueryEscape(strings.ToLower(strings.TrimSpace(city)))
}

// InMemoryCache implements Cache with a mutex-guarded map. Expired entries are removed on access.
type InMemoryCache struct {
	clock clockwork.Clock

	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     models.StoredObservation
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache using the real clock.
func NewInMemoryCache() *InMemoryCache {
	return NewInMemoryCacheWithClock(clockwork.NewRealClock())
}

// NewInMemoryCacheWithClock creates an in-memory cache reading expiry time from clock.
func NewInMemoryCacheWithClock(clock clockwork.Clock) *InMemoryCache {
	return &InMemoryCache{
		clock: clock,
		data:  make(map[string]cacheEntry),
	}
}

func (c *InMemoryCache) Get(ctx context.Context, city string) (models.StoredObservation, bool, error) {
	key := Key(city)
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok {
		return models.StoredObservation{}, false, nil
	}
	if c.clock.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.StoredObservation{}, false, nil
	}
	return entry.value, true, nil
}

func (c *InMemoryCache) Set(ctx context.Context, city string, value models.StoredObservation, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[Key(city)] = cacheEntry{
		value:     value,
		expiresAt: c.clock.Now().Add(ttl),
	}
	return nil
}

// Len reports the number of entries, expired ones included.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
