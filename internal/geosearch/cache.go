package geosearch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ttlCache is an in-memory cache with per-entry expiration and a background
// sweeper.
type ttlCache[V any] struct {
	data    map[string]cacheEntry[V]
	ttl     time.Duration
	mu      sync.RWMutex
	cleanup *time.Ticker
	done    chan struct{}
	now     func() time.Time
}

type cacheEntry[V any] struct {
	value      V
	expiration time.Time
}

func newTTLCache[V any](ttl, sweep time.Duration) *ttlCache[V] {
	c := &ttlCache[V]{
		data:    make(map[string]cacheEntry[V]),
		ttl:     ttl,
		cleanup: time.NewTicker(sweep),
		done:    make(chan struct{}),
		now:     time.Now,
	}

	go c.cleanupLoop()

	return c
}

func (c *ttlCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok || c.now().After(entry.expiration) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

func (c *ttlCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry[V]{
		value:      value,
		expiration: c.now().Add(c.ttl),
	}
}

func (c *ttlCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func (c *ttlCache[V]) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *ttlCache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
}

func (c *ttlCache[V]) Stop() {
	c.cleanup.Stop()
	close(c.done)
}

// CachingGeocoder memoizes successful lookups of another Geocoder. Misses
// and provider errors are not cached.
type CachingGeocoder struct {
	next     Geocoder
	searches *ttlCache[[]Place]
	reverses *ttlCache[Place]
}

// NewCachingGeocoder wraps next with a cache whose entries live for ttl.
func NewCachingGeocoder(next Geocoder, ttl time.Duration) *CachingGeocoder {
	return &CachingGeocoder{
		next:     next,
		searches: newTTLCache[[]Place](ttl, time.Minute),
		reverses: newTTLCache[Place](ttl, time.Minute),
	}
}

// Search returns cached places for query, asking the wrapped geocoder on a miss.
func (c *CachingGeocoder) Search(ctx context.Context, query string) ([]Place, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if places, ok := c.searches.Get(key); ok {
		return places, nil
	}

	places, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	c.searches.Set(key, places)
	return places, nil
}

// Reverse returns the cached place for a coordinate rounded to about 10 m.
func (c *CachingGeocoder) Reverse(ctx context.Context, lat, lng float64) (Place, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lng)
	if place, ok := c.reverses.Get(key); ok {
		return place, nil
	}

	place, err := c.next.Reverse(ctx, lat, lng)
	if err != nil {
		return Place{}, err
	}
	c.reverses.Set(key, place)
	return place, nil
}

// Stop ends the background sweepers.
func (c *CachingGeocoder) Stop() {
	c.searches.Stop()
	c.reverses.Stop()
}
