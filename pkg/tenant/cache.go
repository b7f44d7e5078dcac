package tenant

import (
	"context"
	"sync"
	"time"
)

// Cache stores tenant snapshots keyed by lookup key. A stored nil tenant is a
// "known absent" marker, so repeated misses for unregistered keys do not hit
// the backing store. Entries expire after their TTL regardless of explicit
// invalidation, as defense against missed invalidations.
type Cache interface {
	// Get returns the cached entry. ok distinguishes a cache miss from a
	// cached known-absent marker (ok=true, t=nil).
	Get(ctx context.Context, key string) (t *Tenant, ok bool)

	// Set stores a tenant snapshot, or a known-absent marker when t is nil.
	Set(ctx context.Context, key string, t *Tenant, ttl time.Duration)

	// Delete removes entries for the given keys.
	Delete(ctx context.Context, keys ...string)

	// Close releases any resources held by the cache.
	Close() error
}

type memoryEntry struct {
	tenant    *Tenant // nil = known absent
	expiresAt time.Time
}

// memoryCache is the default in-process cache with periodic expiry sweeps.
type memoryCache struct {
	mu     sync.RWMutex
	items  map[string]memoryEntry
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

// NewMemoryCache creates an in-process cache with a background cleanup
// goroutine. Call Close to stop it.
func NewMemoryCache() Cache {
	c := &memoryCache{
		items: make(map[string]memoryEntry),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *memoryCache) Get(_ context.Context, key string) (*Tenant, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check: the entry may have been replaced since the RUnlock.
		if cur, ok := c.items[key]; ok && time.Now().After(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.tenant, true
}

func (c *memoryCache) Set(_ context.Context, key string, t *Tenant, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.items[key] = memoryEntry{tenant: t, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.items, key)
	}
	c.mu.Unlock()
}

func (c *memoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.items {
				if now.After(entry.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

func (c *memoryCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	return nil
}
