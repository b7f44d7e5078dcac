package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Directory is the read-through cache every tenant lookup goes through. It is
// the only path between the resolver and the backing store; bypassing it
// would let suspended tenants stay resolvable through stale entries.
//
// Concurrent misses for the same key collapse to a single store lookup via
// singleflight. Both hits and misses are cached: a miss stores a known-absent
// marker so unregistered domains do not hammer the store.
type Directory struct {
	store Store
	cache Cache
	ttl   time.Duration
	group singleflight.Group

	// gen tracks invalidations per cache key. A store load snapshots the
	// key's generation before reading; if Invalidate bumped it while the
	// load was in flight, the loaded value is stale and must not be cached.
	mu  sync.Mutex
	gen map[string]uint64
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithCache sets a custom cache implementation (e.g. Redis for multi-node
// deployments). Defaults to an in-process cache.
func WithCache(c Cache) DirectoryOption {
	return func(d *Directory) {
		if c != nil {
			d.cache = c
		}
	}
}

// WithTTL sets the entry lifetime. Defaults to 5 minutes.
func WithTTL(ttl time.Duration) DirectoryOption {
	return func(d *Directory) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// NewDirectory creates a Directory over the given store.
func NewDirectory(store Store, opts ...DirectoryOption) *Directory {
	d := &Directory{
		store: store,
		ttl:   5 * time.Minute,
		gen:   make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cache == nil {
		d.cache = NewMemoryCache()
	}
	return d
}

func cacheKey(kind KeyKind, value string) string {
	return fmt.Sprintf("%s:%s", kind, value)
}

func (d *Directory) generation(key string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen[key]
}

func (d *Directory) bump(keys ...string) {
	d.mu.Lock()
	for _, k := range keys {
		d.gen[k]++
	}
	d.mu.Unlock()
}

// setIfCurrent caches the entry unless the key was invalidated after gen was
// snapshotted. The write happens under the generation lock so it cannot
// interleave with a concurrent bump+delete.
func (d *Directory) setIfCurrent(ctx context.Context, key string, gen uint64, t *Tenant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen[key] != gen {
		return
	}
	d.cache.Set(ctx, key, t, d.ttl)
}

// Lookup returns the tenant for the given key, or ErrTenantNotFound. Absence
// is cached for the same TTL as presence.
func (d *Directory) Lookup(ctx context.Context, kind KeyKind, value string) (*Tenant, error) {
	key := cacheKey(kind, value)

	if t, ok := d.cache.Get(ctx, key); ok {
		if t == nil {
			return nil, ErrTenantNotFound
		}
		return t, nil
	}

	v, err, _ := d.group.Do(key, func() (any, error) {
		gen := d.generation(key)
		t, err := d.store.FindByKey(ctx, kind, value)
		if err != nil {
			if errors.Is(err, ErrTenantNotFound) {
				d.setIfCurrent(ctx, key, gen, nil)
			}
			// Other store errors are not cached; the next lookup retries.
			return nil, err
		}
		d.setIfCurrent(ctx, key, gen, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Tenant), nil
}

// Invalidate drops all cached key variants for the tenant: ID, subdomain, and
// custom domain when set. It must be called before a suspend/activate/delete
// operation returns, so no subsequent request can observe the stale entry.
func (d *Directory) Invalidate(ctx context.Context, t *Tenant) {
	keys := []string{
		cacheKey(KeyID, t.ID.String()),
		cacheKey(KeySubdomain, t.Subdomain),
	}
	if t.CustomDomain != "" {
		keys = append(keys, cacheKey(KeyCustomDomain, t.CustomDomain))
	}
	d.bump(keys...)
	d.cache.Delete(ctx, keys...)
}

// InvalidateDomain drops the cache entry for a single custom domain, used
// when a tenant's domain changes and the old name must stop resolving.
func (d *Directory) InvalidateDomain(ctx context.Context, domain string) {
	if domain != "" {
		key := cacheKey(KeyCustomDomain, domain)
		d.bump(key)
		d.cache.Delete(ctx, key)
	}
}

// Close releases the underlying cache.
func (d *Directory) Close() error {
	return d.cache.Close()
}
