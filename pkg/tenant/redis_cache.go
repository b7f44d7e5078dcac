package tenant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// absentMarker is stored for keys known to have no tenant, so negative
// lookups survive process restarts and are shared across instances.
const absentMarker = "absent"

// redisCache is a Cache backed by Redis, for deployments running more than
// one instance where every node must observe invalidations.
type redisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache creates a Redis-backed directory cache. Keys are namespaced
// under the given prefix ("tenant" when empty).
func NewRedisCache(client redis.UniversalClient, prefix string) Cache {
	if prefix == "" {
		prefix = "tenant"
	}
	return &redisCache{client: client, prefix: prefix}
}

func (c *redisCache) Get(ctx context.Context, key string) (*Tenant, bool) {
	raw, err := c.client.Get(ctx, c.prefix+":"+key).Result()
	if err != nil {
		// Treat transport errors as cache misses; the directory falls back to
		// the backing store.
		return nil, false
	}
	if raw == absentMarker {
		return nil, true
	}

	var t Tenant
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, false
	}
	return &t, true
}

func (c *redisCache) Set(ctx context.Context, key string, t *Tenant, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if t == nil {
		c.client.Set(ctx, c.prefix+":"+key, absentMarker, ttl)
		return
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.prefix+":"+key, payload, ttl)
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) {
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = c.prefix + ":" + key
	}
	c.client.Del(ctx, prefixed...)
}

func (c *redisCache) Close() error {
	// The client is shared infrastructure owned by the caller.
	return nil
}
