package tenant_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formforge/formforge/pkg/tenant"
)

// countingStore wraps a Store and counts FindByKey calls. When gate is set,
// FindByKey reads the row immediately but holds the response until the gate
// closes, so tests can keep an already-read snapshot in flight while other
// things happen.
type countingStore struct {
	tenant.Store
	calls atomic.Int64
	gate  chan struct{}
}

func (s *countingStore) FindByKey(ctx context.Context, kind tenant.KeyKind, value string) (*tenant.Tenant, error) {
	s.calls.Add(1)
	t, err := s.Store.FindByKey(ctx, kind, value)
	if s.gate != nil {
		<-s.gate
	}
	return t, err
}

func TestDirectory_Lookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("hit is served from cache", func(t *testing.T) {
		t.Parallel()

		mem := tenant.NewMemoryStore()
		tn := seedTenant(t, mem, "cached", "")
		store := &countingStore{Store: mem}
		dir := tenant.NewDirectory(store)
		t.Cleanup(func() { _ = dir.Close() })

		for i := 0; i < 5; i++ {
			got, err := dir.Lookup(ctx, tenant.KeySubdomain, "cached")
			require.NoError(t, err)
			assert.Equal(t, tn.ID, got.ID)
		}
		assert.EqualValues(t, 1, store.calls.Load())
	})

	t.Run("absence is cached", func(t *testing.T) {
		t.Parallel()

		store := &countingStore{Store: tenant.NewMemoryStore()}
		dir := tenant.NewDirectory(store)
		t.Cleanup(func() { _ = dir.Close() })

		for i := 0; i < 5; i++ {
			_, err := dir.Lookup(ctx, tenant.KeySubdomain, "ghost")
			require.ErrorIs(t, err, tenant.ErrTenantNotFound)
		}
		assert.EqualValues(t, 1, store.calls.Load())
	})

	t.Run("concurrent misses collapse to one store call", func(t *testing.T) {
		t.Parallel()

		mem := tenant.NewMemoryStore()
		seedTenant(t, mem, "stampede", "")
		store := &countingStore{Store: mem, gate: make(chan struct{})}
		dir := tenant.NewDirectory(store)
		t.Cleanup(func() { _ = dir.Close() })

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := dir.Lookup(ctx, tenant.KeySubdomain, "stampede")
				assert.NoError(t, err)
			}()
		}
		// Let the callers pile up behind the single in-flight lookup,
		// then release it.
		time.Sleep(20 * time.Millisecond)
		close(store.gate)
		wg.Wait()

		// Stragglers arriving after the flight completes hit the cache.
		assert.EqualValues(t, 1, store.calls.Load())
	})

	t.Run("entries expire after ttl", func(t *testing.T) {
		t.Parallel()

		mem := tenant.NewMemoryStore()
		seedTenant(t, mem, "shortlived", "")
		store := &countingStore{Store: mem}
		dir := tenant.NewDirectory(store, tenant.WithTTL(20*time.Millisecond))
		t.Cleanup(func() { _ = dir.Close() })

		_, err := dir.Lookup(ctx, tenant.KeySubdomain, "shortlived")
		require.NoError(t, err)

		time.Sleep(50 * time.Millisecond)

		_, err = dir.Lookup(ctx, tenant.KeySubdomain, "shortlived")
		require.NoError(t, err)
		assert.EqualValues(t, 2, store.calls.Load())
	})

	t.Run("invalidate drops every key variant", func(t *testing.T) {
		t.Parallel()

		mem := tenant.NewMemoryStore()
		tn := seedTenant(t, mem, "inval", "forms.inval.com")
		store := &countingStore{Store: mem}
		dir := tenant.NewDirectory(store)
		t.Cleanup(func() { _ = dir.Close() })

		_, err := dir.Lookup(ctx, tenant.KeySubdomain, "inval")
		require.NoError(t, err)
		_, err = dir.Lookup(ctx, tenant.KeyCustomDomain, "forms.inval.com")
		require.NoError(t, err)
		_, err = dir.Lookup(ctx, tenant.KeyID, tn.ID.String())
		require.NoError(t, err)
		require.EqualValues(t, 3, store.calls.Load())

		dir.Invalidate(ctx, tn)

		_, err = dir.Lookup(ctx, tenant.KeySubdomain, "inval")
		require.NoError(t, err)
		_, err = dir.Lookup(ctx, tenant.KeyCustomDomain, "forms.inval.com")
		require.NoError(t, err)
		_, err = dir.Lookup(ctx, tenant.KeyID, tn.ID.String())
		require.NoError(t, err)
		assert.EqualValues(t, 6, store.calls.Load())
	})

	t.Run("load finishing after invalidation does not resurrect stale state", func(t *testing.T) {
		t.Parallel()

		mem := tenant.NewMemoryStore()
		tn := seedTenant(t, mem, "raced", "")
		store := &countingStore{Store: mem, gate: make(chan struct{})}
		dir := tenant.NewDirectory(store)
		t.Cleanup(func() { _ = dir.Close() })

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = dir.Lookup(ctx, tenant.KeySubdomain, "raced")
		}()
		// Give the lookup time to read the active snapshot and park on the
		// gate, then suspend and invalidate while it is still in flight.
		time.Sleep(20 * time.Millisecond)

		tn.Status = tenant.StatusSuspended
		require.NoError(t, mem.UpdateTenant(ctx, tn))
		dir.Invalidate(ctx, tn)

		close(store.gate)
		<-done

		// The parked load must not have cached its pre-suspension snapshot:
		// the next lookup goes back to the store and sees the suspension.
		got, err := dir.Lookup(ctx, tenant.KeySubdomain, "raced")
		require.NoError(t, err)
		assert.Equal(t, tenant.StatusSuspended, got.Status)
		assert.EqualValues(t, 2, store.calls.Load())
	})

	t.Run("lookup after invalidated absence sees new tenant", func(t *testing.T) {
		t.Parallel()

		mem := tenant.NewMemoryStore()
		store := &countingStore{Store: mem}
		dir := tenant.NewDirectory(store)
		t.Cleanup(func() { _ = dir.Close() })

		_, err := dir.Lookup(ctx, tenant.KeySubdomain, "latecomer")
		require.ErrorIs(t, err, tenant.ErrTenantNotFound)

		tn := seedTenant(t, mem, "latecomer", "")
		dir.Invalidate(ctx, tn)

		got, err := dir.Lookup(ctx, tenant.KeySubdomain, "latecomer")
		require.NoError(t, err)
		assert.Equal(t, tn.ID, got.ID)
	})
}
