package tenant_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formforge/formforge/pkg/tenant"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()

	store := tenant.NewMemoryStore()
	dir := tenant.NewDirectory(store)
	t.Cleanup(func() { _ = dir.Close() })

	active := seedTenant(t, store, "active", "")
	suspended := seedTenant(t, store, "frozen", "")
	suspended.Status = tenant.StatusSuspended
	require.NoError(t, store.UpdateTenant(context.Background(), suspended))

	resolver := tenant.NewResolver(dir, testConfig())

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tn, ok := tenant.FromContext(r.Context()); ok {
			w.Header().Set("X-Resolved", tn.Subdomain)
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := tenant.Middleware(resolver, tenant.WithSkipPaths("/healthz", "/webhooks/"))(echo)

	doRequest := func(host, path, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "http://"+host+path, nil)
		req.Host = host
		if header != "" {
			req.Header.Set(tenant.HeaderTenantID, header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("resolved tenant lands in context", func(t *testing.T) {
		t.Parallel()

		rec := doRequest("active.forms.test", "/forms", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "active", rec.Header().Get("X-Resolved"))
	})

	t.Run("unknown tenant gets 404", func(t *testing.T) {
		t.Parallel()

		rec := doRequest("ghost.forms.test", "/forms", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("suspended tenant gets 403", func(t *testing.T) {
		t.Parallel()

		rec := doRequest("frozen.forms.test", "/forms", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("central domain passes through without tenant", func(t *testing.T) {
		t.Parallel()

		rec := doRequest("forms.test", "/pricing", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Resolved"))
	})

	t.Run("header resolves on central domain", func(t *testing.T) {
		t.Parallel()

		rec := doRequest("forms.test", "/api/forms", active.ID.String())
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "active", rec.Header().Get("X-Resolved"))
	})

	t.Run("skip paths bypass resolution", func(t *testing.T) {
		t.Parallel()

		rec := doRequest("ghost.forms.test", "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireTenant(t *testing.T) {
	t.Parallel()

	handler := tenant.RequireTenant(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("without tenant", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("with tenant", func(t *testing.T) {
		t.Parallel()

		tn := &tenant.Tenant{Subdomain: "here"}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(tenant.WithTenant(req.Context(), tn))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
