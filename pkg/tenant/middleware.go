package tenant

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// MiddlewareOption configures the resolution middleware.
type MiddlewareOption func(*middleware)

// WithSkipPaths exempts path prefixes from tenant resolution. Health checks
// and webhook endpoints typically skip resolution entirely.
func WithSkipPaths(prefixes ...string) MiddlewareOption {
	return func(m *middleware) {
		m.skip = append(m.skip, prefixes...)
	}
}

// WithMiddlewareLogger sets the middleware logger.
func WithMiddlewareLogger(log *slog.Logger) MiddlewareOption {
	return func(m *middleware) {
		if log != nil {
			m.log = log
		}
	}
}

type middleware struct {
	resolver *Resolver
	skip     []string
	log      *slog.Logger
}

// Middleware resolves the tenant for each request and attaches it to the
// request context. Requests for unknown tenants get 404; suspended tenants
// get 403. Central-domain traffic that matches no strategy passes through
// without a tenant.
func Middleware(resolver *Resolver, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	m := &middleware{resolver: resolver, log: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range m.skip {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			t, err := m.resolver.Resolve(r.Context(), r.Host, r.Header.Get(HeaderTenantID))
			switch {
			case errors.Is(err, ErrTenantNotFound):
				http.Error(w, "tenant not found", http.StatusNotFound)
				return
			case err != nil:
				m.log.ErrorContext(r.Context(), "tenant resolution failed",
					"host", r.Host, "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			case t == nil:
				// Central-domain traffic; no tenant context.
				next.ServeHTTP(w, r)
				return
			case t.IsSuspended():
				http.Error(w, "tenant suspended", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), t)))
		})
	}
}

// RequireTenant rejects requests that reached the handler without a resolved
// tenant. Mount it on routes that only make sense inside a tenant.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			http.Error(w, "tenant required", http.StatusNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
