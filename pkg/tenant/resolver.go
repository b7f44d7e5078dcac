package tenant

import (
	"context"
	"errors"
	"strings"
)

// HeaderTenantID is the header carrying an explicit tenant identifier for
// API clients that cannot present a tenant host.
const HeaderTenantID = "X-Tenant-ID"

// Resolver maps an inbound request's host and optional tenant header to
// exactly one tenant. Strategies run in strict order, first match wins:
//
//  1. Custom domain — only when the host is neither the central domain nor
//     one of its subdomains.
//  2. Subdomain — only when the host is a subdomain of the central domain.
//     Reserved subdomains resolve to absent and never fall through.
//  3. Header — only when the caller supplied a tenant ID header.
//
// A strategy whose lookup misses falls through to the next applicable one.
// When no strategy applies at all (central-domain traffic without a header),
// Resolve returns (nil, nil): the request proceeds with no tenant context.
type Resolver struct {
	dir      *Directory
	central  string
	centrals map[string]struct{}
	reserved map[string]struct{}
}

// NewResolver builds a Resolver from the tenancy configuration.
func NewResolver(dir *Directory, cfg Config) *Resolver {
	r := &Resolver{
		dir:      dir,
		central:  strings.ToLower(cfg.CentralDomain),
		centrals: make(map[string]struct{}, len(cfg.CentralDomains)+1),
		reserved: make(map[string]struct{}, len(cfg.ReservedSubdomains)),
	}
	r.centrals[r.central] = struct{}{}
	for _, d := range cfg.CentralDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			r.centrals[d] = struct{}{}
		}
	}
	for _, s := range cfg.ReservedSubdomains {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			r.reserved[s] = struct{}{}
		}
	}
	return r
}

// Resolve identifies the tenant for a request. It returns ErrTenantNotFound
// when an identification strategy applied but no tenant matched, and
// (nil, nil) when the request carries no tenant identification at all.
func (r *Resolver) Resolve(ctx context.Context, host, headerTenantID string) (*Tenant, error) {
	host = normalizeHost(host)

	_, isCentral := r.centrals[host]
	isCentralSub := strings.HasSuffix(host, "."+r.central)

	attempted := false

	// Step 1: custom domain, for hosts outside the central domain entirely.
	if host != "" && !isCentral && !isCentralSub {
		attempted = true
		t, err := r.dir.Lookup(ctx, KeyCustomDomain, host)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrTenantNotFound) {
			return nil, err
		}
	}

	// Step 2: subdomain of the central domain.
	if isCentralSub && !isCentral {
		candidate := strings.TrimSuffix(host, "."+r.central)
		if _, ok := r.reserved[candidate]; ok {
			// Reserved names are absent by definition, even if a tenant row
			// with that subdomain exists. No fall-through to the header.
			return nil, ErrTenantNotFound
		}
		attempted = true
		t, err := r.dir.Lookup(ctx, KeySubdomain, candidate)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrTenantNotFound) {
			return nil, err
		}
	}

	// Step 3: explicit header.
	if headerTenantID != "" {
		attempted = true
		t, err := r.dir.Lookup(ctx, KeyID, strings.TrimSpace(headerTenantID))
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrTenantNotFound) {
			return nil, err
		}
	}

	if attempted {
		return nil, ErrTenantNotFound
	}
	return nil, nil
}

// normalizeHost lowercases the host and strips any port.
func normalizeHost(host string) string {
	if idx := strings.LastIndex(host, ":"); idx != -1 && !strings.Contains(host[idx:], "]") {
		host = host[:idx]
	}
	return strings.ToLower(strings.TrimSpace(host))
}
