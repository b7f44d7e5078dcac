// Package tenant implements tenant identification and lifecycle management
// for the multi-tenant form platform.
//
// A tenant is resolved from an inbound request by exactly one of three
// strategies, tried in strict order: custom domain, subdomain of the central
// domain, then the X-Tenant-ID header. All lookups flow through the
// Directory, a read-through cache over the backing Store with single-flight
// population and negative caching, so the store is never queried twice
// concurrently for the same unresolved key and repeated misses for
// unregistered domains stay cheap.
//
// The Service owns every tenant state change: creation with trial setup,
// membership management under plan limits, ownership transfer, suspension and
// activation (which invalidate the Directory synchronously, before the call
// returns), cascade deletion, and custom-domain verification via DNS TXT
// records. Status fields are never written directly; going through the
// Service is what keeps the Directory coherent.
package tenant
