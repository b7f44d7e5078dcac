// Package redis connects the shared Redis used for the cross-node tenant
// directory cache. Connection setup retries until Redis is ready, and the
// health check closure plugs into readiness endpoints.
package redis
