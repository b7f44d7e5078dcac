// Package pg bootstraps the PostgreSQL layer: a pgx/v5 connection pool with
// startup retries, goose schema migrations (from a directory or an embedded
// fs.FS), a health check closure, and error classification helpers used by
// the store implementations.
package pg
