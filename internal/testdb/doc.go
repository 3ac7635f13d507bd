// Package testdb provides helpers for tests that need a real PostgreSQL
// database. Tests skip when no database URL is configured, so the helpers
// are safe to call from integration-tagged tests in any environment.
package testdb
