// Package database manages the SQLite store backing the pairing audit trail.
//
// It wraps database/sql with lifecycle management (Open/Close/HealthCheck)
// and applies embedded schema migrations on startup. The store is small and
// write-light; the pool is pinned to a single connection since SQLite
// allows only one writer.
package database
