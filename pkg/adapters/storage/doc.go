// Package storage provides run record storage implementations.
//
// Implementations:
//   - redis: Redis with JSON serialization and TTL
//   - sqlite: SQLite through database/sql and modernc.org/sqlite
//   - memory: In-memory for tests and single-process deployments
//
// Every implementation returns domain.ErrRunNotFound for unknown run ids.
package storage
