// Package storage provides orchestration repository implementations.
//
// Implementations:
//   - redis: Redis with JSON serialization and WATCH-based version checks
//   - memory: In-memory for single-process deployments and testing
package storage
