// Package storage provides the persistence backends for the game:
// Redis for live sessions, SQLite for users, the leaderboard, and
// achievements.
package storage

import "context"

// HealthChecker defines basic health check capabilities.
type HealthChecker interface {
	// Ping tests the backend connection.
	Ping(ctx context.Context) error
}

// Closer defines cleanup capabilities.
type Closer interface {
	// Close closes the backend connection.
	Close() error
}
