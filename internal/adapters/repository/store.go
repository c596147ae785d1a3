// Package repository defines the player store interface, its errors, and
// the memory, MongoDB, PostgreSQL and SQLite backends.
package repository

import (
	"context"

	"github.com/okian/lounge/internal/domain/model"
)

// Backend names, as used by the store_backend setting and in metrics labels.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Store provides read/write access to player records.
type Store interface {
	// Get returns the record for name, or ErrNotFound.
	Get(ctx context.Context, name string) (model.Player, error)

	// List returns every record. Order is backend specific.
	List(ctx context.Context) ([]model.Player, error)

	// Apply sets name's rating to mmr in one atomic write: the delta against
	// the stored rating is appended to history and wins (delta > 0) or
	// losses (otherwise) is incremented. Returns ErrNotFound for unknown names.
	Apply(ctx context.Context, name string, mmr int64) (model.Change, error)

	// Create inserts a new record. Returns ErrAlreadyExists on duplicates.
	Create(ctx context.Context, p model.Player) error

	// Count returns the number of stored players.
	Count(ctx context.Context) (int, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close(ctx context.Context) error
}
