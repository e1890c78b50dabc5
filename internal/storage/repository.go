// Package storage provides persistence for the testrig metadata store.
package storage

import (
	"context"
	"errors"

	herrors "github.com/canonica-labs/testrig/internal/errors"
)

// Repository defines the interface for metadata-store persistence.
// All implementations must be:
// - Thread-safe
// - Context-aware (respecting cancellation/timeout)
// - Explicit about errors (never swallow)
//
// Fixtures receive a Repository; they never open their own store.
type Repository interface {
	// CreateDatabase registers a new database record.
	// Returns an error if:
	// - A record with this name already exists
	// - The record is invalid
	// - Context is cancelled
	CreateDatabase(ctx context.Context, db *Database) error

	// GetDatabase retrieves a database record by name.
	// Returns an error if:
	// - No record with this name exists
	// - Context is cancelled
	GetDatabase(ctx context.Context, name string) (*Database, error)

	// UpdateDatabaseExtra replaces the extra-configuration blob of an
	// existing record and commits. Conditioning depends on the commit:
	// the host application reads the blob from the store, not from
	// harness memory.
	UpdateDatabaseExtra(ctx context.Context, name string, extra string) error

	// DeleteDatabase removes a database record by name.
	// Returns an error if:
	// - No record with this name exists
	// - Context is cancelled
	DeleteDatabase(ctx context.Context, name string) error

	// ListDatabases returns all registered databases.
	// Returns empty slice (not nil) if no records exist.
	ListDatabases(ctx context.Context) ([]*Database, error)

	// DatabaseExists checks if a record with the given name exists.
	DatabaseExists(ctx context.Context, name string) (bool, error)

	// UpsertUser creates a test principal or refreshes an existing one.
	// Re-seeding must be idempotent.
	UpsertUser(ctx context.Context, user *User) error

	// GetUser retrieves a test principal by username.
	// Returns an error if:
	// - No principal with this username exists
	// - Context is cancelled
	GetUser(ctx context.Context, username string) (*User, error)

	// ListUsers returns all test principals.
	// Returns empty slice (not nil) if none exist.
	ListUsers(ctx context.Context) ([]*User, error)

	// CheckConnectivity verifies store connectivity.
	// Harness startup fails if the metadata store is unavailable.
	CheckConnectivity(ctx context.Context) error
}

// EnsureDatabase finds the named record or creates it from the given URI
// and backend kind. The example-database provider uses this so the record
// exists before the first test touches the host.
func EnsureDatabase(ctx context.Context, repo Repository, name, uri, backend string) (*Database, error) {
	db, err := repo.GetDatabase(ctx, name)
	if err == nil {
		return db, nil
	}
	var notFound *herrors.ErrDatabaseNotFound
	if !errors.As(err, &notFound) {
		return nil, err
	}

	record := &Database{
		Name:    name,
		URI:     uri,
		Backend: backend,
		Extra:   "{}",
	}
	if err := repo.CreateDatabase(ctx, record); err != nil {
		return nil, err
	}
	return repo.GetDatabase(ctx, name)
}
