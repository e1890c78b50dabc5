// Package storage provides persistence for the testrig metadata store.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/canonica-labs/testrig/internal/errors"
)

// PostgresRepository implements Repository using PostgreSQL.
// This is the production implementation; the mock exists for tests only.
type PostgresRepository struct {
	db *sql.DB
}

// PostgresConfig configures the PostgreSQL repository connection pool.
type PostgresConfig struct {
	// ConnectionString is the PostgreSQL connection string.
	ConnectionString string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime.
	ConnMaxLifetime time.Duration
}

// OpenPostgres opens a pooled connection for the metadata store.
// Callers own the returned *sql.DB and must close it.
func OpenPostgres(cfg PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open metadata store: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateDatabase registers a new database record.
func (r *PostgresRepository) CreateDatabase(ctx context.Context, db *Database) error {
	// Validate record first
	if err := db.Validate(); err != nil {
		return err
	}

	// Start transaction
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Check if record already exists
	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM databases WHERE name = $1)",
		db.Name,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}
	if exists {
		return errors.NewDatabaseAlreadyExists(db.Name)
	}

	extra := db.Extra
	if extra == "" {
		extra = "{}"
	}

	// Insert record
	err = tx.QueryRowContext(ctx,
		`INSERT INTO databases (name, uri, backend, extra)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		db.Name, db.URI, db.Backend, extra,
	).Scan(&db.ID)
	if err != nil {
		return fmt.Errorf("failed to insert database: %w", err)
	}

	// Commit transaction
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetDatabase retrieves a database record by name.
func (r *PostgresRepository) GetDatabase(ctx context.Context, name string) (*Database, error) {
	if name == "" {
		return nil, fmt.Errorf("storage: database name cannot be empty")
	}

	var db Database
	var backend sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, uri, backend, extra, created_at, updated_at
		 FROM databases WHERE name = $1`,
		name,
	).Scan(&db.ID, &db.Name, &db.URI, &backend, &db.Extra, &db.CreatedAt, &db.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, errors.NewDatabaseNotFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}

	db.Backend = backend.String
	return &db, nil
}

// UpdateDatabaseExtra replaces the extra blob of an existing record and commits.
func (r *PostgresRepository) UpdateDatabaseExtra(ctx context.Context, name string, extra string) error {
	if extra == "" {
		extra = "{}"
	}

	// Start transaction
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE databases SET extra = $1, updated_at = NOW() WHERE name = $2`,
		extra, name,
	)
	if err != nil {
		return fmt.Errorf("failed to update extra: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewDatabaseNotFound(name)
	}

	// Commit transaction - the host reads the blob from the store,
	// so an uncommitted update conditions nothing.
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteDatabase removes a database record by name.
func (r *PostgresRepository) DeleteDatabase(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("storage: database name cannot be empty")
	}

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM databases WHERE name = $1",
		name,
	)
	if err != nil {
		return fmt.Errorf("failed to delete database: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewDatabaseNotFound(name)
	}

	return nil
}

// ListDatabases returns all registered databases.
func (r *PostgresRepository) ListDatabases(ctx context.Context) ([]*Database, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, uri, backend, extra, created_at, updated_at
		 FROM databases ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	defer rows.Close()

	result := make([]*Database, 0)
	for rows.Next() {
		var db Database
		var backend sql.NullString
		if err := rows.Scan(&db.ID, &db.Name, &db.URI, &backend, &db.Extra, &db.CreatedAt, &db.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan database: %w", err)
		}
		db.Backend = backend.String
		result = append(result, &db)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating databases: %w", err)
	}

	return result, nil
}

// DatabaseExists checks if a record with the given name exists.
func (r *PostgresRepository) DatabaseExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM databases WHERE name = $1)",
		name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check database existence: %w", err)
	}
	return exists, nil
}

// UpsertUser creates a test principal or refreshes an existing one.
func (r *PostgresRepository) UpsertUser(ctx context.Context, user *User) error {
	// Validate record first
	if err := user.Validate(); err != nil {
		return err
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, role)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (username)
		 DO UPDATE SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role
		 RETURNING id`,
		user.Username, user.PasswordHash, user.Role,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// GetUser retrieves a test principal by username.
func (r *PostgresRepository) GetUser(ctx context.Context, username string) (*User, error) {
	if username == "" {
		return nil, fmt.Errorf("storage: username cannot be empty")
	}

	var user User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at
		 FROM users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, errors.NewUserNotFound(username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// ListUsers returns all test principals.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, password_hash, role, created_at
		 FROM users ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	result := make([]*User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		result = append(result, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return result, nil
}

// CheckConnectivity verifies store connectivity.
func (r *PostgresRepository) CheckConnectivity(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return errors.NewStoreUnavailable(err)
	}
	return nil
}

// Verify PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
