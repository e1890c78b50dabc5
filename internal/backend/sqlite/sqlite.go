// Package sqlite provides the sqlite backend. It is the default
// example-database engine for local runs and CI: file-backed or
// in-memory, no server to stand up.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/canonica-labs/testrig/internal/backend"

	_ "modernc.org/sqlite" // SQLite driver (cgo-free)
)

// AdapterConfig configures the sqlite backend.
type AdapterConfig struct {
	// Path is the database file path. Empty or ":memory:" selects an
	// in-memory database.
	Path string

	// ConnectTimeout is the timeout for health checks. Default: 5 seconds.
	ConnectTimeout time.Duration
}

// ParseURI builds an AdapterConfig from an example-database URI:
// sqlite:///relative.db, sqlite:////abs/path.db, or the short form
// sqlite://relative.db. An empty path selects an in-memory database.
func ParseURI(uri string) (AdapterConfig, error) {
	kind, err := backend.KindFromURI(uri)
	if err != nil {
		return AdapterConfig{}, err
	}
	if kind != backend.KindSQLite {
		return AdapterConfig{}, fmt.Errorf("sqlite backend: unsupported URI %q", uri)
	}

	_, rest, _ := strings.Cut(uri, "://")
	// The dialect strips exactly one slash: sqlite:///x is relative,
	// sqlite:////x is absolute.
	path := strings.TrimPrefix(rest, "/")
	return AdapterConfig{Path: path}, nil
}

// Adapter implements the backend interface for sqlite.
type Adapter struct {
	mu     sync.RWMutex
	db     *sql.DB
	config AdapterConfig
	closed bool
}

// NewAdapter creates a new sqlite backend with the given configuration.
func NewAdapter(config AdapterConfig) (*Adapter, error) {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 5 * time.Second
	}

	dsn := config.Path
	inMemory := dsn == "" || dsn == ":memory:"
	if inMemory {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite backend: failed to open %q: %w", dsn, err)
	}

	// An in-memory database exists per connection. Pin the pool to one
	// connection so every statement sees the same database.
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	return &Adapter{
		db:     db,
		config: config,
		closed: false,
	}, nil
}

// FromURI opens a sqlite backend for an example-database URI.
func FromURI(uri string) (backend.Backend, error) {
	cfg, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return NewAdapter(cfg)
}

// Kind returns the engine family of this backend.
func (a *Adapter) Kind() backend.Kind {
	return backend.KindSQLite
}

// Schemas returns the attached database names. A fresh connection
// reports "main" (and "temp" on some builds).
func (a *Adapter) Schemas(ctx context.Context) ([]string, error) {
	a.mu.RLock()
	if a.closed || a.db == nil {
		a.mu.RUnlock()
		return nil, fmt.Errorf("sqlite backend: connection is closed")
	}
	db := a.db
	a.mu.RUnlock()

	rows, err := db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, fmt.Errorf("sqlite backend: query failed: %w", err)
	}
	defer rows.Close()

	result := make([]string, 0)
	for rows.Next() {
		var (
			seq  int
			name string
			file sql.NullString
		)
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return nil, fmt.Errorf("sqlite backend: failed to scan database row: %w", err)
		}
		result = append(result, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite backend: error during iteration: %w", err)
	}

	return result, nil
}

// Relations returns table and view names in the attached database.
func (a *Adapter) Relations(ctx context.Context, schema string) ([]string, error) {
	a.mu.RLock()
	if a.closed || a.db == nil {
		a.mu.RUnlock()
		return nil, fmt.Errorf("sqlite backend: connection is closed")
	}
	db := a.db
	a.mu.RUnlock()

	query := fmt.Sprintf(
		"SELECT name FROM %s.sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%%' ORDER BY name",
		schema,
	)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite backend: query failed: %w", err)
	}
	defer rows.Close()

	result := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite backend: failed to scan name: %w", err)
		}
		result = append(result, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite backend: error during iteration: %w", err)
	}

	return result, nil
}

// Exec runs a single statement.
func (a *Adapter) Exec(ctx context.Context, stmt string) error {
	a.mu.RLock()
	if a.closed || a.db == nil {
		a.mu.RUnlock()
		return fmt.Errorf("sqlite backend: connection is closed")
	}
	db := a.db
	a.mu.RUnlock()

	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite backend: statement failed: %w", err)
	}
	return nil
}

// Ping checks if the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed || a.db == nil {
		return fmt.Errorf("sqlite backend: connection is closed")
	}

	return a.db.PingContext(ctx)
}

// CheckHealth validates the connection by executing SELECT 1.
func (a *Adapter) CheckHealth(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return fmt.Errorf("sqlite backend: connection is closed")
	}

	if a.db == nil {
		return fmt.Errorf("sqlite backend: no database connection")
	}

	healthCtx, cancel := context.WithTimeout(ctx, a.config.ConnectTimeout)
	defer cancel()

	var result int
	err := a.db.QueryRowContext(healthCtx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("sqlite backend health check failed: %w", err)
	}

	if result != 1 {
		return fmt.Errorf("sqlite backend health check: unexpected result %d", result)
	}

	return nil
}

// Close releases any resources held by the backend.
// Close is idempotent - safe to call multiple times.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}

	a.closed = true

	if a.db != nil {
		return a.db.Close()
	}

	return nil
}

// Verify Adapter implements the backend interface.
var _ backend.Backend = (*Adapter)(nil)
