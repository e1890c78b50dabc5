// Package duckdb provides the DuckDB backend. DuckDB example databases
// are file-backed or in-memory, so conditioning them needs no server.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/canonica-labs/testrig/internal/backend"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
)

// AdapterConfig configures the DuckDB backend.
type AdapterConfig struct {
	// DatabasePath is the path to the DuckDB database file.
	// Use ":memory:" for in-memory database.
	DatabasePath string

	// ConnectTimeout is the timeout for health checks. Default: 5 seconds.
	ConnectTimeout time.Duration
}

// ParseURI builds an AdapterConfig from an example-database URI:
// duckdb:///relative.db, duckdb:////abs/path.db, or the short form
// duckdb://relative.db.
func ParseURI(uri string) (AdapterConfig, error) {
	kind, err := backend.KindFromURI(uri)
	if err != nil {
		return AdapterConfig{}, err
	}
	if kind != backend.KindDuckDB {
		return AdapterConfig{}, fmt.Errorf("duckdb backend: unsupported URI %q", uri)
	}

	_, rest, _ := strings.Cut(uri, "://")
	// Same slash rule as sqlite: duckdb:///x is relative, duckdb:////x
	// is absolute.
	path := strings.TrimPrefix(rest, "/")
	return AdapterConfig{DatabasePath: path}, nil
}

// Adapter implements the backend interface for DuckDB.
type Adapter struct {
	mu     sync.RWMutex
	db     *sql.DB
	config AdapterConfig
	closed bool
}

// NewAdapter creates a new DuckDB backend with the given configuration.
func NewAdapter(config AdapterConfig) (*Adapter, error) {
	if config.DatabasePath == "" {
		config.DatabasePath = ":memory:"
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 5 * time.Second
	}

	db, err := sql.Open("duckdb", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("duckdb backend: failed to open %q: %w", config.DatabasePath, err)
	}

	return &Adapter{
		db:     db,
		config: config,
		closed: false,
	}, nil
}

// FromURI opens a DuckDB backend for an example-database URI.
func FromURI(uri string) (backend.Backend, error) {
	cfg, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return NewAdapter(cfg)
}

// Kind returns the engine family of this backend.
func (a *Adapter) Kind() backend.Kind {
	return backend.KindDuckDB
}

// Schemas returns the schema names in the connected database.
func (a *Adapter) Schemas(ctx context.Context) ([]string, error) {
	return a.queryStrings(ctx,
		"SELECT schema_name FROM information_schema.schemata ORDER BY schema_name", nil)
}

// Relations returns table and view names in the schema.
func (a *Adapter) Relations(ctx context.Context, schema string) ([]string, error) {
	return a.queryStrings(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = ? ORDER BY table_name",
		[]interface{}{schema})
}

// Exec runs a single statement.
func (a *Adapter) Exec(ctx context.Context, stmt string) error {
	a.mu.RLock()
	if a.closed || a.db == nil {
		a.mu.RUnlock()
		return fmt.Errorf("duckdb backend: connection is closed")
	}
	db := a.db
	a.mu.RUnlock()

	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("duckdb backend: statement failed: %w", err)
	}
	return nil
}

// queryStrings runs a query and collects the first column as strings.
func (a *Adapter) queryStrings(ctx context.Context, query string, args []interface{}) ([]string, error) {
	// Check context first
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("duckdb backend: context error: %w", err)
	}

	a.mu.RLock()
	if a.closed || a.db == nil {
		a.mu.RUnlock()
		return nil, fmt.Errorf("duckdb backend: connection is closed")
	}
	db := a.db
	a.mu.RUnlock()

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("duckdb backend: query failed: %w", err)
	}
	defer rows.Close()

	result := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("duckdb backend: failed to scan name: %w", err)
		}
		result = append(result, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duckdb backend: error during iteration: %w", err)
	}

	return result, nil
}

// Ping checks if the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed || a.db == nil {
		return fmt.Errorf("duckdb backend: connection is closed")
	}

	return a.db.PingContext(ctx)
}

// CheckHealth validates the connection by executing SELECT 1.
func (a *Adapter) CheckHealth(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return fmt.Errorf("duckdb backend: connection is closed")
	}

	if a.db == nil {
		return fmt.Errorf("duckdb backend: no database connection")
	}

	healthCtx, cancel := context.WithTimeout(ctx, a.config.ConnectTimeout)
	defer cancel()

	var result int
	err := a.db.QueryRowContext(healthCtx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("duckdb backend health check failed: %w", err)
	}

	if result != 1 {
		return fmt.Errorf("duckdb backend health check: unexpected result %d", result)
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
