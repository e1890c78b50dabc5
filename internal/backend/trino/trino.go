// Package trino provides the presto-family backend. It serves presto://
// and trino:// example databases, and hive:// ones as well: conditioning
// reaches hive tables through the trino driver (catalog=hive) since the
// stack has no native hive driver.
//
// Per docs/plan.md: "Fail fast, fail loud. No silent fallbacks."
package trino

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/canonica-labs/testrig/internal/backend"

	_ "github.com/trinodb/trino-go-client/trino" // Trino driver
)

// AdapterConfig configures the presto-family backend.
type AdapterConfig struct {
	// Kind is the backend kind this adapter reports: presto or hive.
	Kind backend.Kind

	// Host is the coordinator hostname.
	Host string

	// Port is the coordinator port.
	Port int

	// Catalog is the catalog queried for schema conditioning.
	Catalog string

	// Schema is the default schema.
	Schema string

	// User is the user for queries.
	User string

	// SSLMode controls SSL/TLS: "", "disable", "require"
	SSLMode string

	// MaxOpenConns is the maximum number of open connections. Default: 10.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections. Default: 5.
	MaxIdleConns int

	// ConnMaxLifetime is the maximum lifetime of a connection. Default: 5 minutes.
	ConnMaxLifetime time.Duration

	// ConnectTimeout is the timeout for health checks. Default: 10 seconds.
	ConnectTimeout time.Duration
}

// ParseURI builds an AdapterConfig from an example-database URI of the
// form presto://user@host:port/catalog/schema (trino:// and hive:// use
// the same shape). Catalog and schema segments are optional.
func ParseURI(uri string) (AdapterConfig, error) {
	kind, err := backend.KindFromURI(uri)
	if err != nil {
		return AdapterConfig{}, err
	}

	u, err := url.Parse(uri)
	if err != nil {
		return AdapterConfig{}, fmt.Errorf("trino backend: invalid URI %q: %w", uri, err)
	}
	if u.Hostname() == "" {
		return AdapterConfig{}, fmt.Errorf("trino backend: URI %q has no host", uri)
	}

	cfg := AdapterConfig{
		Kind: kind,
		Host: u.Hostname(),
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return AdapterConfig{}, fmt.Errorf("trino backend: invalid port in %q: %w", uri, err)
		}
		cfg.Port = port
	} else {
		cfg.Port = 8080
	}

	if u.User != nil {
		cfg.User = u.User.Username()
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) > 0 && segments[0] != "" {
		cfg.Catalog = segments[0]
	}
	if len(segments) > 1 && segments[1] != "" {
		cfg.Schema = segments[1]
	}

	// hive:// URIs name a hive database in the first path segment, not a
	// catalog; the catalog on the trino side is always "hive".
	if kind == backend.KindHive {
		if cfg.Catalog != "" && cfg.Schema == "" {
			cfg.Schema = cfg.Catalog
		}
		cfg.Catalog = "hive"
	}

	return cfg, nil
}

// Adapter implements the backend interface for the presto family.
type Adapter struct {
	mu     sync.RWMutex
	db     *sql.DB
	config AdapterConfig
	closed bool
}

// NewAdapter creates a new presto-family backend with the given configuration.
func NewAdapter(config AdapterConfig) (*Adapter, error) {
	applyDefaults(&config)

	db, err := sql.Open("trino", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("trino backend: failed to open connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	return &Adapter{
		db:     db,
		config: config,
		closed: false,
	}, nil
}

// NewAdapterWithoutConnect creates an adapter without opening a
// connection. Used in tests that exercise DSN building and config
// handling without a live coordinator.
func NewAdapterWithoutConnect(config AdapterConfig) *Adapter {
	applyDefaults(&config)
	return &Adapter{
		config: config,
		closed: false,
	}
}

// FromURI opens a presto-family backend for an example-database URI.
func FromURI(uri string) (backend.Backend, error) {
	cfg, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return NewAdapter(cfg)
}

func applyDefaults(config *AdapterConfig) {
	if config.Kind == "" {
		config.Kind = backend.KindPresto
	}
	if config.User == "" {
		config.User = "testrig"
	}
	if config.Catalog == "" {
		config.Catalog = "hive"
	}
	if config.Schema == "" {
		config.Schema = "default"
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 10
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = 5
	}
	if config.ConnMaxLifetime <= 0 {
		config.ConnMaxLifetime = 5 * time.Minute
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}
}

// DSN builds the driver connection string.
// Format: http[s]://user@host:port?catalog=X&schema=Y
func (c AdapterConfig) DSN() string {
	scheme := "http"
	if c.SSLMode == "require" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s@%s:%d?catalog=%s&schema=%s",
		scheme,
		c.User,
		c.Host,
		c.Port,
		c.Catalog,
		c.Schema,
	)
}

// Kind returns the engine family of this backend.
func (a *Adapter) Kind() backend.Kind {
	return a.config.Kind
}

// Schemas returns the schema names visible in the catalog.
func (a *Adapter) Schemas(ctx context.Context) ([]string, error) {
	return a.queryStrings(ctx, "SHOW SCHEMAS")
}

// Relations returns table and view names in the schema, as SHOW TABLES
// reports them.
func (a *Adapter) Relations(ctx context.Context, schema string) ([]string, error) {
	return a.queryStrings(ctx, fmt.Sprintf("SHOW TABLES IN %s", schema))
}

// Exec runs a single statement.
func (a *Adapter) Exec(ctx context.Context, stmt string) error {
	a.mu.RLock()
	if a.closed || a.db == nil {
		a.mu.RUnlock()
		return fmt.Errorf("trino backend: connection is closed")
	}
	db := a.db
	a.mu.RUnlock()

	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("trino backend: statement failed: %w", err)
	}
	return nil
}

// queryStrings runs a query and collects the first column as strings.
func (a *Adapter) queryStrings(ctx context.Context, query string) ([]string, error) {
	// Check context first
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("trino backend: context error: %w", err)
	}

	a.mu.RLock()
	if a.closed || a.db == nil {
		a.mu.RUnlock()
		return nil, fmt.Errorf("trino backend: connection is closed")
	}
	db := a.db
	a.mu.RUnlock()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("trino backend: query failed: %w", err)
	}
	defer rows.Close()

	result := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("trino backend: failed to scan name: %w", err)
		}
		result = append(result, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trino backend: error during iteration: %w", err)
	}

	return result, nil
}

// Ping checks if the coordinator is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed || a.db == nil {
		return fmt.Errorf("trino backend: connection is closed")
	}

	return a.db.PingContext(ctx)
}

// CheckHealth validates the connection by executing SELECT 1.
// Returns nil if healthy, error with details if unhealthy.
func (a *Adapter) CheckHealth(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return fmt.Errorf("trino backend: connection is closed")
	}

	if a.db == nil {
		return fmt.Errorf("trino backend: no database connection")
	}

	healthCtx, cancel := context.WithTimeout(ctx, a.config.ConnectTimeout)
	defer cancel()

	var result int
	err := a.db.QueryRowContext(healthCtx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("trino backend health check failed: %w", err)
	}

	if result != 1 {
		return fmt.Errorf("trino backend health check: unexpected result %d", result)
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
