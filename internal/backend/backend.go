// Package backend defines the common interface for example-database
// backends. A backend wraps one engine's driver and exposes the small
// surface conditioning needs: schema enumeration, relation enumeration,
// and statement execution.
//
// Per docs/plan.md: "Fail fast, fail loud. No silent fallbacks."
package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/canonica-labs/testrig/internal/errors"
)

// Kind identifies a backend engine family.
type Kind string

const (
	// KindPresto covers the presto family (presto:// and trino://).
	// It is the polling engine: queries poll for completion, so the
	// conditioner shortens the poll interval before a suite runs.
	KindPresto Kind = "presto"

	// KindHive is hive://. Schema conditioning reaches it through the
	// trino driver; there is no native hive driver in the stack.
	KindHive Kind = "hive"

	KindPostgres  Kind = "postgres"
	KindSQLite    Kind = "sqlite"
	KindDuckDB    Kind = "duckdb"
	KindSnowflake Kind = "snowflake"
	KindBigQuery  Kind = "bigquery"
)

// KindFromURI derives the backend kind from the scheme prefix of a
// database URI: the text before "://". A URI without the separator is a
// configuration error. Unknown schemes pass through as their own kind;
// whether a factory exists for them is the registry's problem.
func KindFromURI(uri string) (Kind, error) {
	scheme, _, found := strings.Cut(uri, "://")
	if !found || scheme == "" {
		return "", errors.NewConfigInvalid("examples.uri",
			fmt.Sprintf("%q has no scheme prefix before ://", uri))
	}
	scheme = strings.ToLower(scheme)
	// Driver-qualified schemes (postgresql+psycopg2) reduce to their base.
	if i := strings.IndexByte(scheme, '+'); i >= 0 {
		scheme = scheme[:i]
	}

	switch scheme {
	case "presto", "trino":
		return KindPresto, nil
	case "hive":
		return KindHive, nil
	case "postgres", "postgresql", "redshift":
		return KindPostgres, nil
	case "sqlite":
		return KindSQLite, nil
	case "duckdb":
		return KindDuckDB, nil
	case "snowflake":
		return KindSnowflake, nil
	case "bigquery":
		return KindBigQuery, nil
	default:
		return Kind(scheme), nil
	}
}

// Polling reports whether this kind polls for query completion and
// therefore gets a shortened poll interval during conditioning.
func (k Kind) Polling() bool {
	return k == KindPresto
}

// SchemaScoped reports whether this kind gets its working schemas
// recreated during conditioning.
func (k Kind) SchemaScoped() bool {
	return k == KindPresto || k == KindHive
}

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// Backend is the interface all example-database backends implement.
// Backends must be:
// - Thin: driver wiring plus the enumeration dialect, nothing else
// - Explicit: no silent retries, no hidden fallbacks
// - Safe to Close more than once
type Backend interface {
	// Kind returns the engine family of this backend.
	Kind() Kind

	// Schemas returns the schema names visible on the backend.
	Schemas(ctx context.Context) ([]string, error)

	// Relations returns table and view names in the schema together,
	// the way SHOW TABLES reports them. Order is not significant.
	Relations(ctx context.Context, schema string) ([]string, error)

	// Exec runs a single statement.
	// Must propagate errors explicitly - never swallow.
	Exec(ctx context.Context, stmt string) error

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error

	// CheckHealth verifies the backend can execute a query.
	// Returns nil if healthy, error with details if not.
	CheckHealth(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}

// Factory opens a backend for a database URI.
type Factory func(uri string) (Backend, error)

// Registry maps backend kinds to factories. The CLI registers every
// engine in the stack; the harness's own tests register only the
// pure-Go ones they use.
type Registry struct {
	mu        sync.RWMutex
	factories map[Kind]Factory
}

// NewRegistry creates a new backend registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Kind]Factory),
	}
}

// Register adds a factory for a kind.
func (r *Registry) Register(kind Kind, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Open derives the kind from the URI and opens a backend for it.
// An unregistered kind is an unsupported backend: fatal, no fallback.
func (r *Registry) Open(uri string) (Backend, error) {
	kind, err := KindFromURI(uri)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewBackendUnavailable(string(kind),
			fmt.Errorf("no factory registered for kind %q", kind))
	}

	be, err := factory(uri)
	if err != nil {
		return nil, errors.NewBackendUnavailable(string(kind), err)
	}
	return be, nil
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// IsEmpty returns true if no factories are registered.
func (r *Registry) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories) == 0
}
