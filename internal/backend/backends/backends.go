// Package backends wires every engine package into a backend registry.
// Importing it pulls in all drivers; callers that want a narrower set
// build their own registry.
package backends

import (
	"context"

	"github.com/canonica-labs/testrig/internal/backend"
	"github.com/canonica-labs/testrig/internal/backend/bigquery"
	"github.com/canonica-labs/testrig/internal/backend/duckdb"
	"github.com/canonica-labs/testrig/internal/backend/postgres"
	"github.com/canonica-labs/testrig/internal/backend/snowflake"
	"github.com/canonica-labs/testrig/internal/backend/sqlite"
	"github.com/canonica-labs/testrig/internal/backend/trino"
)

// NewRegistry returns a registry with every supported engine registered.
// presto, trino and hive URIs all open through the trino driver.
func NewRegistry() *backend.Registry {
	r := backend.NewRegistry()

	r.Register(backend.KindPresto, trino.FromURI)
	r.Register(backend.KindHive, trino.FromURI)
	r.Register(backend.KindSQLite, sqlite.FromURI)
	r.Register(backend.KindPostgres, postgres.FromURI)
	r.Register(backend.KindDuckDB, duckdb.FromURI)
	r.Register(backend.KindSnowflake, snowflake.FromURI)
	r.Register(backend.KindBigQuery, func(uri string) (backend.Backend, error) {
		// Client construction resolves credentials, it does not dial.
		return bigquery.FromURI(context.Background(), uri)
	})

	return r
}
