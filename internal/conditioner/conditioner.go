package conditioner

import (
	"context"
	"fmt"
	"time"

	"github.com/canonica-labs/testrig/internal/backend"
	herrors "github.com/canonica-labs/testrig/internal/errors"
	"github.com/canonica-labs/testrig/internal/exampledb"
	"github.com/canonica-labs/testrig/internal/observability"
	"github.com/canonica-labs/testrig/internal/storage"
)

// Working schemas recreated on schema-oriented engines. The order is
// fixed and observable: sqllab_test_db first, admin_database second.
const (
	// SQLLabSchema is the schema SQL Lab run-to-table tests write into.
	SQLLabSchema = "sqllab_test_db"

	// AdminSchema is the schema database-administration tests write into.
	AdminSchema = "admin_database"
)

var workingSchemas = []string{SQLLabSchema, AdminSchema}

// Config configures a conditioning run.
type Config struct {
	// URI is the examples URI. The backend kind is derived from its
	// scheme prefix; a URI without "://" is a fatal configuration error.
	URI string

	// PollInterval is the polling interval in seconds persisted into the
	// registry record for polling engines.
	PollInterval float64
}

// Conditioner runs the one-shot pre-suite conditioning step.
type Conditioner struct {
	repo     storage.Repository
	provider *exampledb.Provider
	log      observability.StepLogger
	config   Config
}

// New creates a conditioner. A nil logger falls back to the no-op logger.
func New(repo storage.Repository, provider *exampledb.Provider, log observability.StepLogger, config Config) *Conditioner {
	if log == nil {
		log = observability.NewNoopLogger()
	}
	return &Conditioner{
		repo:     repo,
		provider: provider,
		log:      log,
		config:   config,
	}
}

// Run conditions the example database:
//
//  1. Derive the backend kind from the configured URI scheme.
//  2. Resolve the example-database handle through the provider.
//  3. Rewrite the record's engine parameters: polling engines get
//     engine_params.connect_args.poll_interval, everything else an
//     empty engine_params. The blob is persisted through the store;
//     the host reads it from there, so an unpersisted rewrite
//     conditions nothing.
//  4. On schema-oriented engines, recreate both working schemas:
//     contents dropped, schema dropped, schema created, in that order.
//
// Any failure is returned as-is or wrapped; nothing retries.
func (c *Conditioner) Run(ctx context.Context) error {
	kind, err := backend.KindFromURI(c.config.URI)
	if err != nil {
		return err
	}

	handle, err := c.provider.Get(ctx)
	if err != nil {
		return err
	}

	if err := c.persistEngineParams(ctx, kind, handle); err != nil {
		return err
	}

	if kind.SchemaScoped() {
		for _, schema := range workingSchemas {
			if err := c.recreateSchema(ctx, kind, handle.Backend, schema); err != nil {
				return err
			}
		}
	}

	return nil
}

// persistEngineParams rewrites the record's extra-configuration blob and
// commits it. Keys unrelated to engine_params survive the rewrite; for
// polling engines, existing engine_params keys survive too.
func (c *Conditioner) persistEngineParams(ctx context.Context, kind backend.Kind, handle *exampledb.Handle) error {
	start := time.Now()

	record, err := c.repo.GetDatabase(ctx, handle.Database.Name)
	if err != nil {
		c.logStep(ctx, "persist_engine_params", kind, handle.Database.Name, 0, start, err)
		return err
	}

	extra, err := record.ExtraMap()
	if err != nil {
		wrapped := herrors.NewConditioning("persist_engine_params", err)
		c.logStep(ctx, "persist_engine_params", kind, record.Name, 0, start, wrapped)
		return wrapped
	}

	if kind.Polling() {
		engineParams, _ := extra["engine_params"].(map[string]interface{})
		if engineParams == nil {
			engineParams = make(map[string]interface{})
		}
		connectArgs, _ := engineParams["connect_args"].(map[string]interface{})
		if connectArgs == nil {
			connectArgs = make(map[string]interface{})
		}
		connectArgs["poll_interval"] = c.config.PollInterval
		engineParams["connect_args"] = connectArgs
		extra["engine_params"] = engineParams
	} else {
		extra["engine_params"] = map[string]interface{}{}
	}

	if err := record.SetExtraMap(extra); err != nil {
		wrapped := herrors.NewConditioning("persist_engine_params", err)
		c.logStep(ctx, "persist_engine_params", kind, record.Name, 0, start, wrapped)
		return wrapped
	}

	if err := c.repo.UpdateDatabaseExtra(ctx, record.Name, record.Extra); err != nil {
		wrapped := herrors.NewConditioning("persist_engine_params", err)
		c.logStep(ctx, "persist_engine_params", kind, record.Name, 0, start, wrapped)
		return wrapped
	}

	c.logStep(ctx, "persist_engine_params", kind, record.Name, 0, start, nil)
	return nil
}

// recreateSchema empties and rebuilds one working schema. Contents are
// always dropped before the schema itself.
func (c *Conditioner) recreateSchema(ctx context.Context, kind backend.Kind, be backend.Backend, schema string) error {
	start := time.Now()

	issued, err := DropSchemaContents(ctx, be, schema)
	c.logStep(ctx, "drop_schema_contents", kind, schema, issued, start, err)
	if err != nil {
		return err
	}

	start = time.Now()
	statements := 0
	for _, stmt := range []string{
		fmt.Sprintf("DROP SCHEMA IF EXISTS %s", schema),
		fmt.Sprintf("CREATE SCHEMA %s", schema),
	} {
		if err := be.Exec(ctx, stmt); err != nil {
			wrapped := herrors.NewConditioning(fmt.Sprintf("recreate schema %s", schema), err)
			c.logStep(ctx, "recreate_schema", kind, schema, statements, start, wrapped)
			return wrapped
		}
		statements++
	}

	c.logStep(ctx, "recreate_schema", kind, schema, statements, start, nil)
	return nil
}

func (c *Conditioner) logStep(ctx context.Context, step string, kind backend.Kind, target string, statements int, start time.Time, err error) {
	entry := observability.StepLogEntry{
		Step:       step,
		Backend:    kind.String(),
		Target:     target,
		Statements: statements,
		Duration:   time.Since(start),
		Outcome:    "success",
	}
	if err != nil {
		entry.Outcome = "error"
		entry.Error = err.Error()
	}
	_ = c.log.LogStep(ctx, entry)
}
