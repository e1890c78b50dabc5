package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/canonica-labs/testrig/internal/backend"
	herrors "github.com/canonica-labs/testrig/internal/errors"
	"github.com/canonica-labs/testrig/internal/observability"
)

// Loader executes dataset manifests against the example database and
// remembers what it created so Teardown can undo it.
//
// A loader is for one setup path, not for concurrent use.
type Loader struct {
	be      backend.Backend
	log     observability.StepLogger
	created []string
}

// NewLoader creates a loader for one example backend. A nil logger
// falls back to the no-op logger.
func NewLoader(be backend.Backend, log observability.StepLogger) *Loader {
	if log == nil {
		log = observability.NewNoopLogger()
	}
	return &Loader{be: be, log: log}
}

// Load executes every dataset in the manifest: create first, then the
// inserts, dataset by dataset in manifest order. The first failure
// aborts the load; tables created before the failure stay recorded so
// Teardown can still remove them.
func (l *Loader) Load(ctx context.Context, m *Manifest) error {
	for i := range m.Datasets {
		if err := l.loadDataset(ctx, &m.Datasets[i]); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) loadDataset(ctx context.Context, ds *Dataset) error {
	start := time.Now()
	statements := 0

	create, err := ParseStatement(ds.Create)
	if err != nil {
		wrapped := herrors.NewSeedFailed(ds.Name, err)
		l.logStep(ctx, "seed_dataset", ds.Name, statements, start, wrapped)
		return wrapped
	}

	if err := l.be.Exec(ctx, create.SQL); err != nil {
		wrapped := herrors.NewSeedFailed(ds.Name, err)
		l.logStep(ctx, "seed_dataset", ds.Name, statements, start, wrapped)
		return wrapped
	}
	statements++
	l.created = append(l.created, create.Table)

	for _, insert := range ds.Inserts {
		if err := l.be.Exec(ctx, insert); err != nil {
			wrapped := herrors.NewSeedFailed(ds.Name, err)
			l.logStep(ctx, "seed_dataset", ds.Name, statements, start, wrapped)
			return wrapped
		}
		statements++
	}

	l.logStep(ctx, "seed_dataset", ds.Name, statements, start, nil)
	return nil
}

// CreatedTables returns the tables created so far, in creation order.
func (l *Loader) CreatedTables() []string {
	return append([]string(nil), l.created...)
}

// Teardown drops every created table in reverse creation order, so
// tables created later (which may reference earlier ones) go first.
// Tables dropped before a failure are forgotten, which makes a re-run
// after a partial teardown safe.
func (l *Loader) Teardown(ctx context.Context) error {
	for i := len(l.created) - 1; i >= 0; i-- {
		start := time.Now()
		table := l.created[i]
		stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s", table)

		if err := l.be.Exec(ctx, stmt); err != nil {
			wrapped := herrors.NewSeedFailed(table, err)
			l.logStep(ctx, "teardown_dataset", table, 0, start, wrapped)
			return wrapped
		}
		l.created = l.created[:i]
		l.logStep(ctx, "teardown_dataset", table, 1, start, nil)
	}
	return nil
}

func (l *Loader) logStep(ctx context.Context, step, target string, statements int, start time.Time, err error) {
	entry := observability.StepLogEntry{
		Step:       step,
		Backend:    l.be.Kind().String(),
		Target:     target,
		Statements: statements,
		Duration:   time.Since(start),
		Outcome:    "success",
	}
	if err != nil {
		entry.Outcome = "error"
		entry.Error = err.Error()
	}
	_ = l.log.LogStep(ctx, entry)
}
