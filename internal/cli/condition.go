package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/testrig/internal/backend"
	"github.com/canonica-labs/testrig/internal/backend/backends"
	"github.com/canonica-labs/testrig/internal/conditioner"
	herrors "github.com/canonica-labs/testrig/internal/errors"
	"github.com/canonica-labs/testrig/internal/exampledb"
)

func (c *CLI) newConditionCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "condition",
		Short: "Condition the example database for a test run",
		Long: `Run the one-shot pre-suite conditioning step.

Conditioning:
  - derives the backend kind from the examples URI scheme
  - registers the example database in the metadata store if missing
  - persists engine parameters (poll interval on polling engines)
  - recreates the working schemas on schema-oriented engines

Failures are fatal: a suite must not start against a half-conditioned
database. With --wait, the example backend is pinged with bounded
backoff first, for warehouse containers still coming up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCondition(cmd.Context(), wait)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the example backend to accept connections first")

	return cmd
}

func (c *CLI) runCondition(ctx context.Context, wait bool) error {
	kind, err := backend.KindFromURI(c.cfg.Examples.URI)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	repo, db, closeStore, err := c.openStore(ctx)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}
	defer closeStore()

	registry := backends.NewRegistry()
	provider := exampledb.NewProvider(repo, registry, c.cfg.Examples.DatabaseName, c.cfg.Examples.URI)
	defer provider.Close()

	if wait {
		if err := c.awaitBackend(ctx, provider); err != nil {
			c.errorf("Error: %v\n", err)
			return err
		}
	}

	cond := conditioner.New(repo, provider, c.stepLogger(db), conditioner.Config{
		URI:          c.cfg.Examples.URI,
		PollInterval: c.cfg.Presto.PollInterval,
	})

	start := time.Now()
	if err := cond.Run(ctx); err != nil {
		c.errorf("Conditioning failed: %v\n", err)
		return err
	}
	elapsed := time.Since(start)

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"status":      "conditioned",
			"database":    c.cfg.Examples.DatabaseName,
			"uri":         c.cfg.Examples.URI,
			"backend":     kind.String(),
			"duration_ms": elapsed.Milliseconds(),
		})
	}

	c.printf("✓ Example database '%s' conditioned (%s backend, %s)\n",
		c.cfg.Examples.DatabaseName, kind, elapsed.Round(time.Millisecond))
	return nil
}

// awaitBackend resolves the example-database handle and waits for its
// backend to answer pings. Used only behind --wait; conditioning itself
// never retries.
func (c *CLI) awaitBackend(ctx context.Context, provider *exampledb.Provider) error {
	handle, err := provider.Get(ctx)
	if err != nil {
		return err
	}

	c.debugf("waiting for %s backend\n", handle.Kind)
	result := backend.WaitReady(ctx, handle.Backend, backend.DefaultAwaitConfig())
	if !result.Ready {
		return herrors.NewBackendUnavailable(handle.Kind.String(), &backend.AwaitError{Result: result})
	}
	c.debugf("backend %s\n", result.String())
	return nil
}
