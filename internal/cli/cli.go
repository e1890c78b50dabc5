// Package cli provides the command-line interface for testrig.
// The CLI is a control surface for the conditioning workflow: condition
// the example database, seed principals and datasets, and diagnose the
// environment before a suite runs.
package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/testrig/internal/config"
	herrors "github.com/canonica-labs/testrig/internal/errors"
	"github.com/canonica-labs/testrig/internal/observability"
	"github.com/canonica-labs/testrig/internal/storage"
	"github.com/canonica-labs/testrig/internal/webapp"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Exit codes surfaced to CI wrappers.
const (
	ExitSuccess     = 0
	ExitConfig      = 1
	ExitSetup       = 2
	ExitDiagnostics = 3
	ExitInternal    = 4
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// CLI holds the command-line interface state.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config

	// Global flags
	configPath  string
	endpoint    string
	examplesURI string
	jsonOutput  bool
	quiet       bool
	debug       bool
}

// New creates a new CLI instance.
func New() *CLI {
	cli := &CLI{}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

// Execute runs the CLI and maps any failure to an exit code.
func (c *CLI) Execute() int {
	if err := c.rootCmd.Execute(); err != nil {
		return exitCode(err)
	}
	return ExitSuccess
}

// exitCode classifies a command failure. Configuration problems, setup
// failures, and failed diagnostics each get their own code so CI
// wrappers can tell them apart.
func exitCode(err error) int {
	var configErr *herrors.ErrConfigInvalid
	if errors.As(err, &configErr) {
		return ExitConfig
	}
	if errors.Is(err, errChecksFailed) {
		return ExitDiagnostics
	}

	var (
		storeErr     *herrors.ErrStoreUnavailable
		backendErr   *herrors.ErrBackendUnavailable
		migrationErr *herrors.ErrMigrationFailed
		condErr      *herrors.ErrConditioning
		cleanupErr   *herrors.ErrSchemaCleanup
		seedErr      *herrors.ErrSeedFailed
	)
	switch {
	case errors.As(err, &storeErr),
		errors.As(err, &backendErr),
		errors.As(err, &migrationErr),
		errors.As(err, &condErr),
		errors.As(err, &cleanupErr),
		errors.As(err, &seedErr):
		return ExitSetup
	}

	return ExitInternal
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "testrig",
		Short: "Testrig - integration-test conditioning harness",
		Long: `Testrig conditions an analytics host's example database before an
integration-test suite runs.

It provides:
  • One-shot backend conditioning (engine params, working schemas)
  • Working-schema cleanup on the example backend
  • Seeding of the standard test principals and example datasets
  • Environment diagnostics against the metadata store and host

Suites running in-process use internal/harness instead; this CLI covers
CI pipelines and manual environment work.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ~/.testrig/testrig.yaml)")
	cmd.PersistentFlags().StringVar(&c.endpoint, "endpoint", "", "host application endpoint (overrides config)")
	cmd.PersistentFlags().StringVar(&c.examplesURI, "examples-uri", "", "example database URI (overrides config)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable JSON output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "verbose debug logs")

	// Add command groups
	cmd.AddCommand(c.newConditionCmd())
	cmd.AddCommand(c.newSchemaCmd())
	cmd.AddCommand(c.newSeedCmd())
	cmd.AddCommand(c.newDoctorCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

func (c *CLI) initConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	// Override with flags
	if c.endpoint != "" {
		c.cfg.Host.Endpoint = c.endpoint
	}
	if c.examplesURI != "" {
		c.cfg.Examples.URI = c.examplesURI
	}

	return nil
}

// Helper functions for output

func (c *CLI) printf(format string, args ...interface{}) {
	if !c.quiet {
		fmt.Printf(format, args...)
	}
}

func (c *CLI) println(args ...interface{}) {
	if !c.quiet {
		fmt.Println(args...)
	}
}

func (c *CLI) errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

func (c *CLI) debugf(format string, args ...interface{}) {
	if c.debug {
		fmt.Printf("[DEBUG] "+format, args...)
	}
}

func (c *CLI) outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openStore connects to the metadata store, runs pending migrations,
// and returns the repository plus the raw handle for the persistent
// step logger. The returned func closes the connection.
func (c *CLI) openStore(ctx context.Context) (storage.Repository, *sql.DB, func(), error) {
	db, err := storage.OpenPostgres(storage.PostgresConfig{ConnectionString: c.cfg.Metadata.DSN})
	if err != nil {
		return nil, nil, nil, herrors.NewStoreUnavailable(err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, nil, herrors.NewStoreUnavailable(err)
	}

	c.debugf("running metadata store migrations\n")
	runner := storage.NewMigrationRunner(db)
	if err := runner.Run(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	repo := storage.NewPostgresRepository(db)
	return repo, db, func() { _ = db.Close() }, nil
}

// stepLogger builds the step logger for setup commands: entries are
// persisted to the store and echoed as JSON unless --quiet.
func (c *CLI) stepLogger(db *sql.DB) observability.StepLogger {
	if c.quiet {
		if logger, err := observability.NewPersistentLogger(db); err == nil {
			return logger
		}
		return observability.NewNoopLogger()
	}
	if logger, err := observability.NewPersistentLoggerWithWriter(db, os.Stdout); err == nil {
		return logger
	}
	return observability.NewJSONLogger(os.Stdout)
}

// newHostClient creates a typed client for the configured host endpoint.
func (c *CLI) newHostClient() (*webapp.Client, error) {
	return webapp.NewClient(c.cfg.Host.Endpoint)
}
