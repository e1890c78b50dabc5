// Package main is the entrypoint for the testrig stub host.
// The stub serves the minimal host surface the harness drives: form
// login issuing session cookies, logout, the effective feature-flag
// snapshot, the session identity, and component health.
//
// It exists so login helpers and host-driving suites run end-to-end
// without standing up the real analytics application.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/canonica-labs/testrig/internal/featureflags"
	"github.com/canonica-labs/testrig/internal/observability"
	"github.com/canonica-labs/testrig/internal/seed"
	"github.com/canonica-labs/testrig/internal/storage"
	"github.com/canonica-labs/testrig/internal/webapp"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "stubapp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command line flags
	var (
		addr       = flag.String("addr", ":8088", "HTTP listen address")
		dbURL      = flag.String("db", "", "PostgreSQL connection URL (required in production)")
		flagSpec   = flag.String("flags", "", "live feature flags, NAME=true,OTHER=false")
		sessionTTL = flag.Duration("session-ttl", 24*time.Hour, "session lifetime")
		showHelp   = flag.Bool("help", false, "Show help message")
		showVer    = flag.Bool("version", false, "Show version")
		devMode    = flag.Bool("dev", false, "Development mode (allows in-memory repository)")
	)
	flag.Parse()

	if *showHelp {
		flag.Usage()
		return nil
	}

	if *showVer {
		fmt.Printf("testrig-stubapp %s (commit: %s, built: %s)\n", version, commit, date)
		return nil
	}

	// Check for database URL from environment
	if *dbURL == "" {
		*dbURL = os.Getenv("TESTRIG_DATABASE_URL")
	}

	// Stub startup fails if PostgreSQL is unavailable, unless in dev mode
	if *dbURL == "" && !*devMode {
		return fmt.Errorf("PostgreSQL connection required: use -db flag or TESTRIG_DATABASE_URL env var (use -dev for development mode)")
	}

	// Live flags from flag or environment
	if *flagSpec == "" {
		*flagSpec = os.Getenv("TESTRIG_FEATURE_FLAGS")
	}
	baseFlags, err := parseFlagSpec(*flagSpec)
	if err != nil {
		return err
	}

	// Create repository
	var repo storage.Repository
	if *dbURL != "" {
		// Connect to PostgreSQL
		db, err := storage.OpenPostgres(storage.PostgresConfig{ConnectionString: *dbURL})
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		defer db.Close()

		// Verify connectivity
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("PostgreSQL connectivity check failed: %w", err)
		}

		// Migrations run automatically on startup
		log.Println("Running metadata store migrations...")
		migrationRunner := storage.NewMigrationRunner(db)
		if err := migrationRunner.Run(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Println("Metadata store migrations completed")

		repo = storage.NewPostgresRepository(db)
		log.Println("Connected to PostgreSQL")
	} else {
		// Development mode: use mock repository
		log.Println("WARNING: Development mode - using in-memory repository (not for production)")
		repo = storage.NewMockRepository()
	}

	// The stub always carries the standard principals, so login helpers
	// work against a fresh store.
	if err := seed.Users(context.Background(), repo, observability.NewNoopLogger()); err != nil {
		return fmt.Errorf("seeding principals: %w", err)
	}
	log.Printf("Seeded %d test principals", len(seed.Principals))

	// Create the host application
	manager := featureflags.NewManager(baseFlags)
	app := webapp.New(repo, manager, webapp.Config{
		SessionTTL: *sessionTTL,
		Version:    version,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         *addr,
		Handler:      app,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Handle graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down stub host...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
		close(done)
	}()

	// Start server
	log.Printf("Testrig stub host starting on %s", *addr)
	log.Printf("Version: %s, Commit: %s", version, commit)
	log.Printf("Health check: http://localhost%s/health", *addr)
	log.Printf("Login: http://localhost%s/login/", *addr)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	log.Println("Stub host stopped")
	return nil
}

// parseFlagSpec parses "NAME=true,OTHER=false" into a flag set. An
// empty spec yields a nil map, which the manager treats as empty.
func parseFlagSpec(spec string) (featureflags.FlagSet, error) {
	if spec == "" {
		return nil, nil
	}

	flags := make(featureflags.FlagSet)
	for _, pair := range strings.Split(spec, ",") {
		name, value, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid flag spec %q: want NAME=true|false", pair)
		}
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid flag value in %q: %w", pair, err)
		}
		flags[name] = enabled
	}
	return flags, nil
}
