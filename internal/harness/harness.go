// Package harness composes the conditioning stack into one test
// environment: configuration, metadata store, flag manager,
// example-database provider, and a stub host served over httptest.
//
// Philosophy:
// - Prefer a real sqlite example database over mocks for end-to-end runs.
// - Keep helpers small, composable, and deterministic.
// - Register cleanup via t.Cleanup so suites stay leak-free.
//
// Most suites start with:
//
//	h := harness.New(t)
//	if err := h.Condition(context.Background()); err != nil {
//		t.Fatalf("conditioning: %v", err)
//	}
//	h.LoginAsAdmin(t)
package harness

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/canonica-labs/testrig/internal/backend"
	"github.com/canonica-labs/testrig/internal/backend/backends"
	"github.com/canonica-labs/testrig/internal/conditioner"
	"github.com/canonica-labs/testrig/internal/config"
	"github.com/canonica-labs/testrig/internal/exampledb"
	"github.com/canonica-labs/testrig/internal/featureflags"
	"github.com/canonica-labs/testrig/internal/observability"
	"github.com/canonica-labs/testrig/internal/seed"
	"github.com/canonica-labs/testrig/internal/storage"
	"github.com/canonica-labs/testrig/internal/webapp"
)

// Harness is a self-contained conditioning environment for one test or
// suite. Everything it opens is closed via t.Cleanup.
type Harness struct {
	T        *testing.T
	Config   *config.Config
	Repo     storage.Repository
	Flags    *featureflags.Manager
	Registry *backend.Registry
	Provider *exampledb.Provider
	Server   *httptest.Server
	Client   *webapp.Client
	Log      observability.StepLogger
}

// options collects the optional pieces New assembles around.
type options struct {
	cfg         *config.Config
	repo        storage.Repository
	registry    *backend.Registry
	baseFlags   featureflags.FlagSet
	log         observability.StepLogger
	examplesURI string
}

// Option customizes a Harness under construction.
type Option func(*options)

// WithConfig replaces the default configuration wholesale.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithRepository uses the given metadata store instead of a fresh
// in-memory mock.
func WithRepository(repo storage.Repository) Option {
	return func(o *options) { o.repo = repo }
}

// WithRegistry uses the given backend registry instead of the full stack.
func WithRegistry(r *backend.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithBaseFlags sets the host's live feature-flag map.
func WithBaseFlags(flags featureflags.FlagSet) Option {
	return func(o *options) { o.baseFlags = flags }
}

// WithExamplesURI points the harness at a different example database.
func WithExamplesURI(uri string) Option {
	return func(o *options) { o.examplesURI = uri }
}

// WithLogger routes step logs somewhere observable instead of the no-op
// logger.
func WithLogger(log observability.StepLogger) Option {
	return func(o *options) { o.log = log }
}

// New builds a Harness: default config pointed at an in-memory sqlite
// example database, an in-memory metadata store seeded with the standard
// test principals, the full backend registry, and a stub host running on
// httptest with a logged-out client. Options override any piece.
func New(t *testing.T, opts ...Option) *Harness {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil {
		cfg = config.DefaultConfig()
		// Hermetic by default: no database file droppings in the cwd.
		cfg.Examples.URI = "sqlite://:memory:"
	}
	if o.examplesURI != "" {
		cfg.Examples.URI = o.examplesURI
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("harness: invalid config: %v", err)
	}

	repo := o.repo
	if repo == nil {
		repo = storage.NewMockRepository()
	}
	registry := o.registry
	if registry == nil {
		registry = backends.NewRegistry()
	}
	log := o.log
	if log == nil {
		log = observability.NewNoopLogger()
	}

	flags := featureflags.NewManager(o.baseFlags)

	if err := seed.Users(context.Background(), repo, log); err != nil {
		t.Fatalf("harness: seeding principals: %v", err)
	}

	provider := exampledb.NewProvider(repo, registry, cfg.Examples.DatabaseName, cfg.Examples.URI)
	t.Cleanup(func() {
		_ = provider.Close()
	})

	app := webapp.New(repo, flags, webapp.Config{})
	server := httptest.NewServer(app)
	t.Cleanup(server.Close)

	client, err := webapp.NewClient(server.URL)
	if err != nil {
		t.Fatalf("harness: building host client: %v", err)
	}

	return &Harness{
		T:        t,
		Config:   cfg,
		Repo:     repo,
		Flags:    flags,
		Registry: registry,
		Provider: provider,
		Server:   server,
		Client:   client,
		Log:      log,
	}
}

// Condition runs the one-shot pre-suite conditioning step against the
// configured example database. Suite setup calls this once; any failure
// is fatal to the suite.
func (h *Harness) Condition(ctx context.Context) error {
	c := conditioner.New(h.Repo, h.Provider, h.Log, conditioner.Config{
		URI:          h.Config.Examples.URI,
		PollInterval: h.Config.Presto.PollInterval,
	})
	return c.Run(ctx)
}

// Handle resolves the session's example-database handle, failing the
// test on error. Repeated calls return the identical handle.
func (h *Harness) Handle(t *testing.T) *exampledb.Handle {
	t.Helper()

	handle, err := h.Provider.Get(context.Background())
	if err != nil {
		t.Fatalf("harness: resolving example database: %v", err)
	}
	return handle
}

// SeedDatasets loads a dataset manifest into the example database and
// registers reverse-order teardown via t.Cleanup.
func (h *Harness) SeedDatasets(t *testing.T, m *seed.Manifest) *seed.Loader {
	t.Helper()

	handle := h.Handle(t)
	loader := seed.NewLoader(handle.Backend, h.Log)
	if err := loader.Load(context.Background(), m); err != nil {
		t.Fatalf("harness: seeding datasets: %v", err)
	}
	t.Cleanup(func() {
		if err := loader.Teardown(context.Background()); err != nil {
			t.Errorf("harness: dataset teardown: %v", err)
		}
	})
	return loader
}

// LoginAs establishes a session on the stub host for the given
// credentials and verifies the session cookie works by reading the
// identity back. The harness client keeps the cookie for later calls.
func (h *Harness) LoginAs(t *testing.T, username, password string) *webapp.Identity {
	t.Helper()

	ctx := context.Background()
	if err := h.Client.Login(ctx, username, password); err != nil {
		t.Fatalf("harness: login as %s: %v", username, err)
	}
	identity, err := h.Client.Me(ctx)
	if err != nil {
		t.Fatalf("harness: no session after login as %s: %v", username, err)
	}
	if identity.Username != username {
		t.Fatalf("harness: logged in as %q but session belongs to %q", username, identity.Username)
	}
	return identity
}

// LoginAsAdmin logs in with the configured admin credentials.
func (h *Harness) LoginAsAdmin(t *testing.T) *webapp.Identity {
	t.Helper()
	return h.LoginAs(t, h.Config.Admin.Username, h.Config.Admin.Password)
}

// WithFeatureFlags pushes a flag-override frame and registers its
// restore via t.Cleanup, so the overrides are removed whether the test
// passes, fails, or panics.
func WithFeatureFlags(t *testing.T, m *featureflags.Manager, overrides featureflags.FlagSet) {
	t.Helper()

	restore := m.Push(overrides)
	t.Cleanup(restore)
}
