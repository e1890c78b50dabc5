// Package exampledb owns the session's example database: the registry
// record every integration suite queries against, plus its opened
// backend connection.
//
// Per docs/plan.md: "Eager over lazy, then cache." The first Get does
// all resolution work (record, connection, kind); everything after that
// is a cache hit, so fixtures deep in a suite never trigger I/O at
// request scope.
package exampledb

import (
	"context"
	"sync"

	"github.com/canonica-labs/testrig/internal/backend"
	"github.com/canonica-labs/testrig/internal/storage"
)

// Handle is the session-scoped example database: the metadata-store
// record snapshot, the opened backend, and the backend kind. All three
// are resolved when the handle is built.
type Handle struct {
	Database *storage.Database
	Backend  backend.Backend
	Kind     backend.Kind
}

// Provider resolves and caches the session's example-database Handle.
// Construction is lazy on the first Get; every later Get returns the
// identical Handle. Safe for concurrent use.
type Provider struct {
	mu       sync.Mutex
	repo     storage.Repository
	registry *backend.Registry
	uri      string
	name     string
	handle   *Handle
}

// NewProvider creates a provider for the example database registered
// under name with the given URI.
func NewProvider(repo storage.Repository, registry *backend.Registry, name, uri string) *Provider {
	return &Provider{
		repo:     repo,
		registry: registry,
		name:     name,
		uri:      uri,
	}
}

// Get returns the session's example-database Handle, building it on the
// first call: find-or-create the record, open the backend, resolve the
// kind. Identity-stable: two calls in one session return the same
// pointer.
func (p *Provider) Get(ctx context.Context) (*Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != nil {
		return p.handle, nil
	}

	kind, err := backend.KindFromURI(p.uri)
	if err != nil {
		return nil, err
	}

	record, err := storage.EnsureDatabase(ctx, p.repo, p.name, p.uri, kind.String())
	if err != nil {
		return nil, err
	}

	be, err := p.registry.Open(p.uri)
	if err != nil {
		return nil, err
	}

	p.handle = &Handle{
		Database: record,
		Backend:  be,
		Kind:     kind,
	}
	return p.handle, nil
}

// Remove closes the backend and deletes the registration. Session
// teardown does NOT call this: datasets and charts in the host may
// still reference the record, so automatic removal would break them.
// See docs/plan.md, "Known limitations".
func (p *Provider) Remove(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != nil {
		if err := p.handle.Backend.Close(); err != nil {
			return err
		}
	}

	if err := p.repo.DeleteDatabase(ctx, p.name); err != nil {
		return err
	}

	p.handle = nil
	return nil
}

// Close releases the cached backend connection without touching the
// record. Harness teardown uses this.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == nil {
		return nil
	}
	err := p.handle.Backend.Close()
	p.handle = nil
	return err
}
