package backend

import (
	"context"
	"fmt"
	"sync"
)

// MockBackend is an in-memory implementation of Backend for testing.
// It records every executed statement in order and serves scripted
// schema and relation listings. It exists for tests only.
type MockBackend struct {
	mu        sync.Mutex
	kind      Kind
	schemas   []string
	relations map[string][]string
	executed  []string
	closed    bool

	// Test helper fields for simulating failures
	execFailure      bool
	enumerateFailure bool
	pingFailure      bool
}

// NewMockBackend creates a mock backend reporting the given kind.
func NewMockBackend(kind Kind) *MockBackend {
	return &MockBackend{
		kind:      kind,
		relations: make(map[string][]string),
	}
}

// SetSchemas scripts the schema listing.
func (m *MockBackend) SetSchemas(schemas ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas = append([]string(nil), schemas...)
}

// SetRelations scripts the relation listing for one schema.
func (m *MockBackend) SetRelations(schema string, names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relations[schema] = append([]string(nil), names...)
}

// Executed returns the statements run so far, in execution order.
func (m *MockBackend) Executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.executed...)
}

// Closed reports whether Close was called.
func (m *MockBackend) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Kind returns the scripted engine family.
func (m *MockBackend) Kind() Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kind
}

// Schemas returns the scripted schema listing.
func (m *MockBackend) Schemas(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enumerateFailure {
		return nil, fmt.Errorf("mock backend: enumeration failure")
	}
	return append([]string(nil), m.schemas...), nil
}

// Relations returns the scripted relation listing for the schema.
func (m *MockBackend) Relations(ctx context.Context, schema string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enumerateFailure {
		return nil, fmt.Errorf("mock backend: enumeration failure")
	}
	return append([]string(nil), m.relations[schema]...), nil
}

// Exec records the statement.
func (m *MockBackend) Exec(ctx context.Context, stmt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("mock backend: connection is closed")
	}
	if m.execFailure {
		return fmt.Errorf("mock backend: statement failure")
	}
	m.executed = append(m.executed, stmt)
	return nil
}

// Ping reports scripted reachability.
func (m *MockBackend) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("mock backend: connection is closed")
	}
	if m.pingFailure {
		return fmt.Errorf("mock backend: ping failure")
	}
	return nil
}

// CheckHealth reports scripted health.
func (m *MockBackend) CheckHealth(ctx context.Context) error {
	return m.Ping(ctx)
}

// Close marks the backend closed.
// Close is idempotent - safe to call multiple times.
func (m *MockBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Test helper methods for simulating failures

// SetExecFailure configures the mock to fail statement execution.
func (m *MockBackend) SetExecFailure(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execFailure = fail
}

// SetEnumerateFailure configures the mock to fail schema and relation
// listings.
func (m *MockBackend) SetEnumerateFailure(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enumerateFailure = fail
}

// SetPingFailure configures the mock to fail pings and health checks.
func (m *MockBackend) SetPingFailure(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingFailure = fail
}

// Verify MockBackend implements the Backend interface.
var _ Backend = (*MockBackend)(nil)
