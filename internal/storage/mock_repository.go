package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/canonica-labs/testrig/internal/errors"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It is thread-safe and respects context cancellation.
// It exists for tests only; the harness never ships it to production use.
type MockRepository struct {
	mu        sync.RWMutex
	databases map[string]*Database
	users     map[string]*User
	nextID    int64

	// Test helper fields for simulating failures
	connectivityFailure     bool
	persistenceFailure      bool
	connectivityCheckCalled bool
}

// NewMockRepository creates a new mock repository.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		databases: make(map[string]*Database),
		users:     make(map[string]*User),
		nextID:    1,
	}
}

// checkContext verifies the context is not cancelled or timed out.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// CreateDatabase registers a new database record.
func (r *MockRepository) CreateDatabase(ctx context.Context, db *Database) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	// Validate record
	if err := db.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Simulate persistence failure for testing
	if r.persistenceFailure {
		return errors.NewStoreUnavailable(nil)
	}

	// Check for duplicate name
	if _, exists := r.databases[db.Name]; exists {
		return errors.NewDatabaseAlreadyExists(db.Name)
	}

	now := time.Now()
	record := copyDatabase(db)
	record.ID = r.nextID
	r.nextID++
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Extra == "" {
		record.Extra = "{}"
	}

	r.databases[db.Name] = record
	db.ID = record.ID
	return nil
}

// GetDatabase retrieves a database record by name.
func (r *MockRepository) GetDatabase(ctx context.Context, name string) (*Database, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	db, exists := r.databases[name]
	if !exists {
		return nil, errors.NewDatabaseNotFound(name)
	}

	return copyDatabase(db), nil
}

// UpdateDatabaseExtra replaces the extra blob of an existing record.
func (r *MockRepository) UpdateDatabaseExtra(ctx context.Context, name string, extra string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Simulate persistence failure for testing
	if r.persistenceFailure {
		return errors.NewStoreUnavailable(nil)
	}

	db, exists := r.databases[name]
	if !exists {
		return errors.NewDatabaseNotFound(name)
	}

	if extra == "" {
		extra = "{}"
	}
	db.Extra = extra
	db.UpdatedAt = time.Now()
	return nil
}

// DeleteDatabase removes a database record by name.
func (r *MockRepository) DeleteDatabase(ctx context.Context, name string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.databases[name]; !exists {
		return errors.NewDatabaseNotFound(name)
	}

	delete(r.databases, name)
	return nil
}

// ListDatabases returns all registered databases.
func (r *MockRepository) ListDatabases(ctx context.Context) ([]*Database, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Database, 0, len(r.databases))
	for _, db := range r.databases {
		result = append(result, copyDatabase(db))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// DatabaseExists checks if a record with the given name exists.
func (r *MockRepository) DatabaseExists(ctx context.Context, name string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.databases[name]
	return exists, nil
}

// UpsertUser creates a test principal or refreshes an existing one.
func (r *MockRepository) UpsertUser(ctx context.Context, user *User) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	// Validate record
	if err := user.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Simulate persistence failure for testing
	if r.persistenceFailure {
		return errors.NewStoreUnavailable(nil)
	}

	existing, exists := r.users[user.Username]
	if exists {
		existing.PasswordHash = user.PasswordHash
		existing.Role = user.Role
		user.ID = existing.ID
		return nil
	}

	record := copyUser(user)
	record.ID = r.nextID
	r.nextID++
	record.CreatedAt = time.Now()
	r.users[user.Username] = record
	user.ID = record.ID
	return nil
}

// GetUser retrieves a test principal by username.
func (r *MockRepository) GetUser(ctx context.Context, username string) (*User, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[username]
	if !exists {
		return nil, errors.NewUserNotFound(username)
	}

	return copyUser(user), nil
}

// ListUsers returns all test principals.
func (r *MockRepository) ListUsers(ctx context.Context) ([]*User, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*User, 0, len(r.users))
	for _, user := range r.users {
		result = append(result, copyUser(user))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })

	return result, nil
}

// copyDatabase creates a deep copy of a database record.
func copyDatabase(src *Database) *Database {
	dst := *src
	return &dst
}

// copyUser creates a deep copy of a user record.
func copyUser(src *User) *User {
	dst := *src
	return &dst
}

// Test helper methods for simulating failures

// SetConnectivityFailure configures the mock to simulate connectivity failures.
func (r *MockRepository) SetConnectivityFailure(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectivityFailure = fail
}

// SetPersistenceFailure configures the mock to simulate persistence failures.
func (r *MockRepository) SetPersistenceFailure(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persistenceFailure = fail
}

// CheckConnectivity verifies store connectivity.
func (r *MockRepository) CheckConnectivity(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectivityCheckCalled = true

	if r.connectivityFailure {
		return errors.NewStoreUnavailable(nil)
	}
	return nil
}

// ConnectivityCheckCalled returns whether CheckConnectivity was called.
func (r *MockRepository) ConnectivityCheckCalled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connectivityCheckCalled
}

// Verify MockRepository implements Repository interface.
var _ Repository = (*MockRepository)(nil)
