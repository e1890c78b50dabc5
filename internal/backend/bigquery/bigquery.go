// Package bigquery provides the Google BigQuery backend. Schemas map to
// BigQuery datasets, statements run as query jobs.
package bigquery

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/canonica-labs/testrig/internal/backend"
)

// AdapterConfig configures the BigQuery backend.
type AdapterConfig struct {
	// ProjectID is the GCP project ID.
	ProjectID string

	// CredentialsJSON is the service account key (optional if using ADC).
	CredentialsJSON string

	// Location is the BigQuery region (e.g., "US", "EU").
	Location string

	// DefaultDataset is the default dataset for unqualified tables.
	DefaultDataset string

	// QueryTimeout for statement execution.
	QueryTimeout time.Duration
}

// Validate validates the configuration.
func (c AdapterConfig) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("bigquery backend: project_id is required")
	}
	return nil
}

// ParseURI builds an AdapterConfig from an example-database URI of the
// form bigquery://project-id or bigquery://project-id/dataset.
func ParseURI(uri string) (AdapterConfig, error) {
	kind, err := backend.KindFromURI(uri)
	if err != nil {
		return AdapterConfig{}, err
	}
	if kind != backend.KindBigQuery {
		return AdapterConfig{}, fmt.Errorf("bigquery backend: unsupported URI %q", uri)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return AdapterConfig{}, fmt.Errorf("bigquery backend: invalid URI %q: %w", uri, err)
	}

	cfg := AdapterConfig{ProjectID: u.Host}
	if dataset := strings.Trim(u.Path, "/"); dataset != "" {
		cfg.DefaultDataset = dataset
	}

	return cfg, nil
}

// Adapter implements the backend interface for BigQuery.
type Adapter struct {
	mu     sync.RWMutex
	client *bigquery.Client
	config AdapterConfig
	closed bool
}

// NewAdapter creates a new BigQuery backend with the given configuration.
func NewAdapter(ctx context.Context, config AdapterConfig) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = 5 * time.Minute
	}

	// Build client options
	var opts []option.ClientOption
	if config.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(config.CredentialsJSON)))
	}
	// If no credentials provided, SDK will use Application Default Credentials (ADC)

	client, err := bigquery.NewClient(ctx, config.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery backend: failed to create client: %w", err)
	}

	return &Adapter{
		client: client,
		config: config,
		closed: false,
	}, nil
}

// NewAdapterWithoutConnect creates an adapter without a client. Allows
// adapter creation for unit tests without network access.
func NewAdapterWithoutConnect(config AdapterConfig) *Adapter {
	return &Adapter{
		config: config,
		client: nil,
		closed: false,
	}
}

// FromURI opens a BigQuery backend for an example-database URI.
func FromURI(ctx context.Context, uri string) (backend.Backend, error) {
	cfg, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return NewAdapter(ctx, cfg)
}

// Kind returns the engine family of this backend.
func (a *Adapter) Kind() backend.Kind {
	return backend.KindBigQuery
}

// Schemas returns the dataset IDs in the project.
func (a *Adapter) Schemas(ctx context.Context) ([]string, error) {
	client, err := a.activeClient()
	if err != nil {
		return nil, err
	}

	result := make([]string, 0)
	it := client.Datasets(ctx)
	for {
		ds, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery backend: failed to list datasets: %w", err)
		}
		result = append(result, ds.DatasetID)
	}

	return result, nil
}

// Relations returns table and view IDs in the dataset.
func (a *Adapter) Relations(ctx context.Context, schema string) ([]string, error) {
	client, err := a.activeClient()
	if err != nil {
		return nil, err
	}

	result := make([]string, 0)
	it := client.Dataset(schema).Tables(ctx)
	for {
		t, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery backend: failed to list tables: %w", err)
		}
		result = append(result, t.TableID)
	}

	return result, nil
}

// Exec runs a single statement as a query job and waits for it.
func (a *Adapter) Exec(ctx context.Context, stmt string) error {
	client, err := a.activeClient()
	if err != nil {
		return err
	}

	queryCtx, cancel := context.WithTimeout(ctx, a.config.QueryTimeout)
	defer cancel()

	q := client.Query(stmt)
	if a.config.DefaultDataset != "" {
		q.DefaultDatasetID = a.config.DefaultDataset
	}
	if a.config.Location != "" {
		q.Location = a.config.Location
	}

	job, err := q.Run(queryCtx)
	if err != nil {
		return fmt.Errorf("bigquery backend: statement failed: %w", err)
	}
	status, err := job.Wait(queryCtx)
	if err != nil {
		return fmt.Errorf("bigquery backend: statement failed: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("bigquery backend: statement failed: %w", err)
	}

	return nil
}

func (a *Adapter) activeClient() (*bigquery.Client, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, fmt.Errorf("bigquery backend: client is closed")
	}
	if a.client == nil {
		return nil, fmt.Errorf("bigquery backend: client not available")
	}
	return a.client, nil
}

// Ping checks if the project is reachable by starting a dataset listing.
func (a *Adapter) Ping(ctx context.Context) error {
	client, err := a.activeClient()
	if err != nil {
		return err
	}

	it := client.Datasets(ctx)
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("bigquery backend: ping failed: %w", err)
	}

	return nil
}

// CheckHealth validates the connection by executing SELECT 1.
func (a *Adapter) CheckHealth(ctx context.Context) error {
	client, err := a.activeClient()
	if err != nil {
		return err
	}

	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	it, err := client.Query("SELECT 1").Read(healthCtx)
	if err != nil {
		return fmt.Errorf("bigquery backend health check failed: %w", err)
	}

	var row []bigquery.Value
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return fmt.Errorf("bigquery backend health check failed: %w", err)
	}

	return nil
}

// Close releases any resources held by the backend.
// Close is idempotent - safe to call multiple times.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}

	a.closed = true

	if a.client != nil {
		return a.client.Close()
	}

	return nil
}

// Verify Adapter implements the backend interface.
var _ backend.Backend = (*Adapter)(nil)
