package seed

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/canonica-labs/testrig/internal/backend"
	"github.com/canonica-labs/testrig/internal/backend/sqlite"
	herrors "github.com/canonica-labs/testrig/internal/errors"
	"github.com/canonica-labs/testrig/internal/observability"
)

func twoDatasetManifest() *Manifest {
	return &Manifest{Datasets: []Dataset{
		{
			Name:    "birth_names",
			Create:  "CREATE TABLE birth_names (id INTEGER, name VARCHAR(255))",
			Inserts: []string{"INSERT INTO birth_names (id, name) VALUES (1, 'Michael')"},
		},
		{
			Name:    "energy_usage",
			Create:  "CREATE TABLE energy_usage (source VARCHAR(255), value FLOAT)",
			Inserts: []string{"INSERT INTO energy_usage (source, value) VALUES ('Coal Mining', 1.3)"},
		},
	}}
}

// TestLoader_ExecutesInManifestOrder verifies create runs before the
// inserts and datasets load in manifest order.
func TestLoader_ExecutesInManifestOrder(t *testing.T) {
	mock := backend.NewMockBackend(backend.KindSQLite)
	loader := NewLoader(mock, nil)

	if err := loader.Load(context.Background(), twoDatasetManifest()); err != nil {
		t.Fatalf("expected load to succeed, got error: %v", err)
	}

	want := []string{
		"CREATE TABLE birth_names (id INTEGER, name VARCHAR(255))",
		"INSERT INTO birth_names (id, name) VALUES (1, 'Michael')",
		"CREATE TABLE energy_usage (source VARCHAR(255), value FLOAT)",
		"INSERT INTO energy_usage (source, value) VALUES ('Coal Mining', 1.3)",
	}
	got := mock.Executed()
	if len(got) != len(want) {
		t.Fatalf("expected %d statements, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("statement %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	created := loader.CreatedTables()
	if len(created) != 2 || created[0] != "birth_names" || created[1] != "energy_usage" {
		t.Errorf("expected created tables in manifest order, got %v", created)
	}
}

// TestLoader_TeardownDropsInReverseOrder verifies teardown drops the
// last-created table first.
func TestLoader_TeardownDropsInReverseOrder(t *testing.T) {
	mock := backend.NewMockBackend(backend.KindSQLite)
	loader := NewLoader(mock, nil)
	ctx := context.Background()

	if err := loader.Load(ctx, twoDatasetManifest()); err != nil {
		t.Fatalf("expected load to succeed, got error: %v", err)
	}
	if err := loader.Teardown(ctx); err != nil {
		t.Fatalf("expected teardown to succeed, got error: %v", err)
	}

	got := mock.Executed()
	drops := got[len(got)-2:]
	if drops[0] != "DROP TABLE IF EXISTS energy_usage" {
		t.Errorf("expected energy_usage dropped first, got %q", drops[0])
	}
	if drops[1] != "DROP TABLE IF EXISTS birth_names" {
		t.Errorf("expected birth_names dropped last, got %q", drops[1])
	}

	if created := loader.CreatedTables(); len(created) != 0 {
		t.Errorf("expected no tables recorded after teardown, got %v", created)
	}
}

// TestLoader_ExecFailureAbortsLoad verifies the first statement
// failure stops the load with a seed error naming the dataset.
func TestLoader_ExecFailureAbortsLoad(t *testing.T) {
	mock := backend.NewMockBackend(backend.KindSQLite)
	mock.SetExecFailure(true)
	loader := NewLoader(mock, nil)

	err := loader.Load(context.Background(), twoDatasetManifest())
	if err == nil {
		t.Fatal("expected error when statements fail, got nil")
	}

	var seedErr *herrors.ErrSeedFailed
	if !errors.As(err, &seedErr) {
		t.Fatalf("expected ErrSeedFailed, got %T", err)
	}
	if seedErr.Target != "birth_names" {
		t.Errorf("expected failing dataset 'birth_names', got %q", seedErr.Target)
	}
	if created := loader.CreatedTables(); len(created) != 0 {
		t.Errorf("expected no tables recorded, got %v", created)
	}
}

// TestLoader_FailedTeardownKeepsRemainingTables verifies a teardown
// failure leaves the not-yet-dropped tables recorded, so a re-run can
// finish the job.
func TestLoader_FailedTeardownKeepsRemainingTables(t *testing.T) {
	mock := backend.NewMockBackend(backend.KindSQLite)
	loader := NewLoader(mock, nil)
	ctx := context.Background()

	if err := loader.Load(ctx, twoDatasetManifest()); err != nil {
		t.Fatalf("expected load to succeed, got error: %v", err)
	}

	mock.SetExecFailure(true)
	if err := loader.Teardown(ctx); err == nil {
		t.Fatal("expected teardown to fail, got nil")
	}
	if created := loader.CreatedTables(); len(created) != 2 {
		t.Fatalf("expected both tables still recorded, got %v", created)
	}

	mock.SetExecFailure(false)
	if err := loader.Teardown(ctx); err != nil {
		t.Fatalf("expected teardown re-run to succeed, got error: %v", err)
	}
	if created := loader.CreatedTables(); len(created) != 0 {
		t.Errorf("expected no tables recorded after re-run, got %v", created)
	}
}

// TestLoader_LogsPerDataset verifies every dataset emits a step entry
// and the summary counts every issued statement.
func TestLoader_LogsPerDataset(t *testing.T) {
	var buf bytes.Buffer
	log := observability.NewJSONLogger(&buf)
	mock := backend.NewMockBackend(backend.KindSQLite)
	loader := NewLoader(mock, log)

	m := twoDatasetManifest()
	if err := loader.Load(context.Background(), m); err != nil {
		t.Fatalf("expected load to succeed, got error: %v", err)
	}

	summary := log.GetRunSummary()
	if summary.SucceededCount != len(m.Datasets) {
		t.Errorf("expected %d succeeded steps, got %d", len(m.Datasets), summary.SucceededCount)
	}
	if summary.FailedCount != 0 {
		t.Errorf("expected no failed steps, got %d", summary.FailedCount)
	}

	wantStatements := 0
	for _, ds := range m.Datasets {
		wantStatements += 1 + len(ds.Inserts)
	}
	if summary.StatementsIssued != wantStatements {
		t.Errorf("expected %d statements issued, got %d", wantStatements, summary.StatementsIssued)
	}
}

// TestLoader_LoadsDefaultManifestIntoSQLite verifies the embedded
// manifest actually executes against a real example database, and that
// teardown removes every table it created.
func TestLoader_LoadsDefaultManifestIntoSQLite(t *testing.T) {
	adapter, err := sqlite.NewAdapter(sqlite.AdapterConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	t.Cleanup(func() { adapter.Close() })

	m, err := DefaultManifest()
	if err != nil {
		t.Fatalf("expected embedded manifest to parse, got error: %v", err)
	}

	loader := NewLoader(adapter, nil)
	ctx := context.Background()

	if err := loader.Load(ctx, m); err != nil {
		t.Fatalf("expected default manifest to load, got error: %v", err)
	}

	relations, err := adapter.Relations(ctx, "main")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []string{"birth_names", "energy_usage", "unicode_test"}
	if len(relations) != len(want) {
		t.Fatalf("expected relations %v, got %v", want, relations)
	}
	for i := range want {
		if relations[i] != want[i] {
			t.Errorf("expected relation %q, got %q", want[i], relations[i])
		}
	}

	if err := loader.Teardown(ctx); err != nil {
		t.Fatalf("expected teardown to succeed, got error: %v", err)
	}

	relations, err = adapter.Relations(ctx, "main")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(relations) != 0 {
		t.Errorf("expected no relations after teardown, got %v", relations)
	}
}
