package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/canonica-labs/testrig/internal/backend"
)

func openMemory(t *testing.T) *Adapter {
	t.Helper()

	a, err := NewAdapter(AdapterConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// TestParseURI_SlashForms verifies the relative, absolute and short URI
// forms resolve to the right paths.
func TestParseURI_SlashForms(t *testing.T) {
	cases := []struct {
		uri  string
		want string
	}{
		{"sqlite://examples.db", "examples.db"},
		{"sqlite:///examples.db", "examples.db"},
		{"sqlite:////tmp/examples.db", "/tmp/examples.db"},
		{"sqlite://", ""},
	}

	for _, tc := range cases {
		cfg, err := ParseURI(tc.uri)
		if err != nil {
			t.Fatalf("ParseURI(%q): expected no error, got %v", tc.uri, err)
		}
		if cfg.Path != tc.want {
			t.Fatalf("ParseURI(%q): expected path %q, got %q", tc.uri, tc.want, cfg.Path)
		}
	}
}

// TestParseURI_RejectsForeignScheme verifies non-sqlite URIs are
// refused.
func TestParseURI_RejectsForeignScheme(t *testing.T) {
	if _, err := ParseURI("postgres://pg.local:5432/examples"); err == nil {
		t.Fatal("expected error for foreign scheme")
	}
}

// TestAdapter_SchemasListsMain verifies a fresh database reports the
// main attached database.
func TestAdapter_SchemasListsMain(t *testing.T) {
	a := openMemory(t)

	schemas, err := a.Schemas(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	found := false
	for _, s := range schemas {
		if s == "main" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected main in schemas, got %v", schemas)
	}
}

// TestAdapter_RelationsListsTablesAndViews verifies enumeration covers
// both relation types and skips sqlite internals.
func TestAdapter_RelationsListsTablesAndViews(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()

	stmts := []string{
		"CREATE TABLE birth_names (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)",
		"CREATE VIEW names_view AS SELECT name FROM birth_names",
	}
	for _, s := range stmts {
		if err := a.Exec(ctx, s); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	relations, err := a.Relations(ctx, "main")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// AUTOINCREMENT creates sqlite_sequence; it must not be listed.
	if len(relations) != 2 {
		t.Fatalf("expected 2 relations, got %d: %v", len(relations), relations)
	}
	if relations[0] != "birth_names" || relations[1] != "names_view" {
		t.Fatalf("expected [birth_names names_view], got %v", relations)
	}
}

// TestAdapter_ExecDropsRelations verifies the drop statement forms the
// conditioner emits work against a real database.
func TestAdapter_ExecDropsRelations(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()

	if err := a.Exec(ctx, "CREATE TABLE energy_usage (v REAL)"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := a.Exec(ctx, "DROP TABLE IF EXISTS main.energy_usage"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := a.Exec(ctx, "DROP VIEW IF EXISTS main.energy_usage"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	relations, err := a.Relations(ctx, "main")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(relations) != 0 {
		t.Fatalf("expected empty schema, got %v", relations)
	}
}

// TestAdapter_FileBackedPersists verifies a file-backed database keeps
// its tables across connections.
func TestAdapter_FileBackedPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "examples.db")
	ctx := context.Background()

	first, err := NewAdapter(AdapterConfig{Path: path})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := first.Exec(ctx, "CREATE TABLE wb_health_population (country TEXT)"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	second, err := NewAdapter(AdapterConfig{Path: path})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	t.Cleanup(func() { second.Close() })

	relations, err := second.Relations(ctx, "main")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(relations) != 1 || relations[0] != "wb_health_population" {
		t.Fatalf("expected persisted table, got %v", relations)
	}
}

// TestAdapter_CheckHealth verifies the health probe succeeds on a live
// database.
func TestAdapter_CheckHealth(t *testing.T) {
	a := openMemory(t)

	if err := a.CheckHealth(context.Background()); err != nil {
		t.Fatalf("expected healthy, got %v", err)
	}
}

// TestAdapter_ClosedOperationsFail verifies operations after Close
// error rather than panic, and Close stays idempotent.
func TestAdapter_ClosedOperationsFail(t *testing.T) {
	a := openMemory(t)

	if err := a.Close(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("expected idempotent close, got %v", err)
	}

	ctx := context.Background()
	if _, err := a.Schemas(ctx); err == nil {
		t.Fatal("expected error from Schemas after close")
	}
	if err := a.Exec(ctx, "SELECT 1"); err == nil {
		t.Fatal("expected error from Exec after close")
	}
	if err := a.Ping(ctx); err == nil {
		t.Fatal("expected error from Ping after close")
	}
	if err := a.CheckHealth(ctx); err == nil {
		t.Fatal("expected error from CheckHealth after close")
	}
}

// TestAdapter_KindIsSQLite verifies the reported kind.
func TestAdapter_KindIsSQLite(t *testing.T) {
	a := openMemory(t)
	if a.Kind() != backend.KindSQLite {
		t.Fatalf("expected kind sqlite, got %s", a.Kind())
	}
}
