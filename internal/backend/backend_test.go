package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"

	herrors "github.com/canonica-labs/testrig/internal/errors"
)

// TestKindFromURI_SchemeMapping verifies every supported scheme maps to
// its engine family, including driver-qualified variants.
func TestKindFromURI_SchemeMapping(t *testing.T) {
	cases := []struct {
		uri  string
		want Kind
	}{
		{"presto://presto.local:8080/hive/default", KindPresto},
		{"trino://trino.local:8080/hive/default", KindPresto},
		{"hive://hive.local:10000/default", KindHive},
		{"postgres://user:pw@pg.local:5432/examples", KindPostgres},
		{"postgresql://user:pw@pg.local:5432/examples", KindPostgres},
		{"postgresql+psycopg2://user:pw@pg.local:5432/examples", KindPostgres},
		{"redshift://user:pw@cluster.local:5439/examples", KindPostgres},
		{"sqlite:////tmp/examples.db", KindSQLite},
		{"duckdb://examples.duckdb", KindDuckDB},
		{"snowflake://user:pw@account/db/schema", KindSnowflake},
		{"bigquery://some-project", KindBigQuery},
		{"PRESTO://upper.local:8080/hive", KindPresto},
	}

	for _, tc := range cases {
		got, err := KindFromURI(tc.uri)
		if err != nil {
			t.Fatalf("KindFromURI(%q): expected no error, got %v", tc.uri, err)
		}
		if got != tc.want {
			t.Fatalf("KindFromURI(%q): expected %s, got %s", tc.uri, tc.want, got)
		}
	}
}

// TestKindFromURI_UnknownSchemePassesThrough verifies unmapped schemes
// become their own kind rather than failing at derivation.
func TestKindFromURI_UnknownSchemePassesThrough(t *testing.T) {
	got, err := KindFromURI("oracle://db.local:1521/xe")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != Kind("oracle") {
		t.Fatalf("expected pass-through kind oracle, got %s", got)
	}
	if got.Polling() || got.SchemaScoped() {
		t.Fatal("expected unknown kind to take no special conditioning branch")
	}
}

// TestKindFromURI_MissingSeparatorIsConfigError verifies a URI without
// :// is rejected as invalid configuration.
func TestKindFromURI_MissingSeparatorIsConfigError(t *testing.T) {
	for _, uri := range []string{"", "examples.db", "://no-scheme"} {
		_, err := KindFromURI(uri)
		if err == nil {
			t.Fatalf("KindFromURI(%q): expected error", uri)
		}
		var configErr *herrors.ErrConfigInvalid
		if !errors.As(err, &configErr) {
			t.Fatalf("KindFromURI(%q): expected ErrConfigInvalid, got %T", uri, err)
		}
		if configErr.Key != "examples.uri" {
			t.Fatalf("expected key examples.uri, got %q", configErr.Key)
		}
	}
}

// TestKind_ConditioningBranches verifies only presto polls and only the
// presto family is schema-scoped.
func TestKind_ConditioningBranches(t *testing.T) {
	if !KindPresto.Polling() {
		t.Fatal("expected presto to poll")
	}
	if KindHive.Polling() {
		t.Fatal("expected hive not to poll")
	}
	if !KindPresto.SchemaScoped() || !KindHive.SchemaScoped() {
		t.Fatal("expected presto and hive to be schema-scoped")
	}
	for _, k := range []Kind{KindPostgres, KindSQLite, KindDuckDB, KindSnowflake, KindBigQuery} {
		if k.Polling() {
			t.Fatalf("expected %s not to poll", k)
		}
		if k.SchemaScoped() {
			t.Fatalf("expected %s not to be schema-scoped", k)
		}
	}
}

// TestRegistry_OpenUsesRegisteredFactory verifies Open routes a URI to
// the factory for its kind.
func TestRegistry_OpenUsesRegisteredFactory(t *testing.T) {
	r := NewRegistry()
	mock := NewMockBackend(KindSQLite)
	r.Register(KindSQLite, func(uri string) (Backend, error) {
		if uri != "sqlite://examples.db" {
			t.Fatalf("factory received unexpected URI %q", uri)
		}
		return mock, nil
	})

	be, err := r.Open("sqlite://examples.db")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if be != mock {
		t.Fatal("expected the factory's backend")
	}
}

// TestRegistry_OpenFailsForUnregisteredKind verifies a kind with no
// factory is a backend-unavailable error.
func TestRegistry_OpenFailsForUnregisteredKind(t *testing.T) {
	r := NewRegistry()

	_, err := r.Open("oracle://db.local:1521/xe")
	if err == nil {
		t.Fatal("expected error for unregistered kind")
	}
	var unavailable *herrors.ErrBackendUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %T", err)
	}
	if unavailable.Kind != "oracle" {
		t.Fatalf("expected kind oracle in error, got %q", unavailable.Kind)
	}
}

// TestRegistry_OpenWrapsFactoryError verifies a factory failure is
// reported as backend-unavailable with the cause attached.
func TestRegistry_OpenWrapsFactoryError(t *testing.T) {
	r := NewRegistry()
	boom := fmt.Errorf("dial refused")
	r.Register(KindPostgres, func(string) (Backend, error) {
		return nil, boom
	})

	_, err := r.Open("postgres://pg.local:5432/examples")
	if err == nil {
		t.Fatal("expected error from failing factory")
	}
	if !errors.Is(err, boom) {
		t.Fatal("expected factory error to be wrapped")
	}
}

// TestRegistry_KindsSorted verifies the registered kinds are reported
// in stable order.
func TestRegistry_KindsSorted(t *testing.T) {
	r := NewRegistry()
	if !r.IsEmpty() {
		t.Fatal("expected new registry to be empty")
	}

	r.Register(KindSQLite, func(string) (Backend, error) { return nil, nil })
	r.Register(KindHive, func(string) (Backend, error) { return nil, nil })
	r.Register(KindPresto, func(string) (Backend, error) { return nil, nil })

	kinds := r.Kinds()
	if len(kinds) != 3 {
		t.Fatalf("expected 3 kinds, got %d", len(kinds))
	}
	if kinds[0] != KindHive || kinds[1] != KindPresto || kinds[2] != KindSQLite {
		t.Fatalf("expected sorted kinds [hive presto sqlite], got %v", kinds)
	}
	if r.IsEmpty() {
		t.Fatal("expected registry with factories not to be empty")
	}
}

// TestMockBackend_RecordsStatementsInOrder verifies the test double
// used across the harness keeps execution order.
func TestMockBackend_RecordsStatementsInOrder(t *testing.T) {
	m := NewMockBackend(KindPresto)

	stmts := []string{"CREATE SCHEMA a", "DROP SCHEMA IF EXISTS b"}
	for _, s := range stmts {
		if err := m.Exec(context.Background(), s); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	got := m.Executed()
	if len(got) != 2 || got[0] != stmts[0] || got[1] != stmts[1] {
		t.Fatalf("expected recorded statements %v, got %v", stmts, got)
	}
}
