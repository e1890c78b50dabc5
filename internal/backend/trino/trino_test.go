package trino

import (
	"context"
	"testing"

	"github.com/canonica-labs/testrig/internal/backend"
)

// TestParseURI_PrestoForm verifies a full presto URI maps onto host,
// port, catalog and schema.
func TestParseURI_PrestoForm(t *testing.T) {
	cfg, err := ParseURI("presto://scheduler@presto.local:8285/hive/default")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Kind != backend.KindPresto {
		t.Fatalf("expected kind presto, got %s", cfg.Kind)
	}
	if cfg.Host != "presto.local" {
		t.Fatalf("expected host presto.local, got %q", cfg.Host)
	}
	if cfg.Port != 8285 {
		t.Fatalf("expected port 8285, got %d", cfg.Port)
	}
	if cfg.User != "scheduler" {
		t.Fatalf("expected user scheduler, got %q", cfg.User)
	}
	if cfg.Catalog != "hive" {
		t.Fatalf("expected catalog hive, got %q", cfg.Catalog)
	}
	if cfg.Schema != "default" {
		t.Fatalf("expected schema default, got %q", cfg.Schema)
	}
}

// TestParseURI_TrinoSchemeIsPrestoKind verifies trino URIs report the
// presto kind.
func TestParseURI_TrinoSchemeIsPrestoKind(t *testing.T) {
	cfg, err := ParseURI("trino://trino.local:8080/memory")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Kind != backend.KindPresto {
		t.Fatalf("expected kind presto, got %s", cfg.Kind)
	}
	if cfg.Catalog != "memory" {
		t.Fatalf("expected catalog memory, got %q", cfg.Catalog)
	}
}

// TestParseURI_HiveForcesHiveCatalog verifies hive URIs keep their hive
// kind and route through the hive catalog, with the first path segment
// read as the schema.
func TestParseURI_HiveForcesHiveCatalog(t *testing.T) {
	cfg, err := ParseURI("hive://hive.local:10000/warehouse")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Kind != backend.KindHive {
		t.Fatalf("expected kind hive, got %s", cfg.Kind)
	}
	if cfg.Catalog != "hive" {
		t.Fatalf("expected catalog hive, got %q", cfg.Catalog)
	}
	if cfg.Schema != "warehouse" {
		t.Fatalf("expected schema warehouse, got %q", cfg.Schema)
	}
}

// TestParseURI_DefaultPort verifies a URI without a port gets 8080.
func TestParseURI_DefaultPort(t *testing.T) {
	cfg, err := ParseURI("presto://presto.local/hive")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
}

// TestParseURI_RejectsHostlessURI verifies a URI without a host fails.
func TestParseURI_RejectsHostlessURI(t *testing.T) {
	if _, err := ParseURI("presto:///hive/default"); err == nil {
		t.Fatal("expected error for hostless URI")
	}
}

// TestAdapterConfig_DSN verifies the driver DSN format.
func TestAdapterConfig_DSN(t *testing.T) {
	cfg := AdapterConfig{
		Host:    "presto.local",
		Port:    8285,
		User:    "scheduler",
		Catalog: "hive",
		Schema:  "default",
	}

	want := "http://scheduler@presto.local:8285?catalog=hive&schema=default"
	if got := cfg.DSN(); got != want {
		t.Fatalf("expected DSN %q, got %q", want, got)
	}
}

// TestAdapterConfig_DSNWithSSL verifies sslmode require switches the
// scheme to https.
func TestAdapterConfig_DSNWithSSL(t *testing.T) {
	cfg := AdapterConfig{
		Host:    "presto.local",
		Port:    443,
		User:    "scheduler",
		Catalog: "hive",
		Schema:  "default",
		SSLMode: "require",
	}

	want := "https://scheduler@presto.local:443?catalog=hive&schema=default"
	if got := cfg.DSN(); got != want {
		t.Fatalf("expected DSN %q, got %q", want, got)
	}
}

// TestNewAdapterWithoutConnect_AppliesDefaults verifies the network-free
// constructor fills defaults and reports its kind.
func TestNewAdapterWithoutConnect_AppliesDefaults(t *testing.T) {
	a := NewAdapterWithoutConnect(AdapterConfig{Host: "presto.local"})

	if a.Kind() != backend.KindPresto {
		t.Fatalf("expected default kind presto, got %s", a.Kind())
	}
	if a.config.User == "" || a.config.Catalog == "" || a.config.Schema == "" {
		t.Fatalf("expected defaults applied, got %+v", a.config)
	}
	if a.config.MaxOpenConns != 10 || a.config.MaxIdleConns != 5 {
		t.Fatalf("expected pool defaults, got %+v", a.config)
	}
}

// TestAdapter_OperationsFailWithoutConnection verifies every operation
// on a connection-free adapter errors instead of panicking.
func TestAdapter_OperationsFailWithoutConnection(t *testing.T) {
	a := NewAdapterWithoutConnect(AdapterConfig{Host: "presto.local"})
	ctx := context.Background()

	if _, err := a.Schemas(ctx); err == nil {
		t.Fatal("expected error from Schemas without a connection")
	}
	if _, err := a.Relations(ctx, "sqllab_test_db"); err == nil {
		t.Fatal("expected error from Relations without a connection")
	}
	if err := a.Exec(ctx, "CREATE SCHEMA x"); err == nil {
		t.Fatal("expected error from Exec without a connection")
	}
	if err := a.Ping(ctx); err == nil {
		t.Fatal("expected error from Ping without a connection")
	}
	if err := a.CheckHealth(ctx); err == nil {
		t.Fatal("expected error from CheckHealth without a connection")
	}
}

// TestAdapter_CloseIsIdempotent verifies double Close is safe.
func TestAdapter_CloseIsIdempotent(t *testing.T) {
	a := NewAdapterWithoutConnect(AdapterConfig{Host: "presto.local"})

	if err := a.Close(); err != nil {
		t.Fatalf("expected no error on first close, got %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("expected no error on second close, got %v", err)
	}
}
