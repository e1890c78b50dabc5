package conditioner

import (
	"context"
	"errors"
	"testing"

	"github.com/canonica-labs/testrig/internal/backend"
	herrors "github.com/canonica-labs/testrig/internal/errors"
)

// TestDropSchemaContents_AbsentSchemaIsNoOp verifies cleanup of a
// schema the backend does not have issues nothing and succeeds.
func TestDropSchemaContents_AbsentSchemaIsNoOp(t *testing.T) {
	mock := backend.NewMockBackend(backend.KindPresto)
	mock.SetSchemas("default", "information_schema")

	issued, err := DropSchemaContents(context.Background(), mock, SQLLabSchema)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if issued != 0 {
		t.Fatalf("expected 0 statements for absent schema, got %d", issued)
	}
	if got := len(mock.Executed()); got != 0 {
		t.Fatalf("expected no executed statements, got %d", got)
	}
}

// TestDropSchemaContents_TwoStatementsPerRelation verifies exactly 2N
// drops for N relations, paired per name with the table drop first.
func TestDropSchemaContents_TwoStatementsPerRelation(t *testing.T) {
	mock := backend.NewMockBackend(backend.KindPresto)
	mock.SetSchemas("default", SQLLabSchema)
	mock.SetRelations(SQLLabSchema, "birth_names", "names_view", "energy_usage")

	issued, err := DropSchemaContents(context.Background(), mock, SQLLabSchema)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if issued != 6 {
		t.Fatalf("expected 6 statements for 3 relations, got %d", issued)
	}

	want := []string{
		"DROP TABLE IF EXISTS sqllab_test_db.birth_names",
		"DROP VIEW IF EXISTS sqllab_test_db.birth_names",
		"DROP TABLE IF EXISTS sqllab_test_db.names_view",
		"DROP VIEW IF EXISTS sqllab_test_db.names_view",
		"DROP TABLE IF EXISTS sqllab_test_db.energy_usage",
		"DROP VIEW IF EXISTS sqllab_test_db.energy_usage",
	}
	got := mock.Executed()
	if len(got) != len(want) {
		t.Fatalf("expected %d statements, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statement %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

// TestDropSchemaContents_EmptySchemaIssuesNothing verifies a present
// but empty schema drops nothing.
func TestDropSchemaContents_EmptySchemaIssuesNothing(t *testing.T) {
	mock := backend.NewMockBackend(backend.KindPresto)
	mock.SetSchemas(AdminSchema)

	issued, err := DropSchemaContents(context.Background(), mock, AdminSchema)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if issued != 0 {
		t.Fatalf("expected 0 statements for empty schema, got %d", issued)
	}
}

// TestDropSchemaContents_EnumerationFailureIsFatal verifies a listing
// failure aborts with a schema-cleanup error and no statements issued.
func TestDropSchemaContents_EnumerationFailureIsFatal(t *testing.T) {
	mock := backend.NewMockBackend(backend.KindPresto)
	mock.SetEnumerateFailure(true)

	issued, err := DropSchemaContents(context.Background(), mock, SQLLabSchema)
	if err == nil {
		t.Fatal("expected error when enumeration fails")
	}
	if issued != 0 {
		t.Fatalf("expected 0 statements, got %d", issued)
	}

	var cleanupErr *herrors.ErrSchemaCleanup
	if !errors.As(err, &cleanupErr) {
		t.Fatalf("expected ErrSchemaCleanup, got %T", err)
	}
	if cleanupErr.Schema != SQLLabSchema {
		t.Fatalf("expected schema %q in error, got %q", SQLLabSchema, cleanupErr.Schema)
	}
}

// TestDropSchemaContents_StatementFailureIsFatal verifies a failed drop
// aborts immediately and names the failing statement.
func TestDropSchemaContents_StatementFailureIsFatal(t *testing.T) {
	mock := backend.NewMockBackend(backend.KindPresto)
	mock.SetSchemas(SQLLabSchema)
	mock.SetRelations(SQLLabSchema, "birth_names")
	mock.SetExecFailure(true)

	issued, err := DropSchemaContents(context.Background(), mock, SQLLabSchema)
	if err == nil {
		t.Fatal("expected error when a drop statement fails")
	}
	if issued != 0 {
		t.Fatalf("expected 0 issued statements before the failure, got %d", issued)
	}

	var cleanupErr *herrors.ErrSchemaCleanup
	if !errors.As(err, &cleanupErr) {
		t.Fatalf("expected ErrSchemaCleanup, got %T", err)
	}
	if cleanupErr.Statement != "DROP TABLE IF EXISTS sqllab_test_db.birth_names" {
		t.Fatalf("expected failing statement in error, got %q", cleanupErr.Statement)
	}
}

// TestDropSchemaContents_CancelledContextAborts verifies context
// cancellation stops cleanup before any statement runs.
func TestDropSchemaContents_CancelledContextAborts(t *testing.T) {
	mock := backend.NewMockBackend(backend.KindPresto)
	mock.SetSchemas(SQLLabSchema)
	mock.SetRelations(SQLLabSchema, "birth_names")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := DropSchemaContents(ctx, mock, SQLLabSchema); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if got := len(mock.Executed()); got != 0 {
		t.Fatalf("expected no executed statements, got %d", got)
	}
}
