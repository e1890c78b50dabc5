package cli

import (
	"fmt"
	"strings"
	"testing"

	herrors "github.com/canonica-labs/testrig/internal/errors"
)

// TestExitCode_ClassifiesFailures verifies each failure family maps to
// its own exit code.
func TestExitCode_ClassifiesFailures(t *testing.T) {
	cause := fmt.Errorf("boom")

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"config_invalid", herrors.NewConfigInvalid("examples.uri", "empty"), ExitConfig},
		{"diagnostics_failed", fmt.Errorf("%w: see check output", errChecksFailed), ExitDiagnostics},
		{"store_unavailable", herrors.NewStoreUnavailable(cause), ExitSetup},
		{"backend_unavailable", herrors.NewBackendUnavailable("presto", cause), ExitSetup},
		{"migration_failed", herrors.NewMigrationFailed("000001_create_databases", cause), ExitSetup},
		{"conditioning_failed", herrors.NewConditioning("persist_engine_params", cause), ExitSetup},
		{"schema_cleanup_failed", herrors.NewSchemaCleanup("sqllab_test_db", "DROP TABLE t", cause), ExitSetup},
		{"seed_failed", herrors.NewSeedFailed("birth_names", cause), ExitSetup},
		{"unclassified", fmt.Errorf("something else"), ExitInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Fatalf("expected exit code %d, got %d", tc.want, got)
			}
		})
	}
}

// TestExitCode_WrappedErrorsStillClassify verifies classification works
// through fmt.Errorf wrapping.
func TestExitCode_WrappedErrorsStillClassify(t *testing.T) {
	err := fmt.Errorf("conditioning example database: %w",
		herrors.NewBackendUnavailable("presto", fmt.Errorf("refused")))

	if got := exitCode(err); got != ExitSetup {
		t.Fatalf("expected ExitSetup for wrapped backend error, got %d", got)
	}
}

// TestGetVersionString_NamesTheBinary verifies the one-line version form.
func TestGetVersionString_NamesTheBinary(t *testing.T) {
	got := GetVersionString()
	if !strings.HasPrefix(got, "testrig version ") {
		t.Fatalf("expected version string to start with binary name, got %q", got)
	}
	if !strings.Contains(got, Version) {
		t.Fatalf("expected version string to contain %q, got %q", Version, got)
	}
}

// TestNew_RegistersCommandSurface verifies the root command carries the
// operational subcommands.
func TestNew_RegistersCommandSurface(t *testing.T) {
	c := New()

	want := map[string]bool{
		"condition": false,
		"schema":    false,
		"seed":      false,
		"doctor":    false,
		"version":   false,
	}
	for _, cmd := range c.rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("expected %q subcommand to be registered", name)
		}
	}
}
