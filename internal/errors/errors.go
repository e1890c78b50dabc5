// Package errors provides explicit, human-readable error types for testrig.
// All errors must include a Reason and Suggestion for actionable feedback.
//
// Per docs/plan.md: "Fail fast, fail loud."
package errors

import (
	"fmt"
)

// HarnessError is the base error type for all testrig errors.
// Every error must provide a human-readable reason and suggestion.
type HarnessError struct {
	Code       ErrorCode
	Message    string
	Reason     string
	Suggestion string
	Cause      error
}

// ErrorCode represents the category of error for exit code mapping.
type ErrorCode int

const (
	CodeConfig   ErrorCode = 1
	CodeStore    ErrorCode = 2
	CodeBackend  ErrorCode = 3
	CodeInternal ErrorCode = 4
)

func (e *HarnessError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s\nReason: %s", msg, e.Reason)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s\nSuggestion: %s", msg, e.Suggestion)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s\nCaused by: %v", msg, e.Cause)
	}
	return msg
}

func (e *HarnessError) Unwrap() error {
	return e.Cause
}

// ErrConfigInvalid is returned when a configuration value cannot be used.
type ErrConfigInvalid struct {
	HarnessError
	Key string
}

// NewConfigInvalid creates a new ErrConfigInvalid.
func NewConfigInvalid(key, reason string) *ErrConfigInvalid {
	return &ErrConfigInvalid{
		HarnessError: HarnessError{
			Code:       CodeConfig,
			Message:    fmt.Sprintf("invalid configuration: %s", key),
			Reason:     reason,
			Suggestion: fmt.Sprintf("set %s in testrig.yaml or the TESTRIG_%s environment variable", key, envName(key)),
		},
		Key: key,
	}
}

// ErrStoreUnavailable is returned when the metadata store cannot be reached.
type ErrStoreUnavailable struct {
	HarnessError
}

// NewStoreUnavailable creates a new ErrStoreUnavailable.
func NewStoreUnavailable(cause error) *ErrStoreUnavailable {
	return &ErrStoreUnavailable{
		HarnessError: HarnessError{
			Code:       CodeStore,
			Message:    "metadata store unavailable",
			Reason:     "the store did not accept a connection",
			Suggestion: "check metadata.dsn and run 'testrig doctor'",
			Cause:      cause,
		},
	}
}

// ErrDatabaseNotFound is returned when a registry record does not exist.
type ErrDatabaseNotFound struct {
	HarnessError
	Name string
}

// NewDatabaseNotFound creates a new ErrDatabaseNotFound.
func NewDatabaseNotFound(name string) *ErrDatabaseNotFound {
	return &ErrDatabaseNotFound{
		HarnessError: HarnessError{
			Code:       CodeStore,
			Message:    fmt.Sprintf("database not registered: %s", name),
			Reason:     "no record with this name in the metadata store",
			Suggestion: "run 'testrig condition' to register the example database",
		},
		Name: name,
	}
}

// ErrUserNotFound is returned when a test principal does not exist.
type ErrUserNotFound struct {
	HarnessError
	Username string
}

// NewUserNotFound creates a new ErrUserNotFound.
func NewUserNotFound(username string) *ErrUserNotFound {
	return &ErrUserNotFound{
		HarnessError: HarnessError{
			Code:       CodeStore,
			Message:    fmt.Sprintf("user not found: %s", username),
			Reason:     "no test principal with this username",
			Suggestion: "run 'testrig seed users'",
		},
		Username: username,
	}
}

// ErrDatabaseAlreadyExists is returned when creating a registry record
// whose name is taken.
type ErrDatabaseAlreadyExists struct {
	HarnessError
	Name string
}

// NewDatabaseAlreadyExists creates a new ErrDatabaseAlreadyExists.
func NewDatabaseAlreadyExists(name string) *ErrDatabaseAlreadyExists {
	return &ErrDatabaseAlreadyExists{
		HarnessError: HarnessError{
			Code:       CodeStore,
			Message:    fmt.Sprintf("database already registered: %s", name),
			Reason:     "a record with this name exists in the metadata store",
			Suggestion: "reuse the existing record or delete it first",
		},
		Name: name,
	}
}

// ErrMigrationFailed is returned when applying a metadata-store migration fails.
type ErrMigrationFailed struct {
	HarnessError
	Migration string
}

// NewMigrationFailed creates a new ErrMigrationFailed.
func NewMigrationFailed(migration string, cause error) *ErrMigrationFailed {
	return &ErrMigrationFailed{
		HarnessError: HarnessError{
			Code:       CodeStore,
			Message:    fmt.Sprintf("migration failed: %s", migration),
			Reason:     "the migration statement did not apply cleanly",
			Suggestion: "inspect schema_migrations and the store schema by hand",
			Cause:      cause,
		},
		Migration: migration,
	}
}

// ErrBackendUnavailable is returned when an example-database backend cannot
// be opened or reached.
type ErrBackendUnavailable struct {
	HarnessError
	Kind string
}

// NewBackendUnavailable creates a new ErrBackendUnavailable.
func NewBackendUnavailable(kind string, cause error) *ErrBackendUnavailable {
	return &ErrBackendUnavailable{
		HarnessError: HarnessError{
			Code:       CodeBackend,
			Message:    fmt.Sprintf("backend unavailable: %s", kind),
			Reason:     "the example database did not accept a connection",
			Suggestion: "check examples.uri; 'testrig condition --wait' waits for a starting container",
			Cause:      cause,
		},
		Kind: kind,
	}
}

// ErrSchemaCleanup is returned when dropping schema contents fails.
// Cleanup failures are fatal; the suite must not start on a half-cleaned schema.
type ErrSchemaCleanup struct {
	HarnessError
	Schema    string
	Statement string
}

// NewSchemaCleanup creates a new ErrSchemaCleanup.
func NewSchemaCleanup(schema, statement string, cause error) *ErrSchemaCleanup {
	return &ErrSchemaCleanup{
		HarnessError: HarnessError{
			Code:       CodeBackend,
			Message:    fmt.Sprintf("schema cleanup failed: %s", schema),
			Reason:     fmt.Sprintf("statement failed: %s", statement),
			Suggestion: "inspect the schema by hand, then re-run 'testrig schema drop'",
			Cause:      cause,
		},
		Schema:    schema,
		Statement: statement,
	}
}

// ErrConditioning is returned when the pre-suite conditioning step fails.
type ErrConditioning struct {
	HarnessError
	Step string
}

// NewConditioning creates a new ErrConditioning.
func NewConditioning(step string, cause error) *ErrConditioning {
	return &ErrConditioning{
		HarnessError: HarnessError{
			Code:       CodeBackend,
			Message:    "conditioning failed",
			Reason:     fmt.Sprintf("step '%s' did not complete", step),
			Suggestion: "run 'testrig doctor' and re-run 'testrig condition'",
			Cause:      cause,
		},
		Step: step,
	}
}

// ErrSeedFailed is returned when loading test users or datasets fails.
type ErrSeedFailed struct {
	HarnessError
	Target string
}

// NewSeedFailed creates a new ErrSeedFailed.
func NewSeedFailed(target string, cause error) *ErrSeedFailed {
	return &ErrSeedFailed{
		HarnessError: HarnessError{
			Code:       CodeStore,
			Message:    fmt.Sprintf("seed failed: %s", target),
			Reason:     "a seed statement or record write failed",
			Suggestion: "check the dataset manifest and re-run 'testrig seed'",
			Cause:      cause,
		},
		Target: target,
	}
}

// ErrLoginFailed is returned when the host application rejects credentials.
type ErrLoginFailed struct {
	HarnessError
	Username string
}

// NewLoginFailed creates a new ErrLoginFailed.
func NewLoginFailed(username string) *ErrLoginFailed {
	return &ErrLoginFailed{
		HarnessError: HarnessError{
			Code:       CodeConfig,
			Message:    fmt.Sprintf("login failed for %s", username),
			Reason:     "the host application rejected the credentials",
			Suggestion: "run 'testrig seed users' so the test principals exist",
		},
		Username: username,
	}
}

func envName(key string) string {
	out := make([]byte, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c == '.':
			c = '_'
		case c >= 'a' && c <= 'z':
			c = c - 'a' + 'A'
		}
		out[i] = c
	}
	return string(out)
}
