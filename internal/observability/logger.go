// Package observability provides structured logging for testrig setup runs.
// Per docs/plan.md: "Fail fast, fail loud" - every setup step is logged.
//
// Every step must emit: step name, backend, target, statements issued,
// duration, and error (if any).
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// StepLogEntry contains all required fields for setup-step logging.
type StepLogEntry struct {
	// Step is the setup step name (condition, drop_schema_contents,
	// recreate_schema, seed_users, seed_dataset, teardown_dataset, login).
	// Required: every entry must name its step.
	Step string

	// Backend is the example-database backend kind the step ran against.
	// May be empty for steps that touch only the metadata store.
	Backend string

	// Target is the object the step operated on: a schema, a dataset,
	// a username, or a database record name.
	Target string

	// Statements is the number of SQL statements the step issued.
	Statements int

	// Duration is how long the step took.
	// Must be non-negative.
	Duration time.Duration

	// Outcome is the result status: "success", "error", "skipped".
	Outcome string

	// Error contains the error message if the step failed.
	// Empty string for successful steps.
	Error string
}

// Validate checks that all required fields are present.
func (e *StepLogEntry) Validate() error {
	if e.Step == "" {
		return fmt.Errorf("observability: step is required")
	}
	if e.Duration < 0 {
		return fmt.Errorf("observability: duration cannot be negative")
	}
	if e.Statements < 0 {
		return fmt.Errorf("observability: statements cannot be negative")
	}
	return nil
}

// StepLogger is the interface for setup-step logging.
type StepLogger interface {
	// LogStep logs one setup step.
	// Returns an error if logging fails or the entry is invalid.
	LogStep(ctx context.Context, entry StepLogEntry) error

	// GetRunSummary returns aggregated statistics for the run.
	GetRunSummary() *RunSummary
}

// RunSummary represents aggregated setup-run statistics.
type RunSummary struct {
	SucceededCount    int                 `json:"succeeded_count"`
	FailedCount       int                 `json:"failed_count"`
	StatementsIssued  int                 `json:"statements_issued"`
	TopFailureReasons []FailureReasonStat `json:"top_failure_reasons"`
	TopTargets        []TargetStat        `json:"top_targets"`
}

// FailureReasonStat represents failure reason statistics.
type FailureReasonStat struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// TargetStat represents per-target step statistics.
type TargetStat struct {
	Target string `json:"target"`
	Count  int    `json:"count"`
}

// jsonLogOutput is the structured format for JSON logs.
type jsonLogOutput struct {
	Timestamp  string `json:"timestamp"`
	Level      string `json:"level"`
	Step       string `json:"step"`
	Backend    string `json:"backend,omitempty"`
	Target     string `json:"target,omitempty"`
	Statements int    `json:"statements"`
	DurationMs int64  `json:"duration_ms"`
	Outcome    string `json:"outcome,omitempty"`
	Error      string `json:"error,omitempty"`
}

// JSONLogger implements StepLogger with JSON output.
type JSONLogger struct {
	writer  io.Writer
	entries []StepLogEntry // Track entries for the run summary
	mu      sync.RWMutex
}

// NewJSONLogger creates a new JSON logger writing to the given writer.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{
		writer:  w,
		entries: make([]StepLogEntry, 0),
	}
}

// LogStep logs one setup step as JSON.
func (l *JSONLogger) LogStep(ctx context.Context, entry StepLogEntry) error {
	// Check context first
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}

	// Validate entry
	if err := entry.Validate(); err != nil {
		return err
	}

	// Determine log level
	level := "info"
	if entry.Error != "" {
		level = "error"
	}

	// Build output
	output := jsonLogOutput{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Level:      level,
		Step:       entry.Step,
		Backend:    entry.Backend,
		Target:     entry.Target,
		Statements: entry.Statements,
		DurationMs: entry.Duration.Milliseconds(),
		Outcome:    entry.Outcome,
		Error:      entry.Error,
	}

	// Encode as JSON
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("observability: failed to marshal log: %w", err)
	}

	// Write to output
	_, err = l.writer.Write(append(data, '\n'))
	if err != nil {
		return fmt.Errorf("observability: failed to write log: %w", err)
	}

	// Track entry for the run summary
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	return nil
}

// GetRunSummary returns aggregated setup-run statistics.
func (l *JSONLogger) GetRunSummary() *RunSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	summary := &RunSummary{
		TopFailureReasons: []FailureReasonStat{},
		TopTargets:        []TargetStat{},
	}

	failureReasons := make(map[string]int)
	targetCounts := make(map[string]int)

	for _, entry := range l.entries {
		if entry.Error == "" {
			summary.SucceededCount++
		} else {
			summary.FailedCount++
			failureReasons[entry.Error]++
		}
		summary.StatementsIssued += entry.Statements

		if entry.Target != "" {
			targetCounts[entry.Target]++
		}
	}

	// Build top failure reasons
	for reason, count := range failureReasons {
		summary.TopFailureReasons = append(summary.TopFailureReasons, FailureReasonStat{
			Reason: reason,
			Count:  count,
		})
	}
	sort.Slice(summary.TopFailureReasons, func(i, j int) bool {
		return summary.TopFailureReasons[i].Count > summary.TopFailureReasons[j].Count
	})
	if len(summary.TopFailureReasons) > 5 {
		summary.TopFailureReasons = summary.TopFailureReasons[:5]
	}

	// Build top targets
	for target, count := range targetCounts {
		summary.TopTargets = append(summary.TopTargets, TargetStat{
			Target: target,
			Count:  count,
		})
	}
	sort.Slice(summary.TopTargets, func(i, j int) bool {
		return summary.TopTargets[i].Count > summary.TopTargets[j].Count
	})
	if len(summary.TopTargets) > 5 {
		summary.TopTargets = summary.TopTargets[:5]
	}

	return summary
}

// NoopLogger is a logger that discards all logs.
// Useful for testing or when logging is disabled.
type NoopLogger struct{}

// NewNoopLogger creates a new no-op logger.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

// LogStep does nothing and always succeeds.
func (l *NoopLogger) LogStep(ctx context.Context, entry StepLogEntry) error {
	return nil
}

// GetRunSummary returns an empty summary for the no-op logger.
func (l *NoopLogger) GetRunSummary() *RunSummary {
	return &RunSummary{
		TopFailureReasons: []FailureReasonStat{},
		TopTargets:        []TargetStat{},
	}
}

// PersistentLogger implements StepLogger with PostgreSQL persistence.
// Setup logs written here survive the run, which is what makes flaky
// CI setups diagnosable after the fact.
type PersistentLogger struct {
	db     *sql.DB
	mu     sync.RWMutex
	writer io.Writer // optional: also write to stdout for debugging
}

// NewPersistentLogger creates a logger that persists setup entries to PostgreSQL.
func NewPersistentLogger(db *sql.DB) (*PersistentLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("observability: database connection is required for persistent logging")
	}
	return &PersistentLogger{
		db: db,
	}, nil
}

// NewPersistentLoggerWithWriter creates a logger that persists to both DB and a writer.
func NewPersistentLoggerWithWriter(db *sql.DB, w io.Writer) (*PersistentLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("observability: database connection is required for persistent logging")
	}
	return &PersistentLogger{
		db:     db,
		writer: w,
	}, nil
}

// LogStep persists a setup-step entry to PostgreSQL.
func (l *PersistentLogger) LogStep(ctx context.Context, entry StepLogEntry) error {
	// Check context first
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}

	// Validate entry
	if err := entry.Validate(); err != nil {
		return err
	}

	// Insert into setup_log
	query := `
		INSERT INTO setup_log (
			step, backend, target, statements, duration_ms,
			outcome, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := l.db.ExecContext(ctx, query,
		entry.Step,
		nullableString(entry.Backend),
		nullableString(entry.Target),
		entry.Statements,
		entry.Duration.Milliseconds(),
		nullableString(entry.Outcome),
		nullableString(entry.Error),
	)
	if err != nil {
		return fmt.Errorf("observability: failed to persist setup log: %w", err)
	}

	// Also write to optional writer (for debugging)
	if l.writer != nil {
		level := "info"
		if entry.Error != "" {
			level = "error"
		}
		output := jsonLogOutput{
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Level:      level,
			Step:       entry.Step,
			Backend:    entry.Backend,
			Target:     entry.Target,
			Statements: entry.Statements,
			DurationMs: entry.Duration.Milliseconds(),
			Outcome:    entry.Outcome,
			Error:      entry.Error,
		}
		if data, err := json.Marshal(output); err == nil {
			l.writer.Write(data)
			l.writer.Write([]byte("\n"))
		}
	}

	return nil
}

// GetRunSummary returns aggregated setup statistics from the database.
func (l *PersistentLogger) GetRunSummary() *RunSummary {
	summary := &RunSummary{
		TopFailureReasons: []FailureReasonStat{},
		TopTargets:        []TargetStat{},
	}

	ctx := context.Background()

	// Get succeeded count
	row := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM setup_log WHERE error_message IS NULL OR error_message = ''
	`)
	row.Scan(&summary.SucceededCount)

	// Get failed count
	row = l.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM setup_log WHERE error_message IS NOT NULL AND error_message != ''
	`)
	row.Scan(&summary.FailedCount)

	// Get total statements issued
	row = l.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(statements), 0) FROM setup_log
	`)
	row.Scan(&summary.StatementsIssued)

	// Get top failure reasons
	rows, err := l.db.QueryContext(ctx, `
		SELECT error_message, COUNT(*) as cnt
		FROM setup_log
		WHERE error_message IS NOT NULL AND error_message != ''
		GROUP BY error_message
		ORDER BY cnt DESC
		LIMIT 5
	`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var reason string
			var count int
			if rows.Scan(&reason, &count) == nil {
				summary.TopFailureReasons = append(summary.TopFailureReasons, FailureReasonStat{
					Reason: reason,
					Count:  count,
				})
			}
		}
	}

	// Get top targets
	rows, err = l.db.QueryContext(ctx, `
		SELECT target, COUNT(*) as cnt
		FROM setup_log
		WHERE target IS NOT NULL AND target != ''
		GROUP BY target
		ORDER BY cnt DESC
		LIMIT 5
	`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var target string
			var count int
			if rows.Scan(&target, &count) == nil {
				summary.TopTargets = append(summary.TopTargets, TargetStat{
					Target: target,
					Count:  count,
				})
			}
		}
	}

	return summary
}

// nullableString converts empty strings to nil for SQL NULL.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
