// Connectivity await for backends that take time to accept connections
// (warehouse containers starting up in CI).
//
// IMPORTANT: this is EXPLICIT - it runs only when a caller asks for it
// ('testrig doctor', 'condition --wait'). Conditioning steps themselves
// never retry; per docs/plan.md a conditioning failure aborts the run.
package backend

import (
	"context"
	"fmt"
	"time"
)

// AwaitConfig configures connectivity waiting.
type AwaitConfig struct {
	// MaxAttempts is the maximum number of pings (including first try).
	// Default: 10
	MaxAttempts int

	// InitialDelay is the initial delay between pings.
	// Default: 500ms
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between pings.
	// Default: 10s
	MaxDelay time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	// Default: 2.0
	BackoffMultiplier float64
}

// DefaultAwaitConfig returns the default await configuration.
func DefaultAwaitConfig() AwaitConfig {
	return AwaitConfig{
		MaxAttempts:       10,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// AwaitResult contains the result of a connectivity wait.
// Errors are explicit, never hidden: every failed attempt is recorded.
type AwaitResult struct {
	// Attempts is the number of pings made.
	Attempts int

	// LastError is the last error encountered (nil if the backend
	// became reachable).
	LastError error

	// Errors contains all errors from each attempt.
	Errors []error

	// Ready indicates whether the backend ultimately accepted a ping.
	Ready bool
}

// String provides a human-readable summary of the wait.
func (r AwaitResult) String() string {
	if r.Ready {
		if r.Attempts == 1 {
			return "reachable on first attempt"
		}
		return fmt.Sprintf("reachable after %d attempts", r.Attempts)
	}
	return fmt.Sprintf("unreachable after %d attempts: %v", r.Attempts, r.LastError)
}

// AwaitError wraps an exhausted wait so callers can surface the full
// attempt history.
type AwaitError struct {
	Result AwaitResult
}

func (e *AwaitError) Error() string {
	return fmt.Sprintf("backend unreachable after %d attempts: %v", e.Result.Attempts, e.Result.LastError)
}

func (e *AwaitError) Unwrap() error {
	return e.Result.LastError
}

// WaitReady pings the backend until it answers or attempts run out.
// Context cancellation stops the wait immediately.
//
// Usage:
//
//	result := backend.WaitReady(ctx, be, backend.DefaultAwaitConfig())
//	if !result.Ready {
//	    return fmt.Errorf("example database never came up: %w", &backend.AwaitError{Result: result})
//	}
func WaitReady(ctx context.Context, be Backend, config AwaitConfig) AwaitResult {
	// Apply defaults
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 10
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 500 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}

	result := AwaitResult{
		Errors: make([]error, 0, config.MaxAttempts),
	}

	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		// Check context before each attempt
		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			result.Errors = append(result.Errors, ctx.Err())
			return result
		}

		err := be.Ping(ctx)
		if err == nil {
			result.Ready = true
			return result
		}

		result.LastError = err
		result.Errors = append(result.Errors, err)

		// Don't sleep after last attempt
		if attempt < config.MaxAttempts {
			select {
			case <-ctx.Done():
				result.LastError = ctx.Err()
				result.Errors = append(result.Errors, ctx.Err())
				return result
			case <-time.After(delay):
				// Apply exponential backoff
				delay = time.Duration(float64(delay) * config.BackoffMultiplier)
				if delay > config.MaxDelay {
					delay = config.MaxDelay
				}
			}
		}
	}

	return result
}
