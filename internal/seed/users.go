package seed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	herrors "github.com/canonica-labs/testrig/internal/errors"
	"github.com/canonica-labs/testrig/internal/observability"
	"github.com/canonica-labs/testrig/internal/storage"
)

// DefaultPassword is the password every test principal authenticates with.
const DefaultPassword = "general"

// Principal is one standard test principal.
type Principal struct {
	Username string
	Role     string
}

// Principals are the standard test principals, strongest role first.
var Principals = []Principal{
	{Username: "admin", Role: "Admin"},
	{Username: "alpha", Role: "Alpha"},
	{Username: "gamma", Role: "Gamma"},
}

// HashPassword returns the hex-encoded sha256 digest stored for a
// principal's password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Users upserts the standard test principals into the metadata store.
// Re-seeding is idempotent: existing principals are refreshed in place.
// A nil logger falls back to the no-op logger.
func Users(ctx context.Context, repo storage.Repository, log observability.StepLogger) error {
	if log == nil {
		log = observability.NewNoopLogger()
	}

	for _, p := range Principals {
		start := time.Now()
		user := &storage.User{
			Username:     p.Username,
			PasswordHash: HashPassword(DefaultPassword),
			Role:         p.Role,
		}

		err := repo.UpsertUser(ctx, user)

		entry := observability.StepLogEntry{
			Step:     "seed_users",
			Target:   p.Username,
			Duration: time.Since(start),
			Outcome:  "success",
		}
		if err != nil {
			entry.Outcome = "error"
			entry.Error = err.Error()
		}
		_ = log.LogStep(ctx, entry)

		if err != nil {
			return herrors.NewSeedFailed("users", err)
		}
	}

	return nil
}
