// Package conditioner prepares example-database state before an
// integration suite runs: engine parameters in the registry record, and
// clean working schemas on schema-oriented engines.
//
// Per docs/plan.md: "Fail fast, fail loud." Every failure here is a
// fatal setup failure. Nothing retries; a suite must never start
// against a half-conditioned database.
package conditioner

import (
	"context"
	"fmt"

	"github.com/canonica-labs/testrig/internal/backend"
	herrors "github.com/canonica-labs/testrig/internal/errors"
)

// DropSchemaContents removes every relation from the schema. It
// enumerates the schema's relations once, then issues two statements
// per name, table drop first:
//
//	DROP TABLE IF EXISTS <schema>.<name>
//	DROP VIEW IF EXISTS <schema>.<name>
//
// Enumeration reports tables and views together, so issuing both drops
// hits whichever the name really is and the IF EXISTS absorbs the other.
// An absent schema is a no-op. Returns the number of drop statements
// issued; on error, the count issued before the failing statement.
func DropSchemaContents(ctx context.Context, be backend.Backend, schema string) (int, error) {
	schemas, err := be.Schemas(ctx)
	if err != nil {
		return 0, herrors.NewSchemaCleanup(schema, "", err)
	}

	present := false
	for _, s := range schemas {
		if s == schema {
			present = true
			break
		}
	}
	if !present {
		return 0, nil
	}

	names, err := be.Relations(ctx, schema)
	if err != nil {
		return 0, herrors.NewSchemaCleanup(schema, "", err)
	}

	issued := 0
	for _, name := range names {
		dropTable := fmt.Sprintf("DROP TABLE IF EXISTS %s.%s", schema, name)
		if err := be.Exec(ctx, dropTable); err != nil {
			return issued, herrors.NewSchemaCleanup(schema, dropTable, err)
		}
		issued++

		dropView := fmt.Sprintf("DROP VIEW IF EXISTS %s.%s", schema, name)
		if err := be.Exec(ctx, dropView); err != nil {
			return issued, herrors.NewSchemaCleanup(schema, dropView, err)
		}
		issued++
	}

	return issued, nil
}
