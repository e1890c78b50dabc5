package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/testrig/internal/backend/backends"
	"github.com/canonica-labs/testrig/internal/exampledb"
	"github.com/canonica-labs/testrig/internal/seed"
)

func (c *CLI) newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed test principals and example datasets",
		Long:  `Populate the metadata store and example database with the standard fixtures.`,
	}

	cmd.AddCommand(c.newSeedUsersCmd())
	cmd.AddCommand(c.newSeedDatasetsCmd())

	return cmd
}

func (c *CLI) newSeedUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "Seed the standard test principals",
		Long: `Upsert the standard test principals (admin, alpha, gamma) into the
metadata store. Re-seeding is idempotent: existing principals are
refreshed in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSeedUsers(cmd.Context())
		},
	}
}

func (c *CLI) runSeedUsers(ctx context.Context) error {
	repo, db, closeStore, err := c.openStore(ctx)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}
	defer closeStore()

	if err := seed.Users(ctx, repo, c.stepLogger(db)); err != nil {
		c.errorf("Seeding failed: %v\n", err)
		return err
	}

	if c.jsonOutput {
		usernames := make([]string, 0, len(seed.Principals))
		for _, p := range seed.Principals {
			usernames = append(usernames, p.Username)
		}
		return c.outputJSON(map[string]interface{}{
			"status": "seeded",
			"users":  usernames,
		})
	}

	c.printf("✓ Seeded %d test principals\n", len(seed.Principals))
	return nil
}

func (c *CLI) newSeedDatasetsCmd() *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Load example datasets into the example database",
		Long: `Load a dataset manifest into the example database.

Without --manifest the embedded default manifest is used (birth_names,
energy_usage, unicode_test). Statements run in manifest order and the
loader stops at the first failure.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSeedDatasets(cmd.Context(), manifestPath)
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "dataset manifest file (default: embedded manifest)")

	return cmd
}

func (c *CLI) runSeedDatasets(ctx context.Context, manifestPath string) error {
	var (
		manifest *seed.Manifest
		err      error
	)
	if manifestPath == "" {
		manifest, err = seed.DefaultManifest()
	} else {
		manifest, err = seed.LoadManifest(manifestPath)
	}
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	repo, db, closeStore, err := c.openStore(ctx)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}
	defer closeStore()

	registry := backends.NewRegistry()
	provider := exampledb.NewProvider(repo, registry, c.cfg.Examples.DatabaseName, c.cfg.Examples.URI)
	defer provider.Close()

	handle, err := provider.Get(ctx)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	loader := seed.NewLoader(handle.Backend, c.stepLogger(db))
	if err := loader.Load(ctx, manifest); err != nil {
		c.errorf("Seeding failed: %v\n", err)
		return err
	}
	created := loader.CreatedTables()

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"status":  "seeded",
			"backend": handle.Kind.String(),
			"tables":  created,
		})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATASET\tTABLE\tINSERTS")
	for i, ds := range manifest.Datasets {
		table := ""
		if i < len(created) {
			table = created[i]
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", ds.Name, table, len(ds.Inserts))
	}
	w.Flush()

	c.printf("✓ Loaded %d datasets into the %s example database\n", len(manifest.Datasets), handle.Kind)
	return nil
}
