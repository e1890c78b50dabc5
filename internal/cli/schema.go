package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/testrig/internal/backend/backends"
	"github.com/canonica-labs/testrig/internal/conditioner"
)

func (c *CLI) newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Working-schema management",
		Long:  `Inspect and clean the schemas on the example backend.`,
	}

	cmd.AddCommand(c.newSchemaDropCmd())
	cmd.AddCommand(c.newSchemaListCmd())

	return cmd
}

func (c *CLI) newSchemaDropCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "drop <schema>",
		Short: "Drop every table and view in a schema",
		Long: `Drop the contents of one schema on the example backend.

Issues DROP TABLE IF EXISTS and DROP VIEW IF EXISTS for every relation
the backend enumerates, table drop first. A schema that does not exist
is a no-op. Requires confirmation unless --force is provided.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSchemaDrop(cmd.Context(), args[0], force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "skip confirmation")

	return cmd
}

func (c *CLI) runSchemaDrop(ctx context.Context, schema string, force bool) error {
	if !force {
		c.printf("Drop all relations in schema '%s'? [y/N]: ", schema)
		var confirm string
		fmt.Scanln(&confirm)
		if strings.ToLower(confirm) != "y" {
			c.println("Cancelled")
			return nil
		}
	}

	be, err := backends.NewRegistry().Open(c.cfg.Examples.URI)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}
	defer be.Close()

	issued, err := conditioner.DropSchemaContents(ctx, be, schema)
	if err != nil {
		c.errorf("Schema cleanup failed: %v\n", err)
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"status":     "dropped",
			"schema":     schema,
			"statements": issued,
		})
	}

	if issued == 0 {
		c.printf("✓ Schema '%s' has no relations, nothing dropped\n", schema)
		return nil
	}
	c.printf("✓ Dropped contents of '%s' (%d statements)\n", schema, issued)
	return nil
}

func (c *CLI) newSchemaListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schemas on the example backend",
		Long:  `List the schemas the example backend reports, with relation counts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSchemaList(cmd.Context())
		},
	}
}

func (c *CLI) runSchemaList(ctx context.Context) error {
	be, err := backends.NewRegistry().Open(c.cfg.Examples.URI)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}
	defer be.Close()

	schemas, err := be.Schemas(ctx)
	if err != nil {
		c.errorf("Failed to list schemas: %v\n", err)
		return err
	}

	type schemaInfo struct {
		Name      string `json:"name"`
		Relations int    `json:"relations"`
	}
	infos := make([]schemaInfo, 0, len(schemas))
	for _, schema := range schemas {
		relations, err := be.Relations(ctx, schema)
		if err != nil {
			c.errorf("Failed to list relations in %s: %v\n", schema, err)
			return err
		}
		infos = append(infos, schemaInfo{Name: schema, Relations: len(relations)})
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"schemas": infos,
		})
	}

	if len(infos) == 0 {
		c.println("No schemas visible")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCHEMA\tRELATIONS")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%d\n", info.Name, info.Relations)
	}
	w.Flush()

	return nil
}
