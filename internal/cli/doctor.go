package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/testrig/internal/backend"
	"github.com/canonica-labs/testrig/internal/backend/backends"
)

// errChecksFailed marks a doctor run with at least one failed check, so
// CI pipelines get a distinct exit code.
var errChecksFailed = errors.New("diagnostics failed")

func (c *CLI) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run environment diagnostics",
		Long: `Run comprehensive environment diagnostics.

Checks:
  - configuration (examples URI, backend kind)
  - metadata store connectivity and migrations
  - example backend health
  - host login with the configured admin principal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDoctor(cmd.Context())
		},
	}
}

func (c *CLI) runDoctor(ctx context.Context) error {
	c.println("Testrig Environment Diagnostics")
	c.println("===============================")
	c.println("")

	checks := []DiagnosticCheck{}
	allPassed := true

	for _, check := range []DiagnosticCheck{
		c.checkConfig(),
		c.checkMetadataStore(ctx),
		c.checkExampleBackend(ctx),
		c.checkHostLogin(ctx),
	} {
		checks = append(checks, check)
		if !check.Passed {
			allPassed = false
		}
		c.printCheck(check)
	}

	c.println("")

	if c.jsonOutput {
		if err := c.outputJSON(map[string]interface{}{
			"checks":     checks,
			"all_passed": allPassed,
		}); err != nil {
			return err
		}
	} else if allPassed {
		c.println("✓ All checks passed")
	} else {
		c.println("✗ Some checks failed - see above for details")
	}

	if !allPassed {
		return fmt.Errorf("%w: see check output", errChecksFailed)
	}
	return nil
}

// DiagnosticCheck represents a single diagnostic check result.
type DiagnosticCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (c *CLI) printCheck(check DiagnosticCheck) {
	status := "✗"
	if check.Passed {
		status = "✓"
	}
	c.printf("%s %s: %s\n", status, check.Name, check.Message)
	if check.Details != "" && !check.Passed {
		c.printf("  → %s\n", check.Details)
	}
}

func (c *CLI) checkConfig() DiagnosticCheck {
	check := DiagnosticCheck{Name: "Configuration"}

	if c.cfg == nil {
		check.Passed = false
		check.Message = "No configuration loaded"
		check.Details = "Create ~/.testrig/testrig.yaml or use --config flag"
		return check
	}

	if err := c.cfg.Validate(); err != nil {
		check.Passed = false
		check.Message = "Invalid configuration"
		check.Details = err.Error()
		return check
	}

	kind, err := backend.KindFromURI(c.cfg.Examples.URI)
	if err != nil {
		check.Passed = false
		check.Message = "Examples URI has no scheme"
		check.Details = err.Error()
		return check
	}

	check.Passed = true
	check.Message = fmt.Sprintf("Examples: %s (%s backend)", c.cfg.Examples.URI, kind)
	return check
}

func (c *CLI) checkMetadataStore(ctx context.Context) DiagnosticCheck {
	check := DiagnosticCheck{Name: "Metadata Store"}

	repo, _, closeStore, err := c.openStore(ctx)
	if err != nil {
		check.Passed = false
		check.Message = "Cannot reach metadata store"
		check.Details = fmt.Sprintf("Error: %v", err)
		return check
	}
	defer closeStore()

	if err := repo.CheckConnectivity(ctx); err != nil {
		check.Passed = false
		check.Message = "Connectivity check failed"
		check.Details = fmt.Sprintf("Error: %v", err)
		return check
	}

	users, err := repo.ListUsers(ctx)
	if err != nil {
		check.Passed = false
		check.Message = "Cannot list test principals"
		check.Details = fmt.Sprintf("Error: %v", err)
		return check
	}

	check.Passed = true
	check.Message = fmt.Sprintf("Connected, migrations applied, %d test principals", len(users))
	return check
}

func (c *CLI) checkExampleBackend(ctx context.Context) DiagnosticCheck {
	check := DiagnosticCheck{Name: "Example Backend"}

	kind, err := backend.KindFromURI(c.cfg.Examples.URI)
	if err != nil {
		check.Passed = false
		check.Message = "Cannot derive backend kind"
		check.Details = err.Error()
		return check
	}

	be, err := backends.NewRegistry().Open(c.cfg.Examples.URI)
	if err != nil {
		check.Passed = false
		check.Message = fmt.Sprintf("Cannot open %s backend", kind)
		check.Details = fmt.Sprintf("Error: %v", err)
		return check
	}
	defer be.Close()

	if err := be.CheckHealth(ctx); err != nil {
		check.Passed = false
		check.Message = fmt.Sprintf("%s backend unhealthy", kind)
		check.Details = fmt.Sprintf("Error: %v", err)
		return check
	}

	check.Passed = true
	check.Message = fmt.Sprintf("%s backend healthy", kind)
	return check
}

func (c *CLI) checkHostLogin(ctx context.Context) DiagnosticCheck {
	check := DiagnosticCheck{Name: "Host Login"}

	if c.cfg.Host.Endpoint == "" {
		check.Passed = false
		check.Message = "No host endpoint configured"
		check.Details = "Set host.endpoint in config or use --endpoint flag"
		return check
	}

	client, err := c.newHostClient()
	if err != nil {
		check.Passed = false
		check.Message = "Cannot build host client"
		check.Details = fmt.Sprintf("Error: %v", err)
		return check
	}

	healthy, err := client.CheckHealth(ctx)
	if err != nil {
		check.Passed = false
		check.Message = "Host not reachable"
		check.Details = fmt.Sprintf("Error: %v", err)
		return check
	}
	if !healthy {
		check.Passed = false
		check.Message = "Host unhealthy"
		check.Details = fmt.Sprintf("No healthy response from %s", c.cfg.Host.Endpoint)
		return check
	}

	if err := client.Login(ctx, c.cfg.Admin.Username, c.cfg.Admin.Password); err != nil {
		check.Passed = false
		check.Message = fmt.Sprintf("Login as %s failed", c.cfg.Admin.Username)
		check.Details = fmt.Sprintf("Error: %v", err)
		return check
	}
	defer func() { _ = client.Logout(ctx) }()

	identity, err := client.Me(ctx)
	if err != nil {
		check.Passed = false
		check.Message = "Session not established after login"
		check.Details = fmt.Sprintf("Error: %v", err)
		return check
	}

	check.Passed = true
	check.Message = fmt.Sprintf("Logged in as %s (%s)", identity.Username, identity.Role)
	return check
}
