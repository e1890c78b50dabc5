// Package main is the entrypoint for the testrig CLI.
// The CLI conditions the example database, seeds principals and
// datasets, and diagnoses the integration-test environment.
package main

import (
	"os"

	"github.com/canonica-labs/testrig/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	os.Exit(cli.New().Execute())
}
