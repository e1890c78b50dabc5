// Package migrations provides embedded migration SQL files for the
// testrig metadata store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
