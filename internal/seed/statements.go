// Package seed loads the standard test principals and example datasets
// integration suites run against. Dataset manifests are YAML and
// schema-validated; seed SQL is parsed before it runs, so the loader
// knows exactly which tables it created and can tear them down in
// reverse creation order.
//
// Per docs/plan.md: "Explicit over ambient" - a manifest entry that
// does anything other than create its own table or insert into it is a
// manifest error, not something to execute blindly.
package seed

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// StatementKind classifies a parsed seed statement.
type StatementKind string

const (
	// StatementCreate is a CREATE TABLE statement.
	StatementCreate StatementKind = "create"

	// StatementInsert is an INSERT statement.
	StatementInsert StatementKind = "insert"
)

// Statement is one parsed seed statement.
type Statement struct {
	// SQL is the statement text as it will be executed.
	SQL string

	// Kind is the statement classification.
	Kind StatementKind

	// Table is the target table, qualifier included when present.
	Table string
}

// ParseStatement parses one seed statement and extracts its target
// table. One manifest entry is one statement: multi-statement input is
// rejected, and only CREATE TABLE and INSERT are legal.
func ParseStatement(sql string) (*Statement, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil, fmt.Errorf("seed: empty statement")
	}

	pieces, err := sqlparser.SplitStatementToPieces(sql)
	if err != nil {
		return nil, fmt.Errorf("seed: cannot split statement: %w", err)
	}
	if len(pieces) != 1 {
		return nil, fmt.Errorf("seed: expected one statement, got %d", len(pieces))
	}

	node, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("seed: cannot parse statement: %w", err)
	}

	switch stmt := node.(type) {
	case *sqlparser.DDL:
		if stmt.Action != sqlparser.CreateStr {
			return nil, fmt.Errorf("seed: unsupported DDL action %q", stmt.Action)
		}
		return &Statement{SQL: sql, Kind: StatementCreate, Table: tableName(stmt.NewName)}, nil
	case *sqlparser.Insert:
		return &Statement{SQL: sql, Kind: StatementInsert, Table: tableName(stmt.Table)}, nil
	default:
		return nil, fmt.Errorf("seed: unsupported statement type %T", node)
	}
}

// tableName renders a parsed table name, qualifier included.
func tableName(name sqlparser.TableName) string {
	if name.Qualifier.IsEmpty() {
		return name.Name.String()
	}
	return name.Qualifier.String() + "." + name.Name.String()
}

// bareName strips the schema qualifier from a table name.
func bareName(table string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		return table[i+1:]
	}
	return table
}
