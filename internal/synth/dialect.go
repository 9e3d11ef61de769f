// Package synth implements C7: the SQL Synthesizer. It turns a
// planner.PlannerOutput into a fully formed, dialect-correct SQL
// string. The SQL text is assembled directly by string building, and
// dialect differences (identifier quoting, TOP vs LIMIT, JSON wrapping,
// literal handling) are applied at each step where they arise; there is
// no separate expression tree or final rendering pass.
package synth

import "strings"

// Dialect names a target SQL dialect.
type Dialect string

const (
	TSQL   Dialect = "tsql"
	SQLite Dialect = "sqlite"
)

// DatabaseContext carries the dialect and its derived flags through
// every synthesis step.
type DatabaseContext struct {
	Dialect     Dialect
	IsSQLServer bool
	IsSQLite    bool
}

// NewDatabaseContext builds a DatabaseContext for d.
func NewDatabaseContext(d Dialect) *DatabaseContext {
	return &DatabaseContext{
		Dialect:     d,
		IsSQLServer: d == TSQL,
		IsSQLite:    d == SQLite,
	}
}

// QuoteIdent quotes ident using the dialect's native quoting: square
// brackets for tsql, double quotes elsewhere. This keeps reserved words
// like Index, Order, Key, Table always safe.
func QuoteIdent(dc *DatabaseContext, ident string) string {
	if dc.IsSQLServer {
		return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
