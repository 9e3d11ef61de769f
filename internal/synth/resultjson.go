package synth

import (
	"fmt"
	"strings"
)

// WrapForJSON wraps query so execution returns a single row/column
// holding the serialized JSON payload: FOR JSON AUTO for tsql,
// json_group_array(json_object(...)) for sqlite. columnNames must match
// the output column order query's SELECT list produces.
func WrapForJSON(dc *DatabaseContext, query string, columnNames []string) string {
	if dc.IsSQLServer {
		return fmt.Sprintf("SELECT (%s FOR JSON AUTO) AS json", query)
	}

	pairs := make([]string, 0, len(columnNames)*2)
	for _, name := range columnNames {
		pairs = append(pairs, fmt.Sprintf("'%s', %s", escapeStringLiteral(name), QuoteIdent(dc, name)))
	}
	return fmt.Sprintf("SELECT json_group_array(json_object(%s)) AS json_result FROM (%s)",
		strings.Join(pairs, ", "), query)
}
