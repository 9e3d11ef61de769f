package synth

import (
	"fmt"
	"strings"

	"nlsql/internal/planner"
)

// renderColumn renders a column reference for projection or filter use:
// expressions are parsed and qualified, everything else is a single
// alias-qualified, quoted identifier.
func renderColumn(dc *DatabaseContext, aliases AliasMap, table, column string) string {
	alias := aliases.Resolve(table)
	if IsExpression(column) {
		return QualifyExpression(dc, alias, column)
	}
	return alias + "." + QuoteIdent(dc, column)
}

// renderValue renders a filter value: a column reference is resolved
// through the alias map and emitted unquoted; everything else goes
// through literal construction (which escapes string quotes).
func renderValue(dc *DatabaseContext, aliases AliasMap, v interface{}) string {
	if IsColumnReference(v) {
		return RenderColumnReference(dc, aliases, v.(string))
	}
	return RenderLiteral(dc, v)
}

func toValueSlice(v interface{}) []interface{} {
	if list, ok := v.([]interface{}); ok {
		return list
	}
	if v == nil {
		return nil
	}
	return []interface{}{v}
}

// CompileFilter turns one FilterPredicate into a SQL boolean expression.
func CompileFilter(dc *DatabaseContext, aliases AliasMap, f planner.FilterPredicate) string {
	col := renderColumn(dc, aliases, f.Table, f.Column)

	switch f.Op {
	case planner.OpIsNull:
		return col + " IS NULL"
	case planner.OpIsNotNull:
		return col + " IS NOT NULL"
	case planner.OpILike:
		// ilike is rewritten to LIKE for dialects without ILIKE.
		return fmt.Sprintf("%s LIKE %s", col, renderValue(dc, aliases, f.Value))
	case planner.OpIn:
		return compileIn(dc, aliases, col, f.Value)
	case planner.OpBetween:
		values := toValueSlice(f.Value)
		if len(values) != 2 {
			return col + " IS NULL"
		}
		low := renderValue(dc, aliases, values[0])
		high := renderValue(dc, aliases, values[1])
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, low, high)
	default:
		return fmt.Sprintf("%s %s %s", col, string(f.Op), renderValue(dc, aliases, f.Value))
	}
}

// compileIn handles the in operator's null-splitting rule: a null
// element moves the column to an OR'd IS NULL branch; an all-null list
// collapses to plain IS NULL.
func compileIn(dc *DatabaseContext, aliases AliasMap, col string, value interface{}) string {
	values := toValueSlice(value)

	var nonNulls []string
	hasNull := false
	for _, v := range values {
		if v == nil || InferType(v) == LitNull {
			hasNull = true
			continue
		}
		nonNulls = append(nonNulls, renderValue(dc, aliases, v))
	}

	if len(nonNulls) == 0 {
		return col + " IS NULL"
	}

	inClause := fmt.Sprintf("%s IN (%s)", col, strings.Join(nonNulls, ", "))
	if hasNull {
		return fmt.Sprintf("(%s OR %s IS NULL)", inClause, col)
	}
	return inClause
}

// CompileConjunction ANDs together every filter in filters, returning ""
// if there are none.
func CompileConjunction(dc *DatabaseContext, aliases AliasMap, filters []planner.FilterPredicate) string {
	if len(filters) == 0 {
		return ""
	}
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = CompileFilter(dc, aliases, f)
	}
	return strings.Join(parts, " AND ")
}
