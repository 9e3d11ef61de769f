package synth

import (
	"fmt"
	"strings"

	"nlsql/internal/errs"
	"nlsql/internal/planner"
)

// Options carries the user preferences the synthesizer falls back to
// when a PlannerOutput's own order_by/limit are absent.
type Options struct {
	SortOrder   planner.SortOrder
	ResultLimit int
	TimeFilter  planner.TimeFilter
}

// Synthesize builds a dialect-correct SQL string from out, along with
// the output column names (needed to JSON-wrap the result on dialects
// without FOR JSON AUTO; see WrapForJSON).
func Synthesize(dc *DatabaseContext, out *planner.PlannerOutput, opts Options) (string, []string, error) {
	if len(out.Selections) == 0 {
		return "", nil, &errs.SQLSynthesisError{Reason: "planner output has no selections"}
	}

	aliases := buildAliasMap(out.Selections)

	var sb strings.Builder

	if len(out.CTEs) > 0 {
		cteSQL, err := compileCTEs(dc, out.CTEs, opts)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(cteSQL)
		sb.WriteString(" ")
	}

	sb.WriteString("SELECT ")
	if dc.IsSQLServer && out.Limit != nil {
		sb.WriteString(fmt.Sprintf("TOP %d ", *out.Limit))
	} else if dc.IsSQLServer && out.Limit == nil && len(out.OrderBy) == 0 && opts.ResultLimit > 0 {
		sb.WriteString(fmt.Sprintf("TOP %d ", opts.ResultLimit))
	}

	projection, columnNames, err := buildProjection(dc, aliases, out)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(strings.Join(projection, ", "))

	sb.WriteString(" FROM ")
	sb.WriteString(buildFromAndJoins(dc, aliases, out.Selections, out.JoinEdges))

	where := buildWhere(dc, aliases, out, opts)
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	if out.GroupBy != nil {
		groupCols := make([]string, 0, len(out.GroupBy.GroupByColumns))
		for _, c := range out.GroupBy.GroupByColumns {
			groupCols = append(groupCols, renderColumn(dc, aliases, c.Table, c.Column))
		}
		if len(groupCols) > 0 {
			sb.WriteString(" GROUP BY ")
			sb.WriteString(strings.Join(groupCols, ", "))
		}
		if having := CompileConjunction(dc, aliases, out.GroupBy.HavingFilters); having != "" {
			sb.WriteString(" HAVING ")
			sb.WriteString(having)
		}
	}

	orderBy := buildOrderBy(dc, aliases, out, opts)
	if orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}

	if !dc.IsSQLServer {
		limit := out.Limit
		if limit == nil && opts.ResultLimit > 0 {
			limit = &opts.ResultLimit
		}
		if limit != nil {
			sb.WriteString(fmt.Sprintf(" LIMIT %d", *limit))
		}
	}

	return sb.String(), columnNames, nil
}

func buildAliasMap(selections []planner.Selection) AliasMap {
	aliases := make(AliasMap, len(selections))
	for _, sel := range selections {
		if sel.Alias != "" {
			aliases[sel.Table] = sel.Alias
		} else {
			aliases[sel.Table] = sel.Table
		}
	}
	return aliases
}

// buildProjection assembles the SELECT list: every projection-role
// column, plus aggregates/window functions, plus — per the orphaned-
// filter-column heuristic — any filter-role column with no matching
// FilterPredicate anywhere in the plan.
func buildProjection(dc *DatabaseContext, aliases AliasMap, out *planner.PlannerOutput) ([]string, []string, error) {
	var cols []string
	var names []string
	seen := make(map[string]bool)

	add := func(expr, name string) {
		if !seen[expr] {
			seen[expr] = true
			cols = append(cols, expr)
			names = append(names, name)
		}
	}

	for _, sel := range out.Selections {
		for _, c := range sel.Columns {
			if c.Role == planner.RoleProjection {
				add(renderColumn(dc, aliases, c.Table, c.Column), c.Column)
			}
		}
	}

	for _, c := range orphanedFilterColumns(out) {
		add(renderColumn(dc, aliases, c.Table, c.Column), c.Column)
	}

	if out.GroupBy != nil {
		for _, agg := range out.GroupBy.Aggregates {
			expr := renderColumn(dc, aliases, agg.Table, agg.Column)
			add(fmt.Sprintf("%s(%s) AS %s", agg.Function, expr, QuoteIdent(dc, agg.Alias)), agg.Alias)
		}
	}

	for _, wf := range out.WindowFunctions {
		add(renderWindowFunction(dc, aliases, wf), wf.Alias)
	}

	if len(cols) == 0 {
		return nil, nil, &errs.SQLSynthesisError{Reason: "no projectable columns in plan"}
	}
	return cols, names, nil
}

// orphanedFilterColumns finds every filter-role column for which no
// FilterPredicate exists anywhere (table-local, global, HAVING, or
// subquery) — the planner occasionally tags a column for filtering but
// forgets to emit the predicate, which would otherwise leave it neither
// displayed nor filtered.
func orphanedFilterColumns(out *planner.PlannerOutput) []planner.SelectedColumn {
	filtered := make(map[string]bool)
	mark := func(table, column string) { filtered[table+"."+column] = true }

	for _, sel := range out.Selections {
		for _, f := range sel.Filters {
			mark(f.Table, f.Column)
		}
	}
	for _, f := range out.GlobalFilters {
		mark(f.Table, f.Column)
	}
	if out.GroupBy != nil {
		for _, f := range out.GroupBy.HavingFilters {
			mark(f.Table, f.Column)
		}
	}
	for _, sf := range out.SubqueryFilters {
		mark(sf.OuterTable, sf.OuterColumn)
	}

	var orphaned []planner.SelectedColumn
	for _, sel := range out.Selections {
		for _, c := range sel.Columns {
			if c.Role == planner.RoleFilter && !filtered[c.Table+"."+c.Column] {
				orphaned = append(orphaned, c)
			}
		}
	}
	return orphaned
}

func renderWindowFunction(dc *DatabaseContext, aliases AliasMap, wf planner.WindowFunction) string {
	var sb strings.Builder
	sb.WriteString(wf.Function)
	sb.WriteString(" OVER (")
	if len(wf.PartitionBy) > 0 {
		sb.WriteString("PARTITION BY ")
		sb.WriteString(strings.Join(wf.PartitionBy, ", "))
	}
	if len(wf.OrderBy) > 0 {
		if len(wf.PartitionBy) > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString("ORDER BY ")
		sb.WriteString(strings.Join(wf.OrderBy, ", "))
	}
	sb.WriteString(")")
	if wf.Alias != "" {
		sb.WriteString(" AS ")
		sb.WriteString(QuoteIdent(dc, wf.Alias))
	}
	return sb.String()
}

// buildFromAndJoins emits the first selection as the base FROM table,
// then joins every subsequent selection via its matching JoinEdge, in
// the stable order selections appear.
func buildFromAndJoins(dc *DatabaseContext, aliases AliasMap, selections []planner.Selection, edges []planner.JoinEdge) string {
	var sb strings.Builder
	sb.WriteString(tableRef(dc, aliases, selections[0].Table))

	for _, sel := range selections[1:] {
		edge := findJoinEdge(edges, sel.Table)
		sb.WriteString(" ")
		sb.WriteString(joinKeyword(edge.JoinType))
		sb.WriteString(" ")
		sb.WriteString(tableRef(dc, aliases, sel.Table))
		sb.WriteString(" ON ")
		sb.WriteString(fmt.Sprintf("%s.%s = %s.%s",
			aliases.Resolve(edge.FromTable), QuoteIdent(dc, edge.FromColumn),
			aliases.Resolve(edge.ToTable), QuoteIdent(dc, edge.ToColumn)))
	}
	return sb.String()
}

func tableRef(dc *DatabaseContext, aliases AliasMap, table string) string {
	alias := aliases.Resolve(table)
	if alias == table {
		return QuoteIdent(dc, table)
	}
	return fmt.Sprintf("%s AS %s", QuoteIdent(dc, table), QuoteIdent(dc, alias))
}

func findJoinEdge(edges []planner.JoinEdge, toTable string) planner.JoinEdge {
	for _, e := range edges {
		if e.ToTable == toTable {
			return e
		}
	}
	return planner.JoinEdge{JoinType: planner.JoinInner, ToTable: toTable}
}

func joinKeyword(jt planner.JoinType) string {
	switch jt {
	case planner.JoinLeft:
		return "LEFT JOIN"
	case planner.JoinRight:
		return "RIGHT JOIN"
	case planner.JoinFull:
		return "FULL JOIN"
	default:
		return "INNER JOIN"
	}
}

// buildWhere conjoins every table-local filter, every global filter,
// every subquery filter, and the time-window filter derived from
// opts.TimeFilter.
func buildWhere(dc *DatabaseContext, aliases AliasMap, out *planner.PlannerOutput, opts Options) string {
	var parts []string

	for _, sel := range out.Selections {
		if c := CompileConjunction(dc, aliases, sel.Filters); c != "" {
			parts = append(parts, c)
		}
	}
	if c := CompileConjunction(dc, aliases, out.GlobalFilters); c != "" {
		parts = append(parts, c)
	}
	for _, sf := range out.SubqueryFilters {
		parts = append(parts, compileSubqueryFilter(dc, aliases, sf))
	}
	if tw := timeWindowFilter(dc, aliases, out, opts.TimeFilter); tw != "" {
		parts = append(parts, tw)
	}

	return strings.Join(parts, " AND ")
}

func compileSubqueryFilter(dc *DatabaseContext, aliases AliasMap, sf planner.SubqueryFilter) string {
	outerCol := renderColumn(dc, aliases, sf.OuterTable, sf.OuterColumn)
	innerAliases := AliasMap{sf.SubqueryTable: sf.SubqueryTable}
	subCol := renderColumn(dc, innerAliases, sf.SubqueryTable, sf.SubqueryColumn)

	sub := fmt.Sprintf("SELECT %s FROM %s", subCol, QuoteIdent(dc, sf.SubqueryTable))
	if where := CompileConjunction(dc, innerAliases, sf.SubqueryFilters); where != "" {
		sub += " WHERE " + where
	}
	return fmt.Sprintf("%s %s (%s)", outerCol, string(sf.Op), sub)
}

// timeWindowFilter realizes opts.TimeFilter as a WHERE term over the
// first selected column, scanning every selection in order, whose name
// contains "date", "created" or "time" (case-insensitive). When no
// selected column matches, it returns "" and no time-window term is
// added.
func timeWindowFilter(dc *DatabaseContext, aliases AliasMap, out *planner.PlannerOutput, tf planner.TimeFilter) string {
	days, ok := planner.DayWindow(tf)
	if !ok {
		return ""
	}
	col := guessDateColumn(out)
	if col == "" {
		return ""
	}
	colExpr := renderColumn(dc, aliases, col.Table, col.Column)
	if dc.IsSQLServer {
		return fmt.Sprintf("%s >= DATEADD(day, -%d, GETDATE())", colExpr, days)
	}
	return fmt.Sprintf("%s >= datetime('now', '-%d day')", colExpr, days)
}

func guessDateColumn(out *planner.PlannerOutput) *planner.SelectedColumn {
	lowerHints := []string{"date", "created", "time"}
	for _, sel := range out.Selections {
		for _, c := range sel.Columns {
			lc := strings.ToLower(c.Column)
			for _, hint := range lowerHints {
				if strings.Contains(lc, hint) {
					cc := c
					return &cc
				}
			}
		}
	}
	return nil
}

// buildOrderBy prefers the plan's own order_by; if absent, falls back
// to the user's sort_order preference applied to the first projection column.
func buildOrderBy(dc *DatabaseContext, aliases AliasMap, out *planner.PlannerOutput, opts Options) string {
	if len(out.OrderBy) > 0 {
		parts := make([]string, len(out.OrderBy))
		for i, ob := range out.OrderBy {
			parts[i] = fmt.Sprintf("%s %s", renderColumn(dc, aliases, ob.Table, ob.Column), ob.Direction)
		}
		return strings.Join(parts, ", ")
	}

	if opts.SortOrder == planner.SortDefault || opts.SortOrder == "" {
		return ""
	}
	var first *planner.SelectedColumn
	for _, sel := range out.Selections {
		for _, c := range sel.Columns {
			if c.Role == planner.RoleProjection {
				cc := c
				first = &cc
				break
			}
		}
		if first != nil {
			break
		}
	}
	if first == nil {
		return ""
	}
	direction := "ASC"
	if opts.SortOrder == planner.SortDescending {
		direction = "DESC"
	}
	return fmt.Sprintf("%s %s", renderColumn(dc, aliases, first.Table, first.Column), direction)
}

// compileCTEs emits a leading WITH list; each CTE is itself a nested
// PlannerOutput reduced through the same synthesizer.
func compileCTEs(dc *DatabaseContext, ctes []planner.CTE, opts Options) (string, error) {
	parts := make([]string, 0, len(ctes))
	for _, cte := range ctes {
		body, _, err := Synthesize(dc, &cte.Output, opts)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("%s AS (%s)", QuoteIdent(dc, cte.Name), body))
	}
	return "WITH " + strings.Join(parts, ", "), nil
}
