// Package planner implements C6: calling the external LM to obtain a
// structured PlannerOutput from a question and a schema.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"nlsql/internal/errs"
	"nlsql/internal/schema"
)

// SortOrder is a user preference over the first projection column.
type SortOrder string

const (
	SortDefault    SortOrder = "Default"
	SortAscending  SortOrder = "Ascending"
	SortDescending SortOrder = "Descending"
)

// TimeFilter is a user preference that maps to a day-window WHERE clause.
type TimeFilter string

const (
	TimeAllTime      TimeFilter = "All Time"
	TimeLast30Days   TimeFilter = "Last 30 Days"
	TimeLast60Days   TimeFilter = "Last 60 Days"
	TimeLast90Days   TimeFilter = "Last 90 Days"
	TimeLastYear     TimeFilter = "Last Year"
)

// DayWindow maps a TimeFilter to its day count; ok is false for "All Time"
// (no filter applies).
func DayWindow(tf TimeFilter) (days int, ok bool) {
	switch tf {
	case TimeLast30Days:
		return 30, true
	case TimeLast60Days:
		return 60, true
	case TimeLast90Days:
		return 90, true
	case TimeLastYear:
		return 365, true
	default:
		return 0, false
	}
}

// Preferences are the user-supplied options threaded into the prompt.
type Preferences struct {
	SortOrder   SortOrder
	ResultLimit int
	TimeFilter  TimeFilter
}

// Decision is the planner's top-level verdict.
type Decision string

const (
	DecisionProceed Decision = "proceed"
	DecisionRefuse  Decision = "refuse"
)

// PlannerOutput is the contract between C6 and C7.
type PlannerOutput struct {
	Decision        Decision          `json:"decision"`
	Reasoning       string            `json:"reasoning,omitempty"`
	IntentSummary   string            `json:"intent_summary"`
	Selections      []Selection       `json:"selections"`
	JoinEdges       []JoinEdge        `json:"join_edges"`
	GlobalFilters   []FilterPredicate `json:"global_filters"`
	GroupBy         *GroupBy          `json:"group_by,omitempty"`
	WindowFunctions []WindowFunction  `json:"window_functions"`
	SubqueryFilters []SubqueryFilter  `json:"subquery_filters"`
	CTEs            []CTE             `json:"ctes"`
	OrderBy         []OrderBy         `json:"order_by"`
	Limit           *int              `json:"limit,omitempty"`
}

// ColumnRole is a column's purpose within a Selection.
type ColumnRole string

const (
	RoleProjection ColumnRole = "projection"
	RoleFilter     ColumnRole = "filter"
	RoleGroupBy    ColumnRole = "group_by"
	RoleAggregate  ColumnRole = "aggregate"
)

// SelectedColumn is one column entry within a Selection.
type SelectedColumn struct {
	Table  string     `json:"table"`
	Column string     `json:"column"`
	Role   ColumnRole `json:"role"`
}

// Selection is one table/alias participating in the query, with its
// projected/filtered columns and table-local filters.
type Selection struct {
	Table   string            `json:"table"`
	Alias   string            `json:"alias,omitempty"`
	Columns []SelectedColumn  `json:"columns"`
	Filters []FilterPredicate `json:"filters"`
}

// JoinType is the SQL join kind.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
)

// JoinEdge connects two selections.
type JoinEdge struct {
	FromTable  string   `json:"from_table"`
	FromColumn string   `json:"from_column"`
	ToTable    string   `json:"to_table"`
	ToColumn   string   `json:"to_column"`
	JoinType   JoinType `json:"join_type"`
}

// FilterOp is a comparison or predicate operator.
type FilterOp string

const (
	OpEq        FilterOp = "="
	OpNeq       FilterOp = "!="
	OpLt        FilterOp = "<"
	OpLte       FilterOp = "<="
	OpGt        FilterOp = ">"
	OpGte       FilterOp = ">="
	OpIn        FilterOp = "in"
	OpBetween   FilterOp = "between"
	OpLike      FilterOp = "like"
	OpILike     FilterOp = "ilike"
	OpIsNull    FilterOp = "is null"
	OpIsNotNull FilterOp = "is not null"
)

// FilterPredicate is one WHERE/HAVING clause term. Value may be a
// scalar, a list (for in/between), or a "Table.Column" string (a column
// reference, not a literal).
type FilterPredicate struct {
	Table  string      `json:"table"`
	Column string      `json:"column"`
	Op     FilterOp    `json:"op"`
	Value  interface{} `json:"value,omitempty"`
}

// Aggregate adds a projection entry computed with a SQL aggregate function.
type Aggregate struct {
	Function string `json:"function"` // SUM, COUNT, AVG, MIN, MAX
	Table    string `json:"table"`
	Column   string `json:"column"` // may be a SQL expression string
	Alias    string `json:"alias"`
}

// GroupBy carries the GROUP BY / aggregate / HAVING shape.
type GroupBy struct {
	GroupByColumns []SelectedColumn  `json:"group_by_columns"`
	Aggregates     []Aggregate       `json:"aggregates"`
	HavingFilters  []FilterPredicate `json:"having_filters"`
}

// WindowFunction is one OVER(...) projection entry.
type WindowFunction struct {
	Function    string   `json:"function"`
	PartitionBy []string `json:"partition_by"`
	OrderBy     []string `json:"order_by"`
	Alias       string   `json:"alias"`
}

// SubqueryFilter compiles to `outer.col OP (SELECT sub.col FROM sub WHERE ...)`.
type SubqueryFilter struct {
	OuterTable      string            `json:"outer_table"`
	OuterColumn     string            `json:"outer_column"`
	Op              FilterOp          `json:"op"`
	SubqueryTable   string            `json:"subquery_table"`
	SubqueryColumn  string            `json:"subquery_column"`
	SubqueryFilters []FilterPredicate `json:"subquery_filters"`
}

// CTE is a named, nested PlannerOutput reduced through the same synthesizer.
type CTE struct {
	Name   string        `json:"name"`
	Output PlannerOutput `json:"output"`
}

// OrderBy is one ORDER BY term.
type OrderBy struct {
	Table     string `json:"table"`
	Column    string `json:"column"`
	Direction string `json:"direction"` // ASC, DESC
}

// Model is the external black-box plan(question, schema) -> PlannerOutput
// call, implemented atop langchaingo's llms.Model.
type Model struct {
	llm llms.Model
}

// NewModel wraps an already-constructed langchaingo LLM client.
func NewModel(llm llms.Model) *Model {
	return &Model{llm: llm}
}

// Plan sends the schema, question, and preferences to the LM and
// validates the response against PlannerOutput.
func (m *Model) Plan(ctx context.Context, question string, s *schema.Schema, prefs Preferences) (*PlannerOutput, int, error) {
	prompt := BuildPrompt(question, s, prefs)

	response, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt)
	if err != nil {
		return nil, 0, &errs.PlannerError{Reason: "LM call failed", Err: err}
	}

	tokens := CountTokens(prompt) + CountTokens(response)

	out, err := ParseResponse(response)
	if err != nil {
		return nil, tokens, &errs.PlannerError{Reason: "response failed PlannerOutput validation", Err: err}
	}
	return out, tokens, nil
}

// Correct sends a failed query, its error text, and the schema to the
// LM and returns a corrected raw SQL string, for the executor's
// error-retry loop (C8).
func (m *Model) Correct(ctx context.Context, query, errorText string, s *schema.Schema) (string, error) {
	prompt := buildCorrectionPrompt(query, errorText, s)
	response, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt)
	if err != nil {
		return "", &errs.PlannerError{Reason: "LM correction call failed", Err: err}
	}
	return extractSQL(response), nil
}

// Refine asks the LM to broaden an overly-restrictive query that
// returned zero rows, for the executor's refinement loop (C8).
func (m *Model) Refine(ctx context.Context, query string, s *schema.Schema) (refined, reasoning string, err error) {
	prompt := buildRefinementPrompt(query, s)
	response, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt)
	if err != nil {
		return "", "", &errs.PlannerError{Reason: "LM refinement call failed", Err: err}
	}
	sql, reasoning := splitSQLAndReasoning(response)
	return sql, reasoning, nil
}

// splitSQLAndReasoning takes the query from the first non-empty line
// and the rationale from whatever follows.
func splitSQLAndReasoning(raw string) (sql, reasoning string) {
	lines := strings.SplitN(extractSQL(raw), "\n", 2)
	sql = strings.TrimSpace(lines[0])
	if len(lines) > 1 {
		reasoning = strings.TrimSpace(lines[1])
	}
	return sql, reasoning
}

func buildCorrectionPrompt(query, errorText string, s *schema.Schema) string {
	schemaJSON, _ := json.MarshalIndent(s, "", "  ")
	var sb strings.Builder
	sb.WriteString("The following SQL query failed to execute.\n\nSchema:\n")
	sb.Write(schemaJSON)
	sb.WriteString("\n\nQuery:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nError:\n")
	sb.WriteString(errorText)
	sb.WriteString("\n\nReturn only the corrected SQL query.")
	return sb.String()
}

func buildRefinementPrompt(query string, s *schema.Schema) string {
	schemaJSON, _ := json.MarshalIndent(s, "", "  ")
	var sb strings.Builder
	sb.WriteString("The following SQL query executed successfully but returned zero rows. ")
	sb.WriteString("Broaden it: relax WHERE clauses, use LIKE, drop overly restrictive predicates, ")
	sb.WriteString("introduce OR alternatives, or admit NULLs, while preserving intent.\n\nSchema:\n")
	sb.Write(schemaJSON)
	sb.WriteString("\n\nQuery:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nReturn the broadened SQL query, followed on a new line by a short rationale.")
	return sb.String()
}

// extractSQL strips markdown code fences the LM commonly wraps SQL in.
func extractSQL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```sql")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// BuildPrompt assembles the planner prompt: schema as JSON, the
// question, and the user preferences, instructing the LM to realize
// time_filter via an appropriate date/timestamp column.
func BuildPrompt(question string, s *schema.Schema, prefs Preferences) string {
	schemaJSON, _ := json.MarshalIndent(s, "", "  ")

	var sb strings.Builder
	sb.WriteString("You are a SQL planning assistant. Given a database schema and a question, ")
	sb.WriteString("produce a PlannerOutput JSON object describing the structured query intent.\n\n")
	sb.WriteString("Schema:\n")
	sb.Write(schemaJSON)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString(fmt.Sprintf("\n\nSort order preference: %s", prefs.SortOrder))
	sb.WriteString(fmt.Sprintf("\nResult limit preference: %d", prefs.ResultLimit))
	if days, ok := DayWindow(prefs.TimeFilter); ok {
		sb.WriteString(fmt.Sprintf("\nTime filter: restrict to the last %d days using an appropriate date/timestamp column.", days))
	} else {
		sb.WriteString("\nTime filter: none (all time).")
	}
	sb.WriteString("\n\nRespond with a single JSON object matching the PlannerOutput schema.")
	return sb.String()
}

// ParseResponse validates raw against the PlannerOutput contract.
func ParseResponse(raw string) (*PlannerOutput, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var out PlannerOutput
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, fmt.Errorf("invalid PlannerOutput JSON: %w", err)
	}
	if out.Decision == "" {
		return nil, fmt.Errorf("PlannerOutput missing decision")
	}
	if out.Decision == DecisionProceed && len(out.Selections) == 0 {
		return nil, fmt.Errorf("PlannerOutput decision=proceed but no selections")
	}
	return &out, nil
}
