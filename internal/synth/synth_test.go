package synth

import (
	"strings"
	"testing"

	"nlsql/internal/planner"
)

func TestBitEquality(t *testing.T) {
	dc := NewDatabaseContext(TSQL)
	out := &planner.PlannerOutput{
		Decision: planner.DecisionProceed,
		Selections: []planner.Selection{
			{
				Table:   "tb_Test",
				Columns: []planner.SelectedColumn{{Table: "tb_Test", Column: "ID", Role: planner.RoleProjection}},
				Filters: []planner.FilterPredicate{{Table: "tb_Test", Column: "IsDeleted", Op: planner.OpEq, Value: 0}},
			},
		},
	}
	sql, _, err := Synthesize(dc, out, Options{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !strings.Contains(sql, "[IsDeleted] = 0") {
		t.Errorf("expected unquoted 0, got: %s", sql)
	}
	if strings.Contains(sql, "'0'") {
		t.Errorf("BIT value must never be quoted: %s", sql)
	}
}

func TestDateRangeTSQL(t *testing.T) {
	dc := NewDatabaseContext(TSQL)
	out := &planner.PlannerOutput{
		Decision: planner.DecisionProceed,
		Selections: []planner.Selection{
			{
				Table:   "tb_Test",
				Columns: []planner.SelectedColumn{{Table: "tb_Test", Column: "ID", Role: planner.RoleProjection}},
				Filters: []planner.FilterPredicate{{Table: "tb_Test", Column: "CreatedOn", Op: planner.OpGte, Value: "2025-10-01"}},
			},
		},
	}
	sql, _, err := Synthesize(dc, out, Options{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !strings.Contains(sql, "CAST('2025-10-01' AS DATE)") {
		t.Errorf("expected CAST(...AS DATE), got: %s", sql)
	}
}

func TestTimeWindowTSQLLast30Days(t *testing.T) {
	dc := NewDatabaseContext(TSQL)
	out := &planner.PlannerOutput{
		Decision: planner.DecisionProceed,
		Selections: []planner.Selection{
			{Table: "tb_User", Columns: []planner.SelectedColumn{
				{Table: "tb_User", Column: "ID", Role: planner.RoleProjection},
				{Table: "tb_User", Column: "LoginDate", Role: planner.RoleProjection},
			}},
		},
	}
	sql, _, err := Synthesize(dc, out, Options{TimeFilter: planner.TimeLast30Days})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !strings.Contains(sql, "DATEADD(day, -30, GETDATE())") {
		t.Errorf("expected unquoted DATEADD interval token, got: %s", sql)
	}
}

func TestReservedWordIdentifier(t *testing.T) {
	dc := NewDatabaseContext(TSQL)
	out := &planner.PlannerOutput{
		Decision: planner.DecisionProceed,
		Selections: []planner.Selection{
			{Table: "tb_Test", Columns: []planner.SelectedColumn{{Table: "tb_Test", Column: "Index", Role: planner.RoleProjection}}},
		},
	}
	sql, _, err := Synthesize(dc, out, Options{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !strings.Contains(sql, "[Index]") {
		t.Errorf("expected bracket-quoted reserved word, got: %s", sql)
	}
}

func TestOrphanedFilterColumnVisible(t *testing.T) {
	dc := NewDatabaseContext(SQLite)
	out := &planner.PlannerOutput{
		Decision: planner.DecisionProceed,
		Selections: []planner.Selection{
			{Table: "tb_Tag", Columns: []planner.SelectedColumn{
				{Table: "tb_Tag", Column: "ID", Role: planner.RoleProjection},
				{Table: "tb_Tag", Column: "TagName", Role: planner.RoleFilter},
			}},
		},
	}
	sql, _, err := Synthesize(dc, out, Options{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !strings.Contains(sql, "TagName") {
		t.Errorf("expected orphaned filter column to remain visible in SELECT, got: %s", sql)
	}
}

func TestInWithNull(t *testing.T) {
	dc := NewDatabaseContext(SQLite)
	out := &planner.PlannerOutput{
		Decision: planner.DecisionProceed,
		Selections: []planner.Selection{
			{
				Table:   "tb_Test",
				Columns: []planner.SelectedColumn{{Table: "tb_Test", Column: "ID", Role: planner.RoleProjection}},
				Filters: []planner.FilterPredicate{{Table: "tb_Test", Column: "Status", Op: planner.OpIn, Value: []interface{}{0.0, nil}}},
			},
		},
	}
	sql, _, err := Synthesize(dc, out, Options{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !strings.Contains(sql, "IN (0)") || !strings.Contains(sql, "IS NULL") || !strings.Contains(sql, " OR ") {
		t.Errorf("expected IN (...) OR IS NULL, got: %s", sql)
	}
}

func TestQuotedFunctionRecovery(t *testing.T) {
	dc := NewDatabaseContext(TSQL)
	out := &planner.PlannerOutput{
		Decision: planner.DecisionProceed,
		Selections: []planner.Selection{
			{
				Table:   "tb_Test",
				Columns: []planner.SelectedColumn{{Table: "tb_Test", Column: "ID", Role: planner.RoleProjection}},
				Filters: []planner.FilterPredicate{{Table: "tb_Test", Column: "LastSeen", Op: planner.OpGte, Value: "'DATEADD(DAY, -60, GETDATE())'"}},
			},
		},
	}
	sql, _, err := Synthesize(dc, out, Options{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !strings.Contains(sql, "DATEADD(DAY, -60, GETDATE())") {
		t.Errorf("expected unquoted function, got: %s", sql)
	}
	if strings.Contains(sql, "'DATEADD") {
		t.Errorf("function text should not remain quoted: %s", sql)
	}
}

func TestInferTypeZeroAndOneAsNumber(t *testing.T) {
	// InferType classifies the BIT-style values "0" and "1" as numbers.
	if InferType("0") != LitNumber {
		t.Errorf("expected \"0\" to infer as number")
	}
	if InferType("1") != LitNumber {
		t.Errorf("expected \"1\" to infer as number")
	}
}

func TestInferTypeBoolean(t *testing.T) {
	if InferType(true) != LitBoolean {
		t.Errorf("expected bool true to infer as boolean")
	}
	if InferType("true") != LitBoolean {
		t.Errorf("expected string true to infer as boolean")
	}
}

func TestWrapForJSONSQLite(t *testing.T) {
	dc := NewDatabaseContext(SQLite)
	wrapped := WrapForJSON(dc, "SELECT \"t\".\"ID\" FROM \"t\"", []string{"ID"})
	if !strings.Contains(wrapped, "json_group_array(json_object(") {
		t.Errorf("expected sqlite json wrapping, got: %s", wrapped)
	}
}

func TestWrapForJSONTSQL(t *testing.T) {
	dc := NewDatabaseContext(TSQL)
	wrapped := WrapForJSON(dc, "SELECT [t].[ID] FROM [t]", []string{"ID"})
	if !strings.Contains(wrapped, "FOR JSON AUTO") {
		t.Errorf("expected FOR JSON AUTO, got: %s", wrapped)
	}
}
