package workflow

import (
	"context"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"nlsql/internal/adapter"
	"nlsql/internal/planner"
	"nlsql/internal/synth"
)

type fakeAdapter struct {
	tables     []string
	columns    map[string][]adapter.RawColumn
	pks        map[string]string
	fks        map[string][]adapter.RawForeignKey
	queryErr   error
	queryRows  []map[string]interface{}
	closeCalls int
}

func (f *fakeAdapter) Connect(ctx context.Context) error { return nil }
func (f *fakeAdapter) Close() error                       { f.closeCalls++; return nil }
func (f *fakeAdapter) ExecuteQuery(ctx context.Context, query string) (*adapter.QueryResult, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &adapter.QueryResult{RowCount: len(f.queryRows), Rows: f.queryRows}, nil
}
func (f *fakeAdapter) GetDatabaseType() string                                { return "fake" }
func (f *fakeAdapter) GetDatabaseVersion(ctx context.Context) (string, error) { return "1.0", nil }
func (f *fakeAdapter) DryRunSQL(ctx context.Context, sql string) error        { return nil }
func (f *fakeAdapter) ListTables(ctx context.Context) ([]string, error)       { return f.tables, nil }
func (f *fakeAdapter) GetColumns(ctx context.Context, table string) ([]adapter.RawColumn, error) {
	return f.columns[table], nil
}
func (f *fakeAdapter) GetPrimaryKey(ctx context.Context, table string) (string, error) {
	return f.pks[table], nil
}
func (f *fakeAdapter) GetForeignKeys(ctx context.Context, table string) ([]adapter.RawForeignKey, error) {
	return f.fks[table], nil
}

// fakeLLM satisfies llms.Model with a canned GenerateContent response, for
// exercising the workflow end to end without a live model provider.
type fakeLLM struct {
	response string
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.response}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return f.response, nil
}

func newFakeAdapterWithOneTable() *fakeAdapter {
	return &fakeAdapter{
		tables: []string{"tb_Widget"},
		columns: map[string][]adapter.RawColumn{
			"tb_Widget": {{Name: "ID", DataType: "int", IsNullable: false}},
		},
		pks: map[string]string{"tb_Widget": "ID"},
		fks: map[string][]adapter.RawForeignKey{},
	}
}

const plannerJSON = `{
  "decision": "proceed",
  "selections": [
    {"table": "tb_Widget", "columns": [{"table": "tb_Widget", "column": "ID", "role": "projection"}]}
  ]
}`

func TestRunHappyPath(t *testing.T) {
	fa := newFakeAdapterWithOneTable()
	fa.queryRows = []map[string]interface{}{{"json_result": `[{"ID":1}]`}}

	model := planner.NewModel(&fakeLLM{response: plannerJSON})
	eng := New(fa, model, Config{MaxRetries: 3, MaxRefinements: 3, Dialect: synth.SQLite}, nil, "req-1")

	st, err := eng.Run(context.Background(), "", "how many widgets?", planner.Preferences{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !st.Done {
		t.Fatal("expected workflow to reach done state")
	}
	if st.Result == "" {
		t.Error("expected a non-empty result payload")
	}
	if fa.closeCalls != 1 {
		t.Errorf("expected cleanup to close the connection exactly once, got %d", fa.closeCalls)
	}
}

func TestRunSurfacesSchemaIntrospectionFailure(t *testing.T) {
	fa := &fakeAdapter{tables: []string{"broken"}, columns: map[string][]adapter.RawColumn{}}
	model := planner.NewModel(&fakeLLM{response: plannerJSON})
	eng := New(fa, model, Config{MaxRetries: 3, MaxRefinements: 3, Dialect: synth.SQLite}, nil, "req-2")

	st, err := eng.Run(context.Background(), "", "anything", planner.Preferences{})
	if err == nil {
		t.Fatal("expected schema introspection failure to surface as a terminal error")
	}
	if !st.Done {
		t.Error("expected workflow to still reach done state on fatal error")
	}
	if fa.closeCalls != 1 {
		t.Errorf("expected cleanup to run even on a fatal error, got %d closes", fa.closeCalls)
	}
}

func TestCheckpointResume(t *testing.T) {
	check := NewMemoryCheckpointer()
	st := State{ThreadID: "thread-1", LastStep: NodeAnalyzeSchema}
	if err := check.Save(context.Background(), st); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	resumed, ok, err := check.Load(context.Background(), "thread-1")
	if err != nil || !ok {
		t.Fatalf("Load failed: ok=%v err=%v", ok, err)
	}
	if resumed.LastStep != NodeAnalyzeSchema {
		t.Errorf("expected resumed state to carry LastStep, got %v", resumed.LastStep)
	}
}

func TestShouldContinueRoutingTable(t *testing.T) {
	eng := &Engine{Cfg: Config{MaxRetries: 3, MaxRefinements: 3}}

	cases := []struct {
		name string
		in   State
		want Node
	}{
		{"retry ceiling", State{RetryCount: 3}, NodeCleanup},
		{"rate limited", State{RateLimited: true}, NodeCleanup},
		{"has error", State{ErrorMessage: "boom"}, NodeHandleError},
		{"empty result under budget", State{RefinedCount: 1}, NodeRefineQuery},
		{"success", State{Result: "[{}]"}, NodeCleanup},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out, err := eng.shouldContinue(context.Background(), c.in)
			if err != nil {
				t.Fatalf("shouldContinue returned error: %v", err)
			}
			if out.LastStep != c.want {
				t.Errorf("expected %v, got %v", c.want, out.LastStep)
			}
		})
	}
}

func TestStateInvariants(t *testing.T) {
	ok := State{RetryCount: 2, ErrorHistory: []string{"a", "b"}}
	if v := ok.Invariants(3, 3); len(v) != 0 {
		t.Errorf("expected no violations, got %v", v)
	}

	bad := State{RetryCount: 2, ErrorHistory: []string{"a"}}
	if v := bad.Invariants(3, 3); len(v) == 0 {
		t.Error("expected error_history/retry_count mismatch to be flagged")
	}
}
