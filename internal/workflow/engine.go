package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nlsql/internal/adapter"
	"nlsql/internal/auditlog"
	"nlsql/internal/errs"
	"nlsql/internal/executor"
	"nlsql/internal/planner"
	"nlsql/internal/schema"
	"nlsql/internal/synth"
)

// Config bounds the engine's retry/refinement budgets and carries the
// dialect context, mirroring the injected-configuration-record design
// note: no module-level singleton holds any of this.
type Config struct {
	MaxRetries     int
	MaxRefinements int
	Dialect        synth.Dialect
	DryRun         bool
}

// Checkpointer persists a State snapshot, keyed by ThreadID, after every
// node transition so a torn-down workflow can resume on the same thread.
type Checkpointer interface {
	Save(ctx context.Context, s State) error
	Load(ctx context.Context, threadID string) (State, bool, error)
}

// MemoryCheckpointer is the simplest Checkpointer: an in-process map.
// Adequate for a single long-lived server process; a durable backend
// (file, table) can implement the same interface.
type MemoryCheckpointer struct {
	snapshots map[string]State
}

func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{snapshots: make(map[string]State)}
}

func (c *MemoryCheckpointer) Save(ctx context.Context, s State) error {
	c.snapshots[s.ThreadID] = s.clone()
	return nil
}

func (c *MemoryCheckpointer) Load(ctx context.Context, threadID string) (State, bool, error) {
	s, ok := c.snapshots[threadID]
	return s, ok, nil
}

// Engine drives the analyze_schema -> generate_query -> execute_query ->
// (handle_error | refine_query)* -> cleanup -> end state machine.
type Engine struct {
	DB    adapter.DBAdapter
	Plan  *planner.Model
	Log   *auditlog.Logger
	Check Checkpointer
	Cfg   Config
}

// New constructs an Engine. requestID names the audit logger's request;
// the checkpoint thread identifier comes from Run, which generates one
// when it is given an empty threadID.
func New(db adapter.DBAdapter, plan *planner.Model, cfg Config, check Checkpointer, requestID string) *Engine {
	if check == nil {
		check = NewMemoryCheckpointer()
	}
	return &Engine{DB: db, Plan: plan, Log: auditlog.New(requestID), Check: check, Cfg: cfg}
}

// Run executes one request end to end, starting from analyze_schema
// unless threadID names a previously checkpointed, unfinished State.
func (e *Engine) Run(ctx context.Context, threadID, question string, prefs planner.Preferences) (State, error) {
	st := State{ThreadID: threadID, Question: question, Preferences: prefs}
	if threadID != "" {
		if resumed, ok, err := e.Check.Load(ctx, threadID); err == nil && ok && !resumed.Done {
			st = resumed
		}
	}
	if st.ThreadID == "" {
		st.ThreadID = uuid.NewString()
	}

	var err error
	for !st.Done {
		st, err = e.step(ctx, st)
		if serr := e.Check.Save(ctx, st); serr != nil {
			return st, serr
		}
		if err != nil {
			return st, err
		}
	}
	return st, nil
}

// step dispatches on LastStep, the tagged-sum equivalent of a
// name-keyed callable table.
func (e *Engine) step(ctx context.Context, st State) (State, error) {
	switch st.LastStep {
	case "":
		return e.analyzeSchema(ctx, st)
	case NodeAnalyzeSchema:
		return e.generateQuery(ctx, st)
	case NodeGenerateQuery:
		return e.executeQuery(ctx, st)
	case NodeExecuteQuery:
		return e.shouldContinue(ctx, st)
	case NodeHandleError:
		return e.executeQuery(ctx, st)
	case NodeRefineQuery:
		return e.executeQuery(ctx, st)
	case NodeCleanup:
		return e.end(ctx, st)
	default:
		return e.end(ctx, st)
	}
}

func (e *Engine) analyzeSchema(ctx context.Context, st State) (State, error) {
	s, err := schema.Introspect(ctx, e.DB)
	if err != nil {
		e.Log.Error("schema_introspection", err)
		st = st.WithStep(NodeCleanup)
		st.ErrorMessage = err.Error()
		return st, nil
	}
	st = st.WithStep(NodeAnalyzeSchema)
	st.Schema = s
	e.Log.Node(string(NodeAnalyzeSchema), map[string]interface{}{"table_count": len(s.Tables)})
	return st, nil
}

func (e *Engine) generateQuery(ctx context.Context, st State) (State, error) {
	out, _, err := e.Plan.Plan(ctx, st.Question, st.Schema, st.Preferences)
	if err != nil {
		e.Log.Error("planner", err)
		st = st.WithStep(NodeCleanup)
		st.ErrorMessage = err.Error()
		return st, nil
	}
	if out.Decision == planner.DecisionRefuse {
		st = st.WithStep(NodeCleanup)
		st.Result = out.Reasoning
		return st, nil
	}

	dc := synth.NewDatabaseContext(e.Cfg.Dialect)
	opts := synth.Options{SortOrder: st.Preferences.SortOrder, ResultLimit: st.Preferences.ResultLimit, TimeFilter: st.Preferences.TimeFilter}
	sql, cols, err := synth.Synthesize(dc, out, opts)
	if err != nil {
		e.Log.Error("sql_synthesis", err)
		st = st.WithStep(NodeCleanup)
		st.ErrorMessage = err.Error()
		return st, nil
	}

	st = st.WithStep(NodeGenerateQuery)
	st.PlannerOut = out
	st.Query = sql
	st.OutputColumns = cols
	e.Log.Node(string(NodeGenerateQuery), map[string]interface{}{"query": sql})
	return st, nil
}

func (e *Engine) executeQuery(ctx context.Context, st State) (State, error) {
	dc := synth.NewDatabaseContext(e.Cfg.Dialect)
	columnNames := st.OutputColumns

	ex := &executor.Executor{
		DB: e.DB,
		Correct: func(ctx context.Context, query, errorText string, s *schema.Schema) (string, error) {
			return e.Plan.Correct(ctx, query, errorText, s)
		},
		Refine: func(ctx context.Context, query string, s *schema.Schema) (string, string, error) {
			return e.Plan.Refine(ctx, query, s)
		},
		Cfg: executor.Config{MaxRetries: e.Cfg.MaxRetries - st.RetryCount, MaxRefinements: e.Cfg.MaxRefinements - st.RefinedCount, DryRun: e.Cfg.DryRun},
	}

	res, err := ex.Execute(ctx, st.Query, st.Schema, dc, columnNames)
	st = st.WithStep(NodeExecuteQuery)
	st.LastAttemptTime = time.Now()
	st.RetryCount += res.RetryCount
	st.RefinedCount += res.RefinedCount
	st.ErrorHistory = append(st.ErrorHistory, res.ErrorHistory...)
	st.CorrectionHistory = append(st.CorrectionHistory, res.CorrectionHistory...)
	st.RefinedQueries = append(st.RefinedQueries, res.RefinedQueries...)
	st.Query = res.FinalQuery

	if err != nil {
		st.ErrorMessage = res.ErrorMessage
		st.RateLimited = errs.IsRateLimit(err)
		for _, h := range st.ErrorHistory {
			e.Log.Retry(st.RetryCount, h)
		}
		return st, nil
	}

	st.Result = res.JSON
	st.ErrorMessage = ""
	st.RateLimited = false
	return st, nil
}

// shouldContinue implements the should_continue routing table.
func (e *Engine) shouldContinue(ctx context.Context, st State) (State, error) {
	if st.RetryCount >= e.Cfg.MaxRetries || st.RateLimited {
		return st.WithStep(NodeCleanup), nil
	}
	if st.ErrorMessage != "" {
		return st.WithStep(NodeHandleError), nil
	}
	if st.Result == "" && st.RefinedCount < e.Cfg.MaxRefinements {
		return st.WithStep(NodeRefineQuery), nil
	}
	return st.WithStep(NodeCleanup), nil
}

func (e *Engine) end(ctx context.Context, st State) (State, error) {
	closeErr := e.DB.Close()
	st.Done = true
	st = st.WithStep(NodeEnd)
	var finalErr error
	if st.ErrorMessage != "" {
		finalErr = &errs.ExecutionError{Query: st.Query, Reason: st.ErrorMessage}
	}
	if closeErr != nil && finalErr == nil {
		// cleanup tolerates an already-closed connection; surface any
		// other close failure only when the request otherwise succeeded.
		finalErr = closeErr
	}
	return st, finalErr
}

