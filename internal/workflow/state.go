// Package workflow implements C9: the checkpointable state machine
// connecting schema introspection, planning, synthesis, and execution.
package workflow

import (
	"time"

	"nlsql/internal/planner"
	"nlsql/internal/schema"
)

// Node identifies one of the workflow's graph nodes. Dispatch over node
// functions is a tagged sum rather than a name-keyed map of callables.
type Node string

const (
	NodeAnalyzeSchema Node = "analyze_schema"
	NodeGenerateQuery Node = "generate_query"
	NodeExecuteQuery  Node = "execute_query"
	NodeHandleError   Node = "handle_error"
	NodeRefineQuery   Node = "refine_query"
	NodeCleanup       Node = "cleanup"
	NodeEnd           Node = "end"
)

// State is the durable record threaded through the workflow. Every
// transition produces a new State value (via With* copy helpers) rather
// than mutating in place, so a checkpoint is always a complete,
// independently resumable snapshot.
type State struct {
	ThreadID string

	Question     string
	Schema       *schema.Schema
	Preferences  planner.Preferences
	PlannerOut   *planner.PlannerOutput

	Query         string
	OutputColumns []string
	Result        string

	LastStep Node

	ErrorHistory      []string
	CorrectionHistory []string
	RefinementHistory []string
	RefinedQueries    []string

	RetryCount   int
	RefinedCount int

	LastAttemptTime time.Time

	RateLimited  bool
	ErrorMessage string
	Done         bool
}

// clone returns a deep-enough copy of s so callers may append to slices
// on the copy without retroactively mutating a previously checkpointed
// State.
func (s State) clone() State {
	out := s
	out.ErrorHistory = append([]string(nil), s.ErrorHistory...)
	out.CorrectionHistory = append([]string(nil), s.CorrectionHistory...)
	out.RefinementHistory = append([]string(nil), s.RefinementHistory...)
	out.RefinedQueries = append([]string(nil), s.RefinedQueries...)
	out.OutputColumns = append([]string(nil), s.OutputColumns...)
	return out
}

// WithStep returns a copy of s advanced to node, matching the
// checkpoint-per-transition contract.
func (s State) WithStep(node Node) State {
	next := s.clone()
	next.LastStep = node
	return next
}

// Invariants reports the WorkflowState invariants spec.md requires:
// retry_count <= MaxRetries, refined_count <= MaxRefinements, and
// error_history.length == retry_count.
func (s State) Invariants(maxRetries, maxRefinements int) []string {
	var violations []string
	if s.RetryCount > maxRetries {
		violations = append(violations, "retry_count exceeds MAX_RETRIES")
	}
	if s.RefinedCount > maxRefinements {
		violations = append(violations, "refined_count exceeds MAX_REFINEMENTS")
	}
	if len(s.ErrorHistory) != s.RetryCount {
		violations = append(violations, "error_history length diverges from retry_count")
	}
	return violations
}
