// Package executor implements C8: running synthesized SQL against a
// single pooled connection, with an error-retry loop and an
// empty-result refinement loop.
package executor

import (
	"context"
	"regexp"
	"time"

	"nlsql/internal/adapter"
	"nlsql/internal/errs"
	"nlsql/internal/schema"
	"nlsql/internal/synth"
)

// CorrectionFunc sends a failed query, its error text, and the schema
// to the LM and returns a corrected query — the external black-box
// propose(prompt) -> string call, specialized for error correction.
type CorrectionFunc func(ctx context.Context, query, errorText string, s *schema.Schema) (string, error)

// RefinementFunc asks the LM to broaden an overly-restrictive query
// that returned zero rows.
type RefinementFunc func(ctx context.Context, query string, s *schema.Schema) (refinedQuery, reasoning string, err error)

// Config bounds the two retry loops.
type Config struct {
	MaxRetries     int
	MaxRefinements int
	DryRun         bool
}

// Executor drives a single request's execution, retry, and refinement loop.
type Executor struct {
	DB      adapter.DBAdapter
	Correct CorrectionFunc
	Refine  RefinementFunc
	Cfg     Config
}

// Result is the outcome of one Execute call.
type Result struct {
	JSON              string
	FinalQuery        string
	InitialQuery      string
	CorrectedQuery    string // last query that differed from the original, if any
	RetryCount        int
	RefinedCount      int
	ErrorHistory      []string
	CorrectionHistory []string
	RefinedQueries    []string
	RefinedReasoning  []string
	Warnings          []string
	LastAttemptTime   time.Time
	ErrorMessage      string // set on terminal failure
}

var invalidColumnRegex = regexp.MustCompile(`(?i)Invalid column name '([^']+)'`)

// Execute runs query (already synthesized, unwrapped SQL) against e.DB,
// driving the error-retry loop on failure and the empty-result
// refinement loop on an empty row set.
func (e *Executor) Execute(ctx context.Context, query string, s *schema.Schema, dc *synth.DatabaseContext, columnNames []string) (*Result, error) {
	res := &Result{InitialQuery: query, FinalQuery: query}
	current := query
	var lastInvalidColumn string

	for {
		res.LastAttemptTime = time.Now()

		if e.Cfg.DryRun {
			if err := e.DB.DryRunSQL(ctx, current); err != nil {
				if handled := e.handleFailure(ctx, res, current, err, &lastInvalidColumn, &current, s); !handled {
					return res, res.terminalError()
				}
				continue
			}
		}

		wrapped := synth.WrapForJSON(dc, current, columnNames)
		qr, err := e.DB.ExecuteQuery(ctx, wrapped)
		if err != nil {
			if handled := e.handleFailure(ctx, res, current, err, &lastInvalidColumn, &current, s); !handled {
				return res, res.terminalError()
			}
			continue
		}

		if qr.RowCount == 0 && res.RefinedCount < e.Cfg.MaxRefinements && e.Refine != nil {
			refined, reasoning, rerr := e.Refine(ctx, current, s)
			if rerr == nil && refined != "" && refined != current {
				res.RefinedQueries = append(res.RefinedQueries, current)
				res.RefinedReasoning = append(res.RefinedReasoning, reasoning)
				res.RefinedCount++
				current = refined
				continue
			}
		}

		res.FinalQuery = current
		if current != res.InitialQuery {
			res.CorrectedQuery = current
		}
		res.Warnings = CollectWarnings(qr)
		res.JSON = extractJSONPayload(qr)
		return res, nil
	}
}

// handleFailure runs one error-retry iteration. It returns false when
// the loop must terminate (retry budget exhausted or a rate-limit
// signal observed).
func (e *Executor) handleFailure(ctx context.Context, res *Result, current string, failure error, lastInvalidColumn *string, next *string, s *schema.Schema) bool {
	errText := failure.Error()

	if errs.IsRateLimit(failure) {
		res.ErrorMessage = errText
		res.FinalQuery = current
		return false
	}
	if res.RetryCount >= e.Cfg.MaxRetries {
		res.ErrorMessage = errText
		res.FinalQuery = current
		return false
	}

	res.ErrorHistory = append(res.ErrorHistory, errText)
	res.CorrectionHistory = append(res.CorrectionHistory, current)
	res.RetryCount++

	if m := invalidColumnRegex.FindStringSubmatch(errText); m != nil {
		col := m[1]
		if col == *lastInvalidColumn {
			// the LM repeated the same failure: apply the fast inline
			// removal heuristic instead of calling it again.
			*next = RemoveColumnFromQuery(current, col)
			return true
		}
		*lastInvalidColumn = col
	}

	corrected, cerr := e.Correct(ctx, current, errText, s)
	if cerr != nil {
		if errs.IsRateLimit(cerr) {
			res.ErrorMessage = cerr.Error()
		} else {
			res.ErrorMessage = errText
		}
		res.FinalQuery = current
		return false
	}
	if corrected == "" {
		res.ErrorMessage = errText
		res.FinalQuery = current
		return false
	}
	*next = corrected
	return true
}

func (r *Result) terminalError() error {
	return &errs.ExecutionError{Query: r.FinalQuery, Reason: r.ErrorMessage}
}

// RemoveColumnFromQuery is the inline fast path for repeated "Invalid
// column name 'X'" failures: strip the offending column from the query
// text directly rather than asking the LM again.
func RemoveColumnFromQuery(query, column string) string {
	patterns := []string{
		`,\s*\[` + regexp.QuoteMeta(column) + `\]`,
		`\[` + regexp.QuoteMeta(column) + `\]\s*,\s*`,
		`,\s*"` + regexp.QuoteMeta(column) + `"`,
		`"` + regexp.QuoteMeta(column) + `"\s*,\s*`,
		`,\s*` + regexp.QuoteMeta(column) + `\b`,
		`\b` + regexp.QuoteMeta(column) + `\s*,\s*`,
	}
	out := query
	for _, p := range patterns {
		re := regexp.MustCompile(p)
		if re.MatchString(out) {
			out = re.ReplaceAllString(out, "")
			break
		}
	}
	return out
}

// extractJSONPayload pulls the single row/column JSON payload the
// synthesizer's WrapForJSON query produces.
func extractJSONPayload(qr *adapter.QueryResult) string {
	if qr == nil || len(qr.Rows) == 0 {
		return "[]"
	}
	row := qr.Rows[0]
	for _, v := range row {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "[]"
}
