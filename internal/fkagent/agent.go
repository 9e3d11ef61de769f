package fkagent

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"nlsql/internal/adapter"
	"nlsql/internal/auditlog"
	"nlsql/internal/embedindex"
	"nlsql/internal/fkinfer"
	"nlsql/internal/schema"
)

// Config bounds the agent's ambiguity threshold and candidate width.
type Config struct {
	AmbiguityThreshold float64 // default 0.15; gates auto_select vs request_decision
	CandidateCount     int     // k, default 5
}

// Interrupt is the descriptor the request_decision node emits when the
// workflow suspends for operator adjudication. The driver resumes with
// one of {1..5, p, s, q}.
type Interrupt struct {
	Row    *FKDecisionRow
	Prompt string
}

// Agent drives the interactive FK-mapping workflow. A vector index is
// constructed once per session by the caller and passed in, not stored
// in any persisted state, since it is not serializable.
type Agent struct {
	DB    adapter.DBAdapter
	Idx   *embedindex.Index
	Audit *AuditFile
	Cfg   Config
	Log   *auditlog.Logger

	pending *FKDecisionRow
}

// New constructs an Agent against an already-opened audit file and a
// session-scoped embedding index.
func New(db adapter.DBAdapter, idx *embedindex.Index, audit *AuditFile, cfg Config, requestID string) *Agent {
	return &Agent{DB: db, Idx: idx, Audit: audit, Cfg: cfg, Log: auditlog.New(requestID)}
}

// Initialize introspects the schema, detects every ID column, and
// pre-populates the audit file with one row per ID column; a column
// already covered by an existing foreign key gets a completed row
// (chosen_table [EXISTING], decision_type=existing). If the audit file already
// has rows, Initialize resumes without recreating it.
func (a *Agent) Initialize(ctx context.Context) (*schema.Schema, error) {
	s, err := schema.Introspect(ctx, a.DB)
	if err != nil {
		return nil, err
	}

	if len(a.Audit.Rows) > 0 {
		return s, nil
	}

	for _, t := range s.Tables {
		existing := make(map[string]schema.ForeignKey, len(t.ForeignKeys))
		for _, fk := range t.ForeignKeys {
			existing[fk.FKColumn] = fk
		}
		for _, idCol := range schema.DetectIDColumns(t) {
			row := &FKDecisionRow{
				TableName: t.TableName,
				FKColumn:  idCol.ColumnName,
				BaseName:  idCol.BaseName,
			}
			if fk, ok := existing[idCol.ColumnName]; ok {
				row.ChosenTable = TagExisting
				row.DecisionType = DecisionExisting
				row.Notes = fmt.Sprintf("existing FK -> %s.%s", fk.PKTable, fk.PKColumn)
			}
			a.Audit.Rows = append(a.Audit.Rows, row)
		}
	}
	if err := a.Audit.Save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Run advances the workflow until it either suspends for operator
// adjudication (returning a non-nil Interrupt) or completes (returning
// nil, nil — the caller should then call Finalize for statistics).
func (a *Agent) Run(ctx context.Context) (*Interrupt, error) {
	if a.pending != nil {
		return a.interruptFor(a.pending), nil
	}

	for {
		row, ok := a.Audit.FirstIncomplete()
		if !ok {
			return nil, nil
		}

		if !row.hasCandidates() {
			hits, err := a.findCandidates(ctx, row)
			if err != nil {
				return nil, err
			}
			gap := fkinfer.ScoreGap(hits)
			writeCandidates(row, hits)

			if gap >= a.Cfg.AmbiguityThreshold && len(hits) > 0 {
				a.autoSelect(row, hits[0])
				a.Log.FKDecision(row.TableName, row.FKColumn, string(DecisionAuto), hits[0].Score)
				if err := a.Audit.Save(); err != nil {
					return nil, err
				}
				continue
			}
			if err := a.Audit.Save(); err != nil {
				return nil, err
			}
		}

		a.pending = row
		return a.interruptFor(row), nil
	}
}

// findCandidates runs the embedding index search for the top-(k+1)
// hits and returns at most k of them, with the source table's own
// record filtered out.
func (a *Agent) findCandidates(ctx context.Context, row *FKDecisionRow) ([]embedindex.Hit, error) {
	k := a.Cfg.CandidateCount
	if k <= 0 {
		k = maxCandidates
	}
	hits, err := a.Idx.Search(ctx, "Table related to "+row.BaseName, k+1)
	if err != nil {
		return nil, err
	}
	return fkinfer.FilterSelfReference(hits, row.TableName, k), nil
}

func writeCandidates(row *FKDecisionRow, hits []embedindex.Hit) {
	for i := 0; i < maxCandidates; i++ {
		if i < len(hits) {
			row.Candidates[i] = Candidate{Table: hits[i].Table.TableName, Score: hits[i].Score}
		}
	}
}

func (a *Agent) autoSelect(row *FKDecisionRow, top embedindex.Hit) {
	row.ChosenTable = top.Table.TableName
	row.ChosenScore = top.Score
	row.DecisionType = DecisionAuto
	row.Timestamp = time.Now()
}

// interruptFor builds the suspend descriptor for an ambiguous row.
func (a *Agent) interruptFor(row *FKDecisionRow) *Interrupt {
	prompt := fmt.Sprintf("Ambiguous FK target for %s.%s (base name %q). Candidates:\n",
		row.TableName, row.FKColumn, row.BaseName)
	for i, c := range row.Candidates {
		if c.Table == "" {
			continue
		}
		prompt += fmt.Sprintf("  %d) %s (score %.3f)\n", i+1, c.Table, c.Score)
	}
	prompt += "Resume with 1-5 to pick a candidate, p to mark as primary key, s to skip, q to quit."
	return &Interrupt{Row: row, Prompt: prompt}
}

// Resume applies the operator's resume token to the currently suspended
// row. quit reports whether the operator asked to persist and exit; the
// driver should stop calling Run once quit is true.
func (a *Agent) Resume(ctx context.Context, token string) (quit bool, err error) {
	row := a.pending
	if row == nil {
		return false, fmt.Errorf("fkagent: Resume called with no pending interrupt")
	}

	switch token {
	case "q":
		a.pending = nil
		return true, nil
	case "s":
		row.DecisionType = DecisionSkipped
		row.ChosenTable = TagSkipped
		row.Notes = "skipped by operator"
		row.Timestamp = time.Now()
	case "p":
		row.DecisionType = DecisionSkipped
		row.ChosenTable = TagPrimaryKey
		row.Notes = "marked as primary key, not a foreign key"
		row.Timestamp = time.Now()
	default:
		n, convErr := strconv.Atoi(token)
		if convErr != nil || n < 1 || n > maxCandidates {
			return false, fmt.Errorf("fkagent: invalid resume token %q", token)
		}
		c := row.Candidates[n-1]
		if c.Table == "" {
			return false, fmt.Errorf("fkagent: no candidate at position %d", n)
		}
		row.ChosenTable = c.Table
		row.ChosenScore = c.Score
		row.DecisionType = DecisionManual
		row.Timestamp = time.Now()
	}

	a.Log.FKDecision(row.TableName, row.FKColumn, string(row.DecisionType), row.ChosenScore)
	a.pending = nil
	return false, a.Audit.Save()
}

// Stats summarizes the audit file for the finalize node.
type Stats struct {
	Total    int
	Auto     int
	Manual   int
	Existing int
	Skipped  int
}

// Finalize computes decision-type statistics across the full audit.
func (a *Agent) Finalize() Stats {
	var s Stats
	for _, row := range a.Audit.Rows {
		s.Total++
		switch row.DecisionType {
		case DecisionAuto:
			s.Auto++
		case DecisionManual:
			s.Manual++
		case DecisionExisting:
			s.Existing++
		case DecisionSkipped:
			s.Skipped++
		}
	}
	return s
}
