// Package fkagent implements C10: a long-running, human-in-the-loop
// variant of C4 that persists every foreign-key decision to a resumable
// audit file and suspends for operator adjudication on ambiguous cases.
package fkagent

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// DecisionType is the outcome recorded for one audit row.
type DecisionType string

const (
	DecisionAuto     DecisionType = "auto"
	DecisionManual   DecisionType = "manual"
	DecisionExisting DecisionType = "existing"
	DecisionSkipped  DecisionType = "skipped"
)

// Sentinel chosen_table markers for rows that resolve to something
// other than a concrete foreign table, following the same bracketed-tag
// convention used for existing foreign keys.
const (
	TagExisting   = "[EXISTING]"
	TagSkipped    = "[SKIPPED]"
	TagPrimaryKey = "[PRIMARY_KEY]"
)

const maxCandidates = 5

// Candidate is one embedding-search hit surfaced for a row.
type Candidate struct {
	Table string
	Score float64
}

// FKDecisionRow is one audit record: one detected ID-column, its top
// candidates, and the decision ultimately recorded for it.
type FKDecisionRow struct {
	TableName  string
	FKColumn   string
	BaseName   string
	Candidates [maxCandidates]Candidate

	ChosenTable  string
	ChosenScore  float64
	DecisionType DecisionType
	Timestamp    time.Time
	Notes        string
}

// Incomplete reports whether this row still awaits a decision.
func (r *FKDecisionRow) Incomplete() bool {
	return r.ChosenTable == ""
}

// hasCandidates reports whether find_candidates already ran for this row.
func (r *FKDecisionRow) hasCandidates() bool {
	return r.Candidates[0].Table != ""
}

var auditHeader = []string{
	"table_name", "fk_column", "base_name",
	"candidate_1", "score_1", "candidate_2", "score_2",
	"candidate_3", "score_3", "candidate_4", "score_4",
	"candidate_5", "score_5",
	"chosen_table", "chosen_score", "decision_type", "timestamp", "notes",
}

// AuditFile is the single-writer, resumable tabular log described in
// spec.md's external-interfaces section. Every Save is a full rewrite;
// the workflow is the only writer.
type AuditFile struct {
	Path string
	Rows []*FKDecisionRow
}

// OpenAuditFile loads path if it exists, or returns an empty AuditFile
// ready for Initialize to populate. A missing file is not an error.
func OpenAuditFile(path string) (*AuditFile, error) {
	a := &AuditFile{Path: path}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening audit file %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing audit file %s: %w", path, err)
	}
	if len(records) == 0 {
		return a, nil
	}

	for _, rec := range records[1:] { // skip header
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("parsing audit row in %s: %w", path, err)
		}
		a.Rows = append(a.Rows, row)
	}
	return a, nil
}

// Save rewrites the entire audit file from the in-memory rows.
func (a *AuditFile) Save() error {
	f, err := os.Create(a.Path)
	if err != nil {
		return fmt.Errorf("creating audit file %s: %w", a.Path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(auditHeader); err != nil {
		return err
	}
	for _, row := range a.Rows {
		if err := w.Write(rowToRecord(row)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// FirstIncomplete scans for the first row whose chosen_table is empty.
func (a *AuditFile) FirstIncomplete() (*FKDecisionRow, bool) {
	for _, row := range a.Rows {
		if row.Incomplete() {
			return row, true
		}
	}
	return nil, false
}

func parseRow(rec []string) (*FKDecisionRow, error) {
	if len(rec) != len(auditHeader) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(auditHeader), len(rec))
	}
	row := &FKDecisionRow{
		TableName: rec[0],
		FKColumn:  rec[1],
		BaseName:  rec[2],
	}
	for i := 0; i < maxCandidates; i++ {
		table := rec[3+i*2]
		scoreStr := rec[4+i*2]
		if table == "" {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid score for candidate %d: %w", i+1, err)
		}
		row.Candidates[i] = Candidate{Table: table, Score: score}
	}
	row.ChosenTable = rec[13]
	if rec[14] != "" {
		score, err := strconv.ParseFloat(rec[14], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chosen_score: %w", err)
		}
		row.ChosenScore = score
	}
	row.DecisionType = DecisionType(rec[15])
	if rec[16] != "" {
		ts, err := time.Parse(time.RFC3339, rec[16])
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp: %w", err)
		}
		row.Timestamp = ts
	}
	row.Notes = rec[17]
	return row, nil
}

func rowToRecord(row *FKDecisionRow) []string {
	rec := make([]string, len(auditHeader))
	rec[0] = row.TableName
	rec[1] = row.FKColumn
	rec[2] = row.BaseName
	for i := 0; i < maxCandidates; i++ {
		c := row.Candidates[i]
		if c.Table == "" {
			rec[3+i*2] = ""
			rec[4+i*2] = ""
			continue
		}
		rec[3+i*2] = c.Table
		rec[4+i*2] = strconv.FormatFloat(c.Score, 'f', -1, 64)
	}
	rec[13] = row.ChosenTable
	if row.ChosenTable != "" {
		rec[14] = strconv.FormatFloat(row.ChosenScore, 'f', -1, 64)
	}
	rec[15] = string(row.DecisionType)
	if !row.Timestamp.IsZero() {
		rec[16] = row.Timestamp.Format(time.RFC3339)
	}
	rec[17] = row.Notes
	return rec
}
