// Package fkinfer implements C4: combining ID-column detection and the
// embedding index to propose foreign-key edges with confidence scores.
package fkinfer

import (
	"context"
	"math"

	"nlsql/internal/embedindex"
	"nlsql/internal/schema"
)

// Config controls the inference threshold.
type Config struct {
	ConfidenceThreshold float64 // default 0.6
	CandidateCount      int     // k, default 5
}

// DefaultConfig matches the defaults used across the pipeline.
func DefaultConfig() Config {
	return Config{ConfidenceThreshold: 0.6, CandidateCount: 5}
}

// Infer walks every table in s, appending inferred foreign keys for
// every detected ID-column not already covered by an existing FK.
// Existing FKs are never overwritten; inferred ones are appended after them.
func Infer(ctx context.Context, idx *embedindex.Index, s *schema.Schema, cfg Config) {
	for _, t := range s.Tables {
		existing := make(map[string]bool, len(t.ForeignKeys))
		for _, fk := range t.ForeignKeys {
			existing[fk.FKColumn] = true
		}

		for _, idCol := range schema.DetectIDColumns(t) {
			if existing[idCol.ColumnName] {
				continue
			}
			fk, ok := inferOne(ctx, idx, t, idCol, cfg)
			if !ok {
				continue
			}
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}
	}
}

// inferOne proposes a single inferred FK for one ID-column, or reports
// ok=false if no candidate cleared the confidence threshold.
func inferOne(ctx context.Context, idx *embedindex.Index, t *schema.Table, idCol schema.IDColumn, cfg Config) (schema.ForeignKey, bool) {
	k := cfg.CandidateCount
	if k <= 0 {
		k = 5
	}

	hits, err := idx.Search(ctx, "Table related to "+idCol.BaseName, k+1)
	if err != nil || len(hits) == 0 {
		return schema.ForeignKey{}, false
	}

	candidates := FilterSelfReference(hits, t.TableName, k)
	if len(candidates) == 0 {
		return schema.ForeignKey{}, false
	}

	top := candidates[0]
	if top.Score < cfg.ConfidenceThreshold {
		return schema.ForeignKey{}, false
	}

	confidence := round3(top.Score)
	return schema.ForeignKey{
		FKColumn:   idCol.ColumnName,
		PKTable:    top.Table.TableName,
		PKColumn:   schema.PKOf(top.Table),
		Inferred:   true,
		Confidence: &confidence,
	}, true
}

// FilterSelfReference removes the source table from the candidate list
// (a table is never its own inferred FK target) and trims to k.
func FilterSelfReference(hits []embedindex.Hit, sourceTable string, k int) []embedindex.Hit {
	out := make([]embedindex.Hit, 0, len(hits))
	for _, h := range hits {
		if h.Table.TableName == sourceTable {
			continue
		}
		out = append(out, h)
		if len(out) == k {
			break
		}
	}
	return out
}

// ScoreGap computes the distance between the top two candidate scores
// for C10's ambiguity check (hits sorted descending, so top - second):
// 1.0 if only one candidate, 0.0 if none.
func ScoreGap(hits []embedindex.Hit) float64 {
	switch len(hits) {
	case 0:
		return 0.0
	case 1:
		return 1.0
	default:
		return hits[0].Score - hits[1].Score
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
