package fkinfer

import (
	"context"
	"math"
	"testing"

	"nlsql/internal/embedindex"
	"nlsql/internal/schema"
)

type fakeEmbedder struct {
	byQuery map[string][]float32
	byDoc   map[string][]float32
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.byDoc[t]
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.byQuery[text], nil
}

func TestInferAppendsHighConfidenceFK(t *testing.T) {
	s := &schema.Schema{Tables: []*schema.Table{
		{TableName: "tb_Company", PrimaryKey: "ID", Columns: []schema.Column{{Name: "ID", DataType: "int"}}},
		{TableName: "tb_User", Columns: []schema.Column{
			{Name: "ID", DataType: "int"},
			{Name: "CompanyID", DataType: "int"},
		}},
	}}

	fe := &fakeEmbedder{
		byDoc: map[string][]float32{
			"Table: tb_Company": {1, 0},
			"Table: tb_User":    {0, 1},
		},
		byQuery: map[string][]float32{
			"Table related to Company": {1, 0},
		},
	}

	idx, err := embedindex.Build(context.Background(), fe, s)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	Infer(context.Background(), idx, s, DefaultConfig())

	user := s.TableByName("tb_User")
	var found *schema.ForeignKey
	for i := range user.ForeignKeys {
		if user.ForeignKeys[i].FKColumn == "CompanyID" {
			found = &user.ForeignKeys[i]
		}
	}
	if found == nil {
		t.Fatalf("expected inferred FK for CompanyID, got %v", user.ForeignKeys)
	}
	if found.PKTable != "tb_Company" || found.PKColumn != "ID" || !found.Inferred {
		t.Errorf("unexpected inferred FK: %+v", found)
	}
	if found.Confidence == nil || *found.Confidence < 0.6 {
		t.Errorf("expected confidence >= 0.6, got %v", found.Confidence)
	}
}

func TestInferSkipsExistingFK(t *testing.T) {
	confidence := 0.9
	s := &schema.Schema{Tables: []*schema.Table{
		{TableName: "tb_Company", PrimaryKey: "ID", Columns: []schema.Column{{Name: "ID", DataType: "int"}}},
		{TableName: "tb_User", Columns: []schema.Column{
			{Name: "CompanyID", DataType: "int"},
		}, ForeignKeys: []schema.ForeignKey{
			{FKColumn: "CompanyID", PKTable: "tb_Company", PKColumn: "ID", Inferred: false, Confidence: &confidence},
		}},
	}}

	fe := &fakeEmbedder{
		byDoc: map[string][]float32{
			"Table: tb_Company": {1, 0},
			"Table: tb_User":    {0, 1},
		},
	}
	idx, err := embedindex.Build(context.Background(), fe, s)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	Infer(context.Background(), idx, s, DefaultConfig())

	user := s.TableByName("tb_User")
	if len(user.ForeignKeys) != 1 {
		t.Fatalf("expected existing FK to remain unique, got %v", user.ForeignKeys)
	}
	if user.ForeignKeys[0].Inferred {
		t.Errorf("existing FK must never be overwritten with an inferred one")
	}
}

func TestFilterSelfReference(t *testing.T) {
	hits := []embedindex.Hit{
		{Table: &schema.Table{TableName: "tb_User"}, Score: 0.9},
		{Table: &schema.Table{TableName: "tb_Company"}, Score: 0.8},
	}
	out := FilterSelfReference(hits, "tb_User", 5)
	if len(out) != 1 || out[0].Table.TableName != "tb_Company" {
		t.Errorf("expected self-reference filtered out, got %v", out)
	}
}

func TestScoreGap(t *testing.T) {
	if g := ScoreGap(nil); g != 0.0 {
		t.Errorf("expected 0.0 for no candidates, got %v", g)
	}
	one := []embedindex.Hit{{Score: 0.5}}
	if g := ScoreGap(one); g != 1.0 {
		t.Errorf("expected 1.0 for single candidate, got %v", g)
	}
	two := []embedindex.Hit{{Score: 0.9}, {Score: 0.7}}
	if g := ScoreGap(two); math.Abs(g-0.2) > 1e-9 {
		t.Errorf("expected 0.2 gap, got %v", g)
	}
}
