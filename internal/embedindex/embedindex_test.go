package embedindex

import (
	"context"
	"testing"

	"nlsql/internal/schema"
)

// fakeEmbedder maps each text to a hand-assigned vector so similarity
// ordering is deterministic without a real embedding backend.
type fakeEmbedder struct {
	vectors map[string][]float32
	fallback []float32
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.lookup(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.lookup(text), nil
}

func (f *fakeEmbedder) lookup(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	return f.fallback
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	s := &schema.Schema{Tables: []*schema.Table{
		{TableName: "tb_Company", Columns: []schema.Column{{Name: "ID", DataType: "int"}}},
		{TableName: "tb_Order", Columns: []schema.Column{{Name: "ID", DataType: "int"}}},
	}}

	fe := &fakeEmbedder{
		vectors: map[string][]float32{
			"Table: tb_Company":         {1, 0},
			"Table: tb_Order":           {0, 1},
			"Table related to Company": {1, 0},
		},
	}

	idx, err := Build(context.Background(), fe, s)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	hits, err := idx.Search(context.Background(), "Table related to Company", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Table.TableName != "tb_Company" {
		t.Errorf("expected tb_Company top hit, got %s", hits[0].Table.TableName)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("expected descending score order, got %v then %v", hits[0].Score, hits[1].Score)
	}
}

func TestSearchOnEmptyIndex(t *testing.T) {
	s := &schema.Schema{}
	fe := &fakeEmbedder{vectors: map[string][]float32{}}
	idx, err := Build(context.Background(), fe, s)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	hits, err := idx.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits on empty index, got %d", len(hits))
	}
}
