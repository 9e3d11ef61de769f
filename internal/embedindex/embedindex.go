// Package embedindex builds an in-memory vector store over table
// descriptors and serves the nearest-neighbor search C4 and C10 use to
// propose foreign-key candidates. The embedding provider itself is an
// external black box, reused from langchaingo's embeddings.Embedder.
package embedindex

import (
	"context"
	"math"
	"sort"

	"github.com/tmc/langchaingo/embeddings"

	"nlsql/internal/schema"
)

// Embedder is the external black-box embed(texts) -> vectors function.
type Embedder = embeddings.Embedder

// Hit is one search result: the backing table record and its score.
type Hit struct {
	Table *schema.Table
	Score float64
}

// document is one indexed table descriptor plus its vector.
type document struct {
	table   *schema.Table
	content string
	vector  []float32
}

// Index is a backend-agnostic, in-memory vector store. Tables are held
// by value (a copy of each Table record taken at Build time), never
// pointing back into the owning Schema, so the index and the schema it
// was built from can be garbage-collected independently.
type Index struct {
	embedder  Embedder
	documents []document
}

// Build constructs an Index over every table in s. Each document's
// content is deliberately minimal — "Table: <table_name>" — since
// appending descriptions was found to dilute the table-name signal.
func Build(ctx context.Context, embedder Embedder, s *schema.Schema) (*Index, error) {
	contents := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		contents[i] = "Table: " + t.TableName
	}

	vectors, err := embedder.EmbedDocuments(ctx, contents)
	if err != nil {
		return nil, err
	}

	idx := &Index{embedder: embedder, documents: make([]document, len(s.Tables))}
	for i, t := range s.Tables {
		rec := *t
		idx.documents[i] = document{table: &rec, content: contents[i], vector: vectors[i]}
	}
	return idx, nil
}

// Search returns the top-k (table, score) pairs for query_text, ranked
// with cosine similarity — higher is better. An empty index returns no hits.
func (idx *Index) Search(ctx context.Context, queryText string, k int) ([]Hit, error) {
	if len(idx.documents) == 0 || k <= 0 {
		return nil, nil
	}

	queryVec, err := idx.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, len(idx.documents))
	for i, d := range idx.documents {
		hits[i] = Hit{Table: d.table, Score: cosineSimilarity(queryVec, d.vector)}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
