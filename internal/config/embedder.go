package config

import (
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewEmbedder constructs the langchaingo embeddings.Embedder that backs
// C3's vector index, per EmbeddingConfig.
func NewEmbedder(cfg EmbeddingConfig) (embeddings.Embedder, error) {
	llm, err := openai.New(
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.Token),
		openai.WithBaseURL(cfg.BaseURL),
	)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}
