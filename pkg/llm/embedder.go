package llm

import (
	"context"
	"fmt"
	"math"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// EmbedderConfig configures a text embedding backend.
type EmbedderConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// CorpusEmbedder embeds text with the persistent-corpus model. The same
// model is used for indexing and for querying, so vectors are directly
// comparable.
type CorpusEmbedder struct {
	config EmbedderConfig
	llm    *openai.LLM
}

func NewCorpusEmbedder(config EmbedderConfig) (*CorpusEmbedder, error) {
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}

	opts := []openai.Option{openai.WithEmbeddingModel(config.Model)}
	if config.APIKey != "" {
		opts = append(opts, openai.WithToken(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	emb, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize corpus embedder: %w", err)
	}

	return &CorpusEmbedder{config: config, llm: emb}, nil
}

func (e *CorpusEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (e *CorpusEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := e.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding error: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}
	return embeddings, nil
}

// SessionEmbedder embeds text with a smaller local model for the
// per-session ephemeral index. Sessions are created and destroyed
// continuously, so the per-session cost has to stay low; the precision
// loss is acceptable for a small user-supplied corpus. Vectors are
// L2-normalized so that distance behaves as cosine distance.
type SessionEmbedder struct {
	config EmbedderConfig
	llm    *ollama.LLM
}

func NewSessionEmbedder(config EmbedderConfig) (*SessionEmbedder, error) {
	if config.Model == "" {
		config.Model = "all-minilm:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	emb, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session embedder: %w", err)
	}

	return &SessionEmbedder{config: config, llm: emb}, nil
}

func (e *SessionEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (e *SessionEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := e.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding error: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}
	for _, v := range embeddings {
		Normalize(v)
	}
	return embeddings, nil
}

// Normalize scales v to unit length in place. The zero vector is left
// untouched.
func Normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
