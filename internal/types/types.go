package types

import (
	"context"

	"github.com/jteo/copra/internal/models"
)

// Core interfaces
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type CompletionEngine interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	ExpandQuery(ctx context.Context, query string, n int) ([]string, error)
}

type KnowledgeStore interface {
	Query(ctx context.Context, embedding []float32, limit int) ([]models.RetrievedDocument, error)
	FetchByRefs(ctx context.Context, refs []string) ([]models.RetrievedDocument, error)
	Close()
}

type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]models.RetrievedDocument, error)
}

type Segmenter interface {
	Build(files []models.UploadedFile) []models.Segment
}
