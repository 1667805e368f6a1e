package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if _, err := url.Parse(c.Embedding.OllamaURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "embedding.ollama_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.Segmenter.ChunkSizeWords < 1 {
		errors = append(errors, ValidationError{
			Field:   "segmenter.chunk_size_words",
			Message: "chunk_size_words must be positive",
		})
	}

	if c.Segmenter.OverlapWords < 0 || c.Segmenter.OverlapWords >= c.Segmenter.ChunkSizeWords {
		errors = append(errors, ValidationError{
			Field:   "segmenter.overlap_words",
			Message: "overlap_words must be non-negative and less than chunk_size_words",
		})
	}

	if c.Retriever.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retriever.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Retriever.FetchK < c.Retriever.TopK {
		errors = append(errors, ValidationError{
			Field:   "retriever.fetch_k",
			Message: "fetch_k must be at least top_k",
		})
	}

	if c.Retriever.Lambda < 0 || c.Retriever.Lambda > 1 {
		errors = append(errors, ValidationError{
			Field:   "retriever.lambda",
			Message: "lambda must be between 0 and 1",
		})
	}

	if c.Retriever.NumExpansions < 0 {
		errors = append(errors, ValidationError{
			Field:   "retriever.num_expansions",
			Message: "num_expansions cannot be negative",
		})
	}

	if c.Labels.Path == "" {
		errors = append(errors, ValidationError{
			Field:   "labels.path",
			Message: "label map path is required",
		})
	}

	return errors
}
