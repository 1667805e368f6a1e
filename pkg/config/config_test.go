package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  model: "gpt-4"
  max_tokens: 1000
  temperature: 0

embedding:
  corpus_model: "text-embedding-3-small"
  session_model: "all-minilm:latest"
  ollama_url: "http://localhost:11434"

database:
  url: "postgres://localhost:5432/copra"
  table_name: "test_chunks"
  vector_dim: 768
  batch_size: 50

segmenter:
  chunk_size_words: 200
  overlap_words: 30

retriever:
  top_k: 5
  fetch_k: 25
  lambda: 0.6
  num_expansions: 3

labels:
  path: "testdata/label_map.json"

server:
  addr: ":9090"
`
	err := os.WriteFile(configPath, []byte(configData), 0o644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.0, config.LLM.Temperature)
	assert.Equal(t, "all-minilm:latest", config.Embedding.SessionModel)
	assert.Equal(t, "test_chunks", config.Database.TableName)
	assert.Equal(t, 768, config.Database.VectorDim)
	assert.Equal(t, 200, config.Segmenter.ChunkSizeWords)
	assert.Equal(t, 25, config.Retriever.FetchK)
	assert.Equal(t, "testdata/label_map.json", config.Labels.Path)
	assert.Equal(t, ":9090", config.Server.Addr)
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Nil(t, config)

	config, err = getDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", config.LLM.Model)
	assert.Equal(t, 220, config.Segmenter.ChunkSizeWords)
	assert.Equal(t, 40, config.Segmenter.OverlapWords)
	assert.Equal(t, 0.6, config.Retriever.Lambda)
	assert.Equal(t, "label_map.json", config.Labels.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		badField string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:     "overlap at least chunk size",
			mutate:   func(c *Config) { c.Segmenter.OverlapWords = c.Segmenter.ChunkSizeWords },
			badField: "segmenter.overlap_words",
		},
		{
			name:     "lambda out of range",
			mutate:   func(c *Config) { c.Retriever.Lambda = 1.5 },
			badField: "retriever.lambda",
		},
		{
			name:     "fetch_k below top_k",
			mutate:   func(c *Config) { c.Retriever.FetchK = 2 },
			badField: "retriever.fetch_k",
		},
		{
			name:     "missing label map path",
			mutate:   func(c *Config) { c.Labels.Path = "" },
			badField: "labels.path",
		},
		{
			name:     "temperature out of range",
			mutate:   func(c *Config) { c.LLM.Temperature = 3 },
			badField: "llm.temperature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := getDefaultConfig()
			require.NoError(t, err)
			tt.mutate(config)

			errs := config.Validate()
			if tt.badField == "" {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			found := false
			for _, e := range errs {
				if e.Field == tt.badField {
					found = true
				}
			}
			assert.True(t, found, "expected validation error on %s, got %v", tt.badField, errs)
		})
	}
}
