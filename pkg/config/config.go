package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
		APIKey      string  `yaml:"api_key"`
		BaseURL     string  `yaml:"base_url"`
	} `yaml:"llm"`

	Embedding struct {
		CorpusModel  string `yaml:"corpus_model"`
		SessionModel string `yaml:"session_model"`
		OllamaURL    string `yaml:"ollama_url"`
	} `yaml:"embedding"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`

	Segmenter struct {
		ChunkSizeWords int `yaml:"chunk_size_words"`
		OverlapWords   int `yaml:"overlap_words"`
	} `yaml:"segmenter"`

	Retriever struct {
		TopK          int     `yaml:"top_k"`
		FetchK        int     `yaml:"fetch_k"`
		Lambda        float64 `yaml:"lambda"`
		NumExpansions int     `yaml:"num_expansions"`
	} `yaml:"retriever"`

	Labels struct {
		Path string `yaml:"path"`
	} `yaml:"labels"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/copra/config.yaml"),
			"/etc/copra/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "gpt-4"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	// Temperature stays 0 unless set: grounded answering wants the most
	// deterministic completions the service offers.

	if config.Embedding.CorpusModel == "" {
		config.Embedding.CorpusModel = "text-embedding-3-small"
	}
	if config.Embedding.SessionModel == "" {
		config.Embedding.SessionModel = "all-minilm:latest"
	}
	if config.Embedding.OllamaURL == "" {
		config.Embedding.OllamaURL = "http://localhost:11434"
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "corpus_chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Segmenter.ChunkSizeWords == 0 {
		config.Segmenter.ChunkSizeWords = 220
	}
	if config.Segmenter.OverlapWords == 0 {
		config.Segmenter.OverlapWords = 40
	}

	if config.Retriever.TopK == 0 {
		config.Retriever.TopK = 5
	}
	if config.Retriever.FetchK == 0 {
		config.Retriever.FetchK = 20
	}
	if config.Retriever.Lambda == 0 {
		config.Retriever.Lambda = 0.6
	}
	if config.Retriever.NumExpansions == 0 {
		config.Retriever.NumExpansions = 3
	}

	if config.Labels.Path == "" {
		config.Labels.Path = "label_map.json"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
}

func mergeWithEnv(config *Config) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.OllamaURL = baseURL
	}
}
