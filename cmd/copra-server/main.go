package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/jteo/copra/pkg/assistant"
	cfgPkg "github.com/jteo/copra/pkg/config"
	"github.com/jteo/copra/pkg/llm"
	"github.com/jteo/copra/pkg/refs"
	"github.com/jteo/copra/pkg/retriever"
	"github.com/jteo/copra/pkg/segmenter"
	"github.com/jteo/copra/pkg/store"
	"github.com/jteo/copra/server"
)

func main() {
	godotenv.Load()

	var configPath, addr string

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides config)")
	flag.Parse()

	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		os.Exit(1)
	}
	if addr == "" {
		addr = config.Server.Addr
	}

	if err := run(config, addr); err != nil {
		log.Fatal(err)
	}
}

func run(config *cfgPkg.Config, addr string) error {
	labels, err := refs.LoadLabelMap(config.Labels.Path)
	if err != nil {
		return fmt.Errorf("label map: %v", err)
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       config.LLM.Model,
		MaxTokens:   config.LLM.MaxTokens,
		Temperature: config.LLM.Temperature,
		APIKey:      config.LLM.APIKey,
		BaseURL:     config.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	corpusEmbedder, err := llm.NewCorpusEmbedder(llm.EmbedderConfig{
		Model:  config.Embedding.CorpusModel,
		APIKey: config.LLM.APIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize corpus embedder: %v", err)
	}

	sessionEmbedder, err := llm.NewSessionEmbedder(llm.EmbedderConfig{
		Model:   config.Embedding.SessionModel,
		BaseURL: config.Embedding.OllamaURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session embedder: %v", err)
	}

	vectorStore, err := store.NewWithConfig(store.VectorStoreConfig{
		ConnString: config.Database.URL,
		TableName:  config.Database.TableName,
		VectorDim:  config.Database.VectorDim,
		BatchSize:  config.Database.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	annexRetriever := retriever.NewWithConfig(retriever.RetrieverConfig{
		TopK:          config.Retriever.TopK,
		FetchK:        config.Retriever.FetchK,
		Lambda:        config.Retriever.Lambda,
		NumExpansions: config.Retriever.NumExpansions,
	}, vectorStore, corpusEmbedder, chatEngine, labels)

	seg := segmenter.NewWithConfig(segmenter.SegmenterConfig{
		ChunkSizeWords: config.Segmenter.ChunkSizeWords,
		OverlapWords:   config.Segmenter.OverlapWords,
	})

	qa := assistant.New(annexRetriever, chatEngine, &seg)

	srv := server.New(qa, sessionEmbedder)
	defer srv.Close()

	// Session temp directories must go away even on a signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		srv.Close()
		vectorStore.Close()
		os.Exit(1)
	}()

	log.Printf("Starting server on %s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
