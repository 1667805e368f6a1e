package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/jteo/copra/internal/models"
	"github.com/jteo/copra/pkg/assistant"
	cfgPkg "github.com/jteo/copra/pkg/config"
	"github.com/jteo/copra/pkg/llm"
	"github.com/jteo/copra/pkg/refs"
	"github.com/jteo/copra/pkg/retriever"
	"github.com/jteo/copra/pkg/segmenter"
	"github.com/jteo/copra/pkg/session"
	"github.com/jteo/copra/pkg/store"
)

func main() {
	godotenv.Load()

	var configPath string
	var topK int
	var strict bool

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.IntVar(&topK, "top-k", 8, "Top results from uploaded docs")
	flag.BoolVar(&strict, "strict", true, "Answer ONLY from uploaded docs when uploads are active")
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

	if err := run(config, topK, strict); err != nil {
		log.Fatal(err)
	}
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(config *cfgPkg.Config, topK int, strict bool) error {
	// The label map is required before any query can be served.
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

	sess := session.New(sessionEmbedder)
	defer sess.Clear()

	// The session's temporary storage must go away on every exit path.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		sess.Clear()
		os.Exit(1)
	}()

	color.Cyan("\nAsk about the PUB Codes of Practice (type 'help' for commands, 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	var uploads []models.UploadedFile
	useUploads := true

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
			return nil
		case strings.EqualFold(line, "help"):
			fmt.Println("  upload <file> [file...]  attach documents for this session")
			fmt.Println("  clear                    drop attached documents and the session index")
			fmt.Println("  context on|off           answer from uploads (on) or the corpus (off)")
			fmt.Println("  topk <n>                 results to pull from uploaded docs")
			fmt.Println("  strict on|off            refuse answers not grounded in uploads")
			fmt.Println("  exit                     quit")
			continue
		case strings.HasPrefix(strings.ToLower(line), "context "):
			useUploads = strings.EqualFold(strings.Fields(line)[1], "on")
			color.Green("uploaded-context mode: %v", useUploads)
			continue
		case strings.HasPrefix(strings.ToLower(line), "strict "):
			strict = strings.EqualFold(strings.Fields(line)[1], "on")
			color.Green("strict mode: %v", strict)
			continue
		case strings.HasPrefix(strings.ToLower(line), "topk "):
			n, err := strconv.Atoi(strings.Fields(line)[1])
			if err != nil || n < 1 {
				color.Red("topk needs a positive integer")
				continue
			}
			topK = n
			color.Green("top-k: %d", topK)
			continue
		case strings.EqualFold(line, "clear"):
			sess.Clear()
			uploads = nil
			color.Green("Temporary context cleared.")
			continue
		case strings.HasPrefix(strings.ToLower(line), "upload "):
			for _, path := range strings.Fields(line)[1:] {
				data, err := os.ReadFile(path)
				if err != nil {
					color.Red("cannot read %s: %v", path, err)
					continue
				}
				uploads = append(uploads, models.UploadedFile{
					Name: filepath.Base(path),
					Data: data,
				})
				color.Green("attached %s", filepath.Base(path))
			}
			continue
		}

		spinner := getSpinner(" Searching the codes of practice...")

		resp, err := qa.Answer(context.Background(), sess, assistant.AskRequest{
			Question:           line,
			Files:              uploads,
			UseUploadedContext: useUploads && len(uploads) > 0,
			TopK:               topK,
			Strict:             strict,
		})
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		assistantPrompt("\nAssistant: %s\n", resp.Answer)

		if len(resp.Excerpts) > 0 {
			color.Yellow("\nContext used (from uploaded docs):")
			for i, e := range resp.Excerpts {
				src := e.Metadata["source"]
				page := e.Metadata["page"]
				color.Yellow("  %d. %v p.%v", i+1, src, page)
			}
		}
	}

	return nil
}
