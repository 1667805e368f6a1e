package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"github.com/jteo/copra/internal/models"
	cfgPkg "github.com/jteo/copra/pkg/config"
	"github.com/jteo/copra/pkg/llm"
	"github.com/jteo/copra/pkg/refs"
	"github.com/jteo/copra/pkg/segmenter"
	"github.com/jteo/copra/pkg/store"
)

// ingest walks a directory of regulatory source documents (PDF, HTML,
// DOCX, plain text), segments them, tags every chunk with its normalized
// cross-references, embeds with the corpus model and upserts into the
// persistent knowledge index. The answering path never writes; this tool
// is the only producer of the corpus table.
func main() {
	godotenv.Load()

	var configPath, corpusDir string
	var embedRate float64

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&corpusDir, "corpus", "", "Directory of corpus source documents")
	flag.Float64Var(&embedRate, "embed-rate", 5.0, "Embedding calls per second")
	flag.Parse()

	if corpusDir == "" {
		log.Fatal("missing -corpus directory")
	}

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

	if err := run(config, corpusDir, embedRate); err != nil {
		log.Fatal(err)
	}
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(config *cfgPkg.Config, corpusDir string, embedRate float64) error {
	ctx := context.Background()

	embedder, err := llm.NewCorpusEmbedder(llm.EmbedderConfig{
		Model:  config.Embedding.CorpusModel,
		APIKey: config.LLM.APIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize corpus embedder: %v", err)
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

	files, err := collectSources(corpusDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no source documents found under %s", corpusDir)
	}
	color.Blue("\nIngesting %d corpus documents from %s\n", len(files), corpusDir)

	seg := segmenter.NewWithConfig(segmenter.SegmenterConfig{
		ChunkSizeWords: config.Segmenter.ChunkSizeWords,
		OverlapWords:   config.Segmenter.OverlapWords,
	})
	segments := seg.Build(files)
	if len(segments) == 0 {
		return fmt.Errorf("no extractable content in %s", corpusDir)
	}
	color.Green("✓ Segmented into %d chunks\n", len(segments))

	chunks := annotate(segments)

	// Keep the embedding service under its request rate limit.
	limiter := rate.NewLimiter(rate.Limit(embedRate), 1)
	bar := getProgressBar(len(chunks), "Embedding and storing...")

	batchSize := config.Database.BatchSize
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Content
		}

		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		embeddings, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch: %v", err)
		}
		for j := range batch {
			batch[j].Embedding = embeddings[j]
		}

		if err := vectorStore.Store(ctx, batch); err != nil {
			return fmt.Errorf("failed to store batch: %v", err)
		}
		bar.Add(len(batch))
	}

	color.Green("\n✓ Ingestion complete: %d chunks\n", len(chunks))
	return nil
}

// collectSources loads every corpus document under dir. HTML pages are
// reduced to visible text up front so the segmenter sees clean prose.
func collectSources(dir string) ([]models.UploadedFile, error) {
	var files []models.UploadedFile

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".pdf", ".docx", ".txt", ".md", ".html", ".htm":
		default:
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %v", path, err)
		}

		name := filepath.Base(path)
		if ext == ".html" || ext == ".htm" {
			text, err := extractHTMLText(data)
			if err != nil {
				// Unreadable pages contribute nothing, same as any other
				// extraction failure.
				return nil
			}
			name = strings.TrimSuffix(name, ext) + ".txt"
			data = []byte(text)
		}

		files = append(files, models.UploadedFile{Name: name, Data: data})
		return nil
	})
	return files, err
}

func extractHTMLText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, nav, header, footer").Remove()
	return doc.Find("body").Text(), nil
}

// annotate turns segments into corpus chunks, attaching the normalized
// cross-references found in each chunk's text. Annex, appendix and
// drawing references go into the annex_refs list; the first figure
// reference becomes the chunk's figure label.
func annotate(segments []models.Segment) []models.RetrievedDocument {
	chunks := make([]models.RetrievedDocument, 0, len(segments))
	for _, seg := range segments {
		page, _ := seg.Metadata["page"].(int)
		source, _ := seg.Metadata["source"].(string)

		chunk := models.RetrievedDocument{
			ID:      seg.ID,
			Source:  source,
			Page:    page,
			Content: seg.Text,
		}
		for _, ref := range refs.Extract(seg.Text) {
			if strings.HasPrefix(ref, "figure ") && chunk.FigureLabelNorm == "" {
				chunk.FigureLabelNorm = ref
				continue
			}
			chunk.AnnexRefs = append(chunk.AnnexRefs, ref)
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}
