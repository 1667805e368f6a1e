package segmenter

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jteo/copra/internal/models"
)

type SegmenterConfig struct {
	ChunkSizeWords int
	OverlapWords   int
}

// Segmenter turns uploaded raw files into ordered, overlapping text
// segments with source and page metadata.
type Segmenter struct {
	config SegmenterConfig
}

func NewWithConfig(config SegmenterConfig) Segmenter {
	if config.ChunkSizeWords == 0 {
		config.ChunkSizeWords = 220
	}
	if config.OverlapWords == 0 {
		config.OverlapWords = 40
	}
	return Segmenter{config: config}
}

// pageText is one extractable unit of a file: a PDF page, or the whole
// blob for formats without a native page concept.
type pageText struct {
	text string
	page int
	pdf  bool
}

// Build converts uploaded files into segments. Extraction failures are
// treated as empty content for the failing unit and never abort the batch;
// files with no extractable content contribute zero segments.
func (s *Segmenter) Build(files []models.UploadedFile) []models.Segment {
	var segments []models.Segment

	for _, f := range files {
		var pages []pageText
		switch strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Name), ".")) {
		case "pdf":
			pages = readPDFPages(f.Data)
		case "docx":
			pages = wholeBlob(readDOCX(f.Data))
		default:
			// txt, md and unrecognized extensions are read as plain text.
			pages = wholeBlob(decodeText(f.Data))
		}

		for _, pt := range pages {
			chunks := ChunkWords(pt.text, s.config.ChunkSizeWords, s.config.OverlapWords)
			for ci, chunk := range chunks {
				page := pt.page
				if !pt.pdf {
					// Chunks act as pseudo-pages for paged citation.
					page = ci + 1
				}
				segments = append(segments, models.Segment{
					ID:   fmt.Sprintf("%s::p%d::c%d", f.Name, page, ci),
					Text: chunk,
					Metadata: map[string]interface{}{
						"source": f.Name,
						"page":   page,
					},
				})
			}
		}
	}

	return segments
}

func wholeBlob(text string) []pageText {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []pageText{{text: text, page: 1}}
}

// ChunkWords splits text into overlapping fixed-size word windows joined
// by single spaces. The window advances by size-overlap words and the
// final partial window is always kept, so content spanning a window
// boundary stays retrievable from at least one chunk. Empty text yields
// zero chunks.
func ChunkWords(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := size - overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + size
		upper := end
		if upper > len(words) {
			upper = len(words)
		}
		if chunk := strings.Join(words[start:upper], " "); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(words) {
			break
		}
	}
	return chunks
}

// decodeText reads bytes as UTF-8, falling back to a Latin-1
// reinterpretation for legacy encodings. Never fails.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}
