package session

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jteo/copra/internal/models"
	"github.com/jteo/copra/internal/types"
	"github.com/jteo/copra/pkg/llm"
)

// EphemeralIndex is a session-lifetime vector collection backed by a
// throwaway storage directory. It embeds segments with the session-local
// model on insert and answers nearest-neighbour queries by brute-force
// cosine distance; uploaded corpora are small enough that an
// approximate-neighbour structure would buy nothing. Add, Query and Clear
// must not run concurrently on the same index.
type EphemeralIndex struct {
	mu       sync.RWMutex
	dir      string
	embedder types.Embedder
	ids      map[string]int
	entries  []entry
}

type entry struct {
	ID        string
	Text      string
	Metadata  map[string]interface{}
	Embedding []float32
}

// NewEphemeralIndex creates the backing storage directory and an empty
// collection.
func NewEphemeralIndex(embedder types.Embedder) (*EphemeralIndex, error) {
	dir, err := os.MkdirTemp("", "copra_session_")
	if err != nil {
		return nil, fmt.Errorf("creating session storage: %w", err)
	}
	return &EphemeralIndex{
		dir:      dir,
		embedder: embedder,
		ids:      make(map[string]int),
	}, nil
}

// Dir returns the backing storage directory, or "" after Clear.
func (ix *EphemeralIndex) Dir() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dir
}

// Add embeds each segment's text and upserts (id, embedding, text,
// metadata) into the collection. A colliding ID replaces the earlier
// entry. Embedding failures propagate.
func (ix *EphemeralIndex) Add(ctx context.Context, segments []models.Segment) error {
	if len(segments) == 0 {
		return nil
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	embeddings, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for i, seg := range segments {
		// Unit-length vectors make dot products cosine similarities.
		llm.Normalize(embeddings[i])
		e := entry{
			ID:        seg.ID,
			Text:      seg.Text,
			Metadata:  seg.Metadata,
			Embedding: embeddings[i],
		}
		if pos, ok := ix.ids[seg.ID]; ok {
			ix.entries[pos] = e
		} else {
			ix.ids[seg.ID] = len(ix.entries)
			ix.entries = append(ix.entries, e)
		}
	}

	return ix.snapshot()
}

// Query embeds text with the same model used at insert time and returns
// the topK nearest entries ordered by increasing cosine distance.
func (ix *EphemeralIndex) Query(ctx context.Context, text string, topK int) ([]models.Excerpt, error) {
	if topK <= 0 {
		topK = 8
	}

	queryEmbedding, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	llm.Normalize(queryEmbedding)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	type scored struct {
		idx      int
		distance float64
	}
	results := make([]scored, 0, len(ix.entries))
	for i := range ix.entries {
		results = append(results, scored{
			idx:      i,
			distance: 1 - dot(ix.entries[i].Embedding, queryEmbedding),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].distance < results[j].distance
	})
	if topK < len(results) {
		results = results[:topK]
	}

	excerpts := make([]models.Excerpt, 0, len(results))
	for _, r := range results {
		e := ix.entries[r.idx]
		excerpts = append(excerpts, models.Excerpt{
			Text:     e.Text,
			Metadata: e.Metadata,
			Distance: r.distance,
		})
	}
	return excerpts, nil
}

// Clear removes the backing storage directory and drops the collection.
// Safe to call repeatedly; clearing an already-cleared index is a no-op.
func (ix *EphemeralIndex) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dir != "" {
		os.RemoveAll(ix.dir)
		ix.dir = ""
	}
	ix.entries = nil
	ix.ids = make(map[string]int)
}

// snapshot persists the collection into the storage directory so the
// directory genuinely backs the index. Caller holds the write lock.
func (ix *EphemeralIndex) snapshot() error {
	if ix.dir == "" {
		return nil
	}
	f, err := os.Create(filepath.Join(ix.dir, "collection.gob"))
	if err != nil {
		return fmt.Errorf("writing session collection: %w", err)
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(ix.entries)
}

func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
