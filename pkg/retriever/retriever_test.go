package retriever_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jteo/copra/internal/models"
	"github.com/jteo/copra/pkg/refs"
	"github.com/jteo/copra/pkg/retriever"
)

type fakeStore struct {
	semantic      []models.RetrievedDocument
	boost         []models.RetrievedDocument
	fetchCalls    int
	fetchedRefs   []string
	queriedLimits []int
}

func (f *fakeStore) Query(_ context.Context, _ []float32, limit int) ([]models.RetrievedDocument, error) {
	f.queriedLimits = append(f.queriedLimits, limit)
	return f.semantic, nil
}

func (f *fakeStore) FetchByRefs(_ context.Context, rs []string) ([]models.RetrievedDocument, error) {
	f.fetchCalls++
	f.fetchedRefs = rs
	return f.boost, nil
}

func (f *fakeStore) Close() {}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = f.Embed(ctx, texts[i])
	}
	return out, nil
}

type fakeChat struct {
	expansions []string
}

func (f *fakeChat) Complete(_ context.Context, _, _ string) (string, error) {
	return "", nil
}

func (f *fakeChat) ExpandQuery(_ context.Context, _ string, _ int) ([]string, error) {
	return f.expansions, nil
}

func doc(id string, emb ...float32) models.RetrievedDocument {
	return models.RetrievedDocument{ID: id, Source: id + ".pdf", Page: 1, Content: id, Embedding: emb}
}

func TestBoostPrecedesSemantic(t *testing.T) {
	store := &fakeStore{
		semantic: []models.RetrievedDocument{doc("s1", 1, 0, 0), doc("s2", 0, 1, 0)},
		boost:    []models.RetrievedDocument{doc("b1", 0, 0, 1)},
	}
	r := retriever.NewWithConfig(retriever.RetrieverConfig{TopK: 5}, store, fakeEmbedder{}, nil, refs.LabelMap{})

	docs, err := r.Retrieve(context.Background(), "What does Annex K require?")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "b1", docs[0].ID, "boosted matches come first")
	assert.Equal(t, "s1", docs[1].ID)
	assert.Equal(t, "s2", docs[2].ID)
}

func TestZeroReferenceQueryIsSemanticOnly(t *testing.T) {
	store := &fakeStore{
		semantic: []models.RetrievedDocument{doc("s1", 1, 0, 0), doc("s2", 0, 1, 0)},
		boost:    []models.RetrievedDocument{doc("b1", 0, 0, 1)},
	}
	r := retriever.NewWithConfig(retriever.RetrieverConfig{TopK: 5}, store, fakeEmbedder{}, nil, refs.LabelMap{})

	docs, err := r.Retrieve(context.Background(), "What is the minimum freeboard?")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "s1", docs[0].ID)
	assert.Equal(t, "s2", docs[1].ID)
	assert.Zero(t, store.fetchCalls, "no metadata fetch without references")
}

func TestReferencesAreMappedAndCombined(t *testing.T) {
	store := &fakeStore{}
	labels := refs.LabelMap{"appendix k": "annex k"}
	r := retriever.NewWithConfig(retriever.RetrieverConfig{TopK: 5}, store, fakeEmbedder{}, nil, labels)

	_, err := r.Retrieve(context.Background(), "Compare Appendix K with figure 3.2")
	require.NoError(t, err)

	assert.Equal(t, 1, store.fetchCalls, "all references share one filter query")
	assert.ElementsMatch(t, []string{"annex k", "figure 3.2"}, store.fetchedRefs)
}

func TestQueryExpansionDeduplicates(t *testing.T) {
	// Every sub-query returns the same hits; the candidate pool must not
	// contain duplicates, so MMR sees each document once.
	store := &fakeStore{
		semantic: []models.RetrievedDocument{doc("s1", 1, 0, 0), doc("s2", 0, 1, 0)},
	}
	chat := &fakeChat{expansions: []string{"variant one", "variant two"}}
	r := retriever.NewWithConfig(retriever.RetrieverConfig{TopK: 5, NumExpansions: 2}, store, fakeEmbedder{}, chat, refs.LabelMap{})

	docs, err := r.Retrieve(context.Background(), "gradient requirements")
	require.NoError(t, err)
	assert.Len(t, store.queriedLimits, 3, "one store query per sub-query")
	assert.Len(t, docs, 2, "duplicate hits across sub-queries collapse")
}

func TestMMRPrefersDiverseCandidates(t *testing.T) {
	// s1 and s2 point the same way as the query; s3 is orthogonal. With
	// more candidates than TopK, MMR should keep the most relevant
	// document and then prefer the diverse one over the near-duplicate.
	store := &fakeStore{
		semantic: []models.RetrievedDocument{
			doc("s1", 1, 0, 0),
			doc("s2", 0.99, 0.1, 0),
			doc("s3", 0, 1, 0),
		},
	}
	r := retriever.NewWithConfig(retriever.RetrieverConfig{TopK: 2, Lambda: 0.4}, store, fakeEmbedder{}, nil, refs.LabelMap{})

	docs, err := r.Retrieve(context.Background(), "setback distances")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "s1", docs[0].ID)
	assert.Equal(t, "s3", docs[1].ID, "near-duplicate s2 loses to diverse s3")
}
