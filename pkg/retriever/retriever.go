package retriever

import (
	"context"

	"github.com/jteo/copra/internal/models"
	"github.com/jteo/copra/internal/types"
	"github.com/jteo/copra/pkg/refs"
)

type RetrieverConfig struct {
	TopK          int     // final semantic result count
	FetchK        int     // candidate pool size per sub-query
	Lambda        float64 // MMR relevance/diversity balance
	NumExpansions int     // paraphrased sub-queries, 0 disables expansion
}

// AnnexAwareRetriever combines semantic retrieval against the persistent
// index with exact cross-reference boosting: passages whose metadata
// matches a reference mentioned in the query are returned ahead of the
// embedding-similarity results. Exact structural matches carry more
// confidence than embedding similarity.
type AnnexAwareRetriever struct {
	config   RetrieverConfig
	store    types.KnowledgeStore
	embedder types.Embedder
	chat     types.CompletionEngine
	labels   refs.LabelMap
}

func NewWithConfig(config RetrieverConfig, store types.KnowledgeStore, embedder types.Embedder, chat types.CompletionEngine, labels refs.LabelMap) *AnnexAwareRetriever {
	if config.TopK == 0 {
		config.TopK = 5
	}
	if config.FetchK == 0 {
		config.FetchK = 20
	}
	if config.Lambda == 0 {
		config.Lambda = 0.6
	}

	return &AnnexAwareRetriever{
		config:   config,
		store:    store,
		embedder: embedder,
		chat:     chat,
		labels:   labels,
	}
}

// Retrieve returns boosted exact-reference matches followed by semantic
// results. The two groups are not de-duplicated against each other: a
// passage that qualifies both ways appears twice, keeping both citation
// angles visible. A query with no extractable references returns the
// semantic results alone, order untouched.
func (r *AnnexAwareRetriever) Retrieve(ctx context.Context, query string) ([]models.RetrievedDocument, error) {
	queryRefs := refs.Extract(query)
	mapped := make([]string, len(queryRefs))
	for i, ref := range queryRefs {
		mapped[i] = r.labels.Map(ref)
	}

	semantic, err := r.semanticSearch(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(mapped) == 0 {
		return semantic, nil
	}

	boost, err := r.store.FetchByRefs(ctx, mapped)
	if err != nil {
		return nil, err
	}

	return append(boost, semantic...), nil
}

// semanticSearch widens recall with paraphrased sub-queries, merges and
// deduplicates their hits by ID, then selects a diverse final set with
// maximal marginal relevance against the original query embedding.
func (r *AnnexAwareRetriever) semanticSearch(ctx context.Context, query string) ([]models.RetrievedDocument, error) {
	queries := []string{query}
	if r.chat != nil && r.config.NumExpansions > 0 {
		expanded, err := r.chat.ExpandQuery(ctx, query, r.config.NumExpansions)
		if err != nil {
			return nil, err
		}
		queries = append(queries, expanded...)
	}

	queryEmbedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var candidates []models.RetrievedDocument
	for i, q := range queries {
		embedding := queryEmbedding
		if i > 0 {
			embedding, err = r.embedder.Embed(ctx, q)
			if err != nil {
				return nil, err
			}
		}

		hits, err := r.store.Query(ctx, embedding, r.config.FetchK)
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			if seen[hit.ID] {
				continue
			}
			seen[hit.ID] = true
			candidates = append(candidates, hit)
		}
	}

	return maximalMarginalRelevance(queryEmbedding, candidates, r.config.Lambda, r.config.TopK), nil
}
