package retriever

import (
	"math"

	"github.com/jteo/copra/internal/models"
)

// maximalMarginalRelevance greedily picks k documents, each step taking
// the candidate with the best lambda-weighted balance of similarity to
// the query against similarity to documents already picked. Near-duplicate
// passages lose to diverse ones. With k or fewer candidates the input is
// returned as-is.
func maximalMarginalRelevance(query []float32, docs []models.RetrievedDocument, lambda float64, k int) []models.RetrievedDocument {
	if len(docs) <= k {
		return docs
	}

	selected := make([]int, 0, k)
	picked := make([]bool, len(docs))

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i := range docs {
			if picked[i] {
				continue
			}
			relevance := cosineSimilarity(query, docs[i].Embedding)
			redundancy := 0.0
			for _, j := range selected {
				if sim := cosineSimilarity(docs[i].Embedding, docs[j].Embedding); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*relevance - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		if best < 0 {
			break
		}
		picked[best] = true
		selected = append(selected, best)
	}

	out := make([]models.RetrievedDocument, 0, len(selected))
	for _, i := range selected {
		out = append(out, docs[i])
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
