// Package matching implements record linkage, similarity clustering, and
// embedding-ranked top-k retrieval over item collections.
package matching

import (
	"math"
	"sort"
	"strings"

	"github.com/keiri-audit/engine/internal/blockerr"
)

// Metric selects the vector-similarity function used by SemanticTopK.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricDot       Metric = "dot"
	MetricEuclidean Metric = "euclidean"
)

// ScoredItem is one candidate in items, carrying an optional precomputed
// embedding and/or text for the lexical fallback path.
type ScoredItem struct {
	Value     any
	Text      string
	Embedding []float64
}

// RankedResult is one SemanticTopK output entry.
type RankedResult struct {
	Item  any     `json:"item"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// SemanticTopK ranks items against a query embedding using metric. When
// requireEmbeddings is false and no query embedding is supplied, it falls
// back to lexical Jaccard similarity over queryText against each item's
// Text. Items lacking an embedding are skipped when requireEmbeddings is
// true, scored 0 otherwise.
func SemanticTopK(items []ScoredItem, queryEmbedding []float64, queryText string, metric Metric, topK int, requireEmbeddings bool) ([]RankedResult, error) {
	if len(items) == 0 {
		return nil, blockerr.NewInputError("items", "non-empty list of {text?, embedding?}", items)
	}
	if topK <= 0 {
		topK = 5
	}
	if metric == "" {
		metric = MetricCosine
	}

	if len(queryEmbedding) == 0 {
		if requireEmbeddings {
			return nil, blockerr.NewInputError("query_embedding", "list[number] (auto-embed is disabled)", queryEmbedding)
		}
		return lexicalTopK(items, queryText, topK), nil
	}

	type scored struct {
		idx   int
		score float64
	}
	var scoredList []scored
	for idx, item := range items {
		if len(item.Embedding) == 0 {
			if requireEmbeddings {
				continue
			}
			scoredList = append(scoredList, scored{idx: idx, score: 0})
			continue
		}
		scoredList = append(scoredList, scored{idx: idx, score: similarity(metric, queryEmbedding, item.Embedding)})
	}

	sort.SliceStable(scoredList, func(i, j int) bool { return scoredList[i].score > scoredList[j].score })
	if len(scoredList) > topK {
		scoredList = scoredList[:topK]
	}

	out := make([]RankedResult, 0, len(scoredList))
	for rank, s := range scoredList {
		out = append(out, RankedResult{Item: items[s.idx].Value, Score: round6(s.score), Rank: rank + 1})
	}
	return out, nil
}

func similarity(metric Metric, a, b []float64) float64 {
	switch metric {
	case MetricDot:
		return dot(a, b)
	case MetricEuclidean:
		return -euclidean(a, b)
	default:
		return cosine(a, b)
	}
}

func dot(a, b []float64) float64 {
	sum := 0.0
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(a []float64) float64 {
	sum := 0.0
	for _, x := range a {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float64) float64 {
	na, nb := norm(a), norm(b)
	if na <= 0 || nb <= 0 {
		return 0
	}
	return dot(a, b) / (na * nb)
}

func euclidean(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func lexicalTopK(items []ScoredItem, queryText string, topK int) []RankedResult {
	qtok := tokenSet(queryText)

	type scored struct {
		idx   int
		score float64
	}
	scoredList := make([]scored, len(items))
	for i, item := range items {
		stok := tokenSet(item.Text)
		scoredList[i] = scored{idx: i, score: jaccard(qtok, stok)}
	}
	sort.SliceStable(scoredList, func(i, j int) bool { return scoredList[i].score > scoredList[j].score })
	if len(scoredList) > topK {
		scoredList = scoredList[:topK]
	}

	out := make([]RankedResult, 0, len(scoredList))
	for rank, s := range scoredList {
		out = append(out, RankedResult{Item: items[s.idx].Value, Score: round6(s.score), Rank: rank + 1})
	}
	return out
}

func tokenSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range strings.Fields(text) {
		set[strings.ToLower(tok)] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a)
	for k := range b {
		if !a[k] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
