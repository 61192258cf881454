package matching

import "testing"

func TestRecordLinkageFuzzyScoresAboveThreshold(t *testing.T) {
	left := []map[string]any{{"id": 1, "name": "Alice"}}
	right := []map[string]any{{"id": "A", "name": "alice"}}
	keys := []LinkKey{{Left: "name", Right: "name", Type: "string"}}

	out, err := RecordLinkage(left, right, keys, LinkFuzzy, 0.8)
	if err != nil {
		t.Fatalf("record_linkage fuzzy: %v", err)
	}
	if len(out.Matches) != 1 {
		t.Fatalf("expected 1 fuzzy match, got %+v", out.Matches)
	}
	if out.Matches[0].Score < 0.8 {
		t.Fatalf("score = %v, want >= 0.8", out.Matches[0].Score)
	}
}

func TestRecordLinkageExactCaseSensitiveProducesNoMatch(t *testing.T) {
	left := []map[string]any{{"id": 1, "name": "Alice"}}
	right := []map[string]any{{"id": "A", "name": "alice"}}
	keys := []LinkKey{{Left: "name", Right: "name", Type: "string"}}

	out, err := RecordLinkage(left, right, keys, LinkExact, 0)
	if err != nil {
		t.Fatalf("record_linkage exact: %v", err)
	}
	if len(out.Matches) != 0 {
		t.Fatalf("expected no exact matches, got %+v", out.Matches)
	}
	if len(out.UnmatchedLeft) != 1 || len(out.UnmatchedRight) != 1 {
		t.Fatalf("expected both sides unmatched, got left=%+v right=%+v", out.UnmatchedLeft, out.UnmatchedRight)
	}
}

func TestRecordLinkageRejectsEmptyKeys(t *testing.T) {
	if _, err := RecordLinkage(nil, nil, nil, LinkExact, 0); err == nil {
		t.Fatalf("expected error for empty keys")
	}
}

func TestSimilarityClusterGroupsNearDuplicates(t *testing.T) {
	items := []map[string]any{
		{"text": "hello world"},
		{"text": "hello  world"},
		{"text": "completely different content here"},
	}

	out, err := SimilarityCluster(items, "text", ClusterMinHash, 0.5)
	if err != nil {
		t.Fatalf("similarity_cluster: %v", err)
	}
	if out.Summary.Clusters < 1 {
		t.Fatalf("expected at least one cluster, got summary=%+v", out.Summary)
	}
	if out.Summary.Items != 3 {
		t.Fatalf("items = %d, want 3", out.Summary.Items)
	}

	var dupCluster *Cluster
	for i := range out.Clusters {
		if contains(out.Clusters[i].Members, 0) {
			dupCluster = &out.Clusters[i]
		}
	}
	if dupCluster == nil || !contains(dupCluster.Members, 1) {
		t.Fatalf("expected items 0 and 1 (near-duplicate text) in the same cluster, got %+v", out.Clusters)
	}
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func TestSemanticTopKCosineRanksClosestFirst(t *testing.T) {
	items := []ScoredItem{
		{Value: "a", Embedding: []float64{1, 0}},
		{Value: "b", Embedding: []float64{0, 1}},
		{Value: "c", Embedding: []float64{0.9, 0.1}},
	}
	out, err := SemanticTopK(items, []float64{1, 0}, "", MetricCosine, 2, true)
	if err != nil {
		t.Fatalf("semantic_topk: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].Item != "a" {
		t.Fatalf("top result = %v, want a", out[0].Item)
	}
	if out[0].Rank != 1 || out[1].Rank != 2 {
		t.Fatalf("ranks = %d,%d, want 1,2", out[0].Rank, out[1].Rank)
	}
}

func TestSemanticTopKLexicalFallbackWithoutEmbeddings(t *testing.T) {
	items := []ScoredItem{
		{Value: "a", Text: "invoice approval workflow"},
		{Value: "b", Text: "unrelated garden supplies"},
	}
	out, err := SemanticTopK(items, nil, "invoice workflow", MetricCosine, 5, false)
	if err != nil {
		t.Fatalf("semantic_topk lexical fallback: %v", err)
	}
	if out[0].Item != "a" {
		t.Fatalf("top result = %v, want a", out[0].Item)
	}
}

func TestSemanticTopKRequiresEmbeddingsWhenConfigured(t *testing.T) {
	items := []ScoredItem{{Value: "a", Text: "x"}}
	if _, err := SemanticTopK(items, nil, "x", MetricCosine, 5, true); err == nil {
		t.Fatalf("expected error when require_embeddings is true and no query embedding supplied")
	}
}
