package matching

import (
	"hash/fnv"
	"strings"

	"github.com/keiri-audit/engine/internal/blockerr"
)

// ClusterMethod selects the similarity estimator behind SimilarityCluster.
// minhash is the only method implemented; no third-party MinHash library
// exists in the retrieved dependency pack, so the signatures below are
// computed with stdlib hash/fnv seeded per hash function.
type ClusterMethod string

const (
	ClusterMinHash ClusterMethod = "minhash"
)

// Cluster is one group of item indexes judged similar at or above the
// configured threshold.
type Cluster struct {
	Members []int `json:"members"`
}

// ClusterResult is the output of SimilarityCluster.
type ClusterResult struct {
	Clusters []Cluster `json:"clusters"`
	Summary  struct {
		Clusters int `json:"clusters"`
		Items    int `json:"items"`
	} `json:"summary"`
}

const minhashFunctions = 64

// SimilarityCluster groups items whose textField values are near-duplicate
// under a MinHash-estimated Jaccard similarity. Clustering is greedy: each
// item joins the first cluster whose representative signature estimates
// similarity >= threshold against it, else starts a new cluster.
func SimilarityCluster(items []map[string]any, textField string, method ClusterMethod, threshold float64) (ClusterResult, error) {
	if len(items) == 0 {
		return ClusterResult{}, blockerr.NewInputError("items", "non-empty list of records", items)
	}
	if method == "" {
		method = ClusterMinHash
	}
	if method != ClusterMinHash {
		return ClusterResult{}, blockerr.NewInputError("method", "minhash", method)
	}

	signatures := make([][]uint64, len(items))
	for i, item := range items {
		text := toText(item[textField])
		signatures[i] = minhashSignature(shingles(text))
	}

	var clusters []Cluster
	for i := range items {
		placed := false
		for c := range clusters {
			rep := clusters[c].Members[0]
			if estimateJaccard(signatures[rep], signatures[i]) >= threshold {
				clusters[c].Members = append(clusters[c].Members, i)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, Cluster{Members: []int{i}})
		}
	}

	result := ClusterResult{Clusters: clusters}
	result.Summary.Clusters = len(clusters)
	result.Summary.Items = len(items)
	return result, nil
}

func toText(v any) string {
	s, _ := v.(string)
	return s
}

func shingles(text string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		set[tok] = true
	}
	return set
}

func minhashSignature(shingleSet map[string]bool) []uint64 {
	sig := make([]uint64, minhashFunctions)
	for i := range sig {
		sig[i] = ^uint64(0)
	}
	if len(shingleSet) == 0 {
		return sig
	}
	for shingle := range shingleSet {
		base := fnvHash(shingle)
		for i := 0; i < minhashFunctions; i++ {
			h := base ^ (uint64(i+1) * 0x9E3779B97F4A7C15)
			h = mix64(h)
			if h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

func estimateJaccard(a, b []uint64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}
