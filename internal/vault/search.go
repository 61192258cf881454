package vault

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SearchCriteria narrows a metadata scan; zero-value fields are
// unconstrained. Kind, Since, Until and Tags filter records; RunID and
// BlockID do not filter, they raise the relevance score of exact matches.
type SearchCriteria struct {
	RunID   string
	BlockID string
	Kind    EvidenceKind
	Since   time.Time
	Until   time.Time
	Tags    []string
}

// SearchResult pairs metadata with its computed relevance score.
type SearchResult struct {
	Metadata EvidenceMetadata
	Score    float64
}

// Search performs a linear scan of the metadata directory, scoring and
// ranking matches, truncated to limit.
func (v *Vault) Search(criteria SearchCriteria, limit int) ([]SearchResult, error) {
	dir := filepath.Join(v.root, "evidence", "metadata")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var results []SearchResult
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(de.Name(), ".json")
		meta, err := v.readMetadata(id)
		if err != nil {
			continue
		}
		if !matchesCriteria(meta, criteria) {
			continue
		}
		results = append(results, SearchResult{
			Metadata: *meta,
			Score:    relevance(meta, criteria),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func matchesCriteria(meta *EvidenceMetadata, c SearchCriteria) bool {
	if c.Kind != "" && meta.EvidenceType != c.Kind {
		return false
	}
	if !c.Since.IsZero() && meta.Timestamp.Before(c.Since) {
		return false
	}
	if !c.Until.IsZero() && meta.Timestamp.After(c.Until) {
		return false
	}
	if len(c.Tags) > 0 && tagOverlap(meta.Tags, c.Tags) == 0 {
		return false
	}
	return true
}

// relevance combines exact-id matches, tag-overlap ratio, and freshness.
func relevance(meta *EvidenceMetadata, c SearchCriteria) float64 {
	score := 0.0
	if c.RunID != "" && meta.RunID == c.RunID {
		score += 10.0
	}
	if c.BlockID != "" && meta.BlockID == c.BlockID {
		score += 5.0
	}
	if len(c.Tags) > 0 {
		overlap := tagOverlap(meta.Tags, c.Tags)
		score += (float64(overlap) / float64(len(c.Tags))) * 3.0
	}
	daysOld := time.Since(meta.Timestamp).Hours() / 24
	freshness := 1.0 - daysOld/365.0
	if freshness < 0 {
		freshness = 0
	}
	score += freshness
	return score
}

func tagOverlap(have, want []string) int {
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	n := 0
	for _, t := range want {
		if set[t] {
			n++
		}
	}
	return n
}
