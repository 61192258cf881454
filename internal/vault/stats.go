package vault

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Period optionally bounds a statistics query.
type Period struct {
	Since time.Time
	Until time.Time
}

// Statistics folds the metadata directory into totals, optionally
// filtered by period.
func (v *Vault) Statistics(period *Period) (*Statistics, error) {
	dir := filepath.Join(v.root, "evidence", "metadata")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Statistics{CountByKind: map[string]int{}}, nil
		}
		return nil, err
	}

	stats := &Statistics{CountByKind: map[string]int{}}
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(de.Name(), ".json")
		meta, err := v.readMetadata(id)
		if err != nil {
			continue
		}
		if period != nil {
			if !period.Since.IsZero() && meta.Timestamp.Before(period.Since) {
				continue
			}
			if !period.Until.IsZero() && meta.Timestamp.After(period.Until) {
				continue
			}
		}

		stats.TotalCount++
		stats.TotalBytes += meta.FileSize
		stats.CountByKind[string(meta.EvidenceType)]++

		if stats.OldestTimestamp == nil || meta.Timestamp.Before(*stats.OldestTimestamp) {
			t := meta.Timestamp
			stats.OldestTimestamp = &t
		}
		if stats.NewestTimestamp == nil || meta.Timestamp.After(*stats.NewestTimestamp) {
			t := meta.Timestamp
			stats.NewestTimestamp = &t
		}
	}
	return stats, nil
}
