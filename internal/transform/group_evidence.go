package transform

import (
	"strings"

	"github.com/keiri-audit/engine/internal/blockerr"
)

// EvidenceGroup is one group_evidence output bucket.
type EvidenceGroup struct {
	Key   string   `json:"key"`
	Paths []string `json:"paths"`
}

// GroupEvidence groups zip-evidence file paths by directory level.
// "top_dir" keys by the first path segment (root-level files group under
// the empty key). "second_dir" keys by the second path segment when a
// path has three or more segments; paths only two segments deep (no
// second directory level to group by) key by their own filename.
func GroupEvidence(paths []string, level string) ([]EvidenceGroup, error) {
	switch level {
	case "top_dir", "second_dir":
	default:
		return nil, blockerr.NewInputError("level", "one of top_dir, second_dir", level)
	}

	order := make([]string, 0)
	groups := make(map[string][]string)

	for _, path := range paths {
		var key string
		segments := strings.Split(strings.Trim(path, "/"), "/")
		switch level {
		case "top_dir":
			if len(segments) >= 2 {
				key = segments[0]
			}
		case "second_dir":
			if len(segments) >= 3 {
				key = segments[1]
			} else {
				key = segments[len(segments)-1]
			}
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], path)
	}

	out := make([]EvidenceGroup, 0, len(order))
	for _, key := range order {
		out = append(out, EvidenceGroup{Key: key, Paths: groups[key]})
	}
	return out, nil
}
