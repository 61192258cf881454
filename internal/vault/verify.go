package vault

import (
	"os"
	"path/filepath"
	"strings"
)

// IntegrityReport aggregates the result of verifying a set of evidence ids.
type IntegrityReport struct {
	Passed int
	Failed int
	Errors map[string]string // evidence_id -> error description
}

// VerifyIntegrity retrieves each id with verify=true and aggregates
// pass/fail counts. If ids is empty, every evidence id currently in the
// metadata directory is checked.
func (v *Vault) VerifyIntegrity(ids []string) (*IntegrityReport, error) {
	if len(ids) == 0 {
		dir := filepath.Join(v.root, "evidence", "metadata")
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return &IntegrityReport{Errors: map[string]string{}}, nil
			}
			return nil, err
		}
		for _, de := range entries {
			if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
				continue
			}
			ids = append(ids, strings.TrimSuffix(de.Name(), ".json"))
		}
	}

	report := &IntegrityReport{Errors: map[string]string{}}
	for _, id := range ids {
		if _, _, err := v.Retrieve(id, true); err != nil {
			report.Failed++
			report.Errors[id] = err.Error()
			continue
		}
		report.Passed++
	}
	return report, nil
}
