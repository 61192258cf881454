package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/keiri-audit/engine/internal/crypto"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	root := t.TempDir()
	enc := crypto.NewManager("test-passphrase", nil)
	v, err := Open(root, enc, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return v
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	v := newTestVault(t)
	payload := map[string]any{"amount": 100, "vendor": "acme"}

	id, err := v.Store(payload, StoreOptions{Kind: KindOutput, RunID: "run-1", BlockID: "table.pivot"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	got, meta, err := v.Retrieve(id, true)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	gotMap, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", got)
	}
	if gotMap["vendor"] != "acme" {
		t.Fatalf("vendor = %v", gotMap["vendor"])
	}
	if meta.EvidenceType != KindOutput {
		t.Fatalf("evidence type = %v", meta.EvidenceType)
	}
}

func TestTamperDetection(t *testing.T) {
	v := newTestVault(t)
	id, err := v.Store("hello evidence", StoreOptions{RunID: "run-1"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	meta, err := v.readMetadata(id)
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	path := filepath.Join(v.root, meta.FilePath)
	if err := os.WriteFile(path, []byte("corrupted bytes"), 0o640); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}

	if _, _, err := v.Retrieve(id, true); err == nil {
		t.Fatalf("expected tamper detection to fail retrieval")
	}

	report, err := v.VerifyIntegrity([]string{id})
	if err != nil {
		t.Fatalf("verify integrity: %v", err)
	}
	if report.Passed != 0 || report.Failed != 1 {
		t.Fatalf("report = %+v, want passed=0 failed=1", report)
	}
}

func TestAuditChainIntact(t *testing.T) {
	v := newTestVault(t)
	v.Log("run-9", AuditTrailEntry{EventType: EventBlockStart, BlockID: "b1", Status: StatusStarted})
	v.Log("run-9", AuditTrailEntry{EventType: EventBlockEnd, BlockID: "b1", Status: StatusSuccess})

	result, err := v.VerifyChain("run-9")
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	if !result.IsIntact || result.Verified != 2 {
		t.Fatalf("result = %+v", result)
	}
}

func TestSearchRelevanceOrdersByRunMatch(t *testing.T) {
	v := newTestVault(t)
	_, _ = v.Store("a", StoreOptions{RunID: "run-a", BlockID: "b1", Tags: []string{"x"}})
	_, _ = v.Store("b", StoreOptions{RunID: "run-b", BlockID: "b1", Tags: []string{"x"}})

	results, err := v.Search(SearchCriteria{RunID: "run-a", Tags: []string{"x"}}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both records returned (tag matched), got %d", len(results))
	}
	if results[0].Metadata.RunID != "run-a" {
		t.Fatalf("expected run-a to rank first, got %+v", results[0])
	}
}

func TestTransactionCleansUpScratchDir(t *testing.T) {
	v := newTestVault(t)
	var captured string
	err := v.Transaction(func(dir string) error {
		captured = dir
		if _, statErr := os.Stat(dir); statErr != nil {
			t.Fatalf("scratch dir should exist during transaction: %v", statErr)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if _, statErr := os.Stat(captured); !os.IsNotExist(statErr) {
		t.Fatalf("expected scratch dir removed after transaction, stat err = %v", statErr)
	}
}
