package vault

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keiri-audit/engine/internal/blockerr"
	"github.com/keiri-audit/engine/internal/crypto"
)

// subdirs is the fixed directory layout created under the vault root.
var subdirs = []string{
	filepath.Join("evidence", "raw"),
	filepath.Join("evidence", "processed"),
	filepath.Join("evidence", "outputs"),
	filepath.Join("evidence", "metadata"),
	"audit_trail",
	"signatures",
	"lineage",
	"statistics",
	"backups",
	"temp",
}

// Vault is the durable, tamper-evident evidence store: encrypted blobs,
// a metadata index, a signed per-run audit trail, and lineage/statistics
// built from it.
type Vault struct {
	root    string
	enc     *crypto.Manager
	mu      sync.Mutex // serializes index read-modify-write
	auditMu sync.Mutex // serializes per-run audit file appends
	logger  *slog.Logger
}

// Open creates (if absent) the vault directory structure under root and
// returns a ready Vault. enc must be the same Manager used across the
// vault's lifetime -- losing its key loses the data.
func Open(root string, enc *crypto.Manager, logger *slog.Logger) (*Vault, error) {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Vault{root: root, enc: enc, logger: logger}
	if err := v.ensureStructure(); err != nil {
		return nil, err
	}
	if err := v.ensureIndex(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Vault) ensureStructure() error {
	for _, d := range subdirs {
		full := filepath.Join(v.root, d)
		if err := os.MkdirAll(full, 0o750); err != nil {
			return fmt.Errorf("vault: creating %s: %w", full, err)
		}
		keep := filepath.Join(full, ".gitkeep")
		if _, err := os.Stat(keep); os.IsNotExist(err) {
			_ = os.WriteFile(keep, nil, 0o640)
		}
	}
	return nil
}

func (v *Vault) indexPath() string { return filepath.Join(v.root, "vault_index.json") }

func (v *Vault) ensureIndex() error {
	if _, err := os.Stat(v.indexPath()); err == nil {
		return nil
	}
	idx := Index{
		CreatedAt:         time.Now().UTC(),
		Version:           "1.0.0",
		LastUpdated:       time.Now().UTC(),
		EncryptionEnabled: v.enc != nil,
		Statistics:        IndexStatistics{EvidenceByType: map[string]int{}},
	}
	return v.writeIndex(&idx)
}

func (v *Vault) readIndex() (*Index, error) {
	data, err := os.ReadFile(v.indexPath())
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

func (v *Vault) writeIndex(idx *Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(v.indexPath(), data, 0o640)
}

// updateIndex performs a locked read-modify-write of the index file.
// Transient failures log a warning and do not propagate, per the Vault's
// tolerance for concurrent appenders.
func (v *Vault) updateIndex(evidenceID string, kind EvidenceKind, size int64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	idx, err := v.readIndex()
	if err != nil {
		v.logger.Warn("vault: failed to read index for update", "error", err)
		idx = &Index{Statistics: IndexStatistics{EvidenceByType: map[string]int{}}}
	}
	if idx.Statistics.EvidenceByType == nil {
		idx.Statistics.EvidenceByType = map[string]int{}
	}
	idx.EvidenceCount++
	idx.LastEvidenceID = evidenceID
	idx.LastUpdated = time.Now().UTC()
	idx.Statistics.TotalSizeBytes += size
	idx.Statistics.EvidenceByType[string(kind)]++

	if err := v.writeIndex(idx); err != nil {
		v.logger.Warn("vault: failed to write index", "error", err)
	}
}

func newEvidenceID() string {
	return uuid.NewString()
}

// serializePayload mirrors the Python source's encoding chain: mapping
// values marshal to canonical JSON, strings go through as UTF-8, and
// []byte passes through untouched.
func serializePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case string:
		return []byte(p), nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, blockerr.Wrap(err, blockerr.BlockExecutionFailed, nil)
		}
		return data, nil
	}
}

// deserializePayload attempts JSON and otherwise returns the bytes as a
// plain string; it never returns raw []byte.
func deserializePayload(data []byte) any {
	var v any
	if err := json.Unmarshal(data, &v); err == nil {
		return v
	}
	return string(data)
}
