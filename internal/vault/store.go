package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/keiri-audit/engine/internal/blockerr"
	"github.com/keiri-audit/engine/internal/crypto"
)

// StoreOptions configures an evidence store call; zero values are filled
// with sensible defaults (kind=intermediate, retention = now + default
// retention days).
type StoreOptions struct {
	Kind            EvidenceKind
	BlockID         string
	RunID           string
	Tags            []string
	RelatedEvidence []string
	CreatorUserID   string
	Department      string
	RiskLevel       string
	ComplianceFlags []string
	RetentionUntil  time.Time
}

// Store persists payload, returning its newly allocated evidence id.
// Hash is computed over plaintext before encryption; size equals plaintext
// byte length. Failures surface as BLOCK_EXECUTION_FAILED.
func (v *Vault) Store(payload any, opts StoreOptions) (string, error) {
	plaintext, err := serializePayload(payload)
	if err != nil {
		return "", err
	}

	id := newEvidenceID()
	kind := opts.Kind
	if kind == "" {
		kind = KindIntermediate
	}

	hash := crypto.Hash(plaintext)
	size := int64(len(plaintext))

	ciphertext := plaintext
	if v.enc != nil {
		ciphertext, err = v.enc.Encrypt(plaintext)
		if err != nil {
			return "", blockerr.New(blockerr.BlockExecutionFailed, fmt.Sprintf("vault: encrypting evidence %s: %v", id, err))
		}
	}

	relDir := kindToDir(kind)
	relPath := filepath.Join("evidence", relDir, id+".bin")
	fullPath := filepath.Join(v.root, relPath)
	if err := os.WriteFile(fullPath, ciphertext, 0o640); err != nil {
		return "", blockerr.New(blockerr.BlockExecutionFailed, fmt.Sprintf("vault: writing evidence %s: %v", id, err))
	}

	now := time.Now().UTC()
	retention := opts.RetentionUntil
	if retention.IsZero() {
		retention = now.AddDate(0, 0, DefaultRetentionPolicy().DefaultRetentionDays)
	}

	meta := EvidenceMetadata{
		EvidenceID:      id,
		EvidenceType:    kind,
		BlockID:         opts.BlockID,
		RunID:           opts.RunID,
		Timestamp:       now,
		FilePath:        relPath,
		FileHash:        hash,
		FileSize:        size,
		RetentionUntil:  retention,
		Tags:            canonicalizeTags(opts.Tags),
		RelatedEvidence: opts.RelatedEvidence,
		CreatorUserID:   opts.CreatorUserID,
		Department:      opts.Department,
		RiskLevel:       opts.RiskLevel,
		ComplianceFlags: opts.ComplianceFlags,
	}
	if v.enc != nil {
		meta.EncryptionKeyID = v.enc.Info().KeyHash
	}

	if err := v.writeMetadata(&meta); err != nil {
		return "", blockerr.Wrap(err, blockerr.BlockExecutionFailed, nil)
	}

	v.updateIndex(id, kind, size)

	v.Log(opts.RunID, AuditTrailEntry{
		EventType: EventEvidenceStore,
		BlockID:   opts.BlockID,
		Status:    StatusSuccess,
		Outputs:   map[string]any{"evidence_id": id, "size": size},
	})

	return id, nil
}

func kindToDir(kind EvidenceKind) string {
	switch kind {
	case KindInput:
		return "raw"
	case KindOutput, KindApprovalRecord:
		return "outputs"
	default:
		return "processed"
	}
}

func (v *Vault) metadataPath(id string) string {
	return filepath.Join(v.root, "evidence", "metadata", id+".json")
}

func (v *Vault) writeMetadata(meta *EvidenceMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("vault: marshaling metadata for %s: %w", meta.EvidenceID, err)
	}
	if err := os.WriteFile(v.metadataPath(meta.EvidenceID), data, 0o640); err != nil {
		return fmt.Errorf("vault: writing metadata for %s: %w", meta.EvidenceID, err)
	}
	return nil
}

func (v *Vault) readMetadata(id string) (*EvidenceMetadata, error) {
	data, err := os.ReadFile(v.metadataPath(id))
	if err != nil {
		return nil, fmt.Errorf("vault: evidence %s not found: %w", id, err)
	}
	var meta EvidenceMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("vault: corrupt metadata for %s: %w", id, err)
	}
	return &meta, nil
}

// ErrTamperDetected is returned by Retrieve when verify=true and the
// recomputed plaintext hash does not match the stored metadata hash.
type ErrTamperDetected struct {
	EvidenceID string
	Expected   string
	Got        string
}

func (e *ErrTamperDetected) Error() string {
	return fmt.Sprintf("vault: tamper detected for evidence %s: expected hash %s, got %s", e.EvidenceID, e.Expected, e.Got)
}

// Retrieve loads and decrypts the payload for id, optionally verifying its
// plaintext hash against the stored metadata. A mismatch under
// verify=true fails with ErrTamperDetected rather than returning the
// payload.
func (v *Vault) Retrieve(id string, verify bool) (any, *EvidenceMetadata, error) {
	meta, err := v.readMetadata(id)
	if err != nil {
		return nil, nil, err
	}

	ciphertext, err := os.ReadFile(filepath.Join(v.root, meta.FilePath))
	if err != nil {
		return nil, nil, fmt.Errorf("vault: reading evidence %s: %w", id, err)
	}

	plaintext := ciphertext
	if v.enc != nil {
		plaintext, err = v.enc.Decrypt(ciphertext)
		if err != nil {
			return nil, nil, fmt.Errorf("vault: decrypting evidence %s: %w", id, err)
		}
	}

	if verify {
		got := crypto.Hash(plaintext)
		if got != meta.FileHash {
			return nil, meta, &ErrTamperDetected{EvidenceID: id, Expected: meta.FileHash, Got: got}
		}
	}

	v.Log(meta.RunID, AuditTrailEntry{
		EventType: EventEvidenceRetrieve,
		BlockID:   meta.BlockID,
		Status:    StatusSuccess,
		Outputs:   map[string]any{"evidence_id": id},
	})

	return deserializePayload(plaintext), meta, nil
}
