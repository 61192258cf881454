package vault

import (
	"strings"
	"time"
)

// EvidenceKind classifies what a stored payload represents.
type EvidenceKind string

const (
	KindInput          EvidenceKind = "input"
	KindOutput         EvidenceKind = "output"
	KindIntermediate   EvidenceKind = "intermediate"
	KindControlResult  EvidenceKind = "control_result"
	KindAuditFinding   EvidenceKind = "audit_finding"
	KindDocument       EvidenceKind = "document"
	KindCalculation    EvidenceKind = "calculation"
	KindApprovalRecord EvidenceKind = "approval_record"
)

// EventKind classifies an audit trail entry.
type EventKind string

const (
	EventBlockStart       EventKind = "block_start"
	EventBlockEnd         EventKind = "block_end"
	EventDataTransform    EventKind = "data_transform"
	EventControlCheck     EventKind = "control_check"
	EventPolicyValidation EventKind = "policy_validation"
	EventEvidenceStore    EventKind = "evidence_store"
	EventEvidenceRetrieve EventKind = "evidence_retrieve"
)

// ExecutionStatus is the outcome recorded on an audit trail entry.
type ExecutionStatus string

const (
	StatusStarted   ExecutionStatus = "started"
	StatusSuccess   ExecutionStatus = "success"
	StatusError     ExecutionStatus = "error"
	StatusWarning   ExecutionStatus = "warning"
	StatusCancelled ExecutionStatus = "cancelled"
)

// EvidenceMetadata describes a single stored payload. The file hash is
// computed over plaintext before encryption; size is the plaintext byte
// length; RetentionUntil must be strictly after Timestamp.
type EvidenceMetadata struct {
	EvidenceID      string       `json:"evidence_id"`
	EvidenceType    EvidenceKind `json:"evidence_type"`
	BlockID         string       `json:"block_id"`
	RunID           string       `json:"run_id"`
	Timestamp       time.Time    `json:"timestamp"`
	FilePath        string       `json:"file_path"`
	FileHash        string       `json:"file_hash"`
	FileSize        int64        `json:"file_size"`
	EncryptionKeyID string       `json:"encryption_key_id,omitempty"`
	RetentionUntil  time.Time    `json:"retention_until"`
	Tags            []string     `json:"tags"`
	RelatedEvidence []string     `json:"related_evidence,omitempty"`
	CreatorUserID   string       `json:"creator_user_id,omitempty"`
	Department      string       `json:"department,omitempty"`
	RiskLevel       string       `json:"risk_level,omitempty"`
	ComplianceFlags []string     `json:"compliance_flags,omitempty"`
}

// canonicalizeTags trims whitespace and drops empty tags, per the
// metadata canonicalization invariant.
func canonicalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// AuditTrailEntry is one append-only record in a run's audit file.
// Signature is an HMAC-SHA256 over the canonical serialization of every
// other field; PreviousEntryHash, when present, equals the Signature of
// the immediately preceding entry in the same run's file (see DESIGN.md
// "Open Question resolutions" for why this differs from a plain rolling
// hash).
type AuditTrailEntry struct {
	EntryID           string          `json:"entry_id"`
	Timestamp         time.Time       `json:"timestamp"`
	EventType         EventKind       `json:"event_type"`
	BlockID           string          `json:"block_id"`
	RunID             string          `json:"run_id"`
	UserID            string          `json:"user_id,omitempty"`
	Inputs            map[string]any  `json:"inputs,omitempty"`
	Outputs           map[string]any  `json:"outputs,omitempty"`
	ExecutionTimeMS   int64           `json:"execution_time_ms"`
	Status            ExecutionStatus `json:"status"`
	ErrorDetails      string          `json:"error_details,omitempty"`
	Signature         string          `json:"signature,omitempty"`
	PreviousEntryHash string          `json:"previous_entry_hash,omitempty"`
	SessionID         string          `json:"session_id,omitempty"`
	IPAddress         string          `json:"ip_address,omitempty"`
	UserAgent         string          `json:"user_agent,omitempty"`
}

// LineageNode is one node in a run's reconstructed data-lineage graph.
type LineageNode struct {
	NodeID        string         `json:"node_id"`
	NodeKind      string         `json:"node_kind"` // source, transform, sink
	BlockID       string         `json:"block_id"`
	DataHash      string         `json:"data_hash"`
	ParentIDs     []string       `json:"parent_ids,omitempty"`
	ChildIDs      []string       `json:"child_ids,omitempty"`
	Transform     map[string]any `json:"transformation_details,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	DataSize      int64          `json:"data_size"`
	DataFormat    string         `json:"data_format"`
	QualityScore  *float64       `json:"quality_score,omitempty"` // 0..100
}

// Statistics summarizes the metadata directory, optionally scoped to a
// period.
type Statistics struct {
	TotalCount      int            `json:"total_count"`
	TotalBytes      int64          `json:"total_bytes"`
	CountByKind     map[string]int `json:"count_by_kind"`
	OldestTimestamp *time.Time     `json:"oldest_timestamp,omitempty"`
	NewestTimestamp *time.Time     `json:"newest_timestamp,omitempty"`
}

// RetentionPolicy configures how long evidence is kept by default and per
// kind, plus tags that exempt evidence from automatic deletion.
type RetentionPolicy struct {
	DefaultRetentionDays   int            `json:"default_retention_days"`
	RetentionByType        map[string]int `json:"retention_by_type,omitempty"`
	PermanentRetentionTags []string       `json:"permanent_retention_tags,omitempty"`
	AutoDeletionEnabled    bool           `json:"auto_deletion_enabled"`
	DeletionGracePeriodDays int           `json:"deletion_grace_period_days"`
}

// DefaultRetentionPolicy mirrors the Python source's defaults.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		DefaultRetentionDays:    2555, // ~7 years
		AutoDeletionEnabled:     false,
		DeletionGracePeriodDays: 30,
	}
}

// Index is the persisted vault_index.json document: a mutable counter plus
// per-kind totals, read-modify-written under a lock on every store.
type Index struct {
	CreatedAt        time.Time      `json:"created_at"`
	Version          string         `json:"version"`
	EvidenceCount     int64          `json:"evidence_count"`
	LastEvidenceID    string         `json:"last_evidence_id,omitempty"`
	LastUpdated       time.Time      `json:"last_updated"`
	EncryptionEnabled bool           `json:"encryption_enabled"`
	Statistics        IndexStatistics `json:"statistics"`
}

// IndexStatistics is the nested statistics block inside vault_index.json.
type IndexStatistics struct {
	TotalSizeBytes  int64          `json:"total_size_bytes"`
	EvidenceByType  map[string]int `json:"evidence_by_type"`
}
