package vault

// Sink adapts a Vault to the narrow block.EvidenceSink interface so block
// code never needs to import this package directly (avoiding an import
// cycle: vault already depends on nothing upstream of block).
type Sink struct {
	V       *Vault
	RunID   string
	BlockID string
}

// Store implements block.EvidenceSink.
func (s Sink) Store(payload any, kind string, tags []string) (string, error) {
	return s.V.Store(payload, StoreOptions{
		Kind:    EvidenceKind(kind),
		RunID:   s.RunID,
		BlockID: s.BlockID,
		Tags:    tags,
	})
}
