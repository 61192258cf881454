package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keiri-audit/engine/internal/crypto"
)

// lineageGraph is the persisted shape of lineage/<run_id>_lineage.json.
type lineageGraph struct {
	RunID string        `json:"run_id"`
	Nodes []LineageNode `json:"nodes"`
}

// BuildLineage streams runID's audit file and materializes a node per
// data_transform entry, hashing the canonical serialization of its
// outputs, and persists the resulting graph.
func (v *Vault) BuildLineage(runID string) (*lineageGraph, error) {
	entries, err := v.ReadEntries(runID)
	if err != nil {
		return nil, err
	}

	graph := &lineageGraph{RunID: runID}
	var lastNodeID string
	for _, e := range entries {
		if e.EventType != EventDataTransform {
			continue
		}
		outData, _ := json.Marshal(e.Outputs)
		node := LineageNode{
			NodeID:     e.EntryID,
			NodeKind:   "transform",
			BlockID:    e.BlockID,
			DataHash:   crypto.Hash(outData),
			CreatedAt:  e.Timestamp,
			DataSize:   int64(len(outData)),
			DataFormat: "json",
		}
		if lastNodeID != "" {
			node.ParentIDs = []string{lastNodeID}
		}
		graph.Nodes = append(graph.Nodes, node)
		lastNodeID = node.NodeID
	}

	path := filepath.Join(v.root, "lineage", runID+"_lineage.json")
	data, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("vault: marshaling lineage for %s: %w", runID, err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return nil, fmt.Errorf("vault: writing lineage for %s: %w", runID, err)
	}
	return graph, nil
}
