// Package block defines the contract every processing block implements and
// the execution context the runner passes into it.
package block

import (
	"log/slog"

	"github.com/keiri-audit/engine/internal/blockerr"
)

// EvidenceSink is the narrow slice of the Vault a block needs to persist
// evidence; kept as an interface here so this package never imports
// internal/vault (avoiding an import cycle) and so blocks can be tested
// against a fake.
type EvidenceSink interface {
	Store(payload any, kind string, tags []string) (string, error)
}

// Context carries everything a block needs besides its declared inputs:
// identifying the run, the workspace, and where to log and persist
// evidence. It is constructed once per run and passed explicitly -- never
// a process-wide singleton (see design notes on global singletons).
type Context struct {
	RunID      string
	Workspace  string
	NodeID     string
	PlanID     string
	PriorOutputs map[string]map[string]any // prior node outputs, for debugging/logging only
	Logger     *slog.Logger
	Evidence   EvidenceSink // nil if no vault is attached to this run
}

// Inputs and Outputs are named value maps; block-specific meaning is
// carried by convention (each block documents its own shape).
type Inputs = map[string]any
type Outputs = map[string]any

// Block is the uniform contract every standard block implements.
type Block interface {
	ID() string
	Version() string
	Run(ctx *Context, inputs Inputs) (Outputs, error)
}

// DryRunner is implemented by blocks that support shape-correct, side-
// effect-free placeholder execution for plan validation.
type DryRunner interface {
	DryRun(inputs Inputs) (Outputs, error)
}

// Registry holds explicitly registered block constructors, keyed by block
// id. Discovery is never dynamic/import-time; every block type is
// registered here at startup.
type Registry struct {
	blocks map[string]Block
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{blocks: make(map[string]Block)}
}

// Register adds a block under its own ID. Registering a duplicate ID
// replaces the previous registration.
func (r *Registry) Register(b Block) {
	r.blocks[b.ID()] = b
}

// Lookup finds a block by id, returning a BLOCK_NOT_FOUND error if absent.
func (r *Registry) Lookup(id string) (Block, error) {
	b, ok := r.blocks[id]
	if !ok {
		return nil, blockerr.New(blockerr.BlockNotFound, "no block registered with id "+id).
			WithDetails(map[string]any{"block_id": id})
	}
	return b, nil
}

// IDs returns every registered block id, for introspection/CLI listing.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.blocks))
	for id := range r.blocks {
		ids = append(ids, id)
	}
	return ids
}
