// Package logging configures the process-wide structured logger used by
// every block, vault operation, and policy evaluation in the engine.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Setup configures the global slog logger based on the desired output
// format ("text" or "json") and verbosity.
func Setup(format string, verbose bool) {
	var w io.Writer = os.Stderr
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// ForBlock returns a logger scoped to one block execution, carrying the
// run and block identifiers on every record so a decision trail can be
// grepped back to a single run.
func ForBlock(runID, blockID string) *slog.Logger {
	return slog.Default().With("run_id", runID, "block_id", blockID)
}

// ForVault returns a logger scoped to one vault operation.
func ForVault(op, evidenceID string) *slog.Logger {
	return slog.Default().With("vault_op", op, "evidence_id", evidenceID)
}
