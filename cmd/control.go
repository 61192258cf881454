package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/keiri-audit/engine/internal/block"
	"github.com/keiri-audit/engine/internal/vault"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Convenience wrappers over the control.* blocks",
}

var (
	controlInputsFile   string
	controlStoreEvidence bool
)

var controlApproveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Run control.approval against a JSON inputs object",
	RunE:  controlRunner("control.approval"),
}

var controlSoDCmd = &cobra.Command{
	Use:   "sod",
	Short: "Run control.sod_check against a JSON inputs object",
	RunE:  controlRunner("control.sod_check"),
}

var controlSampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Run control.sampling against a JSON inputs object",
	RunE:  controlRunner("control.sampling"),
}

var controlEnforceCmd = &cobra.Command{
	Use:   "enforce",
	Short: "Run control.policy_enforce against a JSON inputs object",
	RunE:  controlRunner("control.policy_enforce"),
}

func init() {
	for _, c := range []*cobra.Command{controlApproveCmd, controlSoDCmd, controlSampleCmd, controlEnforceCmd} {
		c.Flags().StringVar(&controlInputsFile, "inputs-file", "", "path to a JSON inputs object (default: stdin)")
		c.Flags().BoolVar(&controlStoreEvidence, "store-evidence", false, "persist this run's outputs to the vault as evidence")
	}
	controlCmd.AddCommand(controlApproveCmd, controlSoDCmd, controlSampleCmd, controlEnforceCmd)
	rootCmd.AddCommand(controlCmd)
}

// controlRunner returns a RunE that decodes stdin/--inputs-file as JSON and
// dispatches it to the named block, identically to `block run <id>` but
// under a task-named subcommand for the common control blocks.
func controlRunner(blockID string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if controlInputsFile != "" {
			data, err = os.ReadFile(controlInputsFile)
		} else {
			data, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return fmt.Errorf("reading inputs: %w", err)
		}

		var inputs block.Inputs
		if len(data) > 0 {
			if err := json.Unmarshal(data, &inputs); err != nil {
				return fmt.Errorf("inputs are not valid JSON: %w", err)
			}
		}

		b, err := block.NewCatalog().Lookup(blockID)
		if err != nil {
			return err
		}
		runID := uuid.NewString()
		ctx := &block.Context{RunID: runID, NodeID: blockID, Logger: slog.Default()}
		if controlStoreEvidence {
			v, err := openVault()
			if err != nil {
				return fmt.Errorf("opening vault: %w", err)
			}
			ctx.Evidence = vault.Sink{V: v, RunID: runID, BlockID: blockID}
		}

		outputs, err := b.Run(ctx, inputs)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(outputs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
}
