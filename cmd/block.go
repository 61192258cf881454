package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/keiri-audit/engine/internal/block"
	"github.com/keiri-audit/engine/internal/vault"
)

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Run and inspect the registered processing blocks",
}

var (
	blockInputsFile   string
	blockStoreEvidence bool
)

var blockRunCmd = &cobra.Command{
	Use:   "run <block-id>",
	Short: "Run one registered block against a JSON inputs object",
	Args:  cobra.ExactArgs(1),
	RunE:  runBlockRun,
}

var blockListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered block id",
	RunE:  runBlockList,
}

func init() {
	blockRunCmd.Flags().StringVar(&blockInputsFile, "inputs-file", "", "path to a JSON inputs object (default: stdin)")
	blockRunCmd.Flags().BoolVar(&blockStoreEvidence, "store-evidence", false, "persist this run's outputs to the vault as evidence")

	blockCmd.AddCommand(blockRunCmd, blockListCmd)
	rootCmd.AddCommand(blockCmd)
}

func runBlockRun(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if blockInputsFile != "" {
		data, err = os.ReadFile(blockInputsFile)
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

	blockID := args[0]
	b, err := block.NewCatalog().Lookup(blockID)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	ctx := &block.Context{
		RunID:  runID,
		NodeID: blockID,
		Logger: slog.Default(),
	}
	if blockStoreEvidence {
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

func runBlockList(cmd *cobra.Command, args []string) error {
	ids := block.NewCatalog().IDs()
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
