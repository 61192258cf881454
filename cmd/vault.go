package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/keiri-audit/engine/internal/vault"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Store, retrieve, search, and verify Vault evidence",
}

// Flags for vault store.
var (
	vaultStorePayloadFile string
	vaultStoreKind        string
	vaultStoreBlockID     string
	vaultStoreRunID       string
	vaultStoreTags        []string
)

// Flags for vault retrieve.
var vaultRetrieveVerify bool

// Flags for vault search.
var (
	vaultSearchRunID   string
	vaultSearchBlockID string
	vaultSearchKind    string
	vaultSearchTags    []string
	vaultSearchLimit   int
)

var vaultStoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Encrypt and persist a JSON payload as a new evidence item",
	RunE:  runVaultStore,
}

var vaultRetrieveCmd = &cobra.Command{
	Use:   "retrieve <evidence-id>",
	Short: "Decrypt and print an evidence item's payload",
	Args:  cobra.ExactArgs(1),
	RunE:  runVaultRetrieve,
}

var vaultSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the evidence metadata index",
	RunE:  runVaultSearch,
}

var vaultStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the evidence store's contents",
	RunE:  runVaultStats,
}

var vaultVerifyCmd = &cobra.Command{
	Use:   "verify [evidence-id...]",
	Short: "Re-decrypt and hash-check evidence, reporting tamper findings",
	RunE:  runVaultVerify,
}

func init() {
	vaultStoreCmd.Flags().StringVar(&vaultStorePayloadFile, "payload-file", "", "path to a JSON file holding the payload (default: stdin)")
	vaultStoreCmd.Flags().StringVar(&vaultStoreKind, "kind", "intermediate", "evidence kind (input, output, intermediate, control_result, audit_finding, document, calculation, approval_record)")
	vaultStoreCmd.Flags().StringVar(&vaultStoreBlockID, "block-id", "", "block id that produced this evidence")
	vaultStoreCmd.Flags().StringVar(&vaultStoreRunID, "run-id", "", "run id this evidence belongs to")
	vaultStoreCmd.Flags().StringSliceVar(&vaultStoreTags, "tag", nil, "tag to attach (repeatable)")

	vaultRetrieveCmd.Flags().BoolVar(&vaultRetrieveVerify, "verify", true, "verify the stored hash before returning the payload")

	vaultSearchCmd.Flags().StringVar(&vaultSearchRunID, "run-id", "", "rank records of this run id first")
	vaultSearchCmd.Flags().StringVar(&vaultSearchBlockID, "block-id", "", "rank records of this block id higher")
	vaultSearchCmd.Flags().StringVar(&vaultSearchKind, "kind", "", "filter by evidence kind")
	vaultSearchCmd.Flags().StringSliceVar(&vaultSearchTags, "tag", nil, "filter by tag (repeatable, any match)")
	vaultSearchCmd.Flags().IntVar(&vaultSearchLimit, "limit", 20, "maximum results to return")

	vaultCmd.AddCommand(vaultStoreCmd, vaultRetrieveCmd, vaultSearchCmd, vaultStatsCmd, vaultVerifyCmd)
	rootCmd.AddCommand(vaultCmd)
}

func runVaultStore(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if vaultStorePayloadFile != "" {
		data, err = os.ReadFile(vaultStorePayloadFile)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}

	v, err := openVault()
	if err != nil {
		return err
	}

	opts := vault.StoreOptions{
		Kind:    vault.EvidenceKind(vaultStoreKind),
		BlockID: vaultStoreBlockID,
		RunID:   vaultStoreRunID,
		Tags:    vaultStoreTags,
	}
	id, err := v.Store(payload, opts)
	if err != nil {
		return err
	}

	fmt.Println(id)
	return nil
}

func runVaultRetrieve(cmd *cobra.Command, args []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	payload, meta, err := v.Retrieve(args[0], vaultRetrieveVerify)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(map[string]any{"metadata": meta, "payload": payload}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runVaultSearch(cmd *cobra.Command, args []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	results, err := v.Search(vault.SearchCriteria{
		RunID:   vaultSearchRunID,
		BlockID: vaultSearchBlockID,
		Kind:    vault.EvidenceKind(vaultSearchKind),
		Tags:    vaultSearchTags,
	}, vaultSearchLimit)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runVaultStats(cmd *cobra.Command, args []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	stats, err := v.Statistics(nil)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runVaultVerify(cmd *cobra.Command, args []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	report, err := v.VerifyIntegrity(args)
	if err != nil {
		return err
	}
	fmt.Printf("passed: %d  failed: %d\n", report.Passed, report.Failed)
	for id, msg := range report.Errors {
		fmt.Printf("  %s: %s\n", id, msg)
	}
	if report.Failed > 0 {
		os.Exit(1)
	}
	return nil
}
