package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/keiri-audit/engine/internal/policy"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Load, save, list, and evaluate policies",
}

// Flags for policy save.
var (
	policySaveFile  string
	policySaveActor string
)

// Flags for policy eval.
var (
	policyEvalDataFile string
	policyEvalRunID    string
	policyEvalBlockID  string
)

// Flags for policy violations.
var policyViolationsIncludeResolved bool

var policyLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Reload every policy file from the policy directory",
	RunE:  runPolicyLoad,
}

var policySaveCmd = &cobra.Command{
	Use:   "save <policy-id>",
	Short: "Write a policy JSON file to the policy directory, appending an audit log entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicySave,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List currently active policies",
	RunE:  runPolicyList,
}

var policyEvalCmd = &cobra.Command{
	Use:   "eval <policy-id>",
	Short: "Evaluate a policy's rules against a JSON data record",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyEval,
}

var policyInitSamplesCmd = &cobra.Command{
	Use:   "init-samples",
	Short: "Seed the policy directory with the standard sample policy set",
	RunE:  runPolicyInitSamples,
}

var policyViolationsCmd = &cobra.Command{
	Use:   "violations <policy-id>",
	Short: "List recorded violations for a policy",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyViolations,
}

func init() {
	policySaveCmd.Flags().StringVar(&policySaveFile, "file", "", "path to a JSON policy file (default: stdin)")
	policySaveCmd.Flags().StringVar(&policySaveActor, "actor", "auditctl", "actor recorded in the save audit log entry")

	policyEvalCmd.Flags().StringVar(&policyEvalDataFile, "data-file", "", "path to a JSON data record (default: stdin)")
	policyEvalCmd.Flags().StringVar(&policyEvalRunID, "run-id", "", "run id to attribute this evaluation to")
	policyEvalCmd.Flags().StringVar(&policyEvalBlockID, "block-id", "", "block id to attribute this evaluation to")

	policyViolationsCmd.Flags().BoolVar(&policyViolationsIncludeResolved, "all", false, "include resolved violations")

	policyCmd.AddCommand(policyLoadCmd, policySaveCmd, policyListCmd, policyEvalCmd, policyInitSamplesCmd, policyViolationsCmd)
	rootCmd.AddCommand(policyCmd)
}

func runPolicyLoad(cmd *cobra.Command, args []string) error {
	e, err := openPolicyEngine()
	if err != nil {
		return err
	}
	if err := e.Reload(); err != nil {
		return err
	}
	fmt.Printf("%d active policies loaded from %s\n", len(e.GetActivePolicies()), Cfg.Policy.Dir)
	return nil
}

func runPolicySave(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if policySaveFile != "" {
		data, err = os.ReadFile(policySaveFile)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("reading policy: %w", err)
	}

	var p policy.Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("policy is not valid JSON: %w", err)
	}
	p.ID = args[0]

	e, err := openPolicyEngine()
	if err != nil {
		return err
	}
	if err := e.SavePolicy(&p, policySaveActor); err != nil {
		return err
	}
	fmt.Printf("saved policy %s (version %s)\n", p.ID, p.Version)
	return nil
}

func runPolicyList(cmd *cobra.Command, args []string) error {
	e, err := openPolicyEngine()
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(e.GetActivePolicies(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runPolicyEval(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if policyEvalDataFile != "" {
		data, err = os.ReadFile(policyEvalDataFile)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("reading data record: %w", err)
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("data record is not valid JSON: %w", err)
	}

	e, err := openPolicyEngine()
	if err != nil {
		return err
	}
	result := e.Evaluate(args[0], record, policyEvalRunID, policyEvalBlockID)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if len(result.Violations) > 0 {
		os.Exit(1)
	}
	return nil
}

func runPolicyInitSamples(cmd *cobra.Command, args []string) error {
	e, err := openPolicyEngine()
	if err != nil {
		return err
	}
	n, err := e.InitSamples()
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d sample policies to %s\n", n, Cfg.Policy.Dir)
	return nil
}

func runPolicyViolations(cmd *cobra.Command, args []string) error {
	e, err := openPolicyEngine()
	if err != nil {
		return err
	}
	var violations []policy.Violation
	if policyViolationsIncludeResolved {
		violations = e.GetViolations(args[0])
	} else {
		violations = e.UnresolvedViolations(args[0])
	}
	out, err := json.MarshalIndent(violations, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
