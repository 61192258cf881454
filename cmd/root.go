package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/keiri-audit/engine/internal/config"
	"github.com/keiri-audit/engine/internal/crypto"
	"github.com/keiri-audit/engine/internal/logging"
	"github.com/keiri-audit/engine/internal/policy"
	"github.com/keiri-audit/engine/internal/vault"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// Global flag values.
var (
	cfgFile   string
	verbose   bool
	logFormat string
)

// Cfg holds the loaded configuration, available to all subcommands.
var Cfg *config.Config

// SetVersionInfo is called from main to inject build-time version info.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	buildDate = d
	rootCmd.Version = v
	rootCmd.SetVersionTemplate(fmt.Sprintf("auditctl version {{.Version}} (commit: %s, built: %s)\n", c, d))
}

var rootCmd = &cobra.Command{
	Use:   "auditctl",
	Short: "auditctl runs internal-control blocks against evidence and policy",
	Long: `auditctl executes the audit engine's processing blocks -- transform,
control, table, nlp, matching, and external -- against evidence stored in
the tamper-evident Vault, and evaluates that evidence against versioned
policy rules.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(logFormat, verbose)

		var err error
		Cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./keiri-audit.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text or json)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("auditctl version {{.Version}} (commit: %s, built: %s)\n", commit, buildDate))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openVault constructs the Vault from the loaded config, deriving its
// encryption key from the configured passphrase.
func openVault() (*vault.Vault, error) {
	enc := crypto.NewManager(Cfg.Vault.Passphrase, nil)
	return vault.Open(Cfg.Vault.Root, enc, slog.Default())
}

// openPolicyEngine constructs the policy Engine wired to the Vault so
// evaluation evidence and violations persist alongside everything else.
func openPolicyEngine() (*policy.Engine, error) {
	v, err := openVault()
	if err != nil {
		return nil, fmt.Errorf("opening vault: %w", err)
	}
	return policy.NewEngine(Cfg.Policy.Dir, v, slog.Default())
}
