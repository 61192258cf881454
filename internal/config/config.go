// Package config loads the engine's configuration from defaults, an
// optional config file, and environment variables, in that precedence
// order, via viper.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// VaultConfig configures the Evidence Vault's storage root and the
// passphrase used to derive its symmetric encryption key.
type VaultConfig struct {
	Root       string `yaml:"root" mapstructure:"root"`
	Passphrase string `yaml:"passphrase" mapstructure:"passphrase"`
}

// PolicyConfig configures the policy engine's working directory.
type PolicyConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LoggingConfig holds logging preferences.
type LoggingConfig struct {
	Format  string `yaml:"format" mapstructure:"format"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

// HTTPConfig holds the http.* settings. external.Call does not read them;
// it takes its timeout and retry settings from each request.
type HTTPConfig struct {
	TimeoutSec       float64 `yaml:"timeout_sec" mapstructure:"timeout_sec"`
	DefaultMaxRetries int    `yaml:"default_max_retries" mapstructure:"default_max_retries"`
	DefaultBackoffMs  int    `yaml:"default_backoff_ms" mapstructure:"default_backoff_ms"`
}

// AgentConfig holds the KEIRI_AGENT_* limits consumed by LLM-adjacent
// blocks (text extraction excerpting, table row sampling).
type AgentConfig struct {
	PerFileChars   int     `yaml:"per_file_chars" mapstructure:"per_file_chars"`
	PerTableRows   int     `yaml:"per_table_rows" mapstructure:"per_table_rows"`
	LLMTemperature float64 `yaml:"llm_temperature" mapstructure:"llm_temperature"`
}

// Config is the top-level engine configuration.
type Config struct {
	Vault          VaultConfig   `yaml:"vault" mapstructure:"vault"`
	Policy         PolicyConfig  `yaml:"policy" mapstructure:"policy"`
	Logging        LoggingConfig `yaml:"logging" mapstructure:"logging"`
	HTTP           HTTPConfig    `yaml:"http" mapstructure:"http"`
	Agent          AgentConfig   `yaml:"agent" mapstructure:"agent"`
	LibreOfficePath string       `yaml:"libreoffice_path" mapstructure:"libreoffice_path"`
	SigningKeyRef  string        `yaml:"signing_key_ref" mapstructure:"signing_key_ref"`
	MetricsAddr    string        `yaml:"metrics_addr" mapstructure:"metrics_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("vault.root", "./vault-data")
	v.SetDefault("vault.passphrase", "")
	v.SetDefault("policy.dir", "./policies")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.verbose", false)
	v.SetDefault("http.timeout_sec", 30)
	v.SetDefault("http.default_max_retries", 0)
	v.SetDefault("http.default_backoff_ms", 200)
	v.SetDefault("agent.per_file_chars", 1500)
	v.SetDefault("agent.per_table_rows", 200)
	v.SetDefault("agent.llm_temperature", 0)
	v.SetDefault("libreoffice_path", "")
	v.SetDefault("signing_key_ref", "SIGNING_KEY")
	v.SetDefault("metrics_addr", ":9090")
}

// bindEnvVars wires viper keys to the exact environment variable names
// recognized by spec section 6 (OPENAI_API_KEY / AZURE_OPENAI_API_KEY are
// read directly by the LLM-adjacent blocks rather than through config, and
// so have no viper binding here).
func bindEnvVars(v *viper.Viper) {
	bindings := map[string]string{
		"vault.root":                "KEIRI_AGENT_EVIDENCE_DIR",
		"libreoffice_path":          "LIBREOFFICE_PATH",
		"agent.per_file_chars":      "KEIRI_AGENT_PER_FILE_CHARS",
		"agent.per_table_rows":      "KEIRI_AGENT_PER_TABLE_ROWS",
		"agent.llm_temperature":     "KEIRI_AGENT_LLM_TEMPERATURE",
		"signing_key_ref":           "SIGNING_KEY",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}

// Load reads configuration from the defaults above, an optional config
// file, and environment variables, in ascending precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	v.SetEnvPrefix("KEIRI_AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("keiri-audit")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if configPath != "" {
				return nil, err
			}
			slog.Debug("no config file found, using defaults", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Vault.Root == "" {
		return nil, fmt.Errorf("vault.root must not be empty")
	}
	abs, err := filepath.Abs(cfg.Vault.Root)
	if err == nil {
		cfg.Vault.Root = abs
	}

	return &cfg, nil
}

// WriteDefault writes a minimal starter config file at path, without
// overwriting an existing one.
func WriteDefault(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	content := []byte(`vault:
  root: ./vault-data
  passphrase: ""
policy:
  dir: ./policies
logging:
  format: text
  verbose: false
`)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
