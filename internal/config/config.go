// Package config provides configuration types and defaults for metaagentd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/zjrosen/metaagentd/internal/log"
)

// Config holds all configuration options for metaagentd.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Backend BackendConfig `mapstructure:"backend"`
	Codex   CodexConfig   `mapstructure:"codex"`
	Retries RetriesConfig `mapstructure:"retries"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// StorageConfig controls where session directories are created.
type StorageConfig struct {
	// RootDir is the root directory under which per-session directories
	// are created. Default: ~/.metaagent/sessions
	RootDir string `mapstructure:"root_dir"`
}

// BackendCodexConfig configures the codex CLI dialect.
type BackendCodexConfig struct {
	Program    string   `mapstructure:"program"`
	ArgsPrefix []string `mapstructure:"args_prefix"`
}

// BackendClaudeConfig configures the claude CLI dialect.
type BackendClaudeConfig struct {
	Program    string   `mapstructure:"program"`
	ArgsPrefix []string `mapstructure:"args_prefix"`
}

// BackendConfig selects and configures the agent CLI dialect.
type BackendConfig struct {
	Selected string              `mapstructure:"selected"` // "codex" or "claude"
	Codex    BackendCodexConfig  `mapstructure:"codex"`
	Claude   BackendClaudeConfig `mapstructure:"claude"`
}

// CodexModelProfile names a codex model and its thinking effort.
type CodexModelProfile struct {
	Model          string `mapstructure:"model"`
	ThinkingEffort string `mapstructure:"thinking_effort"`
}

// CodexConfig holds codex-specific model profile configuration. Profiles
// are named bundles of model+effort; agent_profiles maps a scheduler role
// (master, master_report, project_info, implementor, auditor, test_writer,
// docs_attach, task_check) to one of the named profiles.
type CodexConfig struct {
	ModelProfiles map[string]CodexModelProfile `mapstructure:"model_profiles"`
	AgentProfiles map[string]string            `mapstructure:"agent_profiles"`
}

// RetriesConfig bounds the workflow's per-role retry policy.
type RetriesConfig struct {
	MaxAuditRetries int `mapstructure:"max_audit_retries"`
	MaxTestRetries  int `mapstructure:"max_test_retries"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultSessionsRootDir returns ~/.metaagent/sessions, or "" if the home
// directory cannot be resolved.
func DefaultSessionsRootDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".metaagent", "sessions")
}

// DefaultTracesFilePath returns ~/.metaagent/traces/traces.jsonl, or "" if
// the home directory cannot be resolved.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".metaagent", "traces", "traces.jsonl")
}

// DefaultConfigPath returns ~/.metaagent/config.toml, or "" if the home
// directory cannot be resolved.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".metaagent", "config.toml")
}

// Defaults returns a Config with the embedded defaults documented in the
// configuration reference: codex selected by default, bounded retries
// matching the workflow's hardcoded ceilings, tracing off.
func Defaults() Config {
	return Config{
		Storage: StorageConfig{
			RootDir: DefaultSessionsRootDir(),
		},
		Backend: BackendConfig{
			Selected: "codex",
			Codex: BackendCodexConfig{
				Program:    "codex",
				ArgsPrefix: []string{"exec", "--dangerously-bypass-approvals-and-sandbox", "--color", "never"},
			},
			Claude: BackendClaudeConfig{
				Program:    "claude",
				ArgsPrefix: []string{"--dangerously-skip-permissions"},
			},
		},
		Codex: CodexConfig{
			ModelProfiles: map[string]CodexModelProfile{
				"large-smart": {Model: "gpt-5.3-codex", ThinkingEffort: "medium"},
			},
			AgentProfiles: map[string]string{
				"master": "large-smart",
			},
		},
		Retries: RetriesConfig{
			MaxAuditRetries: 4,
			MaxTestRetries:  5,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

var allowedBackends = []string{"codex", "claude"}

// ValidateBackend checks that the selected backend is one metaagentd knows
// how to dialect for.
func ValidateBackend(b BackendConfig) error {
	if b.Selected != "" && !slices.Contains(allowedBackends, b.Selected) {
		return fmt.Errorf("backend.selected must be one of %v, got %q", allowedBackends, b.Selected)
	}
	return nil
}

// ValidateRetries checks that retry ceilings are positive.
func ValidateRetries(r RetriesConfig) error {
	if r.MaxAuditRetries <= 0 {
		return fmt.Errorf("retries.max_audit_retries must be positive, got %d", r.MaxAuditRetries)
	}
	if r.MaxTestRetries <= 0 {
		return fmt.Errorf("retries.max_test_retries must be positive, got %d", r.MaxTestRetries)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors. Empty values
// fall back to defaults so validation only rejects recognized-but-invalid
// settings.
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// Validate runs each section's validation function in turn and returns the
// first error found.
func Validate(cfg Config) error {
	if err := ValidateBackend(cfg.Backend); err != nil {
		return err
	}
	if err := ValidateRetries(cfg.Retries); err != nil {
		return err
	}
	if err := ValidateTracing(cfg.Tracing); err != nil {
		return err
	}
	return nil
}

// defaultConfigTemplate is the commented TOML written by WriteDefaultConfig.
const defaultConfigTemplate = `# metaagentd configuration

[storage]
# Root directory for per-session directories.
root_dir = "~/.metaagent/sessions"

[backend]
# Which agent CLI dialect to drive: "codex" or "claude".
selected = "codex"

[backend.codex]
program = "codex"
args_prefix = ["exec", "--dangerously-bypass-approvals-and-sandbox", "--color", "never"]

[backend.claude]
program = "claude"
args_prefix = ["--dangerously-skip-permissions"]

[codex.model_profiles.large-smart]
model = "gpt-5.3-codex"
thinking_effort = "medium"

[codex.agent_profiles]
master = "large-smart"

[retries]
max_audit_retries = 4
max_test_retries = 5

[tracing]
enabled = false
exporter = "file"
# file_path = "~/.metaagent/traces/traces.jsonl"
otlp_endpoint = "localhost:4317"
sample_rate = 1.0
`

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments, creating the parent directory if needed.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigTemplate), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
