// Package config provides configuration management for the heartbeat engine.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (HEARTBEAT_*)
// 3. Vault config (<vaultRoot>/ops/config.yaml)
// 4. Home config (~/.heartbeat/config.yaml)
// 5. Defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Thresholds bounds the maintenance conditions the engine reacts to in
// phase 5c.
type Thresholds struct {
	InboxThreshold               int `yaml:"inbox_threshold" json:"inbox_threshold"`
	OrphanThreshold              int `yaml:"orphan_threshold" json:"orphan_threshold"`
	ObservationThreshold         int `yaml:"observation_threshold" json:"observation_threshold"`
	TensionThreshold             int `yaml:"tension_threshold" json:"tension_threshold"`
	UnprocessedSessionsThreshold int `yaml:"unprocessed_sessions_threshold" json:"unprocessed_sessions_threshold"`
	StaleDaysThreshold           int `yaml:"stale_days_threshold" json:"stale_days_threshold"`
}

// Maintenance wraps the maintenance condition thresholds.
type Maintenance struct {
	Conditions Thresholds `yaml:"conditions" json:"conditions"`
}

// DesiredState carries free-form operator intent read from config: soft
// targets the engine's recommendations lean toward without enforcing.
type DesiredState struct {
	MaxActiveCommitments int      `yaml:"max_active_commitments" json:"max_active_commitments"`
	PreferredHorizons    []string `yaml:"preferred_horizons" json:"preferred_horizons"`
}

// Config is the engine's resolved runtime configuration.
type Config struct {
	Maintenance  Maintenance  `yaml:"maintenance" json:"maintenance"`
	DesiredState DesiredState `yaml:"desired_state" json:"desired_state"`

	MaxActionsPerRun int    `yaml:"max_actions_per_run" json:"max_actions_per_run"`
	RunnerTimeoutMs  int    `yaml:"runner_timeout_ms" json:"runner_timeout_ms"`
	TaskSelection    string `yaml:"task_selection" json:"task_selection"`
}

// Default returns the spec's documented defaults.
func Default() *Config {
	return &Config{
		Maintenance: Maintenance{Conditions: Thresholds{
			InboxThreshold:               20,
			OrphanThreshold:              10,
			ObservationThreshold:         15,
			TensionThreshold:             5,
			UnprocessedSessionsThreshold: 10,
			StaleDaysThreshold:           14,
		}},
		DesiredState: DesiredState{
			MaxActiveCommitments: 3,
		},
		MaxActionsPerRun: 3,
		RunnerTimeoutMs:  1_800_000,
		TaskSelection:    "queue-first",
	}
}

// Load loads configuration with proper precedence: flags > env > vault >
// home > defaults. vaultRoot locates the vault-level ops/config.yaml.
func Load(vaultRoot string, flagOverrides *Config) (*Config, error) {
	return LoadWithPath(vaultRoot, "", flagOverrides)
}

// LoadWithPath is Load, but when explicitPath is non-empty it is read
// instead of the vault-level ops/config.yaml, for a CLI --config flag that
// points at a file outside the vault.
func LoadWithPath(vaultRoot, explicitPath string, flagOverrides *Config) (*Config, error) {
	cfg := Default()

	if homeConfig, _ := loadFromPath(homeConfigPath()); homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	vaultConfigPath := explicitPath
	if vaultConfigPath == "" {
		vaultConfigPath = filepath.Join(vaultRoot, "ops", "config.yaml")
	}
	if vaultConfig, _ := loadFromPath(vaultConfigPath); vaultConfig != nil {
		cfg = merge(cfg, vaultConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".heartbeat", "config.yaml")
}

// loadFromPath loads config from a YAML file. An empty path yields a nil
// config and no error; a missing or malformed file yields a nil config
// together with the read or parse error, and callers that tolerate it
// simply skip merging it in.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv applies HEARTBEAT_* environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("HEARTBEAT_MAX_ACTIONS_PER_RUN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxActionsPerRun = n
		}
	}
	if v := os.Getenv("HEARTBEAT_RUNNER_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RunnerTimeoutMs = n
		}
	}
	if v := os.Getenv("HEARTBEAT_TASK_SELECTION"); v != "" {
		cfg.TaskSelection = v
	}
	return cfg
}

// merge merges src into dst, with src values taking precedence wherever
// they're non-zero.
func merge(dst, src *Config) *Config {
	if src.MaxActionsPerRun != 0 {
		dst.MaxActionsPerRun = src.MaxActionsPerRun
	}
	if src.RunnerTimeoutMs != 0 {
		dst.RunnerTimeoutMs = src.RunnerTimeoutMs
	}
	if src.TaskSelection != "" {
		dst.TaskSelection = src.TaskSelection
	}
	if src.DesiredState.MaxActiveCommitments != 0 {
		dst.DesiredState.MaxActiveCommitments = src.DesiredState.MaxActiveCommitments
	}
	if len(src.DesiredState.PreferredHorizons) > 0 {
		dst.DesiredState.PreferredHorizons = src.DesiredState.PreferredHorizons
	}
	dst.Maintenance.Conditions = mergeThresholds(dst.Maintenance.Conditions, src.Maintenance.Conditions)
	return dst
}

func mergeThresholds(dst, src Thresholds) Thresholds {
	if src.InboxThreshold != 0 {
		dst.InboxThreshold = src.InboxThreshold
	}
	if src.OrphanThreshold != 0 {
		dst.OrphanThreshold = src.OrphanThreshold
	}
	if src.ObservationThreshold != 0 {
		dst.ObservationThreshold = src.ObservationThreshold
	}
	if src.TensionThreshold != 0 {
		dst.TensionThreshold = src.TensionThreshold
	}
	if src.UnprocessedSessionsThreshold != 0 {
		dst.UnprocessedSessionsThreshold = src.UnprocessedSessionsThreshold
	}
	if src.StaleDaysThreshold != 0 {
		dst.StaleDaysThreshold = src.StaleDaysThreshold
	}
	return dst
}

// Source records where a resolved config value ultimately came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.heartbeat/config.yaml"
	SourceVault   Source = "ops/config.yaml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)
