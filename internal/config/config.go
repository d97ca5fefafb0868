package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"docforge/internal/guard"
)

// Config holds all docforge configuration.
type Config struct {
	// Guard limits applied to every execution attempt.
	Guard guard.Limits `yaml:"guard"`

	// Blocks configures anchoring and persistence.
	Blocks BlocksConfig `yaml:"blocks"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// BlocksConfig configures block anchoring and the backup store.
type BlocksConfig struct {
	// Anchor selects the default placement for fresh anchors:
	// "cursor" or "end".
	Anchor string `yaml:"anchor"`

	// ForceMarkers uses hidden marker pairs even on hosts with
	// bookmark support.
	ForceMarkers bool `yaml:"force_markers"`

	// BackupDB is the SQLite path for pre-image backups. ":memory:"
	// keeps backups for the process lifetime only; empty disables them.
	BackupDB string `yaml:"backup_db"`

	// ChangeLog appends an entry to the changelog block after every
	// content-changing upsert.
	ChangeLog bool `yaml:"change_log"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Guard: guard.DefaultLimits(),
		Blocks: BlocksConfig{
			Anchor:    "cursor",
			BackupDB:  "data/docforge.db",
			ChangeLog: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides lets the environment win over file values, for
// container deployments where editing the config file is awkward.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCFORGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DOCFORGE_BACKUP_DB"); v != "" {
		c.Blocks.BackupDB = v
	}
	if v := os.Getenv("DOCFORGE_MAX_OPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Guard.MaxOps = n
		}
	}
	if v := os.Getenv("DOCFORGE_DEADLINE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Guard.DeadlineMs = n
		}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Guard.MaxOps < 1 {
		return fmt.Errorf("guard.max_ops must be >= 1")
	}
	if c.Guard.MaxTextLen < 1 {
		return fmt.Errorf("guard.max_text_len must be >= 1")
	}
	if c.Guard.MaxTableCells < 1 {
		return fmt.Errorf("guard.max_table_cells must be >= 1")
	}
	if c.Guard.DeadlineMs < 1 {
		return fmt.Errorf("guard.deadline_ms must be >= 1")
	}
	switch c.Blocks.Anchor {
	case "cursor", "end":
	default:
		return fmt.Errorf("blocks.anchor must be \"cursor\" or \"end\", got %q", c.Blocks.Anchor)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	return nil
}
