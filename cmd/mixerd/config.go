// config.go - Configuration management for the mixer daemon
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the daemon configuration
type Config struct {
	// Pool deployment settings
	TreeDepth         int    `json:"tree_depth"`
	RootsCount        int    `json:"roots_count"`
	ChangeCommitments int    `json:"change_commitments"`
	DepositMinimum    uint64 `json:"deposit_minimum"`
	NullifierMBR      uint64 `json:"nullifier_mbr"`

	// File paths
	DataDir string `json:"data_dir"`
	KeyDir  string `json:"key_dir"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Rate limiting for call submission
	RateLimitTokens int `json:"rate_limit_tokens"`
	RateLimitRefill int `json:"rate_limit_refill"`

	// Security
	EnableAudit    bool   `json:"enable_audit"`
	AuditLogPath   string `json:"audit_log_path"`
	BackupPassword string `json:"backup_password,omitempty"`
}

// DefaultDaemonConfig returns the default configuration
func DefaultDaemonConfig() *Config {
	return &Config{
		TreeDepth:         32,
		RootsCount:        50,
		ChangeCommitments: 1,
		DepositMinimum:    1_000_000,
		NullifierMBR:      15_300,
		DataDir:           "pool.db",
		KeyDir:            "keys",
		LogLevel:          "info",
		LogFile:           "mixerd.log",
		RateLimitTokens:   10,
		RateLimitRefill:   1,
		EnableAudit:       true,
		AuditLogPath:      "audit.log",
	}
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		var config Config
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return &config, nil
	}

	// Create default config and save it
	config := DefaultDaemonConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TreeDepth <= 0 || c.TreeDepth > 32 {
		return fmt.Errorf("tree_depth must be in [1, 32]")
	}
	if c.RootsCount <= 0 {
		return fmt.Errorf("roots_count must be positive")
	}
	if c.ChangeCommitments != 1 && c.ChangeCommitments != 2 {
		return fmt.Errorf("change_commitments must be 1 or 2")
	}
	if c.DepositMinimum == 0 {
		return fmt.Errorf("deposit_minimum must be positive")
	}
	if c.RateLimitTokens <= 0 {
		return fmt.Errorf("rate_limit_tokens must be positive")
	}
	if c.RateLimitRefill <= 0 {
		return fmt.Errorf("rate_limit_refill must be positive")
	}
	return nil
}
