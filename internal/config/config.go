// Package config loads the toolkit configuration from
// <workspace>/.quasim/config.json, applying defaults for anything absent and
// QUASIM_* environment overrides on top.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"quasim/internal/control"
)

// Dir is the workspace dot-directory holding config, state, and artifacts.
const Dir = ".quasim"

// BenchConfig sizes benchmark runs.
type BenchConfig struct {
	Runs    int `json:"runs"`
	Workers int `json:"workers"`
}

// AuditConfig configures the audit recorder and its durable tier.
type AuditConfig struct {
	BufferSize   int    `json:"buffer_size"`
	LogPath      string `json:"log_path"`
	DatabasePath string `json:"database_path"`
}

// HcalConfig configures the host calibration planner.
type HcalConfig struct {
	InventoryPath string `json:"inventory_path"`
	StateDir      string `json:"state_dir"`
}

// Config holds all quasim configuration.
type Config struct {
	Simulation   control.Config `json:"simulation"`
	Bench        BenchConfig    `json:"bench"`
	Audit        AuditConfig    `json:"audit"`
	Hcal         HcalConfig     `json:"hcal"`
	ArtifactsDir string         `json:"artifacts_dir"`
}

// Default returns the stock configuration rooted at the workspace.
func Default(workspace string) Config {
	dir := filepath.Join(workspace, Dir)
	return Config{
		Simulation: control.DefaultConfig(),
		Bench:      BenchConfig{Runs: 50, Workers: 4},
		Audit: AuditConfig{
			BufferSize:   256,
			LogPath:      filepath.Join(dir, "logs", "audit.jsonl"),
			DatabasePath: filepath.Join(dir, "quasim.db"),
		},
		Hcal: HcalConfig{
			InventoryPath: filepath.Join(dir, "inventory.yaml"),
			StateDir:      filepath.Join(dir, "calibration"),
		},
		ArtifactsDir: filepath.Join(dir, "artifacts"),
	}
}

// Load reads the workspace config, falling back to defaults when the file is
// absent. Environment overrides are applied last.
func Load(workspace string) (Config, error) {
	cfg := Default(workspace)
	path := filepath.Join(workspace, Dir, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

// Save writes the config to the workspace, creating the dot-directory.
func Save(workspace string, cfg Config) error {
	dir := filepath.Join(workspace, Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnv layers QUASIM_* overrides on top of the loaded config.
func applyEnv(cfg *Config) {
	if v := os.Getenv("QUASIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Simulation.Seed = n
		}
	}
	if v := os.Getenv("QUASIM_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Simulation.Steps = n
		}
	}
	if v := os.Getenv("QUASIM_DB_PATH"); v != "" {
		cfg.Audit.DatabasePath = v
	}
	if v := os.Getenv("QUASIM_AUDIT_LOG"); v != "" {
		cfg.Audit.LogPath = v
	}
	if v := os.Getenv("QUASIM_INVENTORY"); v != "" {
		cfg.Hcal.InventoryPath = v
	}
	if v := os.Getenv("QUASIM_BENCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Bench.Workers = n
		}
	}
}
