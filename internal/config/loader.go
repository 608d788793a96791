package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"tasksync/pkg/logging"
)

const (
	// StateDirName is the workspace-local hidden directory holding all
	// engine state (config, mappings, snapshots, op log).
	StateDirName = ".tasksync"
	// ConfigFileName is the authoritative configuration document.
	ConfigFileName = "config.json"
)

// StateDir returns the engine state directory under the given workspace
// root. An empty root means the current directory.
func StateDir(workspaceRoot string) string {
	if workspaceRoot == "" {
		workspaceRoot = "."
	}
	return filepath.Join(workspaceRoot, StateDirName)
}

// Load reads config.json from the state directory, merging over defaults.
// A missing file yields the defaults; a malformed file is an error.
func Load(stateDir string) (Config, error) {
	configFilePath := filepath.Join(stateDir, ConfigFileName)
	cfg := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No %s found at %s, using defaults", ConfigFileName, configFilePath)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading %s: %w", configFilePath, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", configFilePath, err)
	}
	if cfg.ConflictStrategy != "" && !cfg.ConflictStrategy.Valid() {
		return Config{}, fmt.Errorf("invalid conflictStrategy %q in %s", cfg.ConflictStrategy, configFilePath)
	}
	logging.Debug("Config", "Loaded configuration from %s", configFilePath)
	return cfg, nil
}

// Save writes the config document back to the state directory. Writes go
// through a temp file and rename so a crash never leaves a torn document.
func Save(stateDir string, cfg Config) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("creating state dir %s: %w", stateDir, err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	configFilePath := filepath.Join(stateDir, ConfigFileName)
	tmp := configFilePath + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, configFilePath); err != nil {
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}

// Scaffold creates the state directory with a default config.json and a
// .gitignore, leaving existing files alone.
func Scaffold(stateDir string) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("creating state dir %s: %w", stateDir, err)
	}
	configFilePath := filepath.Join(stateDir, ConfigFileName)
	if _, err := os.Stat(configFilePath); errors.Is(err, os.ErrNotExist) {
		if err := Save(stateDir, GetDefaultConfig()); err != nil {
			return err
		}
	}
	gitignorePath := filepath.Join(stateDir, ".gitignore")
	if _, err := os.Stat(gitignorePath); errors.Is(err, os.ErrNotExist) {
		content := "snapshots/\nops-log.jsonl\n"
		if err := os.WriteFile(gitignorePath, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", gitignorePath, err)
		}
	}
	return nil
}
