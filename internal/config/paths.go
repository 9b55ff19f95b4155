package config

import (
	"os"
	"path/filepath"
)

const appDirName = "gh2jira"

// DefaultConfigPath returns the default configuration file location inside the
// user's config directory. Falls back to a relative path when the config
// directory cannot be determined.
func DefaultConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(configDir, appDirName, "config.yaml")
}

// DefaultStatePath returns the default watermark state file location. Tries
// XDG_DATA_HOME first, then falls back to ~/.local/share.
func DefaultStatePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "state.yaml"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, appDirName, "state.yaml")
}
