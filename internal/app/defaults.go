package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that relocate ibk's files.
const (
	ConfigPathEnv = "IBK_CONFIG_PATH"
	HomeEnv       = "IBK_HOME"
)

// GetDefaults locates the config file and the data directory that holds the
// history database, the age keys and the run logs.
//
// Keys: "config_path" (~/.config/ibk.toml), "base_dir" (~/.local/share/ibk)
// and "log_dir" (base_dir/log).
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome(ConfigPathEnv, ".config", "ibk.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome(HomeEnv, ".local", "share", "ibk")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns $env when it is set, otherwise elem joined under the
// user's home directory.
func envOrHome(env string, elem ...string) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory (set %s): %w", env, err)
	}
	return filepath.Join(append([]string{home}, elem...)...), nil
}
