// Config loading for the porter CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/porter/pkg/types"
)

const defaultConfigFile = "porter.yaml"

// Config keys.
const (
	cfgKeySourceDB    = "source_db"
	cfgKeyDataDir     = "data_dir"
	cfgKeyStageWindow = "stage_window_months"
	cfgKeyLoadWindow  = "load_window_months"
	cfgKeyWorkers     = "workers"
	cfgKeyLogLevel    = "log_level"
)

// defaultConfigYAML is written on first run when no config file exists.
const defaultConfigYAML = `# Porter migration configuration

# Path to the legacy source database (attached read-only).
# source_db: legacy.db

# Working data directory for staging, mappings, and target tables.
data_dir: .porter

# Window widths in months: wide for staging pulls, narrow for target
# loads, tuned so each commit moves a bounded number of rows.
stage_window_months: 3
load_window_months: 1

# Concurrent entity pipelines. The source connection is rate-sensitive;
# do not oversubscribe it.
workers: 4

log_level: info
`

// loadConfig reads the config file with Viper. With no explicit path, a
// missing porter.yaml is created with defaults first; an explicit path
// that does not exist is an error.
func loadConfig(path string) (types.Config, error) {
	v := viper.New()
	v.SetDefault(cfgKeyDataDir, ".porter")
	v.SetDefault(cfgKeyStageWindow, types.DefaultStageWindowMonths)
	v.SetDefault(cfgKeyLoadWindow, types.DefaultLoadWindowMonths)
	v.SetDefault(cfgKeyWorkers, types.DefaultWorkers)
	v.SetDefault(cfgKeyLogLevel, types.DefaultLogLevel)

	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
		if err := ensureDefaultConfigFile(path); err != nil {
			return types.Config{}, err
		}
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return types.Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := types.Config{
		SourceDB:          v.GetString(cfgKeySourceDB),
		DataDir:           v.GetString(cfgKeyDataDir),
		StageWindowMonths: v.GetInt(cfgKeyStageWindow),
		LoadWindowMonths:  v.GetInt(cfgKeyLoadWindow),
		Workers:           v.GetInt(cfgKeyWorkers),
		LogLevel:          v.GetString(cfgKeyLogLevel),
	}
	return cfg, nil
}

// ensureDefaultConfigFile creates a default config file if none exists.
func ensureDefaultConfigFile(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
