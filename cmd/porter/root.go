// Root command, global flags, and shared phase wiring.
package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/porter/internal/logging"
	"github.com/mesh-intelligence/porter/internal/store"
	"github.com/mesh-intelligence/porter/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Global flag values.
var (
	flagConfig  string
	flagDataDir string
	flagSource  string
	flagJSON    bool
	flagVerbose bool
)

// Shared phase state, initialized by PersistentPreRunE.
var (
	cfg    types.Config
	st     *store.Store
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "porter",
	Short: "Porter migrates a legacy billing database into the new operations schema",
	Long: `Porter is a batched, idempotent, dependency-ordered migration engine.
It snapshots the legacy source into local staging, seeds durable
source-to-target key mappings, loads target entities in dependency
order with windowed commits for oversized tables, reconciles gaps,
and verifies row counts. Every phase is safe to re-run.`,
	SilenceUsage:       true,
	PersistentPreRunE:  initPhase,
	PersistentPostRunE: closePhase,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: porter.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "working data directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagSource, "source", "", "legacy source database path (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(statusCmd)
}

// initPhase loads configuration, builds the logger, and opens the
// working store. The version command runs without any of that.
func initPhase(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	var err error
	cfg, err = loadConfig(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagSource != "" {
		cfg.SourceDB = flagSource
	}
	cfg = cfg.WithDefaults()
	if flagVerbose {
		cfg.LogLevel = "debug"
	}

	logger, err = logging.New(cfg.LogLevel, flagJSON)
	if err != nil {
		return err
	}

	st, err = store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	return nil
}

// closePhase releases the store and flushes the logger.
func closePhase(cmd *cobra.Command, args []string) error {
	if st != nil {
		if err := st.Close(); err != nil {
			return err
		}
	}
	if logger != nil {
		_ = logger.Sync()
	}
	return nil
}

// exitCode classifies an error per the phase taxonomy: connectivity and
// schema failures are system errors, everything else user error.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	if errors.Is(err, types.ErrSourceUnavailable) || errors.Is(err, types.ErrStoreClosed) {
		return exitSysError
	}
	return exitUserError
}

// entityArg resolves an optional --entity flag value.
func entityArg(name string) ([]types.EntityType, error) {
	if name == "" {
		return types.AllEntities, nil
	}
	e, err := types.ParseEntity(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}
	return []types.EntityType{e}, nil
}
