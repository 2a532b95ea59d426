// Package cmd wires the staffplan command line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"staffplan/config"
	"staffplan/core/storage"
	"staffplan/infra/storage/memory"
	"staffplan/infra/storage/sqlite"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "staffplan",
	Short: "Team capacity planner",
	Long:  "staffplan allocates member capacity to initiatives over a window of ISO weeks.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// ExecuteContext runs the CLI under the given context, typically one bound to
// process signals.
func ExecuteContext(ctx context.Context) error { return rootCmd.ExecuteContext(ctx) }

func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openAdapter opens the configured storage backend. The returned closer is a
// no-op for the in-memory backend.
func openAdapter(cfg *config.Config) (storage.Adapter, func() error, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		a, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return a, a.Close, nil
	default:
		return memory.New(), func() error { return nil }, nil
	}
}
