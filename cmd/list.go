package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"staffplan/core/storage"
	"staffplan/infra/logger"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print stored entities as JSON",
}

func init() {
	listCmd.AddCommand(
		listSubcommand("members", func(ctx context.Context, a storage.Adapter) (any, error) {
			return a.ListMembers(ctx)
		}),
		listSubcommand("initiatives", func(ctx context.Context, a storage.Adapter) (any, error) {
			return a.ListInitiatives(ctx)
		}),
		listSubcommand("pto", func(ctx context.Context, a storage.Adapter) (any, error) {
			return a.ListPTO(ctx)
		}),
		listSubcommand("assignments", func(ctx context.Context, a storage.Adapter) (any, error) {
			return a.ListAssignments(ctx)
		}),
	)
	rootCmd.AddCommand(listCmd)
}

func listSubcommand(name string, load func(context.Context, storage.Adapter) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: "List " + name,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New("list-command")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			adapter, closeAdapter, err := openAdapter(cfg)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer func() {
				if err := closeAdapter(); err != nil {
					log.Errorf("storage close: %v", err)
				}
			}()

			entities, err := load(cmd.Context(), adapter)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entities)
		},
	}
}
