package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"staffplan/core/planner"
	"staffplan/infra/logger"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check stored data for inconsistencies",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	log := logger.New("validate-command")

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

	problems, err := planner.ValidateDataset(cmd.Context(), adapter)
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "OK")
		return nil
	}
	for _, p := range problems {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return fmt.Errorf("%d problem(s) found", len(problems))
}
