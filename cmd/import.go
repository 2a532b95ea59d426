package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"staffplan/core/model"
	"staffplan/infra/logger"
)

// dataset is the JSON shape accepted by the import command. All sections are
// optional.
type dataset struct {
	Members     []model.Member     `json:"members"`
	Initiatives []model.Initiative `json:"initiatives"`
	PTO         []model.PTORecord  `json:"pto"`
	Assignments []model.Assignment `json:"assignments"`
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load members, initiatives, PTO and assignments from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger.New("import-command")

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

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}
	var ds dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return fmt.Errorf("decode dataset: %w", err)
	}
	for _, m := range ds.Members {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	for _, i := range ds.Initiatives {
		if err := i.Validate(); err != nil {
			return err
		}
	}

	if err := adapter.UpsertMembers(ctx, ds.Members); err != nil {
		return fmt.Errorf("import members: %w", err)
	}
	if err := adapter.UpsertInitiatives(ctx, ds.Initiatives); err != nil {
		return fmt.Errorf("import initiatives: %w", err)
	}
	if err := adapter.UpsertPTO(ctx, ds.PTO); err != nil {
		return fmt.Errorf("import pto: %w", err)
	}
	if err := adapter.UpsertAssignments(ctx, ds.Assignments); err != nil {
		return fmt.Errorf("import assignments: %w", err)
	}
	log.Infof("imported %d members, %d initiatives, %d pto records, %d assignments",
		len(ds.Members), len(ds.Initiatives), len(ds.PTO), len(ds.Assignments))
	return nil
}
