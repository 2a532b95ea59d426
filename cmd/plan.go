package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cobra"

	"staffplan/core/calendar"
	coremetrics "staffplan/core/metrics"
	"staffplan/core/planner"
	"staffplan/core/storage"
	"staffplan/infra/logger"
	"staffplan/infra/metrics"
	"staffplan/pkg/export"
)

var (
	planFrom      string
	planTo        string
	planAlgorithm string
	planRecreate  bool
	planFormat    string
	planOutput    string
	planApply     bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute a staffing plan for a window of weeks",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planFrom, "from", "", "window start (any parseable date, snapped to its ISO Monday)")
	planCmd.Flags().StringVar(&planTo, "to", "", "window end, inclusive")
	planCmd.Flags().StringVar(&planAlgorithm, "algorithm", "", "greedy, ilp or ilp-pref (default from config)")
	planCmd.Flags().BoolVar(&planRecreate, "recreate", false, "ignore existing assignments and plan from scratch")
	planCmd.Flags().StringVar(&planFormat, "format", "json", "output format: json or csv")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "output file (default stdout)")
	planCmd.Flags().BoolVar(&planApply, "apply", false, "persist the computed assignments to storage")
	if err := planCmd.MarkFlagRequired("from"); err != nil {
		panic(err)
	}
	if err := planCmd.MarkFlagRequired("to"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger.New("plan-command")

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

	from, err := parseWindowDate(planFrom)
	if err != nil {
		return fmt.Errorf("parse --from: %w", err)
	}
	to, err := parseWindowDate(planTo)
	if err != nil {
		return fmt.Errorf("parse --to: %w", err)
	}

	algorithm := planner.Algorithm(cfg.Planner.DefaultAlgorithm)
	if planAlgorithm != "" {
		algorithm, err = planner.ParseAlgorithm(planAlgorithm)
		if err != nil {
			return err
		}
	}

	sink := planSink(log)
	start := time.Now()
	res, err := planner.Plan(ctx, adapter, from, to, algorithm, planRecreate, cfg.Planner, log)
	if err != nil {
		return err
	}
	if serr := sink.RecordPlanRun(coremetrics.PlanRun{
		Algorithm:    string(algorithm),
		SolverStatus: res.Summary.SolverStatus,
		Unstaffed:    res.Summary.InitiativesUnstaffed,
		Duration:     time.Since(start),
	}); serr != nil {
		log.Warnf("record plan run: %v", serr)
	}

	if planApply {
		if err := applyPlan(ctx, adapter, res, planRecreate); err != nil {
			return fmt.Errorf("apply plan: %w", err)
		}
		log.Infof("applied %d assignments", len(res.Assignments))
	}

	doc := export.NewDocument(res, from, to, algorithm, planRecreate)
	return writeDocument(doc, planFormat, planOutput)
}

// parseWindowDate accepts anything dateparse understands and snaps it to the
// Monday of its ISO week.
func parseWindowDate(s string) (time.Time, error) {
	d, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, err
	}
	return calendar.ISOMonday(d), nil
}

// applyPlan persists the plan. With recreate, all previously stored
// assignments are removed first so the store mirrors the fresh plan.
func applyPlan(ctx context.Context, adapter storage.Adapter, res *planner.Result, recreate bool) error {
	if recreate {
		existing, err := adapter.ListAssignments(ctx)
		if err != nil {
			return err
		}
		keys := make([]storage.MemberWeekKey, 0, len(existing))
		for _, a := range existing {
			keys = append(keys, storage.MemberWeekKey{MemberName: a.MemberName, WeekStart: a.WeekStart})
		}
		if err := adapter.DeleteAssignments(ctx, keys); err != nil {
			return err
		}
	}
	return adapter.UpsertAssignments(ctx, res.Assignments)
}

func planSink(log logger.Logger) coremetrics.PlanSink {
	sink, err := metrics.NewPromSink()
	if err != nil {
		log.Warnf("prometheus sink unavailable: %v", err)
		return coremetrics.NopSink{}
	}
	return sink
}

func writeDocument(doc export.Document, format, output string) error {
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	switch format {
	case "json":
		return export.WriteJSON(w, doc)
	case "csv":
		return export.WriteCSV(w, doc)
	default:
		return fmt.Errorf("unknown format %q (want json or csv)", format)
	}
}
