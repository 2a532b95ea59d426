// Package planner computes staffing plans over a window of ISO weeks. Three
// algorithms share one storage snapshot: a rank-ordered greedy pass, a
// completion-maximizing ILP and a preference-weighted ILP, the latter two
// optionally followed by an idle-capacity backfill.
package planner

import (
	"context"
	"fmt"
	"time"

	"staffplan/core/logger"
	"staffplan/core/storage"
)

// Plan computes a staffing plan for the window [from, to] using the selected
// algorithm. The result is returned, not persisted; callers decide whether to
// apply it. With recreate set, existing assignments neither occupy member
// weeks nor count toward initiative targets.
func Plan(ctx context.Context, adapter storage.Adapter, from, to time.Time, algorithm Algorithm, recreate bool, cfg Config, log logger.Logger) (*Result, error) {
	if log == nil {
		log = nopLogger{}
	}
	if _, err := ParseAlgorithm(string(algorithm)); err != nil {
		return nil, err
	}

	s, err := loadSnapshot(ctx, adapter, from, to, recreate)
	if err != nil {
		return nil, fmt.Errorf("load planning snapshot: %w", err)
	}
	log.Debugw("planning window loaded", map[string]any{
		"algorithm":   string(algorithm),
		"weeks":       len(s.weeks),
		"members":     len(s.members),
		"initiatives": len(s.inits),
		"recreate":    recreate,
	})

	switch algorithm {
	case AlgorithmGreedy:
		return planGreedy(s, log), nil
	case AlgorithmILP:
		limits := solveLimits{
			timeLimit: time.Duration(cfg.ILP.TimeLimitS) * time.Second,
			gap:       cfg.ILP.MIPGap,
			threads:   cfg.ILP.Threads,
		}
		return planILP(s, standardPolicy(cfg.ILP.Weights), limits, cfg.ILP.IdleFillEnabled(), log), nil
	case AlgorithmILPPref:
		limits := solveLimits{
			timeLimit: time.Duration(cfg.ILPPref.TimeLimitS) * time.Second,
			gap:       cfg.ILPPref.MIPGap,
			threads:   cfg.ILPPref.Threads,
		}
		return planILP(s, preferencePolicy(cfg.ILPPref.Weights), limits, cfg.ILPPref.IdleFillEnabled(), log), nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q", algorithm)
	}
}

// nopLogger keeps the hot paths free of nil checks when no logger is wired.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
