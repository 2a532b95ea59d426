package planner

import "fmt"

// ILPWeights tunes the completion-priority objective of the standard ILP
// profile.
type ILPWeights struct {
	// EarlyWeekBonus rewards assignments proportionally to the number of
	// weeks remaining in the window, front-loading work.
	EarlyWeekBonus float64 `json:"early_week_bonus"`
	// MemberChunkTransitionPenalty discourages fragmented member schedules
	// by charging every on/off flip of a member-initiative pairing.
	MemberChunkTransitionPenalty float64 `json:"member_chunk_transition_penalty"`
	// InitSpanTransitionPenalty charges flips of initiative activity.
	InitSpanTransitionPenalty float64 `json:"init_span_transition_penalty"`
	// InitActiveWeekPenalty discourages spreading an initiative thin over
	// many weeks.
	InitActiveWeekPenalty float64 `json:"init_active_week_penalty"`
	// CompletePriorityWeight is the large multiplier on completion,
	// scaled by (6 - priority).
	CompletePriorityWeight float64 `json:"complete_priority_weight"`
}

// ILPConfig bounds the standard ILP profile.
type ILPConfig struct {
	TimeLimitS int     `json:"time_limit_s"`
	MIPGap     float64 `json:"mip_gap"`
	Threads    int     `json:"threads"`
	// EnableIdleFill runs the greedy backfill pass on leftover capacity
	// after the solve. Defaults to false for this profile.
	EnableIdleFill *bool      `json:"enable_idle_fill"`
	Weights        ILPWeights `json:"weights"`
}

// IdleFillEnabled resolves the optional flag against the profile default.
func (c ILPConfig) IdleFillEnabled() bool {
	return c.EnableIdleFill != nil && *c.EnableIdleFill
}

// ILPPrefWeights tunes the preference-weighted profile.
type ILPPrefWeights struct {
	UtilizationWeight       float64 `json:"utilization_weight"`
	CompletionWeightBase    float64 `json:"completion_weight_base"`
	Priority1Multiplier     float64 `json:"priority1_multiplier"`
	BreadthWeight           float64 `json:"breadth_weight"`
	PrefSquadBonus          float64 `json:"pref_squad_bonus"`
	DeadlinePenaltyPerWeek  float64 `json:"deadline_penalty_per_week"`
	RoadmapTargetRatio      float64 `json:"roadmap_target_ratio"`
	RoadmapDeviationPenalty float64 `json:"roadmap_deviation_penalty"`
}

// ILPPrefConfig bounds the preference-weighted ILP profile.
type ILPPrefConfig struct {
	TimeLimitS int     `json:"time_limit_s"`
	MIPGap     float64 `json:"mip_gap"`
	Threads    int     `json:"threads"`
	// EnableIdleFill defaults to true for this profile.
	EnableIdleFill *bool          `json:"enable_idle_fill"`
	Weights        ILPPrefWeights `json:"weights"`
}

// IdleFillEnabled resolves the optional flag against the profile default.
func (c ILPPrefConfig) IdleFillEnabled() bool {
	return c.EnableIdleFill == nil || *c.EnableIdleFill
}

// Config carries planner tuning for all algorithms.
type Config struct {
	DefaultAlgorithm string        `json:"default_algorithm"`
	ILP              ILPConfig     `json:"ilp"`
	ILPPref          ILPPrefConfig `json:"ilp_pref"`
}

// SetDefaults applies the default weight bundles.
func (c *Config) SetDefaults() {
	if c.DefaultAlgorithm == "" {
		c.DefaultAlgorithm = string(AlgorithmGreedy)
	}
	if c.ILP.TimeLimitS == 0 {
		c.ILP.TimeLimitS = 120
	}
	if c.ILP.MIPGap == 0 {
		c.ILP.MIPGap = 0.01
	}
	w := &c.ILP.Weights
	if w.EarlyWeekBonus == 0 {
		w.EarlyWeekBonus = 0.25
	}
	if w.MemberChunkTransitionPenalty == 0 {
		w.MemberChunkTransitionPenalty = 2.0
	}
	if w.InitSpanTransitionPenalty == 0 {
		w.InitSpanTransitionPenalty = 1.0
	}
	if w.InitActiveWeekPenalty == 0 {
		w.InitActiveWeekPenalty = 0.25
	}
	if w.CompletePriorityWeight == 0 {
		w.CompletePriorityWeight = 1000.0
	}

	if c.ILPPref.TimeLimitS == 0 {
		c.ILPPref.TimeLimitS = 120
	}
	if c.ILPPref.MIPGap == 0 {
		c.ILPPref.MIPGap = 0.01
	}
	pw := &c.ILPPref.Weights
	if pw.UtilizationWeight == 0 {
		pw.UtilizationWeight = 1.0
	}
	if pw.CompletionWeightBase == 0 {
		pw.CompletionWeightBase = 800.0
	}
	if pw.Priority1Multiplier == 0 {
		pw.Priority1Multiplier = 5.0
	}
	if pw.BreadthWeight == 0 {
		pw.BreadthWeight = 5.0
	}
	if pw.PrefSquadBonus == 0 {
		pw.PrefSquadBonus = 2.0
	}
	if pw.DeadlinePenaltyPerWeek == 0 {
		pw.DeadlinePenaltyPerWeek = 20.0
	}
	if pw.RoadmapTargetRatio == 0 {
		pw.RoadmapTargetRatio = 0.6
	}
	if pw.RoadmapDeviationPenalty == 0 {
		pw.RoadmapDeviationPenalty = 10.0
	}
}

// Validate checks the configuration for values the planners cannot work with.
func (c Config) Validate() error {
	if _, err := ParseAlgorithm(c.DefaultAlgorithm); err != nil {
		return fmt.Errorf("default_algorithm: %w", err)
	}
	if c.ILP.TimeLimitS < 0 || c.ILPPref.TimeLimitS < 0 {
		return fmt.Errorf("time_limit_s must be nonnegative")
	}
	if c.ILP.MIPGap < 0 || c.ILPPref.MIPGap < 0 {
		return fmt.Errorf("mip_gap must be nonnegative")
	}
	if r := c.ILPPref.Weights.RoadmapTargetRatio; r < 0 || r > 1 {
		return fmt.Errorf("roadmap_target_ratio %v out of range [0,1]", r)
	}
	return nil
}
