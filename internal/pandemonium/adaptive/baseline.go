package adaptive

import "github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"

// Per-regime baseline knob tables, carried from tuning.rs (the later,
// authoritative variant — adaptive.rs's earlier table differs slightly and
// is superseded per DESIGN.md). Values are nanoseconds except LagScale,
// which is a dimensionless percentage-style scale factor.
var baselines = map[Regime]task.TuningKnobs{
	RegimeLight: {
		SliceNs:          6_000_000,
		PreemptThreshNs:  4_000_000,
		LagScale:         0,
		BatchSliceNs:     8_000_000,
		TimerIntervalNs:  20_000_000,
		P99CeilingNs:     2_000_000,
		CPUBoundThreshNs: 3_500_000,
		LatCriThreshHigh: 32,
		LatCriThreshLow:  8,
	},
	RegimeMixed: {
		SliceNs:          3_000_000,
		PreemptThreshNs:  2_000_000,
		LagScale:         20,
		BatchSliceNs:     4_000_000,
		TimerIntervalNs:  10_000_000,
		P99CeilingNs:     1_000_000,
		CPUBoundThreshNs: 2_500_000,
		LatCriThreshHigh: 32,
		LatCriThreshLow:  8,
	},
	RegimeHeavy: {
		SliceNs:          1_500_000,
		PreemptThreshNs:  800_000,
		LagScale:         60,
		BatchSliceNs:     2_000_000,
		TimerIntervalNs:  5_000_000,
		P99CeilingNs:     500_000,
		CPUBoundThreshNs: 2_000_000,
		LatCriThreshHigh: 28,
		LatCriThreshLow:  6,
	},
}

// Baseline returns a copy of the baseline knob set for a regime.
func Baseline(r Regime) task.TuningKnobs {
	return baselines[r]
}

// SamplesPerCheck is the reflex worker's per-regime sampling cadence
// before it re-evaluates its P99 window, ported from tuning.rs's
// per-regime SAMPLES_PER_CHECK table (lighter regimes re-evaluate after fewer samples).
func SamplesPerCheck(r Regime) int {
	switch r {
	case RegimeLight:
		return 16
	case RegimeHeavy:
		return 64
	default:
		return 32
	}
}

// DemotionThresholdNs is the regime-scoped batch-demotion threshold,
// resolving Open Question (b): promoted from spec.md's flat 2.5ms constant
// to a per-regime knob, per tuning.rs's LIGHT/MIXED/HEAVY_DEMOTION_NS.
func DemotionThresholdNs(r Regime) int64 {
	return baselines[r].CPUBoundThreshNs
}
