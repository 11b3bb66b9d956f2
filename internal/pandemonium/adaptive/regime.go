// Package adaptive implements the userspace control loop: a reflex worker
// reacting to wakeup-latency spikes at sub-millisecond granularity, and a
// monitor worker detecting the system-wide load regime once per second
// and writing baseline knobs. Grounded on original_source/src/adaptive.rs
// and the regime hysteresis table in src/tuning.rs (the later, authoritative
// source per Open Question (a)/(b) — see DESIGN.md).
package adaptive

// Regime is the system-wide load classification the monitor worker
// maintains via a Schmitt trigger over idle-CPU percentage, so a system
// oscillating right at a boundary does not thrash between regimes.
type Regime int

const (
	RegimeLight Regime = iota
	RegimeMixed
	RegimeHeavy
)

func (r Regime) String() string {
	switch r {
	case RegimeLight:
		return "light"
	case RegimeHeavy:
		return "heavy"
	default:
		return "mixed"
	}
}

// Schmitt-trigger thresholds on idle-CPU percentage, carried verbatim from
// tuning.rs. Entering HEAVY requires idle% to fall below HeavyEnterPct;
// leaving HEAVY requires it to climb back above HeavyExitPct, and
// symmetrically for LIGHT at the high end. The gap between enter/exit in
// each direction is deliberate hysteresis, not a copy error.
const (
	HeavyEnterPct = 10
	HeavyExitPct  = 25
	LightEnterPct = 50
	LightExitPct  = 30
)

// DetectRegime applies the Schmitt trigger: the new regime depends on both
// idlePct and the previous regime, so a momentary blip does not flip the
// system back and forth across a boundary.
func DetectRegime(idlePct float64, prev Regime) Regime {
	switch prev {
	case RegimeHeavy:
		if idlePct > HeavyExitPct {
			if idlePct > LightEnterPct {
				return RegimeLight
			}
			return RegimeMixed
		}
		return RegimeHeavy
	case RegimeLight:
		if idlePct < LightExitPct {
			if idlePct < HeavyEnterPct {
				return RegimeHeavy
			}
			return RegimeMixed
		}
		return RegimeLight
	default: // RegimeMixed
		if idlePct < HeavyEnterPct {
			return RegimeHeavy
		}
		if idlePct > LightEnterPct {
			return RegimeLight
		}
		return RegimeMixed
	}
}
