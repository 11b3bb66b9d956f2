// Package preempt implements the two preemption mechanisms spec.md §4.D
// names: a periodic scan path gated on a deterministic due-clock (the
// Go-simulation stand-in for a wall-clock timer, since the harness has no
// real ticker to attach one to), and a tick-callback-driven check for an
// interactive task waiting behind a batch task. Grounded on the watchdog
// timer and kick paths in original_source/src/bpf/main.bpf.c.
package preempt

import (
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/dispatch"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/stats"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"
)

// GuardWindowNs is how long an interactive guard clamp holds once the
// tick callback or Enqueue's soft nudge sets it, spec.md §4.D's
// guard_until = now + 1ms. GuardBatchSliceNs is the separate ceiling a
// running batch task's slice is clamped to while that window is active.
const (
	GuardWindowNs      = 1_000_000 // 1ms
	GuardBatchSliceNs  = 200_000   // 200us
)

// Scanner drives the periodic scan mechanism (spec.md §4.D's first,
// "necessary" path): every TimerIntervalNs the harness's Due check fires.
// Due only reports that a scan pass is due; it does not kick or count
// anything itself. A zero interval disables
// the scan, matching spec.md's "timer_interval_ns, 0 disables" rule.
// There is no wall-clock ticker here because the simulation harness runs
// its own deterministic clock rather than real time.
type Scanner struct {
	Stats     *stats.Registry
	nextDueNs int64
}

func NewScanner(reg *stats.Registry) *Scanner {
	return &Scanner{Stats: reg}
}

// Due reports whether nowNs has reached the scanner's next scheduled
// firing, advancing the schedule to nowNs+timerIntervalNs if so.
func (s *Scanner) Due(nowNs, timerIntervalNs int64) bool {
	if timerIntervalNs <= 0 {
		return false
	}
	if nowNs < s.nextDueNs {
		return false
	}
	s.nextDueNs = nowNs + timerIntervalNs
	return true
}

// KickIfOverrun reports whether a running batch task has exceeded
// preemptThreshNs of continuous runtime and should be kicked (preempted).
func KickIfOverrun(runningForNs int64, preemptThreshNs int64) (kick bool) {
	return runningForNs >= preemptThreshNs
}

// CheckInteractive is the tick-callback path: called once per CPU per
// tick with the task currently occupying that CPU and the tier of a
// waiting task (Engine.Tick passes the tier at the head of the local
// queue; Enqueue passes a newcomer's tier). If a lat_critical or
// interactive task is waiting behind a running batch task, the running
// task's guard_until is set GuardWindowNs out from now, forcing it to
// yield soon without a hard preemption.
func CheckInteractive(running *task.Context, waitingTier task.Tier, nowNs int64, cpuStats *stats.PerCPU) {
	if running == nil {
		return
	}
	if running.Tier == task.TierBatch && waitingTier != task.TierBatch {
		running.GuardUntilNs = nowNs + GuardWindowNs
		if cpuStats != nil {
			cpuStats.NrGuardClamps++
		}
	}
}

// PastGuard reports whether nowNs has reached a task's guard deadline,
// meaning Stopping should be forced even if the task hasn't voluntarily
// yielded.
func PastGuard(t *task.Context, nowNs int64) bool {
	return t.GuardUntilNs != 0 && nowNs >= t.GuardUntilNs
}

// EffectiveSliceNs computes the slice length spec.md §4.C's per-tier
// table assigns a task about to run: LAT_CRITICAL gets 1.5x avg_runtime,
// INTERACTIVE 2x avg_runtime (both capped at slice_ns), BATCH gets
// batch_slice_ns outright. dispatch.LagScaleShrink then applies the
// dispatch-pressure knob, and a still-active interactive guard window
// clamps a BATCH task's slice to GuardBatchSliceNs (other tiers are not
// clamped), forcing it to yield soon without a hard preemption. The result is
// always at least task.SliceMinNs.
func EffectiveSliceNs(t *task.Context, k task.TuningKnobs, nowNs int64, cpuStats *stats.PerCPU) int64 {
	var raw int64
	switch t.Tier {
	case task.TierLatCritical:
		raw = int64(t.AvgRuntimeNs) + int64(t.AvgRuntimeNs)/2
		if k.SliceNs > 0 && raw > k.SliceNs {
			raw = k.SliceNs
		}
	case task.TierInteractive:
		raw = int64(t.AvgRuntimeNs) * 2
		if k.SliceNs > 0 && raw > k.SliceNs {
			raw = k.SliceNs
		}
	default:
		raw = k.BatchSliceNs
	}
	if raw <= 0 && cpuStats != nil {
		cpuStats.NrZeroSlice++
	}

	raw = dispatch.LagScaleShrink(raw, k.LagScale)

	if t.Tier == task.TierBatch && t.GuardUntilNs != 0 && nowNs < t.GuardUntilNs && raw > GuardBatchSliceNs {
		raw = GuardBatchSliceNs
	}

	if raw < task.SliceMinNs {
		raw = task.SliceMinNs
	}
	return raw
}
