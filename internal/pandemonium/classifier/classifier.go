// Package classifier scores and tiers tasks from their observed runtime
// behavior: wakeup frequency, voluntary context-switch rate, mean runtime,
// and a composite latency-criticality score. Grounded on the classification
// pass in original_source/src/bpf/main.bpf.c (classify_weight, calc_avg,
// is_compositor) and the threshold constants in src/tuning.rs.
package classifier

import (
	"strings"
	"sync"
	"time"

	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"
)

// wakeupFreqScaleNs is the 10^8ns (100ms) window update_freq() in
// main.bpf.c scales a wake-to-wake interval against: a task waking every
// interval_ns gets a frequency sample of wakeupFreqScaleNs/interval_ns.
const wakeupFreqScaleNs = 100_000_000

// WakeupFrequencySample converts a raw wake-to-wake delta into the
// frequency-domain sample ComputeWakeupFrequency folds into the running
// average, matching update_freq()'s interval-to-frequency conversion.
func WakeupFrequencySample(deltaWakeNs int64) uint64 {
	if deltaWakeNs <= 0 {
		return task.MaxWakeupFreq
	}
	return uint64(wakeupFreqScaleNs / deltaWakeNs)
}

// compilerCommNames carry a half-strength weight boost under --build-mode,
// ported from classify_weight()'s comm-name table in main.bpf.c.
var compilerCommNames = map[string]bool{
	"cc1": true, "c++": true, "clang": true, "clang++": true,
	"rustc": true, "gcc": true, "g++": true, "go": true, "javac": true,
}

// linkerCommNames carry a smaller boost than the compiler table.
var linkerCommNames = map[string]bool{
	"ld": true, "lld": true, "ld.lld": true, "mold": true, "as": true, "ar": true,
}

const (
	compilerWeightBoost = 200
	linkerWeightBoost   = 150
)

// defaultCompositors is the startup-populated set spec.md names; callers
// may extend it via config or repeated --compositor flags.
var defaultCompositors = []string{
	"kwin_x11", "kwin_wayland", "gnome-shell", "sway", "Hyprland", "picom", "weston",
}

// Classifier holds the mutable, user-extensible compositor allow-list and
// the build-mode flag. It has no other state: all per-task signal state
// lives in task.Context, folded by task.FoldEWMA by the caller on every
// accounting window close.
type Classifier struct {
	mu          sync.RWMutex
	compositors map[string]bool
	buildMode   bool
}

func New(buildMode bool, extraCompositors []string) *Classifier {
	c := &Classifier{
		compositors: make(map[string]bool, len(defaultCompositors)+len(extraCompositors)),
		buildMode:   buildMode,
	}
	for _, name := range defaultCompositors {
		c.compositors[name] = true
	}
	for _, name := range extraCompositors {
		c.compositors[name] = true
	}
	return c
}

func (c *Classifier) IsCompositor(comm string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.compositors[comm]
}

// SetBuildMode toggles the compiler/linker comm-name weight boost at
// runtime, letting the CLI's --build-mode flag take effect after a
// Classifier has already been constructed.
func (c *Classifier) SetBuildMode(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buildMode = enabled
}

func (c *Classifier) AddCompositor(comm string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compositors[comm] = true
}

// ComputeWakeupFrequency folds a wakeup-count sample into the task's
// running average, capped at task.MaxWakeupFreq.
func ComputeWakeupFrequency(t *task.Context, wakeupsThisWindow uint64) uint64 {
	sample := wakeupsThisWindow
	if sample > task.MaxWakeupFreq {
		sample = task.MaxWakeupFreq
	}
	freq := task.FoldEWMA(t.WakeupFreq, sample, t.Age)
	if freq > task.MaxWakeupFreq {
		freq = task.MaxWakeupFreq
	}
	return freq
}

// ComputeCSWRate folds a voluntary-context-switch sample, capped at
// task.MaxCSWRate.
func ComputeCSWRate(t *task.Context, cswThisWindow uint64) uint64 {
	sample := cswThisWindow
	if sample > task.MaxCSWRate {
		sample = task.MaxCSWRate
	}
	rate := task.FoldEWMA(t.CSWRate, sample, t.Age)
	if rate > task.MaxCSWRate {
		rate = task.MaxCSWRate
	}
	return rate
}

// LatCriScore derives the 0..255 latency-criticality score from wakeup
// frequency, csw rate, and effective runtime: score = (wakeup_freq *
// csw_rate) / eff_runtime_ms, so frequent bursty wakers with short
// runtimes score high while long-running batch tasks decay toward zero.
// Ported verbatim from compute_lat_cri() in main.bpf.c, except the
// runtime-to-milliseconds conversion uses an exact divide rather than
// main.bpf.c's >>20 bit-shift (a BPF-verifier-friendly approximation of
// /1e6 with no equivalent constraint in this port).
func LatCriScore(wakeupFreq, cswRate, effRuntimeNs uint64) uint8 {
	effRuntimeMs := effRuntimeNs / uint64(time.Millisecond)
	if effRuntimeMs == 0 {
		effRuntimeMs = 1
	}
	score := (wakeupFreq * cswRate) / effRuntimeMs
	if score > uint64(task.LatCriCap) {
		return task.LatCriCap
	}
	return uint8(score)
}

// QualifiesForHardKick reports whether a task's tier and observed behavior
// place it in spec.md §4.C's tier-2a hard-kick path: any LAT_CRITICAL
// task, or an INTERACTIVE task whose runtime is short or wakeup frequency
// is high enough that waiting behind a busy CPU's overflow queue would
// blow its latency budget.
func QualifiesForHardKick(t *task.Context, runtimeThreshNs uint64, wakeupFreqThresh uint64) bool {
	switch t.Tier {
	case task.TierLatCritical:
		return true
	case task.TierInteractive:
		return t.AvgRuntimeNs <= runtimeThreshNs || t.WakeupFreq >= wakeupFreqThresh
	default:
		return false
	}
}

// Tier applies the classifier's threshold table to place a task, honoring
// an optional compositor promotion to TierLatCritical. A build-mode weight
// boost is not read here; it reaches the tier only through the
// LatCriScore computed from the task's EffectiveRuntime.
func (c *Classifier) Tier(t *task.Context, threshHigh, threshLow int64) task.Tier {
	if c.IsCompositor(t.Comm) {
		return task.TierLatCritical
	}

	score := int64(t.LatCriScore)
	switch {
	case score >= threshHigh:
		return task.TierLatCritical
	case score >= threshLow:
		return task.TierInteractive
	default:
		return task.TierBatch
	}
}

// ApplyBuildModeBoost sets t.BuildWeightBoost from the task's comm name
// when build mode is enabled; it is a no-op otherwise. Grounded on
// classify_weight()'s comm-name table, which is only consulted when the
// BPF program's build_mode rodata flag is set.
func (c *Classifier) ApplyBuildModeBoost(t *task.Context) {
	c.mu.RLock()
	buildMode := c.buildMode
	c.mu.RUnlock()
	if !buildMode {
		t.BuildWeightBoost = 0
		return
	}

	comm := strings.TrimSpace(t.Comm)
	switch {
	case compilerCommNames[comm]:
		t.BuildWeightBoost = compilerWeightBoost
	case linkerCommNames[comm]:
		t.BuildWeightBoost = linkerWeightBoost
	default:
		t.BuildWeightBoost = 0
	}
}

// ShouldDemoteAtSliceEnd reports whether a BATCH-eligible task that
// consumed a full slice without blocking should be demoted, i.e. whether
// its effective runtime has crossed the regime-scoped cpu_bound_thresh_ns
// knob. Called once per Stopping callback.
func ShouldDemoteAtSliceEnd(t *task.Context, cpuBoundThreshNs int64) bool {
	return int64(t.EffectiveRuntime()) >= cpuBoundThreshNs
}
