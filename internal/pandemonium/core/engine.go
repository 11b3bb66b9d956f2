// Package core implements the scheduler callback set: the Go-side
// equivalent of the sched_ext struct_ops table (select_cpu, enqueue,
// dispatch, runnable, running, stopping, tick, enable, init, exit), driven
// by internal/sim instead of a live kernel attach. Grounded on the
// callback shape in other_examples/EricccTaiwan-scx_goland_core's
// CustomScheduler interface and the placement/slice-length rules in
// original_source/src/bpf/main.bpf.c.
package core

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/wllclngn/PANDEMONIUM/internal/logging"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/classifier"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/dispatch"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/knobs"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/preempt"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/procdb"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/stats"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"
)

// Engine is the dispatch core. Every method is called from a single
// goroutine (the simulation driver's loop over the modeled CPUs, or a
// test calling directly); no method takes a lock on the hot path, matching
// §5's single-writer rule. Knobs and procdb lookups are the two points
// that reach into shared, atomically-published state.
type Engine struct {
	Topology   *dispatch.Topology
	Classifier *classifier.Classifier
	Knobs      *knobs.Store
	Stats      *stats.Registry
	Procdb     *procdb.DB // optional; nil disables cross-run profile seeding

	enabled bool
	running []*task.Context // running[cpu], set by Running and cleared by Stopping
}

func NewEngine(topo *dispatch.Topology, cls *classifier.Classifier, knobStore *knobs.Store, reg *stats.Registry) *Engine {
	return &Engine{
		Topology:   topo,
		Classifier: cls,
		Knobs:      knobStore,
		Stats:      reg,
		running:    make([]*task.Context, len(topo.PerCPU)),
	}
}

// Init brings the engine up. Mirrors the kernel attach point: in this
// rendition it just validates the topology is non-empty.
func (e *Engine) Init() error {
	if e.Topology == nil || len(e.Topology.PerCPU) == 0 {
		return wrapErr(ErrKindInit, errors.New("engine requires a non-empty CPU topology"))
	}
	e.Stats.Samples.RingbufActive.Store(true)
	e.enabled = true
	logging.GetLogger().WithField("cpus", len(e.Topology.PerCPU)).Info("pandemonium engine initialized")
	return nil
}

// Exit tears the engine down cleanly, the counterpart to Init.
func (e *Engine) Exit() error {
	e.Stats.Samples.RingbufActive.Store(false)
	e.enabled = false
	return nil
}

// Enable is called the first time a task is observed; it assigns an
// initial BATCH tier, resets Age and AwakeVtimeNs, starts DsqVtimeNs at
// CPU 0's vtime_now and gives a zero AvgRuntimeNs DefaultRuntimeNs
// (WakeupFreq, CSWRate and LatCriScore are left as they are), letting
// the classifier promote it on subsequent windows as signal accumulates.
// If a procdb profile exists for the task's comm name and is trusted,
// its tier and avg_runtime seed the task immediately instead, per
// spec.md §4.G's cross-run warm-start rule.
func (e *Engine) Enable(t *task.Context) {
	t.Tier = task.TierBatch
	t.Age = 0
	t.DsqVtimeNs = e.Topology.PerCPU[0].VtimeNow()
	t.AwakeVtimeNs = 0
	if t.AvgRuntimeNs == 0 {
		t.AvgRuntimeNs = task.DefaultRuntimeNs
	}

	if e.Procdb == nil {
		return
	}
	if p, ok := e.Procdb.Lookup(t.Comm); ok {
		t.Tier = p.Tier
		t.AvgRuntimeNs = p.AvgRuntimeNs
		t.Age = task.EWMAAgeMature // skip the first-seen fast path, real history exists
		if cpu := int(t.LastCPU); cpu >= 0 && cpu < len(e.Stats.CPUs) {
			e.Stats.CPUs[cpu].NrProcdbHits++
		} else if len(e.Stats.CPUs) > 0 {
			e.Stats.CPUs[0].NrProcdbHits++
		}
	}
}

// SelectCPU chooses a placement for a task about to be enqueued,
// implementing the table in spec.md §4.C: tier 0 sticks to the task's
// own CPU queue when it is idle; tier 1 looks for another idle CPU on
// the same NUMA node; otherwise the task keeps prevCPU as its target and
// Enqueue chooses between the tier-2a hard kick onto that busy queue and
// the tier-2b route to the node's overflow queue, where Dispatch's
// own-node-overflow and cross-node-steal steps (§4.B) pick it up.
func (e *Engine) SelectCPU(t *task.Context, prevCPU int) (int, error) {
	if prevCPU < 0 || prevCPU >= len(e.Topology.PerCPU) {
		return 0, wrapErr(ErrKindLookupMiss, fmt.Errorf("selectcpu: invalid prevCPU %d", prevCPU))
	}

	if e.Topology.PerCPU[prevCPU].Len() == 0 {
		t.Sticky = true
		e.Stats.CPUs[prevCPU].NrAffinityHits++
		return prevCPU, nil
	}

	node := e.Topology.NodeOf(prevCPU)
	for cpu, n := range e.Topology.CPUNode {
		if n != node || cpu == prevCPU {
			continue
		}
		if e.Topology.PerCPU[cpu].Len() == 0 {
			t.Sticky = false
			e.Stats.CPUs[cpu].NrAffinityHits++
			return cpu, nil
		}
	}

	t.Sticky = false
	return prevCPU, nil
}

// Enqueue places the task onto cpu's local queue when it is idle or the
// task is sticking to a CPU it just ran on (tier 0/1). Otherwise cpu's
// local queue is already busy, and the task's tier decides the path
// spec.md §4.C calls tier-2a vs tier-2b: a LAT_CRITICAL task, or an
// INTERACTIVE task whose short runtime or high wakeup frequency means
// waiting would blow its latency budget, hard-kicks straight onto cpu's
// local queue anyway (NrHardKicks). Everything else falls through to
// cpu's NUMA node overflow queue (tier-2b), and if the task running on
// cpu is BATCH while the newcomer is not, preempt.CheckInteractive sets a
// soft guard nudge so it yields soon instead of being hard-preempted.
func (e *Engine) Enqueue(t *task.Context, cpu int, nowNs int64) error {
	if cpu < 0 || cpu >= len(e.Topology.PerCPU) {
		return wrapErr(ErrKindLookupMiss, fmt.Errorf("enqueue: invalid cpu %d", cpu))
	}
	t.LastCPU = int32(cpu)

	if t.Sticky || e.Topology.PerCPU[cpu].Len() == 0 {
		e.Topology.PerCPU[cpu].Insert(t)
		if t.Sticky {
			e.Stats.CPUs[cpu].NrEnqRequeue++
		} else {
			e.Stats.CPUs[cpu].NrEnqWakeup++
		}
		return nil
	}

	if classifier.QualifiesForHardKick(t, task.HardKickRuntimeThreshNs, task.HardKickWakeupFreqThresh) {
		e.Topology.PerCPU[cpu].Insert(t)
		e.Stats.CPUs[cpu].NrEnqWakeup++
		e.Stats.CPUs[cpu].NrHardKicks++
		return nil
	}

	node := e.Topology.NodeOf(cpu)
	e.Topology.PerNode[node].Insert(t)
	e.Stats.CPUs[cpu].NrEnqWakeup++
	if cpu < len(e.running) && e.running[cpu] != nil {
		before := e.running[cpu].GuardUntilNs
		preempt.CheckInteractive(e.running[cpu], t.Tier, nowNs, e.Stats.CPUs[cpu])
		if e.running[cpu].GuardUntilNs != before {
			e.Stats.CPUs[cpu].NrSoftKicks++
		}
	}
	return nil
}

// Dispatch selects the next task to run on cpu: its own queue first, then
// its node's overflow, then a steal from another node's overflow. If all
// three are empty and a task is still mid-slice on cpu (Stopping hasn't
// cleared it yet), that task keeps running rather than the CPU going
// idle underneath it; only if nothing is running either does cpu idle.
func (e *Engine) Dispatch(cpu int) *task.Context {
	if cpu < 0 || cpu >= len(e.Topology.PerCPU) {
		return nil
	}
	if t := e.Topology.PerCPU[cpu].Drain(); t != nil {
		e.Stats.CPUs[cpu].NrDispatches++
		return t
	}

	node := e.Topology.NodeOf(cpu)
	if t := e.Topology.PerNode[node].Drain(); t != nil {
		e.Stats.CPUs[cpu].NrDispatches++
		e.Stats.CPUs[cpu].NrShared++
		return t
	}

	if t := e.Topology.StealFromOtherNodes(node); t != nil {
		e.Stats.CPUs[cpu].NrDispatches++
		e.Stats.CPUs[cpu].NrShared++
		return t
	}

	if cpu < len(e.running) && e.running[cpu] != nil {
		e.Stats.CPUs[cpu].NrKeepRunning++
		return e.running[cpu]
	}

	e.Stats.CPUs[cpu].NrIdleHits++
	return nil
}

// Runnable records a wakeup and runs spec.md §4.A's classification pass:
// a task younger than task.ClassifyMinAge takes the first-seen fast path
// (parked at INTERACTIVE with DefaultRuntimeNs, no score update, since a
// wakeup or two carries no usable signal yet); otherwise the wake-to-wake
// delta is converted to a wakeup-frequency sample, folded alongside the
// csw-rate proxy into LatCriScore, and the classifier's threshold table
// and compositor/build-mode rules decide the task's tier. The wakeup
// timestamp is latched last for Running to measure latency against.
func (e *Engine) Runnable(t *task.Context, nowNs int64) {
	t.AwakeVtimeNs = 0

	if t.Age < task.ClassifyMinAge {
		t.Tier = task.TierInteractive
		if t.AvgRuntimeNs == 0 {
			t.AvgRuntimeNs = task.DefaultRuntimeNs
		}
		t.PrevWakeNs = nowNs
		t.LastWakeNs = nowNs
		return
	}

	deltaWakeNs := nowNs - t.PrevWakeNs
	if t.PrevWakeNs == 0 {
		deltaWakeNs = 0
	}
	t.PrevWakeNs = nowNs

	sample := classifier.WakeupFrequencySample(deltaWakeNs)
	t.WakeupFreq = classifier.ComputeWakeupFrequency(t, sample)
	// csw rate has no real voluntary-context-switch telemetry in this
	// synthetic harness; the wakeup-frequency sample stands in as a proxy.
	t.CSWRate = classifier.ComputeCSWRate(t, sample)
	t.LatCriScore = classifier.LatCriScore(t.WakeupFreq, t.CSWRate, t.EffectiveRuntime())

	e.Classifier.ApplyBuildModeBoost(t)
	k := e.Knobs.Load()
	if newTier := e.Classifier.Tier(t, k.LatCriThreshHigh, k.LatCriThreshLow); newTier != t.Tier {
		t.Tier = newTier
		if cpu := int(t.LastCPU); cpu >= 0 && cpu < len(e.Stats.CPUs) {
			e.Stats.CPUs[cpu].NrTierChanges++
		}
	}
	if e.Classifier.IsCompositor(t.Comm) {
		if cpu := int(t.LastCPU); cpu >= 0 && cpu < len(e.Stats.CPUs) {
			e.Stats.CPUs[cpu].NrCompositor++
		}
	}

	t.LastWakeNs = nowNs
}

// Running records wake latency exactly once per wakeup: if LastWakeNs is
// set, the elapsed time since wakeup is folded into the registry's
// histogram and the task's per-CPU counters, then LastWakeNs is cleared
// so a subsequent Running call (e.g. after a voluntary yield with no
// intervening sleep) does not double-count. t is recorded as cpu's
// running task in either case.
func (e *Engine) Running(t *task.Context, cpu int, nowNs int64) {
	if cpu >= 0 && cpu < len(e.running) {
		e.running[cpu] = t
	}
	if t.LastWakeNs == 0 {
		return
	}
	latNs := nowNs - t.LastWakeNs
	if latNs < 0 {
		latNs = 0
	}
	t.LastWakeNs = 0

	e.Stats.WakeLat.Record(latNs)
	if cpu >= 0 && cpu < len(e.Stats.CPUs) {
		c := e.Stats.CPUs[cpu]
		c.WakeLatSum += uint64(latNs)
		c.WakeLatSamples++
		if uint64(latNs) > c.WakeLatMax {
			c.WakeLatMax = uint64(latNs)
		}
	}

	e.Stats.Samples.Push(stats.WakeLatSample{
		LatNs: latNs,
		PID:   t.PID,
		Tier:  byte(t.Tier),
	})
}

// Stopping charges the vtime cost of the slice the task just consumed and
// checks the classifier's slice-end demotion rule.
func (e *Engine) Stopping(t *task.Context, ranNs int64) {
	weight := t.Tier.Weight()
	charge := uint64(ranNs) * task.WeightBatch / weight
	t.DsqVtimeNs += charge
	t.AwakeVtimeNs += charge
	if cap := dispatch.AwakeVtimeCap(t.Tier); t.AwakeVtimeNs > cap {
		t.AwakeVtimeNs = cap
	}

	k := e.Knobs.Load()
	t.AvgRuntimeNs = task.FoldEWMA(t.AvgRuntimeNs, uint64(ranNs), t.Age)
	if t.Age < task.EWMAAgeCap {
		t.Age++
	}

	if t.Tier != task.TierBatch && classifier.ShouldDemoteAtSliceEnd(t, k.CPUBoundThreshNs) {
		t.Tier = task.TierBatch
	}

	cpu := int(t.LastCPU)
	if cpu >= 0 && cpu < len(e.running) && e.running[cpu] == t {
		e.running[cpu] = nil
	}
}

// Tick is the periodic preemption callback, invoked once per timer
// interval per CPU: it passes the tier of the task at the head of cpu's
// local queue to preempt.CheckInteractive, which clamps the running
// task's guard_until when a non-BATCH task waits behind a BATCH one, and
// counts a hard kick once the running task's guard deadline has passed
// (preempt.PastGuard). It does not check preempt_thresh_ns overrun.
func (e *Engine) Tick(cpu int, nowNs int64, log *logrus.Logger) {
	if cpu < 0 || cpu >= len(e.running) {
		return
	}
	running := e.running[cpu]
	if running == nil {
		return
	}

	if waitingTier, ok := e.Topology.PerCPU[cpu].PeekTier(); ok {
		preempt.CheckInteractive(running, waitingTier, nowNs, e.Stats.CPUs[cpu])
	}

	// A guard_until that has already elapsed by the time this callback
	// runs means the slice clamp in EffectiveSliceNs wasn't tight enough
	// to make the task yield on its own; treat it as a forced kick rather
	// than the soft nudge CheckInteractive applies.
	if preempt.PastGuard(running, nowNs) {
		running.GuardUntilNs = 0
		e.Stats.CPUs[cpu].NrHardKicks++
	}

	if log != nil {
		log.WithField("cpu", cpu).WithField("pid", running.PID).Debug("tick")
	}
}
