// Package sim is the synthetic workload harness that drives
// core.Engine's callback set the way a live sched_ext attach would,
// standing in for the kernel scheduler core that Go cannot host. It backs
// the run, bench, and test-scale CLI subcommands. Grounded on the
// workload-mix pattern in original_source/src/scheduler.rs's calibrate()
// loop (fixed-duration sampling windows, periodic histogram snapshots).
package sim

import (
	"math/rand"
	"time"

	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/adaptive"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/classifier"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/core"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/dispatch"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/knobs"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/preempt"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/procdb"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/stats"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"
)

// WorkloadMix describes the synthetic task population a Harness generates:
// the fraction of tasks that behave like interactive/latency-critical
// wakers versus long-running batch tasks, and the wakeup/runtime
// distributions for each. Percentages need not sum to 100; they are
// normalized as relative weights.
type WorkloadMix struct {
	InteractivePct int
	LatCriticalPct int
	BatchPct       int

	InteractiveMeanRuntimeNs int64
	LatCriticalMeanRuntimeNs int64
	BatchMeanRuntimeNs       int64
}

// DefaultWorkloadMix is a mixed desktop-like workload: a handful of
// latency-critical wakers, a moderate share of interactive tasks, and a
// batch tail.
var DefaultWorkloadMix = WorkloadMix{
	InteractivePct:           30,
	LatCriticalPct:           10,
	BatchPct:                 60,
	InteractiveMeanRuntimeNs: 800_000,
	LatCriticalMeanRuntimeNs: 200_000,
	BatchMeanRuntimeNs:       6_000_000,
}

// Harness owns one Engine and a synthetic population of task.Context
// values it round-robins across CPUs.
type Harness struct {
	Engine  *core.Engine
	Monitor *adaptive.Monitor
	Reflex  *adaptive.Reflex
	Procdb  *procdb.DB
	Scanner *preempt.Scanner

	numCPUs int
	rng     *rand.Rand
	tasks   []*task.Context
	mix     WorkloadMix
}

// NewHarness builds a Harness over numCPUs modeled CPUs in a single NUMA
// node, seeding nrTasks synthetic tasks from mix. seed makes task
// generation reproducible across runs of the same scenario. db, if
// non-nil, is the process profile cache to seed new tasks from and
// accumulate observations into; callers that want spec.md §4.G's
// cross-run warm start must load/restore db BEFORE calling NewHarness,
// since Enable only ever consults it once per task, at construction
// time. A nil db gets a fresh, empty one.
func NewHarness(numCPUs, nrTasks int, mix WorkloadMix, seed int64, db *procdb.DB) *Harness {
	cpuNode := make([]int, numCPUs)
	topo := dispatch.NewTopology(numCPUs, 1, cpuNode)
	cls := classifier.New(false, nil)
	ks := knobs.NewStore(adaptive.Baseline(adaptive.RegimeMixed))
	reg := stats.NewRegistry(numCPUs, 4096)
	if db == nil {
		db = procdb.New()
	}

	mon := adaptive.NewMonitor(ks, reg, db)
	engine := core.NewEngine(topo, cls, ks, reg)
	engine.Procdb = db

	h := &Harness{
		Engine:  engine,
		Monitor: mon,
		Reflex:  adaptive.NewReflex(ks, mon),
		Procdb:  db,
		Scanner: preempt.NewScanner(reg),
		numCPUs: numCPUs,
		rng:     rand.New(rand.NewSource(seed)),
		mix:     mix,
	}

	for i := 0; i < nrTasks; i++ {
		h.tasks = append(h.tasks, h.spawnTask(int32(i)))
	}
	return h
}

func (h *Harness) spawnTask(pid int32) *task.Context {
	total := h.mix.LatCriticalPct + h.mix.InteractivePct + h.mix.BatchPct
	if total <= 0 {
		total = 100
	}
	roll := h.rng.Intn(total)
	tc := &task.Context{PID: pid, Comm: "sim-task"}

	switch {
	case roll < h.mix.LatCriticalPct:
		tc.AvgRuntimeNs = uint64(h.mix.LatCriticalMeanRuntimeNs)
		tc.WakeupFreq = task.MaxWakeupFreq
	case roll < h.mix.LatCriticalPct+h.mix.InteractivePct:
		tc.AvgRuntimeNs = uint64(h.mix.InteractiveMeanRuntimeNs)
		tc.WakeupFreq = task.MaxWakeupFreq / 2
	default:
		tc.AvgRuntimeNs = uint64(h.mix.BatchMeanRuntimeNs)
		tc.WakeupFreq = 1
	}

	h.Engine.Enable(tc)
	return tc
}

// Result summarizes one Run call.
type Result struct {
	Ticks        int
	FinalRegime  adaptive.Regime
	P99WakeLatNs int64
	NrDispatches uint64
	NrPreempt    uint64
}

// Run drives ticks accounting-window iterations of the simulation: each
// iteration places every task via SelectCPU/Enqueue, dispatches one task
// per CPU, records its wakeup latency and Stopping accounting, and feeds
// the reflex worker once; every monitorEvery iterations (starting with
// the first) it also advances the adaptive monitor and the procdb clock.
func (h *Harness) Run(ticks int, monitorEvery int) Result {
	if monitorEvery <= 0 {
		monitorEvery = 64
	}
	if err := h.Engine.Init(); err != nil {
		return Result{}
	}
	defer h.Engine.Exit()

	nowNs := int64(0)
	for tick := 0; tick < ticks; tick++ {
		idleCPUs := 0

		for _, tc := range h.tasks {
			cpu, err := h.Engine.SelectCPU(tc, int(tc.LastCPU)%maxInt(h.numCPUs, 1))
			if err != nil {
				continue
			}
			h.Engine.Runnable(tc, nowNs)
			if err := h.Engine.Enqueue(tc, cpu, nowNs); err != nil {
				continue
			}
		}

		for cpu := 0; cpu < h.numCPUs; cpu++ {
			got := h.Engine.Dispatch(cpu)
			if got == nil {
				idleCPUs++
				continue
			}
			k := h.Engine.Knobs.Load()
			slice := preempt.EffectiveSliceNs(got, k, nowNs, h.Engine.Stats.CPUs[cpu])
			ranNs := int64(got.AvgRuntimeNs)
			if ranNs <= 0 || ranNs > slice {
				ranNs = slice
			}

			nowNs += ranNs / 100 // slice quantum, coarse-grained by design
			h.Engine.Running(got, cpu, nowNs)
			h.Engine.Tick(cpu, nowNs, nil) // clamps guard_until if a higher tier is waiting behind got
			h.Engine.Stopping(got, ranNs)
			h.Procdb.Observe(got.Comm, got.Tier, uint64(ranNs))

			// A periodic scan catching an overrun counts the same as one the
			// tick callback catches between scans; only the timer cadence
			// that observes it differs, per spec.md §4.D's two preemption
			// paths.
			h.Scanner.Due(nowNs, k.TimerIntervalNs)
			if preempt.KickIfOverrun(ranNs, k.PreemptThreshNs) {
				h.Engine.Stats.CPUs[cpu].NrPreempt++
			}
		}

		h.Reflex.Observe(h.Monitor.Regime(), h.Engine.Stats.WakeLat)

		if tick%monitorEvery == 0 {
			idlePct := float64(idleCPUs) / float64(maxInt(h.numCPUs, 1)) * 100
			h.Monitor.Tick(idlePct, 0)
			h.Procdb.Tick()
		}

		nowNs += int64(time.Microsecond)
	}

	total := h.Engine.Stats.Aggregate()
	return Result{
		Ticks:        ticks,
		FinalRegime:  h.Monitor.Regime(),
		P99WakeLatNs: h.Engine.Stats.WakeLat.Percentile(0.99),
		NrDispatches: total.NrDispatches,
		NrPreempt:    total.NrPreempt,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
