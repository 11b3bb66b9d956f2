package adaptive

import (
	"time"

	"github.com/wllclngn/PANDEMONIUM/internal/logging"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/knobs"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/procdb"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/stats"
)

// Stability hibernation constants, ported from tuning.rs: once the regime
// has held steady for StabilityThreshold consecutive ticks, the monitor
// cuts its own sampling rate to save cycles until something changes.
const (
	StabilityThreshold  = 10
	HibernateMultiplier = 4
)

// L3 batch-slice feedback constants (named L2 in the original comments,
// but exercised against L3 occupancy on modern parts — the naming is kept
// as original_source has it). Widens batch_slice_ns when L3 hit rate is
// healthy, narrows it when contention is high.
const (
	L2LowThresh    = 55
	L2HighThresh   = 70
	BatchStepUpNs  = 2_000_000
	BatchStepDownNs = 1_000_000
	BatchMaxNs     = 24_000_000
	L2HoldTicks    = 3
)

// Monitor runs the 1-second-cadence regime detector: it reads aggregate
// idle-CPU percentage, applies the Schmitt trigger, writes baseline knobs
// on a regime change, and applies the stability hibernation and L3
// batch-slice feedback rules. Tick does not read or write Procdb.
type Monitor struct {
	Knobs   *knobs.Store
	Stats   *stats.Registry
	Procdb  *procdb.DB

	regime        Regime
	stableTicks   int
	l2HoldLeft    int
	tickCount     int
}

func NewMonitor(store *knobs.Store, reg *stats.Registry, db *procdb.DB) *Monitor {
	return &Monitor{Knobs: store, Stats: reg, Procdb: db, regime: RegimeMixed}
}

// Regime reports the monitor's current regime classification.
func (m *Monitor) Regime() Regime { return m.regime }

// Tick evaluates one 1-second sample: idlePct is the fraction (0..100) of
// modeled CPU time spent idle over the last interval, l3HitPct is the L3
// cache hit percentage read from topology's RDT monitoring group (0 if
// unavailable, treated as neutral).
func (m *Monitor) Tick(idlePct float64, l3HitPct float64) {
	m.tickCount++

	next := DetectRegime(idlePct, m.regime)
	if next != m.regime {
		m.regime = next
		m.stableTicks = 0
		m.Knobs.Publish(Baseline(next))
		logging.GetAdaptiveLogger().WithField("regime", next.String()).
			WithField("idle_pct", idlePct).Info("regime transition")
	} else {
		m.stableTicks++
	}

	m.applyBatchSliceFeedback(l3HitPct)
}

// HibernateSamplesPerCheck reports the reflex worker's effective sample
// cadence once stability hibernation has kicked in: after
// StabilityThreshold consecutive stable ticks, the required sample count
// is multiplied by HibernateMultiplier so the reflex worker re-evaluates
// less often on an already-settled system.
func (m *Monitor) HibernateSamplesPerCheck() int {
	base := SamplesPerCheck(m.regime)
	if m.stableTicks >= StabilityThreshold {
		return base * HibernateMultiplier
	}
	return base
}

// applyBatchSliceFeedback narrows or widens batch_slice_ns based on L3 hit
// rate, holding each direction for L2HoldTicks ticks before it can move
// again (preventing the batch slice from oscillating tick to tick).
func (m *Monitor) applyBatchSliceFeedback(l3HitPct float64) {
	if l3HitPct <= 0 {
		return // no RDT monitoring group available; leave batch_slice_ns alone
	}
	if m.l2HoldLeft > 0 {
		m.l2HoldLeft--
		return
	}

	k := m.Knobs.Load()
	switch {
	case l3HitPct < L2LowThresh:
		next := k.BatchSliceNs - BatchStepDownNs
		if next < MinSliceNs {
			next = MinSliceNs
		}
		k.BatchSliceNs = next
		m.l2HoldLeft = L2HoldTicks
	case l3HitPct > L2HighThresh:
		next := k.BatchSliceNs + BatchStepUpNs
		if next > BatchMaxNs {
			next = BatchMaxNs
		}
		k.BatchSliceNs = next
		m.l2HoldLeft = L2HoldTicks
	default:
		return
	}
	m.Knobs.Publish(k)
}

// Run blocks, ticking Monitor every interval, until stop is closed.
// sample must return (idlePct, l3HitPct) for the interval just elapsed.
func (m *Monitor) Run(interval time.Duration, stop <-chan struct{}, sample func() (float64, float64)) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			idlePct, l3HitPct := sample()
			m.Tick(idlePct, l3HitPct)
		}
	}
}
