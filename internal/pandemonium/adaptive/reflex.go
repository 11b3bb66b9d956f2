package adaptive

import (
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/knobs"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/stats"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"
)

// Reflex worker constants, ported from adaptive.rs.
const (
	SamplesPerCheckDefault = 64
	CooldownChecks         = 2
	MinSliceNs             = 500_000 // 500us
	RelaxStepNs            = 500_000
	RelaxHoldTicks         = 2
)

// Reflex reacts to short-window P99 wakeup-latency spikes by tightening
// slice_ns and batch_slice_ns together, and relaxes both back gradually
// once the spike subsides. It only acts while the regime is RegimeMixed:
// the original's reflex worker is a MIXED-regime-only mechanism, since
// IDLE and LOADED have their own baseline tables tuned for their steadier
// latency profiles. It is driven every HibernateSamplesPerCheck() samples
// rather than on a wall-clock timer, so a hibernating monitor widens the
// reflex's own cadence too.
type Reflex struct {
	Knobs   *knobs.Store
	Monitor *Monitor

	samplesSeen   int
	cooldownLeft  int
	relaxHoldLeft int
}

func NewReflex(store *knobs.Store, mon *Monitor) *Reflex {
	return &Reflex{Knobs: store, Monitor: mon}
}

// Observe folds one wakeup-latency sample into the reflex worker's count
// and, once the sample target is reached, evaluates the rolling
// histogram's P99 against the regime's ceiling.
func (r *Reflex) Observe(regime Regime, hist *stats.Histogram) {
	r.samplesSeen++
	target := SamplesPerCheck(regime)
	if r.Monitor != nil {
		target = r.Monitor.HibernateSamplesPerCheck()
	}
	if r.samplesSeen < target {
		return
	}
	r.samplesSeen = 0

	if regime != RegimeMixed {
		r.cooldownLeft = 0
		r.relaxHoldLeft = 0
		return
	}

	k := r.Knobs.Load()
	p99 := hist.Percentile(0.99)

	if p99 > k.P99CeilingNs {
		if r.cooldownLeft == 0 {
			r.tighten(&k)
			r.cooldownLeft = CooldownChecks
		} else {
			r.cooldownLeft--
		}
		r.relaxHoldLeft = 0
	} else {
		if r.cooldownLeft > 0 {
			r.cooldownLeft--
		}
		r.relaxHoldLeft++
		if r.relaxHoldLeft >= RelaxHoldTicks {
			r.relax(&k, regime)
			r.relaxHoldLeft = 0
		}
	}

	r.Knobs.Publish(k)
}

// tighten shrinks slice_ns and batch_slice_ns by 25% each, floored at
// MinSliceNs, per adaptive.rs's "tighten on regime MIXED spike" rule.
func (r *Reflex) tighten(k *task.TuningKnobs) {
	next := k.SliceNs - k.SliceNs/4
	if next < MinSliceNs {
		next = MinSliceNs
	}
	k.SliceNs = next

	nextBatch := k.BatchSliceNs - k.BatchSliceNs/4
	if nextBatch < MinSliceNs {
		nextBatch = MinSliceNs
	}
	k.BatchSliceNs = nextBatch
}

// relax nudges slice_ns and batch_slice_ns back up by RelaxStepNs each,
// capped at the regime baseline so relax never overshoots past where
// tighten started from.
func (r *Reflex) relax(k *task.TuningKnobs, regime Regime) {
	base := Baseline(regime)

	next := k.SliceNs + RelaxStepNs
	if next > base.SliceNs {
		next = base.SliceNs
	}
	k.SliceNs = next

	nextBatch := k.BatchSliceNs + RelaxStepNs
	if nextBatch > base.BatchSliceNs {
		nextBatch = base.BatchSliceNs
	}
	k.BatchSliceNs = nextBatch
}
