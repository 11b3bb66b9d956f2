// Package stats holds per-CPU dispatch counters, the wakeup-latency sample
// stream, and the reflex worker's fixed-bucket histograms. Counter names
// and histogram edges are carried from original_source/src/bpf/intf.h's
// pandemonium_stats struct and src/adaptive.rs's HIST_EDGES_NS /
// SLEEP_EDGES_NS tables.
package stats

// HistEdgesNs are the upper bounds (exclusive of the next bucket, inclusive
// of this one) of the wakeup-latency histogram buckets, in nanoseconds.
// The final bucket is unbounded.
var HistEdgesNs = []int64{
	10_000, 25_000, 50_000, 100_000, 250_000, 500_000,
	1_000_000, 2_000_000, 5_000_000, 10_000_000, 20_000_000,
}

// SleepEdgesNs buckets sleep duration to distinguish IO-wait from idle.
var SleepEdgesNs = []int64{1_000_000, 10_000_000, 100_000_000}

// Histogram is a fixed-bucket counter set over HistEdgesNs/SleepEdgesNs
// plus one overflow bucket for values past the last edge.
type Histogram struct {
	edges   []int64
	buckets []uint64
}

func NewHistogram(edges []int64) *Histogram {
	return &Histogram{edges: edges, buckets: make([]uint64, len(edges)+1)}
}

func (h *Histogram) Record(valueNs int64) {
	for i, edge := range h.edges {
		if valueNs <= edge {
			h.buckets[i]++
			return
		}
	}
	h.buckets[len(h.buckets)-1]++
}

func (h *Histogram) Buckets() []uint64 {
	out := make([]uint64, len(h.buckets))
	copy(out, h.buckets)
	return out
}

func (h *Histogram) Count() uint64 {
	var total uint64
	for _, b := range h.buckets {
		total += b
	}
	return total
}

// Percentile returns the smallest bucket upper edge whose cumulative count
// reaches the given fraction (0..1) of the total; returns the last finite
// edge if the percentile falls in the overflow bucket, and 0 if there are
// no samples.
func (h *Histogram) Percentile(frac float64) int64 {
	total := h.Count()
	if total == 0 {
		return 0
	}
	target := uint64(frac * float64(total))
	if target == 0 {
		target = 1
	}
	var cum uint64
	for i, b := range h.buckets {
		cum += b
		if cum >= target {
			if i < len(h.edges) {
				return h.edges[i]
			}
			return h.edges[len(h.edges)-1]
		}
	}
	return h.edges[len(h.edges)-1]
}

// PerCPU mirrors the ~25 u64 counters in pandemonium_stats. Each CPU's
// struct is written only by the goroutine simulating that CPU (the
// single-writer invariant from §5); readers sum them through
// Registry.Aggregate rather than locking.
type PerCPU struct {
	NrDispatches    uint64
	NrIdleHits      uint64
	NrShared        uint64
	NrPreempt       uint64
	WakeLatSum      uint64
	WakeLatMax      uint64
	WakeLatSamples  uint64
	NrKeepRunning   uint64
	NrHardKicks     uint64
	NrSoftKicks     uint64
	NrEnqWakeup     uint64
	NrEnqRequeue    uint64
	WakeLatIdleSum  uint64
	WakeLatIdleCnt  uint64
	WakeLatKickSum  uint64
	WakeLatKickCnt  uint64
	NrGuardClamps   uint64
	NrAffinityHits  uint64
	NrProcdbHits    uint64
	NrZeroSlice     uint64
	NrTierChanges   uint64
	NrCompositor    uint64
}

// Registry owns one PerCPU block per modeled CPU plus the shared sample
// stream and histograms.
type Registry struct {
	CPUs      []*PerCPU
	Samples   *SampleStream
	WakeLat   *Histogram
	SleepTime *Histogram
}

func NewRegistry(numCPUs int, sampleCapacity int) *Registry {
	cpus := make([]*PerCPU, numCPUs)
	for i := range cpus {
		cpus[i] = &PerCPU{}
	}
	return &Registry{
		CPUs:      cpus,
		Samples:   NewSampleStream(sampleCapacity),
		WakeLat:   NewHistogram(HistEdgesNs),
		SleepTime: NewHistogram(SleepEdgesNs),
	}
}

// Aggregate sums every PerCPU counter set into one totals struct, for the
// monitor worker's regime detection and the telemetry line.
func (r *Registry) Aggregate() PerCPU {
	var total PerCPU
	for _, c := range r.CPUs {
		total.NrDispatches += c.NrDispatches
		total.NrIdleHits += c.NrIdleHits
		total.NrShared += c.NrShared
		total.NrPreempt += c.NrPreempt
		total.WakeLatSum += c.WakeLatSum
		if c.WakeLatMax > total.WakeLatMax {
			total.WakeLatMax = c.WakeLatMax
		}
		total.WakeLatSamples += c.WakeLatSamples
		total.NrKeepRunning += c.NrKeepRunning
		total.NrHardKicks += c.NrHardKicks
		total.NrSoftKicks += c.NrSoftKicks
		total.NrEnqWakeup += c.NrEnqWakeup
		total.NrEnqRequeue += c.NrEnqRequeue
		total.NrGuardClamps += c.NrGuardClamps
		total.NrAffinityHits += c.NrAffinityHits
		total.NrProcdbHits += c.NrProcdbHits
		total.NrZeroSlice += c.NrZeroSlice
		total.NrTierChanges += c.NrTierChanges
		total.NrCompositor += c.NrCompositor
	}
	return total
}
