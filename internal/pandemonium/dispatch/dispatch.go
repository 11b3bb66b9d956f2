// Package dispatch implements the per-CPU and per-NUMA-node-overflow
// dispatch queues: vtime-ordered insertion, FIFO fallback append, local
// drain, and cross-node work stealing. Grounded on the dispatch-queue
// table in spec.md §3/§4.B and the DSQ layout in
// original_source/src/bpf/main.bpf.c.
package dispatch

import (
	"container/heap"
	"sync"

	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"
)

// Per-tier awake-vtime caps: the vtime a task accrues since its last wake
// (awake_vtime) is capped at this, bounding how far a long awake run can
// push its deadline back. How far dsq_vtime may lag behind vtime_now is
// bounded separately, by the lag floor in Insert. Ported verbatim from
// the per-tier cap table in main.bpf.c.
const (
	AwakeVtimeCapBatch       = 40_000_000 // 40ms
	AwakeVtimeCapInteractive = 30_000_000 // 30ms
	AwakeVtimeCapLatCritical = 20_000_000 // 20ms
)

func AwakeVtimeCap(t task.Tier) uint64 {
	switch t {
	case task.TierLatCritical:
		return AwakeVtimeCapLatCritical
	case task.TierInteractive:
		return AwakeVtimeCapInteractive
	default:
		return AwakeVtimeCapBatch
	}
}

// entry is one queued task plus the vtime key it was inserted with.
type entry struct {
	ctx   *task.Context
	vtime uint64
	seq   uint64 // insertion sequence, breaks vtime ties FIFO
}

type vtimeHeap []*entry

func (h vtimeHeap) Len() int { return len(h) }
func (h vtimeHeap) Less(i, j int) bool {
	if h[i].vtime != h[j].vtime {
		return h[i].vtime < h[j].vtime
	}
	return h[i].seq < h[j].seq
}
func (h vtimeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *vtimeHeap) Push(x any)        { *h = append(*h, x.(*entry)) }
func (h *vtimeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is a single dispatch queue: either a per-CPU local queue or a
// per-NUMA-node overflow queue. Insertion is vtime-ordered; Drain pops in
// vtime order, which gives FIFO behavior among tasks inserted with equal
// vtime (ties broken by insertion sequence, matching a plain append when
// every entry shares vtime_now).
type Queue struct {
	mu      sync.Mutex
	heap    vtimeHeap
	nextSeq uint64
	vtimeNow uint64
}

func NewQueue() *Queue {
	q := &Queue{}
	heap.Init(&q.heap)
	return q
}

// Insert places a task onto the queue at its deadline (dsq_vtime +
// awake_vtime). Before computing the key, dsq_vtime is floored at
// vtime_now - LAG_CAP_NS*lag_scale, where lag_scale is the task's own
// wakeup frequency clamped to [1, MaxWakeupFreq], so a very long sleep
// can't grant unbounded priority; awake_vtime is capped at the task's
// tier ceiling so a tight wake loop can't exploit repeated small charges
// to hold priority indefinitely. Both rules are ported from
// task_deadline() in main.bpf.c.
func (q *Queue) Insert(t *task.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	lagScale := t.WakeupFreq
	if lagScale < 1 {
		lagScale = 1
	}
	if lagScale > task.MaxWakeupFreq {
		lagScale = task.MaxWakeupFreq
	}
	lagSpan := uint64(task.LagCapNs.Nanoseconds()) * lagScale
	floor := uint64(0)
	if q.vtimeNow > lagSpan {
		floor = q.vtimeNow - lagSpan
	}
	if t.DsqVtimeNs < floor {
		t.DsqVtimeNs = floor
	}

	if cap := AwakeVtimeCap(t.Tier); t.AwakeVtimeNs > cap {
		t.AwakeVtimeNs = cap
	}

	heap.Push(&q.heap, &entry{ctx: t, vtime: t.Deadline(), seq: q.nextSeq})
	q.nextSeq++
}

// Drain pops the lowest-vtime task, or nil if the queue is empty, and
// advances vtime_now to the popped task's vtime (the scheduler's global
// deadline watermark).
func (q *Queue) Drain() *task.Context {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return nil
	}
	e := heap.Pop(&q.heap).(*entry)
	if e.vtime > q.vtimeNow {
		q.vtimeNow = e.vtime
	}
	return e.ctx
}

// Steal pops the lowest-vtime task from a queue without requiring it be
// the local CPU's own queue, used by the cross-node work-stealing path
// when a CPU's own node overflow is empty.
func (q *Queue) Steal() *task.Context {
	return q.Drain()
}

// PeekTier reports the tier of the lowest-vtime queued task without
// removing it, or false if the queue is empty. Used by the tick-callback
// preemption check to decide whether a waiting task outranks whatever is
// currently running.
func (q *Queue) PeekTier() (task.Tier, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return 0, false
	}
	return q.heap[0].ctx.Tier, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

func (q *Queue) VtimeNow() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.vtimeNow
}

// Topology is the set of queues a dispatch decision picks from: one queue
// per CPU, one overflow queue per NUMA node, and a CPU->node mapping.
type Topology struct {
	PerCPU   []*Queue
	PerNode  []*Queue
	CPUNode  []int // CPUNode[cpu] = node index
}

func NewTopology(numCPUs, numNodes int, cpuNode []int) *Topology {
	t := &Topology{
		PerCPU:  make([]*Queue, numCPUs),
		PerNode: make([]*Queue, numNodes),
		CPUNode: cpuNode,
	}
	for i := range t.PerCPU {
		t.PerCPU[i] = NewQueue()
	}
	for i := range t.PerNode {
		t.PerNode[i] = NewQueue()
	}
	return t
}

func (topo *Topology) NodeOf(cpu int) int {
	if cpu < 0 || cpu >= len(topo.CPUNode) {
		return 0
	}
	return topo.CPUNode[cpu]
}

// StealFromOtherNodes scans node overflow queues other than excludeNode
// and returns the first non-empty steal, or nil. The scan order starts
// just after excludeNode and wraps, so CPUs on different nodes begin at
// different neighbours; a given node always scans in the same order.
func (topo *Topology) StealFromOtherNodes(excludeNode int) *task.Context {
	n := len(topo.PerNode)
	if n == 0 {
		return nil
	}
	for i := 1; i <= n; i++ {
		node := (excludeNode + i) % n
		if node == excludeNode {
			continue
		}
		if ctx := topo.PerNode[node].Steal(); ctx != nil {
			return ctx
		}
	}
	return nil
}

// LagScaleShrink applies the lag-scale knob to a candidate slice length
// under dispatch pressure: as lagScale rises (the LagScale knob, taken
// from the per-regime baseline), the effective slice shrinks proportionally,
// matching the original's "shrink slices under pressure" rule.
func LagScaleShrink(sliceNs int64, lagScale int64) int64 {
	if lagScale <= 0 {
		return sliceNs
	}
	shrunk := sliceNs * 100 / (100 + lagScale)
	if shrunk < 1 {
		return 1
	}
	return shrunk
}
