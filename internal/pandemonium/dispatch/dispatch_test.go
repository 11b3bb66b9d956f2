package dispatch

import (
	"testing"

	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"
)

func TestQueueDrainsInVtimeOrder(t *testing.T) {
	q := NewQueue()
	a := &task.Context{PID: 1, DsqVtimeNs: 300}
	b := &task.Context{PID: 2, DsqVtimeNs: 100}
	c := &task.Context{PID: 3, DsqVtimeNs: 200}
	q.Insert(a)
	q.Insert(b)
	q.Insert(c)

	order := []int32{q.Drain().PID, q.Drain().PID, q.Drain().PID}
	want := []int32{2, 3, 1}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("drain order = %v, want %v", order, want)
		}
	}
}

func TestQueueDrainEmptyReturnsNil(t *testing.T) {
	q := NewQueue()
	if q.Drain() != nil {
		t.Fatalf("expected nil drain on empty queue")
	}
}

func TestQueueFIFOAmongEqualVtime(t *testing.T) {
	q := NewQueue()
	a := &task.Context{PID: 1, DsqVtimeNs: 50}
	b := &task.Context{PID: 2, DsqVtimeNs: 50}
	q.Insert(a)
	q.Insert(b)
	if first := q.Drain(); first.PID != 1 {
		t.Fatalf("expected FIFO tie-break, got PID %d first", first.PID)
	}
}

func TestAwakeVtimeCapOrdering(t *testing.T) {
	if AwakeVtimeCap(task.TierLatCritical) >= AwakeVtimeCap(task.TierInteractive) {
		t.Fatalf("lat_critical cap must be tighter than interactive")
	}
	if AwakeVtimeCap(task.TierInteractive) >= AwakeVtimeCap(task.TierBatch) {
		t.Fatalf("interactive cap must be tighter than batch")
	}
}

func TestInsertClampsStarvedVtimeToFloor(t *testing.T) {
	q := NewQueue()
	// Advance vtimeNow far past a lat_critical task's stale vtime.
	seed := &task.Context{PID: 1, DsqVtimeNs: 100_000_000}
	q.Insert(seed)
	q.Drain()

	stale := &task.Context{PID: 2, Tier: task.TierLatCritical, DsqVtimeNs: 0}
	q.Insert(stale)
	popped := q.Drain()
	if popped.PID != 2 {
		t.Fatalf("expected stale task back, got PID %d", popped.PID)
	}
	if stale.DsqVtimeNs != 60_000_000 {
		t.Fatalf("expected stale vtime clamped to vtime_now - LagCapNs (60000000), got %d", stale.DsqVtimeNs)
	}
}

func TestTopologyStealFromOtherNodes(t *testing.T) {
	topo := NewTopology(4, 2, []int{0, 0, 1, 1})
	topo.PerNode[1].Insert(&task.Context{PID: 9, DsqVtimeNs: 10})

	got := topo.StealFromOtherNodes(0)
	if got == nil || got.PID != 9 {
		t.Fatalf("expected to steal PID 9 from node 1, got %v", got)
	}
	if topo.StealFromOtherNodes(0) != nil {
		t.Fatalf("expected node 1 overflow now empty")
	}
}

func TestLagScaleShrinkMonotonic(t *testing.T) {
	base := int64(3_000_000)
	if LagScaleShrink(base, 0) != base {
		t.Fatalf("zero lag scale should not shrink slice")
	}
	shrunk := LagScaleShrink(base, 100)
	if shrunk >= base || shrunk <= 0 {
		t.Fatalf("expected shrink strictly between 0 and base, got %d", shrunk)
	}
}
