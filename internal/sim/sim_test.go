package sim

import (
	"testing"

	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/procdb"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"
)

func TestHarnessRunProducesDispatches(t *testing.T) {
	h := NewHarness(4, 32, DefaultWorkloadMix, 1, nil)
	result := h.Run(200, 32)

	if result.NrDispatches == 0 {
		t.Fatalf("expected at least one dispatch across the run")
	}
	if result.Ticks != 200 {
		t.Fatalf("expected 200 ticks recorded, got %d", result.Ticks)
	}
}

func TestHarnessDeterministicWithSameSeed(t *testing.T) {
	a := NewHarness(2, 16, DefaultWorkloadMix, 42, nil)
	b := NewHarness(2, 16, DefaultWorkloadMix, 42, nil)

	ra := a.Run(100, 16)
	rb := b.Run(100, 16)

	if ra.NrDispatches != rb.NrDispatches {
		t.Fatalf("expected deterministic dispatch counts for same seed: %d vs %d", ra.NrDispatches, rb.NrDispatches)
	}
}

func TestHarnessHandlesSingleCPU(t *testing.T) {
	h := NewHarness(1, 8, DefaultWorkloadMix, 7, nil)
	result := h.Run(50, 8)
	if result.Ticks != 50 {
		t.Fatalf("expected 50 ticks")
	}
}

// A procdb loaded before NewHarness seeds every synthetic task at
// construction time, since Enable only consults it once per task.
func TestHarnessWarmStartsFromProcdb(t *testing.T) {
	db := procdb.New()
	for i := 0; i < procdb.MinObservations+2; i++ {
		db.Observe("sim-task", task.TierLatCritical, 10_000)
	}

	h := NewHarness(2, 4, DefaultWorkloadMix, 3, db)
	for _, tc := range h.tasks {
		if tc.Tier != task.TierLatCritical {
			t.Fatalf("expected task warm-started to lat_critical, got %s", tc.Tier)
		}
	}
	total := h.Engine.Stats.Aggregate()
	if total.NrProcdbHits != uint64(len(h.tasks)) {
		t.Fatalf("expected a procdb hit per task, got %d", total.NrProcdbHits)
	}
}
