package preempt

import (
	"testing"

	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/stats"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"
)

func TestKickIfOverrun(t *testing.T) {
	if KickIfOverrun(1_000_000, 2_000_000) {
		t.Fatalf("should not kick under threshold")
	}
	if !KickIfOverrun(3_000_000, 2_000_000) {
		t.Fatalf("should kick over threshold")
	}
}

func TestCheckInteractiveClampsBatchGuard(t *testing.T) {
	running := &task.Context{Tier: task.TierBatch}
	cpuStats := &stats.PerCPU{}
	CheckInteractive(running, task.TierInteractive, 1_000_000, cpuStats)

	if running.GuardUntilNs != 1_000_000+GuardWindowNs {
		t.Fatalf("expected guard clamp, got %d", running.GuardUntilNs)
	}
	if cpuStats.NrGuardClamps != 1 {
		t.Fatalf("expected guard clamp counter incremented")
	}
}

func TestCheckInteractiveNoopForNonBatchRunner(t *testing.T) {
	running := &task.Context{Tier: task.TierInteractive}
	CheckInteractive(running, task.TierLatCritical, 1_000_000, &stats.PerCPU{})
	if running.GuardUntilNs != 0 {
		t.Fatalf("expected no clamp for non-batch runner")
	}
}

func TestPastGuard(t *testing.T) {
	tc := &task.Context{GuardUntilNs: 500}
	if PastGuard(tc, 400) {
		t.Fatalf("should not be past guard yet")
	}
	if !PastGuard(tc, 500) {
		t.Fatalf("should be past guard at deadline")
	}
}

func TestScannerDueDisabledWithZeroInterval(t *testing.T) {
	s := NewScanner(stats.NewRegistry(1, 4))
	if s.Due(1_000_000, 0) {
		t.Fatalf("expected Due to stay false with a zero interval")
	}
}

func TestScannerDueFiresOnSchedule(t *testing.T) {
	s := NewScanner(stats.NewRegistry(1, 4))
	if !s.Due(0, 10_000_000) {
		t.Fatalf("expected first call to fire immediately")
	}
	if s.Due(5_000_000, 10_000_000) {
		t.Fatalf("expected no fire before the next scheduled tick")
	}
	if !s.Due(10_000_000, 10_000_000) {
		t.Fatalf("expected fire once the interval has elapsed")
	}
}

func TestEffectiveSliceNsTierTable(t *testing.T) {
	k := task.TuningKnobs{SliceNs: 10_000_000, BatchSliceNs: 4_000_000}

	latCri := &task.Context{Tier: task.TierLatCritical, AvgRuntimeNs: 1_000_000}
	if got := EffectiveSliceNs(latCri, k, 0, nil); got != 1_500_000 {
		t.Fatalf("expected 1.5x avg_runtime for lat_critical, got %d", got)
	}

	interactive := &task.Context{Tier: task.TierInteractive, AvgRuntimeNs: 1_000_000}
	if got := EffectiveSliceNs(interactive, k, 0, nil); got != 2_000_000 {
		t.Fatalf("expected 2x avg_runtime for interactive, got %d", got)
	}

	batch := &task.Context{Tier: task.TierBatch}
	if got := EffectiveSliceNs(batch, k, 0, nil); got != k.BatchSliceNs {
		t.Fatalf("expected batch_slice_ns for batch, got %d", got)
	}
}

func TestEffectiveSliceNsClampsUnderGuard(t *testing.T) {
	k := task.TuningKnobs{SliceNs: 10_000_000, BatchSliceNs: 4_000_000}
	batch := &task.Context{Tier: task.TierBatch, GuardUntilNs: 5_000_000}
	if got := EffectiveSliceNs(batch, k, 1_000_000, nil); got != GuardBatchSliceNs {
		t.Fatalf("expected guard ceiling %d, got %d", GuardBatchSliceNs, got)
	}
}

func TestEffectiveSliceNsNeverBelowFloor(t *testing.T) {
	k := task.TuningKnobs{SliceNs: 10_000_000}
	tiny := &task.Context{Tier: task.TierInteractive, AvgRuntimeNs: 10}
	if got := EffectiveSliceNs(tiny, k, 0, nil); got != task.SliceMinNs {
		t.Fatalf("expected floor %d, got %d", task.SliceMinNs, got)
	}
}
