package classifier

import (
	"testing"

	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"
)

func TestComputeWakeupFrequencyCaps(t *testing.T) {
	tc := &task.Context{Age: task.EWMAAgeMature}
	for i := 0; i < 50; i++ {
		tc.WakeupFreq = ComputeWakeupFrequency(tc, 10_000)
	}
	if tc.WakeupFreq > task.MaxWakeupFreq {
		t.Fatalf("wakeup frequency exceeded cap: %d", tc.WakeupFreq)
	}
}

func TestComputeCSWRateCaps(t *testing.T) {
	tc := &task.Context{Age: task.EWMAAgeMature}
	for i := 0; i < 50; i++ {
		tc.CSWRate = ComputeCSWRate(tc, 10_000)
	}
	if tc.CSWRate > task.MaxCSWRate {
		t.Fatalf("csw rate exceeded cap: %d", tc.CSWRate)
	}
}

func TestLatCriScoreCapsAtMax(t *testing.T) {
	got := LatCriScore(task.MaxWakeupFreq, task.MaxCSWRate, 1)
	if got != task.LatCriCap {
		t.Fatalf("LatCriScore = %d, want cap %d", got, task.LatCriCap)
	}
}

func TestLatCriScoreZeroAtLongRuntime(t *testing.T) {
	got := LatCriScore(1, 1, 10_000_000_000)
	if got != 0 {
		t.Fatalf("expected long-runtime task to score near zero, got %d", got)
	}
}

func TestQualifiesForHardKick(t *testing.T) {
	latCri := &task.Context{Tier: task.TierLatCritical}
	if !QualifiesForHardKick(latCri, 200_000, 24) {
		t.Fatalf("expected lat_critical to always qualify")
	}

	shortInteractive := &task.Context{Tier: task.TierInteractive, AvgRuntimeNs: 100_000}
	if !QualifiesForHardKick(shortInteractive, 200_000, 24) {
		t.Fatalf("expected short-runtime interactive task to qualify")
	}

	longInteractive := &task.Context{Tier: task.TierInteractive, AvgRuntimeNs: 5_000_000, WakeupFreq: 1}
	if QualifiesForHardKick(longInteractive, 200_000, 24) {
		t.Fatalf("expected long-runtime, low-frequency interactive task not to qualify")
	}

	batch := &task.Context{Tier: task.TierBatch}
	if QualifiesForHardKick(batch, 200_000, 24) {
		t.Fatalf("expected batch task never to qualify")
	}
}

func TestTierThresholds(t *testing.T) {
	c := New(false, nil)
	batch := &task.Context{Comm: "worker", LatCriScore: 2}
	interactive := &task.Context{Comm: "worker", LatCriScore: 10}
	latCritical := &task.Context{Comm: "worker", LatCriScore: 40}

	if got := c.Tier(batch, 32, 8); got != task.TierBatch {
		t.Fatalf("expected batch, got %s", got)
	}
	if got := c.Tier(interactive, 32, 8); got != task.TierInteractive {
		t.Fatalf("expected interactive, got %s", got)
	}
	if got := c.Tier(latCritical, 32, 8); got != task.TierLatCritical {
		t.Fatalf("expected lat_critical, got %s", got)
	}
}

func TestCompositorAlwaysPromoted(t *testing.T) {
	c := New(false, nil)
	comp := &task.Context{Comm: "gnome-shell", LatCriScore: 0}
	if got := c.Tier(comp, 32, 8); got != task.TierLatCritical {
		t.Fatalf("expected compositor promotion to lat_critical, got %s", got)
	}
}

func TestAddCompositorExtendsUserList(t *testing.T) {
	c := New(false, nil)
	if c.IsCompositor("my-custom-wm") {
		t.Fatalf("unexpected promotion before AddCompositor")
	}
	c.AddCompositor("my-custom-wm")
	if !c.IsCompositor("my-custom-wm") {
		t.Fatalf("AddCompositor did not register compositor")
	}
}

func TestApplyBuildModeBoostOnlyWhenEnabled(t *testing.T) {
	off := New(false, nil)
	tc := &task.Context{Comm: "clang"}
	off.ApplyBuildModeBoost(tc)
	if tc.BuildWeightBoost != 0 {
		t.Fatalf("build mode disabled should not apply boost")
	}

	on := New(true, nil)
	on.ApplyBuildModeBoost(tc)
	if tc.BuildWeightBoost != compilerWeightBoost {
		t.Fatalf("expected compiler boost, got %d", tc.BuildWeightBoost)
	}

	tc2 := &task.Context{Comm: "mold"}
	on.ApplyBuildModeBoost(tc2)
	if tc2.BuildWeightBoost != linkerWeightBoost {
		t.Fatalf("expected linker boost, got %d", tc2.BuildWeightBoost)
	}
}

func TestShouldDemoteAtSliceEnd(t *testing.T) {
	tc := &task.Context{AvgRuntimeNs: 3_000_000}
	if !ShouldDemoteAtSliceEnd(tc, 2_500_000) {
		t.Fatalf("expected demotion above threshold")
	}
	if ShouldDemoteAtSliceEnd(tc, 3_500_000) {
		t.Fatalf("expected no demotion below threshold")
	}
}
