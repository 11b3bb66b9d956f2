package task

import "testing"

func TestFoldEWMAImmatureIsHalfBlend(t *testing.T) {
	got := FoldEWMA(100, 200, 0)
	want := uint64(100/2 + 200/2)
	if got != want {
		t.Fatalf("FoldEWMA(100,200,0) = %d, want %d", got, want)
	}
}

func TestFoldEWMAMatureIsEighthWeighted(t *testing.T) {
	got := FoldEWMA(800, 80, EWMAAgeMature)
	want := uint64(800 - 800/8 + 80/8)
	if got != want {
		t.Fatalf("FoldEWMA(800,80,8) = %d, want %d", got, want)
	}
}

func TestFoldEWMAConvergesTowardSteadySample(t *testing.T) {
	avg := uint64(0)
	for age := uint32(0); age < 200; age++ {
		avg = FoldEWMA(avg, 1000, age)
	}
	if avg < 900 || avg > 1000 {
		t.Fatalf("FoldEWMA did not converge near steady sample: got %d", avg)
	}
}

func TestTierWeightOrdering(t *testing.T) {
	if TierLatCritical.Weight() <= TierInteractive.Weight() {
		t.Fatalf("lat_critical weight must exceed interactive weight")
	}
	if TierInteractive.Weight() <= TierBatch.Weight() {
		t.Fatalf("interactive weight must exceed batch weight")
	}
}

func TestEffectiveRuntimeAppliesBuildBoostDiscount(t *testing.T) {
	c := &Context{AvgRuntimeNs: 1000, BuildWeightBoost: 200}
	got := c.EffectiveRuntime()
	if got != 900 {
		t.Fatalf("EffectiveRuntime = %d, want 900", got)
	}
}

func TestEffectiveRuntimeNeverUnderflows(t *testing.T) {
	c := &Context{AvgRuntimeNs: 10, BuildWeightBoost: 1000}
	if got := c.EffectiveRuntime(); got != 10 {
		t.Fatalf("EffectiveRuntime = %d, want unchanged 10 when boost exceeds runtime", got)
	}
}
