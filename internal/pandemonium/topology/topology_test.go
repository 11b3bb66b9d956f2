package topology

import "testing"

func TestDiscoverRespectsNrCPUsOverride(t *testing.T) {
	info, err := Discover(8)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if info.NumCPUs != 8 {
		t.Fatalf("expected 8 CPUs, got %d", info.NumCPUs)
	}
	if len(info.CPUNode) != 8 {
		t.Fatalf("expected CPUNode length 8, got %d", len(info.CPUNode))
	}
}

func TestDiscoverReportsAtLeastOneNode(t *testing.T) {
	info, err := Discover(4)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if info.NumNodes < 1 {
		t.Fatalf("expected at least 1 node, got %d", info.NumNodes)
	}
}

func TestNewDispatchTopologyMatchesInfo(t *testing.T) {
	info, err := Discover(4)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	topo := info.NewDispatchTopology()
	if len(topo.PerCPU) != info.NumCPUs {
		t.Fatalf("expected %d per-CPU queues, got %d", info.NumCPUs, len(topo.PerCPU))
	}
	if len(topo.PerNode) != info.NumNodes {
		t.Fatalf("expected %d per-node queues, got %d", info.NumNodes, len(topo.PerNode))
	}
}

func TestParseCPUList(t *testing.T) {
	got := parseCPUList("0-2,5,7-8")
	want := []int{0, 1, 2, 5, 7, 8}
	if len(got) != len(want) {
		t.Fatalf("parseCPUList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("parseCPUList = %v, want %v", got, want)
		}
	}
}

func TestL3HitPercentUnavailableWhenNotUsable(t *testing.T) {
	info := &Info{RDTUsable: false}
	if got := L3HitPercent(info); got != 0 {
		t.Fatalf("expected 0 when RDT unusable, got %v", got)
	}
}
