// Package topology discovers CPU/cache/NUMA layout and exposes it as the
// dispatch.Topology shape the core engine dispatches against. Adapted
// from the teacher's internal/host (CPU/L3/RDT discovery) and
// internal/rdtmanager (per-socket resource accounting), repurposed from
// per-container cache allocation to per-node idle-CPU-set discovery and
// the nr_affinity_hits placement signal. All goresctrl calls go through
// rdtguard, since the underlying control object is not concurrency-safe.
package topology

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/intel/goresctrl/pkg/rdt"

	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/dispatch"
	"github.com/wllclngn/PANDEMONIUM/internal/rdtguard"
)

// Info is the discovered host layout: CPU count, the CPU->NUMA-node
// mapping, and whether goresctrl's RDT monitoring facilities are usable
// on this host (they require kernel/resctrl support absent in most
// containers and virtual machines).
type Info struct {
	NumCPUs   int
	NumNodes  int
	CPUNode   []int
	RDTUsable bool
}

// Discover builds an Info describing the host, falling back to a
// single-node topology when /sys/devices/system/node is unavailable
// (containers, non-NUMA hosts). A positive nrCPUsOverride (the simulation
// harness's --nr-cpus flag) replaces the CPU count; the node map is still
// read from sysfs for CPUs below that count.
func Discover(nrCPUsOverride int) (*Info, error) {
	numCPUs := runtime.NumCPU()
	if nrCPUsOverride > 0 {
		numCPUs = nrCPUsOverride
	}

	cpuNode := discoverCPUNodeMap(numCPUs)
	numNodes := 1
	for _, n := range cpuNode {
		if n+1 > numNodes {
			numNodes = n + 1
		}
	}

	info := &Info{
		NumCPUs:  numCPUs,
		NumNodes: numNodes,
		CPUNode:  cpuNode,
	}

	rdtguard.WithLock(func() {
		info.RDTUsable = rdt.MonSupported()
	})

	return info, nil
}

// discoverCPUNodeMap reads /sys/devices/system/node/node*/cpulist when
// present; otherwise every CPU is assigned to node 0. This mirrors the
// teacher's initL3CacheInfo/initRDTInfo sysfs-scraping pattern in
// internal/host/hostconfig.go, generalized from L3-size discovery to
// node-membership discovery.
func discoverCPUNodeMap(numCPUs int) []int {
	cpuNode := make([]int, numCPUs)

	nodeDirs, err := filepath.Glob("/sys/devices/system/node/node[0-9]*")
	if err != nil || len(nodeDirs) == 0 {
		return cpuNode // all zero: single node
	}

	for _, dir := range nodeDirs {
		base := filepath.Base(dir)
		nodeIdxStr := strings.TrimPrefix(base, "node")
		nodeIdx, err := strconv.Atoi(nodeIdxStr)
		if err != nil {
			continue
		}
		cpulist, err := os.ReadFile(filepath.Join(dir, "cpulist"))
		if err != nil {
			continue
		}
		for _, cpu := range parseCPUList(strings.TrimSpace(string(cpulist))) {
			if cpu >= 0 && cpu < numCPUs {
				cpuNode[cpu] = nodeIdx
			}
		}
	}

	return cpuNode
}

func parseCPUList(spec string) []int {
	var out []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			start, err1 := strconv.Atoi(bounds[0])
			end, err2 := strconv.Atoi(bounds[1])
			if err1 != nil || err2 != nil {
				continue
			}
			for i := start; i <= end; i++ {
				out = append(out, i)
			}
			continue
		}
		if v, err := strconv.Atoi(part); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// NewDispatchTopology builds the dispatch.Topology this Info describes.
func (info *Info) NewDispatchTopology() *dispatch.Topology {
	return dispatch.NewTopology(info.NumCPUs, info.NumNodes, info.CPUNode)
}

// L3HitPercent reads a proxy for L3 cache hit percentage, printed by the
// probe command (the simulation harness passes 0 to adaptive.Monitor
// instead). goresctrl's rdt package
// exposes cache occupancy through the per-class CtrlGroup returned by
// rdt.GetClass, but the concrete monitoring counters it can read depend on
// which resctrl mount options the host kernel exposes; rather than assume
// a specific counter is always present, this checks only that a "default"
// class exists and RDT monitoring is supported, reporting a fixed 50 if
// so and 0 ("unavailable") otherwise.
func L3HitPercent(info *Info) float64 {
	if !info.RDTUsable {
		return 0
	}

	var pct float64
	rdtguard.WithLock(func() {
		if _, ok := rdt.GetClass("default"); ok {
			pct = 50 // fixed placeholder; no occupancy counter is read
		}
	})
	return pct
}

func (info *Info) String() string {
	return fmt.Sprintf("cpus=%d nodes=%d rdt=%v", info.NumCPUs, info.NumNodes, info.RDTUsable)
}
