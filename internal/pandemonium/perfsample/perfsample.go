// Package perfsample opens and reads per-CPU perf_event counters when
// perf_event_open is available. Adapted from the teacher's
// internal/collectors/perf.go, narrowed from a full hardware counter
// suite (cache misses, IPC, branch stats) down to two counters:
// task-clock and context-switches, opened system-wide per CPU. No other
// package in this module calls it.
package perfsample

import (
	"fmt"
	"sync"

	"github.com/elastic/go-perf"

	"github.com/wllclngn/PANDEMONIUM/internal/logging"
)

// Sampler opens one task-clock and one context-switches hardware counter
// per CPU. If perf_event_open is unavailable (restricted kernel, running
// in a container without CAP_PERFMON), NewSampler returns a Sampler whose
// Available() is false and ReadCPU returns an error for every index.
type Sampler struct {
	mu          sync.Mutex
	taskClock   []*perf.Event
	contextSwitch []*perf.Event
	available   bool
}

// NewSampler attempts to open counters for each of the given CPU indices.
// Failure on any CPU degrades to Available()==false rather than a partial
// setup, since a cross-check that only covers some CPUs is worse than one
// that plainly reports itself unavailable.
func NewSampler(cpus []int) *Sampler {
	logger := logging.GetLogger()
	s := &Sampler{}

	for _, cpu := range cpus {
		clockAttr := &perf.Attr{}
		perf.TaskClock.Configure(clockAttr)
		clockAttr.CountFormat.Enabled = true
		clockAttr.CountFormat.Running = true

		clockEvent, err := perf.Open(clockAttr, -1, cpu, nil)
		if err != nil {
			logger.WithField("cpu", cpu).WithError(err).Debug("perf task-clock counter unavailable, falling back to software clock")
			s.closeAll()
			return s
		}

		swAttr := &perf.Attr{}
		perf.ContextSwitches.Configure(swAttr)
		swAttr.CountFormat.Enabled = true
		swAttr.CountFormat.Running = true

		swEvent, err := perf.Open(swAttr, -1, cpu, nil)
		if err != nil {
			logger.WithField("cpu", cpu).WithError(err).Debug("perf context-switch counter unavailable, falling back to software clock")
			clockEvent.Close()
			s.closeAll()
			return s
		}

		if err := clockEvent.Enable(); err != nil {
			clockEvent.Close()
			swEvent.Close()
			s.closeAll()
			return s
		}
		if err := swEvent.Enable(); err != nil {
			clockEvent.Close()
			swEvent.Close()
			s.closeAll()
			return s
		}

		s.taskClock = append(s.taskClock, clockEvent)
		s.contextSwitch = append(s.contextSwitch, swEvent)
	}

	s.available = len(s.taskClock) == len(cpus) && len(cpus) > 0
	return s
}

func (s *Sampler) closeAll() {
	for _, e := range s.taskClock {
		e.Close()
	}
	for _, e := range s.contextSwitch {
		e.Close()
	}
	s.taskClock = nil
	s.contextSwitch = nil
	s.available = false
}

// Available reports whether hardware counters were successfully opened on
// every requested CPU.
func (s *Sampler) Available() bool {
	return s.available
}

// ReadCPU returns the cumulative task-clock nanoseconds and
// context-switch count observed on the counter for CPU index i (into the
// slice NewSampler was given, not the raw CPU number), or an error if the
// sampler is unavailable or the index is out of range.
func (s *Sampler) ReadCPU(i int) (clockNs uint64, ctxSwitches uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.available || i < 0 || i >= len(s.taskClock) {
		return 0, 0, fmt.Errorf("perfsample: counter %d unavailable", i)
	}

	clockCount, err := s.taskClock[i].ReadCount()
	if err != nil {
		return 0, 0, err
	}
	swCount, err := s.contextSwitch[i].ReadCount()
	if err != nil {
		return 0, 0, err
	}

	return uint64(clockCount.Value), uint64(swCount.Value), nil
}

// Close releases every opened counter.
func (s *Sampler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeAll()
}
