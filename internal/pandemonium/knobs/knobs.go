// Package knobs holds the live tuning-knob record shared between the
// dispatch core and the adaptive control loop, stored behind an atomic
// pointer so the monitor/reflex workers can publish a full new knob set
// without the dispatch path ever taking a lock to read one. This is the
// Go translation of spec.md §5's single-writer-atomic-stores rule applied
// to the knob record specifically.
package knobs

import (
	"sync/atomic"

	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"
)

type Store struct {
	v atomic.Pointer[task.TuningKnobs]
}

func NewStore(initial task.TuningKnobs) *Store {
	s := &Store{}
	s.v.Store(&initial)
	return s
}

// Load returns the current knob snapshot. Safe to call from any goroutine.
func (s *Store) Load() task.TuningKnobs {
	return *s.v.Load()
}

// Publish atomically replaces the knob snapshot. Callers are adaptive's
// reflex and monitor workers and the run command, which publishes the
// starting knob set once before the run.
func (s *Store) Publish(k task.TuningKnobs) {
	kk := k
	s.v.Store(&kk)
}
