// Package rdtguard serializes access to goresctrl's rdt control object.
package rdtguard

import "sync"

// goresctrl's rdt control is not safe for concurrent use.
// Serialize all interactions with github.com/intel/goresctrl/pkg/rdt across
// the process: the topology package checks RDT monitoring support in
// Discover and looks up the default class in L3HitPercent. Both take this
// lock.
var mu sync.Mutex

func Lock()   { mu.Lock() }
func Unlock() { mu.Unlock() }
func WithLock(fn func()) {
	mu.Lock()
	defer mu.Unlock()
	fn()
}
