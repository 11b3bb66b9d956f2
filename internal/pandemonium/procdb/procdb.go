// Package procdb implements the cross-run process behavior cache: a
// bounded, in-memory table keyed by a task's short (16-byte) comm name,
// folding observed tier/runtime behavior across runs so a process the
// classifier has seen before gets a head start instead of re-learning
// from cold EWMA state every launch. Grounded on
// original_source/src/procdb.rs.
package procdb

import (
	"sort"
	"sync"

	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"
)

const (
	ShortNameLen     = 16
	MinObservations  = 3
	MinConfidence    = 0.6
	MaxProfiles      = 512
	StaleTicks       = 60
)

// Profile is the persisted, per-comm-name learned record. Tier and
// AvgRuntimeNs mirror struct task_class_entry in the original BPF map.
type Profile struct {
	ShortName        string
	Tier             task.Tier
	AvgRuntimeNs     uint64
	Observations     uint64
	LastSeenTick     uint64
}

// Confidence reports how much weight a lookup should give this profile:
// 0 until MinObservations is reached, MinConfidence at that point, then
// rising by 0.1 per further observation, capped at 1.
func (p *Profile) Confidence() float64 {
	if p.Observations < MinObservations {
		return 0
	}
	c := MinConfidence + float64(p.Observations-MinObservations)/10.0
	if c > 1 {
		c = 1
	}
	return c
}

// Trusted reports whether the profile has enough history to be used as a
// classifier hint (MinObservations reached and Confidence at least
// MinConfidence).
func (p *Profile) Trusted() bool {
	return p.Observations >= MinObservations && p.Confidence() >= MinConfidence
}

func shortName(comm string) string {
	if len(comm) > ShortNameLen {
		return comm[:ShortNameLen]
	}
	return comm
}

// DB is the profile cache. Safe for concurrent use. In the simulation
// harness, Observe runs after every dispatch and Lookup runs from
// core.Engine.Enable.
type DB struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	tick     uint64
}

func New() *DB {
	return &DB{profiles: make(map[string]*Profile)}
}

// Lookup returns a trusted profile for comm, if one exists.
func (db *DB) Lookup(comm string) (*Profile, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	p, ok := db.profiles[shortName(comm)]
	if !ok || !p.Trusted() {
		return nil, false
	}
	cp := *p
	return &cp, true
}

// Observe folds one closed accounting window into comm's profile,
// creating it if absent. If the table is at MaxProfiles and comm is new,
// the least-valuable existing profile is evicted first.
func (db *DB) Observe(comm string, tier task.Tier, runtimeNs uint64) {
	name := shortName(comm)

	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.profiles[name]
	if !ok {
		if len(db.profiles) >= MaxProfiles {
			db.evictLocked()
		}
		p = &Profile{ShortName: name}
		db.profiles[name] = p
	}

	p.AvgRuntimeNs = task.FoldEWMA(p.AvgRuntimeNs, runtimeNs, uint32(p.Observations))
	p.Tier = tier
	p.Observations++
	p.LastSeenTick = db.tick
}

// Tick advances the cache's internal clock, used for staleness accounting
// and eviction ordering. Call once per monitor-worker tick.
func (db *DB) Tick() {
	db.mu.Lock()
	db.tick++
	db.mu.Unlock()
}

// evictLocked removes the profile with the highest staleness, breaking
// ties by fewest observations, then by the lexicographically last short
// name.
func (db *DB) evictLocked() {
	type candidate struct {
		name       string
		staleness  uint64
		observ     uint64
	}
	cands := make([]candidate, 0, len(db.profiles))
	for name, p := range db.profiles {
		staleness := uint64(0)
		if db.tick > p.LastSeenTick {
			staleness = db.tick - p.LastSeenTick
		}
		cands = append(cands, candidate{name: name, staleness: staleness, observ: p.Observations})
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].staleness != cands[j].staleness {
			return cands[i].staleness > cands[j].staleness
		}
		if cands[i].observ != cands[j].observ {
			return cands[i].observ < cands[j].observ
		}
		return cands[i].name > cands[j].name
	})

	if len(cands) == 0 {
		return
	}
	delete(db.profiles, cands[0].name)
}

// Len reports the number of tracked profiles.
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.profiles)
}

// Snapshot returns a copy of every profile, for persistence.
func (db *DB) Snapshot() []Profile {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]Profile, 0, len(db.profiles))
	for _, p := range db.profiles {
		out = append(out, *p)
	}
	return out
}

// Restore replaces the table's contents from a persisted snapshot,
// discarding every current entry. Used at
// startup after loading procdb.bin.
func (db *DB) Restore(profiles []Profile) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.profiles = make(map[string]*Profile, len(profiles))
	for i := range profiles {
		p := profiles[i]
		db.profiles[p.ShortName] = &p
	}
}
