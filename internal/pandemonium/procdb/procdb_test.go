package procdb

import (
	"path/filepath"
	"testing"

	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"
)

func TestObserveRequiresMinObservationsBeforeTrusted(t *testing.T) {
	db := New()
	for i := 0; i < MinObservations-1; i++ {
		db.Observe("firefox", task.TierInteractive, 1_000_000)
	}
	if _, ok := db.Lookup("firefox"); ok {
		t.Fatalf("expected untrusted profile before MinObservations reached")
	}

	db.Observe("firefox", task.TierInteractive, 1_000_000)
	p, ok := db.Lookup("firefox")
	if !ok {
		t.Fatalf("expected trusted profile after MinObservations reached")
	}
	if p.Tier != task.TierInteractive {
		t.Fatalf("expected interactive tier, got %s", p.Tier)
	}
}

func TestShortNameTruncation(t *testing.T) {
	db := New()
	longName := "a-very-long-process-name-indeed"
	db.Observe(longName, task.TierBatch, 1)
	if db.Len() != 1 {
		t.Fatalf("expected 1 profile")
	}
	snap := db.Snapshot()
	if len(snap[0].ShortName) > ShortNameLen {
		t.Fatalf("short name not truncated: %q", snap[0].ShortName)
	}
}

func TestEvictionUnderCapacity(t *testing.T) {
	db := New()
	for i := 0; i < MaxProfiles; i++ {
		db.Observe(string(rune('a'+i%26))+string(rune(i)), task.TierBatch, 1)
		db.Tick()
	}
	if db.Len() != MaxProfiles {
		t.Fatalf("expected table to fill to MaxProfiles, got %d", db.Len())
	}

	db.Observe("brand-new-process", task.TierBatch, 1)
	if db.Len() > MaxProfiles {
		t.Fatalf("expected eviction to keep table at MaxProfiles, got %d", db.Len())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db := New()
	for i := 0; i < MinObservations+2; i++ {
		db.Observe("sway", task.TierLatCritical, 2_000_000)
	}

	path := filepath.Join(t.TempDir(), "procdb.bin")
	if err := db.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	profiles, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	restored := New()
	restored.Restore(profiles)

	p, ok := restored.Lookup("sway")
	if !ok {
		t.Fatalf("expected restored profile for sway to be trusted")
	}
	if p.Tier != task.TierLatCritical {
		t.Fatalf("expected lat_critical tier restored, got %s", p.Tier)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.bin")); err == nil {
		t.Fatalf("expected error loading missing file")
	}
}
