package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseCPUSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    []int
		wantErr bool
	}{
		{name: "single", spec: "0", want: []int{0}},
		{name: "list", spec: "0,2,4", want: []int{0, 2, 4}},
		{name: "range", spec: "0-3", want: []int{0, 1, 2, 3}},
		{name: "mixed", spec: "0,2-4", want: []int{0, 2, 3, 4}},
		{name: "dedup", spec: "0,0,1", want: []int{0, 1}},
		{name: "empty", spec: "", wantErr: true},
		{name: "bad range", spec: "3-1", wantErr: true},
		{name: "bad number", spec: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCPUSpec(tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("PANDEMONIUM_TEST_VAR", "42")
	defer os.Unsetenv("PANDEMONIUM_TEST_VAR")

	in := "slice_ns: ${PANDEMONIUM_TEST_VAR}"
	out := expandEnvVars(in)
	if out != "slice_ns: 42" {
		t.Fatalf("expandEnvVars: got %q", out)
	}

	// Unset variables are left untouched rather than expanded to empty.
	in2 := "x: ${PANDEMONIUM_TEST_VAR_UNSET}"
	out2 := expandEnvVars(in2)
	if out2 != in2 {
		t.Fatalf("expandEnvVars unset: got %q", out2)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pandemonium.yaml")
	content := `
log_level: debug
classifier:
  lat_cri_thresh_high: 32
  lat_cri_thresh_low: 8
  build_mode: true
compositors:
  - kwin_x11
  - mutter
regimes:
  mixed:
    slice_ns: 3000000
    cpu_bound_thresh_ns: 2500000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Classifier.LatCriThreshHigh != 32 || cfg.Classifier.LatCriThreshLow != 8 {
		t.Fatalf("classifier thresholds not parsed: %+v", cfg.Classifier)
	}
	if len(cfg.Compositors) != 2 {
		t.Fatalf("expected 2 compositors, got %v", cfg.Compositors)
	}
	if cfg.Regimes.Mixed.SliceNs != 3_000_000 {
		t.Fatalf("regimes.mixed.slice_ns not parsed: %+v", cfg.Regimes.Mixed)
	}
}

func TestLoadConfigInvalidThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pandemonium.yaml")
	content := `
classifier:
  lat_cri_thresh_high: 4
  lat_cri_thresh_low: 8
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error for inverted thresholds")
	}
}
