package config

import "time"

// PandemoniumConfig is the shape of pandemonium.yaml: regime knob overrides,
// the compositor allow-list, and classifier thresholds. All fields are
// optional; zero values fall back to the compiled-in defaults from
// internal/pandemonium/adaptive (baseline.go).
type PandemoniumConfig struct {
	LogLevel    string            `yaml:"log_level"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Compositors []string          `yaml:"compositors"`
	Regimes     RegimesConfig     `yaml:"regimes"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

type ClassifierConfig struct {
	LatCriThreshHigh int  `yaml:"lat_cri_thresh_high"`
	LatCriThreshLow  int  `yaml:"lat_cri_thresh_low"`
	BuildMode        bool `yaml:"build_mode"`
}

// RegimeKnobs mirrors one row of the per-regime baseline knob table carried
// from original_source/src/tuning.rs: slice_ns, preempt_thresh_ns, lag_scale,
// batch_slice_ns, timer_interval_ns, p99_ceiling_ns, plus the regime-scoped
// batch-demotion threshold cpu_bound_thresh_ns.
type RegimeKnobs struct {
	SliceNs           int64 `yaml:"slice_ns"`
	PreemptThreshNs    int64 `yaml:"preempt_thresh_ns"`
	LagScale          int64 `yaml:"lag_scale"`
	BatchSliceNs       int64 `yaml:"batch_slice_ns"`
	TimerIntervalNs     int64 `yaml:"timer_interval_ns"`
	P99CeilingNs       int64 `yaml:"p99_ceiling_ns"`
	CPUBoundThreshNs    int64 `yaml:"cpu_bound_thresh_ns"`
}

type RegimesConfig struct {
	Light RegimeKnobs `yaml:"light"`
	Mixed RegimeKnobs `yaml:"mixed"`
	Heavy RegimeKnobs `yaml:"heavy"`
}

type TelemetryConfig struct {
	IntervalMs int    `yaml:"interval_ms"`
	InfluxURL  string `yaml:"influx_url"`
	InfluxOrg  string `yaml:"influx_org"`
	InfluxBucket string `yaml:"influx_bucket"`
}

func (c *PandemoniumConfig) TelemetryInterval() time.Duration {
	if c.Telemetry.IntervalMs <= 0 {
		return time.Second
	}
	return time.Duration(c.Telemetry.IntervalMs) * time.Millisecond
}
