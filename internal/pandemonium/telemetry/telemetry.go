// Package telemetry formats the scheduler summary line and, when
// configured, mirrors it to InfluxDB. Adapted from the teacher's
// internal/database/influxdb.go: the same client/health-check/WriteAPI
// pattern, repurposed from per-container benchmark points to one
// scheduler-telemetry point per emitted line. The run command emits one
// line when its run completes.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/wllclngn/PANDEMONIUM/internal/logging"
)

// Line is one telemetry sample: the regime, wakeup-latency percentiles,
// idle percentage, and the live knob values; the run command emits one at
// the end of a run. Field order in Format matches original_source/src/adaptive.rs's
// monitor_loop println layout.
type Line struct {
	Timestamp        time.Time
	Regime           string
	IdlePct          float64
	P50WakeLatNs     int64
	P99WakeLatNs     int64
	SliceNs          int64
	BatchSliceNs     int64
	PreemptThreshNs  int64
	NrDispatches     uint64
	NrPreempt        uint64
}

// Format renders the line the way the CLI's stdout telemetry stream does:
// space-separated key=value pairs, one line per tick, safe to grep.
func (l Line) Format() string {
	return fmt.Sprintf(
		"ts=%s regime=%s idle_pct=%.1f p50_wake_ns=%d p99_wake_ns=%d slice_ns=%d batch_slice_ns=%d preempt_thresh_ns=%d nr_dispatches=%d nr_preempt=%d",
		l.Timestamp.Format(time.RFC3339Nano), l.Regime, l.IdlePct,
		l.P50WakeLatNs, l.P99WakeLatNs, l.SliceNs, l.BatchSliceNs, l.PreemptThreshNs,
		l.NrDispatches, l.NrPreempt,
	)
}

// Sink accepts telemetry lines. StdoutSink always exists; InfluxSink is
// added only when PANDEMONIUM_INFLUX_* env vars are present.
type Sink interface {
	Emit(Line) error
}

// StdoutSink writes the formatted line to the given logger at Info level.
type StdoutSink struct {
	Logger *logrus.Logger
}

func NewStdoutSink() *StdoutSink {
	return &StdoutSink{Logger: logging.GetAdaptiveLogger()}
}

func (s *StdoutSink) Emit(l Line) error {
	s.Logger.Info(l.Format())
	return nil
}

// EnvConfig is the PANDEMONIUM_INFLUX_* configuration, mirroring the
// teacher's INFLUXDB_HOST/USER/TOKEN/ORG/BUCKET env vars one-for-one.
type EnvConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// LoadEnvConfig reads PANDEMONIUM_INFLUX_URL/TOKEN/ORG/BUCKET. Ok is false
// (and Sink construction should be skipped) unless all four are set,
// matching the teacher's validateEnvironment "all or nothing" rule for
// its INFLUXDB_* variables.
func LoadEnvConfig() (EnvConfig, bool) {
	cfg := EnvConfig{
		URL:    os.Getenv("PANDEMONIUM_INFLUX_URL"),
		Token:  os.Getenv("PANDEMONIUM_INFLUX_TOKEN"),
		Org:    os.Getenv("PANDEMONIUM_INFLUX_ORG"),
		Bucket: os.Getenv("PANDEMONIUM_INFLUX_BUCKET"),
	}
	ok := cfg.URL != "" && cfg.Token != "" && cfg.Org != "" && cfg.Bucket != ""
	return cfg, ok
}

// InfluxSink writes one point per emitted line to an InfluxDB bucket.
// Off by default; the run command only creates one when LoadEnvConfig
// reports ok.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInfluxSink connects and health-checks the InfluxDB endpoint before
// returning, exactly as the teacher's NewInfluxDBClient does, so a
// misconfigured sink fails fast at startup instead of silently dropping
// every subsequent tick.
func NewInfluxSink(cfg EnvConfig) (*InfluxSink, error) {
	logger := logging.GetLogger()

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		logger.WithField("url", cfg.URL).WithError(err).Error("failed to connect to InfluxDB")
		return nil, err
	}
	if health.Status != "pass" {
		client.Close()
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, fmt.Errorf("influxdb health check failed: %s", msg)
	}

	writeAPI := client.WriteAPIBlocking(cfg.Org, cfg.Bucket)

	logger.WithField("bucket", cfg.Bucket).WithField("org", cfg.Org).Info("connected to InfluxDB telemetry sink")

	return &InfluxSink{client: client, writeAPI: writeAPI}, nil
}

func (s *InfluxSink) Emit(l Line) error {
	point := influxdb2.NewPoint("pandemonium_telemetry",
		map[string]string{"regime": l.Regime},
		map[string]interface{}{
			"idle_pct":          l.IdlePct,
			"p50_wake_lat_ns":   l.P50WakeLatNs,
			"p99_wake_lat_ns":   l.P99WakeLatNs,
			"slice_ns":          l.SliceNs,
			"batch_slice_ns":    l.BatchSliceNs,
			"preempt_thresh_ns": l.PreemptThreshNs,
			"nr_dispatches":     l.NrDispatches,
			"nr_preempt":        l.NrPreempt,
		},
		l.Timestamp)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, point)
}

func (s *InfluxSink) Close() {
	s.client.Close()
}

// MultiSink fans a telemetry line out to every configured sink, continuing
// past a failing sink rather than aborting the whole tick.
type MultiSink struct {
	Sinks []Sink
}

func (m *MultiSink) Emit(l Line) error {
	var firstErr error
	for _, s := range m.Sinks {
		if err := s.Emit(l); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
