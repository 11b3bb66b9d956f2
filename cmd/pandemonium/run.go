package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wllclngn/PANDEMONIUM/internal/config"
	"github.com/wllclngn/PANDEMONIUM/internal/logging"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/adaptive"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/procdb"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/task"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/telemetry"
	"github.com/wllclngn/PANDEMONIUM/internal/pandemonium/topology"
	"github.com/wllclngn/PANDEMONIUM/internal/sim"
)

// runOpts holds every flag spec.md §6 names on `run`, plus the
// SPEC_FULL.md additions (`--nr-cpus`, `--no-adaptive`) and the
// simulation-harness-specific flags (`--nr-tasks`, `--ticks`) this Go
// rendition needs since there is no live kernel attach to run against.
type runOpts struct {
	configFile string

	nrCPUs      int
	noAdaptive  bool
	sliceNs     int64
	sliceMin    int64
	sliceMax    int64
	latCriLow   int64
	latCriHigh  int64
	compositors []string
	buildMode   bool
	verbose     bool
	dumpLog     string
	lightweight   bool
	noLightweight bool
	calibrate     bool

	nrTasks      int
	ticks        int
	monitorEvery int
}

func newRunCmd() *cobra.Command {
	o := &runOpts{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler simulation (default command)",
		Long:  "Drives the classifier/dispatch/adaptive engine over a synthetic workload, the way a live sched_ext attach would over real tasks.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(o)
		},
	}

	cmd.Flags().StringVarP(&o.configFile, "config", "c", "", "path to pandemonium.yaml")
	cmd.Flags().IntVar(&o.nrCPUs, "nr-cpus", 0, "override discovered CPU count (0 = autodetect)")
	cmd.Flags().BoolVar(&o.noAdaptive, "no-adaptive", false, "disable the reflex and monitor adaptive workers")
	cmd.Flags().Int64Var(&o.sliceNs, "slice-ns", 0, "starting slice_ns override (0 = regime baseline)")
	cmd.Flags().Int64Var(&o.sliceMin, "slice-min", 0, "lower bound applied to the starting slice_ns (0 = no bound)")
	cmd.Flags().Int64Var(&o.sliceMax, "slice-max", 0, "upper bound applied to the starting slice_ns (0 = no bound)")
	cmd.Flags().Int64Var(&o.latCriLow, "lat-cri-low", 0, "lat_cri_score threshold for INTERACTIVE (0 = regime baseline)")
	cmd.Flags().Int64Var(&o.latCriHigh, "lat-cri-high", 0, "lat_cri_score threshold for LAT_CRITICAL (0 = regime baseline)")
	cmd.Flags().StringArrayVar(&o.compositors, "compositor", nil, "extra compositor comm name to promote to LAT_CRITICAL (repeatable)")
	cmd.Flags().BoolVar(&o.buildMode, "build-mode", false, "give compiler/linker comm names a weight boost that lowers their effective runtime")
	cmd.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "debug-level logging")
	cmd.Flags().StringVar(&o.dumpLog, "dump-log", "", "write the telemetry stream to this file in addition to stdout")
	cmd.Flags().BoolVar(&o.lightweight, "lightweight", false, "force lightweight (reduced-sampling) mode regardless of --nr-cpus")
	cmd.Flags().BoolVar(&o.noLightweight, "no-lightweight", false, "disable lightweight mode even on <=4 modeled CPUs")
	cmd.Flags().BoolVar(&o.calibrate, "calibrate", false, "run one short fixed-duration window and report the settled regime, then exit")

	cmd.Flags().IntVar(&o.nrTasks, "nr-tasks", 64, "synthetic task population size")
	cmd.Flags().IntVar(&o.ticks, "ticks", 2000, "number of accounting-window iterations to run")
	cmd.Flags().IntVar(&o.monitorEvery, "monitor-every", 32, "iterations between adaptive monitor ticks")

	return cmd
}

func runScheduler(o *runOpts) error {
	logger := logging.GetLogger()

	if o.verbose {
		logging.SetLogLevel("debug")
		logging.SetAdaptiveLogLevel("debug")
	}

	var cfg *config.PandemoniumConfig
	if o.configFile != "" {
		loaded, err := config.LoadConfig(o.configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	topo, err := topology.Discover(o.nrCPUs)
	if err != nil {
		return fmt.Errorf("topology discovery: %w", err)
	}
	logger.WithField("topology", topo.String()).Info("discovered host topology")

	lightweight := (o.lightweight || topo.NumCPUs <= 4) && !o.noLightweight

	db := procdb.New()
	if path, err := procdb.DefaultPath(); err == nil {
		if profiles, err := procdb.Load(path); err == nil {
			db.Restore(profiles)
			logger.WithField("profiles", len(profiles)).WithField("path", path).Info("restored process profile cache")
		}
	}

	mix := sim.DefaultWorkloadMix
	harness := sim.NewHarness(topo.NumCPUs, o.nrTasks, mix, 1, db)

	baseline := adaptive.Baseline(harness.Monitor.Regime())
	applyRunOverrides(&baseline, o, cfg)
	harness.Engine.Knobs.Publish(baseline)

	for _, name := range o.compositors {
		harness.Engine.Classifier.AddCompositor(name)
	}
	if cfg != nil {
		for _, name := range cfg.Compositors {
			harness.Engine.Classifier.AddCompositor(name)
		}
	}
	harness.Engine.Classifier.SetBuildMode(o.buildMode)

	sinks := []telemetry.Sink{telemetry.NewStdoutSink()}
	if envCfg, ok := telemetry.LoadEnvConfig(); ok {
		influx, err := telemetry.NewInfluxSink(envCfg)
		if err != nil {
			logger.WithError(err).Warn("influxdb telemetry sink unavailable, continuing with stdout only")
		} else {
			defer influx.Close()
			sinks = append(sinks, influx)
		}
	}
	sink := &telemetry.MultiSink{Sinks: sinks}

	monitorEvery := o.monitorEvery
	if lightweight {
		monitorEvery *= 4 // promoted lightweight mode: coarser sampling cadence, Open Question (a)
	}
	if o.noAdaptive {
		monitorEvery = o.ticks + 1 // never ticks within the run
	}

	ticks := o.ticks
	if o.calibrate {
		ticks = monitorEvery * 4
	}

	result := harness.Run(ticks, monitorEvery)
	liveKnobs := harness.Engine.Knobs.Load()

	line := telemetry.Line{
		Timestamp:       time.Now(),
		Regime:          result.FinalRegime.String(),
		P99WakeLatNs:    result.P99WakeLatNs,
		SliceNs:         liveKnobs.SliceNs,
		BatchSliceNs:    liveKnobs.BatchSliceNs,
		PreemptThreshNs: liveKnobs.PreemptThreshNs,
		NrDispatches:    result.NrDispatches,
		NrPreempt:       result.NrPreempt,
	}
	if err := sink.Emit(line); err != nil {
		logger.WithError(err).Warn("telemetry emit reported an error from at least one sink")
	}

	if o.dumpLog != "" {
		if err := os.WriteFile(o.dumpLog, []byte(line.Format()+"\n"), 0o644); err != nil {
			logger.WithError(err).Warn("failed to write dump-log file")
		}
	}

	if path, err := procdb.DefaultPath(); err == nil {
		if err := harness.Procdb.Save(path); err != nil {
			logger.WithError(err).Warn("failed to persist process profile cache")
		}
	}

	logger.WithField("regime", result.FinalRegime.String()).
		WithField("dispatches", result.NrDispatches).
		WithField("preempts", result.NrPreempt).
		WithField("p99_wake_ns", result.P99WakeLatNs).
		Info("run complete")
	return nil
}

// applyRunOverrides layers config-file regime knobs, then explicit CLI
// flags (highest precedence), onto the regime baseline.
func applyRunOverrides(k *task.TuningKnobs, o *runOpts, cfg *config.PandemoniumConfig) {
	if cfg != nil {
		if rk := cfg.Regimes.Mixed; rk.SliceNs != 0 {
			k.SliceNs = rk.SliceNs
			k.PreemptThreshNs = rk.PreemptThreshNs
			k.LagScale = rk.LagScale
			k.BatchSliceNs = rk.BatchSliceNs
			k.TimerIntervalNs = rk.TimerIntervalNs
			k.P99CeilingNs = rk.P99CeilingNs
			k.CPUBoundThreshNs = rk.CPUBoundThreshNs
		}
		if cfg.Classifier.LatCriThreshHigh != 0 {
			k.LatCriThreshHigh = int64(cfg.Classifier.LatCriThreshHigh)
		}
		if cfg.Classifier.LatCriThreshLow != 0 {
			k.LatCriThreshLow = int64(cfg.Classifier.LatCriThreshLow)
		}
	}

	if o.sliceNs != 0 {
		k.SliceNs = o.sliceNs
	}
	if o.sliceMin != 0 && k.SliceNs < o.sliceMin {
		k.SliceNs = o.sliceMin
	}
	if o.sliceMax != 0 && k.SliceNs > o.sliceMax {
		k.SliceNs = o.sliceMax
	}
	if o.latCriHigh != 0 {
		k.LatCriThreshHigh = o.latCriHigh
	}
	if o.latCriLow != 0 {
		k.LatCriThreshLow = o.latCriLow
	}
}
