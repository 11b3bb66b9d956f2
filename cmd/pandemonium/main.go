// Command pandemonium runs the simulated sched_ext scheduler driver: a
// synthetic workload harness exercising the same select_cpu/enqueue/
// dispatch/runnable/running/stopping/tick callback set a live kernel
// attach would drive, plus the adaptive control loop and process profile
// cache that sit alongside it. Adapted from the teacher's cmd/main.go
// root-command/subcommand layout and .env loading pattern.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wllclngn/PANDEMONIUM/internal/logging"
)

const version = "0.1.0"

func loadEnvironment() {
	logger := logging.GetLogger()

	envFile := ".env"
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			logger.WithField("file", envFile).WithError(err).Warn("error loading .env file")
		} else {
			logger.WithField("file", envFile).Debug("loaded environment variables")
		}
		return
	}

	execPath, err := os.Executable()
	if err != nil {
		return
	}
	envFile = filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(envFile); err != nil {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		logger.WithField("file", envFile).WithError(err).Warn("error loading .env file")
	} else {
		logger.WithField("file", envFile).Debug("loaded environment variables")
	}
}

func main() {
	logger := logging.GetLogger()

	loadEnvironment()

	var logLevel string

	rootCmd := &cobra.Command{
		Use:     "pandemonium",
		Short:   "A pluggable sched_ext-style task scheduler, simulated in userspace",
		Long:    "pandemonium classifies, dispatches, and adaptively tunes a three-tier task scheduler over a synthetic CPU topology.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				if err := logging.SetLogLevel(logLevel); err != nil {
					return fmt.Errorf("invalid log level: %w", err)
				}
				if err := logging.SetAdaptiveLogLevel(logLevel); err != nil {
					return fmt.Errorf("invalid log level: %w", err)
				}
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "set log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(
		newRunCmd(),
		newStartCmd(),
		newCheckCmd(),
		newBenchCmd(),
		newTestCmd(),
		newTestScaleCmd(),
		newProbeCmd(),
		newDmesgCmd(),
		newIdleCPUsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		logger.WithError(err).Error("command execution failed")
		os.Exit(1)
	}
}
