package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Two named loggers, mirroring the separation between ambient CLI/config
// output and the scheduler's own hot-path-adjacent logging: one for the
// core dispatch engine, one for the adaptive control loop. Kept as two
// loggers rather than one so log-level and output routing can be tuned
// independently (the core logger is noisy only at Debug; the adaptive
// logger carries the per-tick regime/telemetry narrative).
var (
	logger         *logrus.Logger
	adaptiveLogger *logrus.Logger
)

func init() {
	logger = logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
	})
	logger.SetLevel(logrus.InfoLevel)

	adaptiveLogger = logrus.New()
	adaptiveLogger.SetOutput(os.Stdout)
	adaptiveLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "time",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "adaptive_msg",
		},
	})
	adaptiveLogger.SetLevel(logrus.InfoLevel)
}

// GetLogger returns the general-purpose logger used by the CLI, config
// loading, and the simulation harness.
func GetLogger() *logrus.Logger {
	return logger
}

// GetAdaptiveLogger returns the logger used by the reflex and monitor
// workers for regime transitions, knob writes, and telemetry lines.
func GetAdaptiveLogger() *logrus.Logger {
	return adaptiveLogger
}

func SetLogLevel(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(logLevel)
	return nil
}

func SetAdaptiveLogLevel(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	adaptiveLogger.SetLevel(logLevel)
	return nil
}

func SetFormatter(formatter logrus.Formatter) {
	logger.SetFormatter(formatter)
}
