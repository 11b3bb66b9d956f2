package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/wllclngn/PANDEMONIUM/internal/logging"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads and parses pandemonium.yaml from filepath, expanding
// ${VAR} references against the process environment before unmarshalling.
// LoadConfig returns the os.ReadFile error unchanged so callers can
// distinguish "absent" from "malformed"; the run command treats either as
// an error when --config names a file.
func LoadConfig(filepath string) (*PandemoniumConfig, error) {
	logger := logging.GetLogger()

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	expanded := expandEnvVars(string(data))

	var cfg PandemoniumConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("failed to parse config file")
		return nil, err
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filepath, err)
	}

	return &cfg, nil
}

func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		envVar := strings.Trim(match, "${}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
}

func validateConfig(cfg *PandemoniumConfig) error {
	if cfg.Classifier.LatCriThreshHigh != 0 && cfg.Classifier.LatCriThreshLow != 0 {
		if cfg.Classifier.LatCriThreshHigh <= cfg.Classifier.LatCriThreshLow {
			return fmt.Errorf("classifier.lat_cri_thresh_high must be greater than lat_cri_thresh_low")
		}
	}
	for _, name := range cfg.Compositors {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("compositors: empty entry not allowed")
		}
	}
	return nil
}

// ParseCPUSpec parses CPU set strings of the form "0", "0,2,4", or "0-3",
// returning the deduplicated, ascending list of
// CPU indices named.
func ParseCPUSpec(spec string) ([]int, error) {
	var cpus []int
	seen := make(map[int]bool)

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			rangeParts := strings.Split(part, "-")
			if len(rangeParts) != 2 {
				return nil, fmt.Errorf("invalid CPU range: %s", part)
			}
			start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid CPU range start: %s", rangeParts[0])
			}
			end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid CPU range end: %s", rangeParts[1])
			}
			if start > end {
				return nil, fmt.Errorf("invalid CPU range: start > end (%d > %d)", start, end)
			}
			for i := start; i <= end; i++ {
				if !seen[i] {
					cpus = append(cpus, i)
					seen[i] = true
				}
			}
			continue
		}

		cpu, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid CPU number: %s", part)
		}
		if !seen[cpu] {
			cpus = append(cpus, cpu)
			seen[cpu] = true
		}
	}

	if len(cpus) == 0 {
		return nil, fmt.Errorf("no CPUs specified")
	}

	return cpus, nil
}
