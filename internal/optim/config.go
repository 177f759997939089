package optim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EMAConfig is the on-disk EMA configuration a training run is driven by.
//
// Example:
//
//	decay: 0.9999
//	schedule: exp
//	beta: 15
type EMAConfig struct {
	// Decay is the base EMA decay the schedule modulates (default: 0.9999).
	Decay float64 `yaml:"decay"`

	ScheduleConfig `yaml:",inline"`
}

// DefaultEMAConfig returns the default EMA configuration.
func DefaultEMAConfig() EMAConfig {
	return EMAConfig{
		Decay:          0.9999,
		ScheduleConfig: ScheduleConfig{Schedule: "exp", Beta: 15},
	}
}

// ParseEMAConfig parses a YAML EMA configuration, applying defaults for
// unset fields.
func ParseEMAConfig(data []byte) (EMAConfig, error) {
	cfg := DefaultEMAConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse EMA config: %w", err)
	}
	return cfg, nil
}

// LoadEMAConfig reads and parses a YAML EMA configuration file.
//
//nolint:gosec // G304: Path is provided by the caller, file inclusion is intentional.
func LoadEMAConfig(path string) (EMAConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultEMAConfig(), fmt.Errorf("failed to read EMA config: %w", err)
	}
	return ParseEMAConfig(data)
}
