// Package optim provides training-side optimization utilities.
//
// Currently this is the family of EMA decay schedules: strategies that a
// training loop consults once per optimization step to modulate the decay
// factor of an exponential moving average of model weights.
//
// # Example Usage
//
//	cfg, err := optim.LoadEMAConfig("ema.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fn, err := optim.NewSchedule(cfg.ScheduleConfig)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for step := 0; step < totalSteps; step++ {
//	    decay := fn.Compute(cfg.Decay, step, totalSteps)
//	    // apply decay to the EMA update
//	}
package optim

import (
	internaloptim "github.com/born-ml/surgeon/internal/optim"
)

// DecayFunction computes the effective EMA decay for an optimization step.
type DecayFunction = internaloptim.DecayFunction

// ConstantDecay applies the base decay unchanged.
type ConstantDecay = internaloptim.ConstantDecay

// ThresholdDecay clamps the decay to a slowly-rising ceiling early in
// training.
type ThresholdDecay = internaloptim.ThresholdDecay

// ExpDecay warms the decay up exponentially over the training run.
type ExpDecay = internaloptim.ExpDecay

// ScheduleConfig selects and parametrizes a decay schedule.
type ScheduleConfig = internaloptim.ScheduleConfig

// EMAConfig is the on-disk EMA configuration.
type EMAConfig = internaloptim.EMAConfig

// NewSchedule looks up a decay schedule by name and constructs it.
func NewSchedule(cfg ScheduleConfig) (DecayFunction, error) {
	return internaloptim.NewSchedule(cfg)
}

// Schedules returns the registered schedule names.
func Schedules() []string {
	return internaloptim.Schedules()
}

// DefaultEMAConfig returns the default EMA configuration.
func DefaultEMAConfig() EMAConfig {
	return internaloptim.DefaultEMAConfig()
}

// ParseEMAConfig parses a YAML EMA configuration.
func ParseEMAConfig(data []byte) (EMAConfig, error) {
	return internaloptim.ParseEMAConfig(data)
}

// LoadEMAConfig reads and parses a YAML EMA configuration file.
func LoadEMAConfig(path string) (EMAConfig, error) {
	return internaloptim.LoadEMAConfig(path)
}
