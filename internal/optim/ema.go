// Package optim implements training-side utilities for model optimization.
//
// This package provides the EMA (exponential moving average) decay schedules
// consumed by a training loop: pluggable strategies that adjust the EMA decay
// factor as a function of the current optimization step.
//
// Example usage:
//
//	fn, err := optim.NewSchedule(optim.ScheduleConfig{Schedule: "exp", Beta: 15})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Training loop
//	for step := range totalSteps {
//	    decay := fn.Compute(baseDecay, step, totalSteps)
//	    ema.Update(model, decay)
//	}
package optim

import (
	"fmt"
	"math"
	"sort"
)

// DecayFunction computes the effective EMA decay for an optimization step.
//
// Implementations are pure and stateless (or parametrized at construction)
// and safe for concurrent use.
type DecayFunction interface {
	// Compute returns the decay to apply at the given step.
	//
	// decay is the configured base decay, step the current optimization
	// step, and totalSteps the length of the training run.
	Compute(decay float64, step, totalSteps int) float64
}

// ConstantDecay applies the base decay unchanged at every step.
type ConstantDecay struct{}

// Compute returns decay.
func (ConstantDecay) Compute(decay float64, _, _ int) float64 {
	return decay
}

// ThresholdDecay clamps the decay to a slowly-rising ceiling early in
// training, preventing over-aggressive averaging while few updates have
// been observed.
type ThresholdDecay struct{}

// Compute returns min(decay, (1+step)/(10+step)).
func (ThresholdDecay) Compute(decay float64, step, _ int) float64 {
	return math.Min(decay, float64(1+step)/float64(10+step))
}

// ExpDecay warms the decay up smoothly, reaching full strength as step
// approaches totalSteps. Beta controls the warm-up sharpness.
type ExpDecay struct {
	Beta float64
}

// Compute returns decay * (1 - exp(-(step/totalSteps) * beta)).
//
// totalSteps == 0 is an unchecked precondition violation (division by
// zero), mirroring the training-loop contract under which the schedule is
// called.
func (e ExpDecay) Compute(decay float64, step, totalSteps int) float64 {
	x := float64(step) / float64(totalSteps)
	return decay * (1 - math.Exp(-x*e.Beta))
}

// ScheduleConfig selects and parametrizes a decay schedule.
type ScheduleConfig struct {
	// Schedule is the registered schedule name: "constant", "threshold"
	// or "exp".
	Schedule string `yaml:"schedule"`

	// Beta is the warm-up sharpness for the exp schedule (default: 15).
	Beta float64 `yaml:"beta"`
}

// scheduleBuilders is the registry of decay schedules, keyed by name.
// Populated once at init and read-only afterwards.
var scheduleBuilders = map[string]func(ScheduleConfig) DecayFunction{
	"constant":  func(ScheduleConfig) DecayFunction { return ConstantDecay{} },
	"threshold": func(ScheduleConfig) DecayFunction { return ThresholdDecay{} },
	"exp": func(cfg ScheduleConfig) DecayFunction {
		return ExpDecay{Beta: cfg.Beta}
	},
}

// NewSchedule looks up a decay schedule by name and constructs it.
//
// Defaults are applied to unset config fields before construction:
//   - Beta: 15
func NewSchedule(cfg ScheduleConfig) (DecayFunction, error) {
	if cfg.Beta == 0 {
		cfg.Beta = 15
	}

	build, ok := scheduleBuilders[cfg.Schedule]
	if !ok {
		return nil, fmt.Errorf("unknown decay schedule %q (supported: %v)", cfg.Schedule, Schedules())
	}
	return build(cfg), nil
}

// Schedules returns the registered schedule names, sorted.
func Schedules() []string {
	names := make([]string, 0, len(scheduleBuilders))
	for name := range scheduleBuilders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
