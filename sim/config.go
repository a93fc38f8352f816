package sim

import "fmt"

// PopulationConfig groups the starting-population parameters.
type PopulationConfig struct {
	Size      int // initial number of agents
	RandomMax int // > 1: uniform random agents; otherwise every agent starts at DefaultAgent
}

// ScheduleConfig groups logical-time parameters of one trial.
type ScheduleConfig struct {
	Iterations int64 // total logical time units
	Resolution int64 // logical units per round (adversary check + snapshot)
}

// AdversaryConfig selects the population-size schedule.
type AdversaryConfig struct {
	Enabled bool
	Events  []AdversaryEvent // empty with Enabled uses DefaultAdversarySchedule
}

// TrialConfig is the full configuration of one simulated trial.
type TrialConfig struct {
	Population PopulationConfig
	Schedule   ScheduleConfig
	Adversary  AdversaryConfig
}

// NewPopulationConfig creates a PopulationConfig.
func NewPopulationConfig(size, randomMax int) PopulationConfig {
	return PopulationConfig{Size: size, RandomMax: randomMax}
}

// NewScheduleConfig creates a ScheduleConfig.
func NewScheduleConfig(iterations, resolution int64) ScheduleConfig {
	return ScheduleConfig{Iterations: iterations, Resolution: resolution}
}

// NewAdversaryConfig creates an AdversaryConfig.
func NewAdversaryConfig(enabled bool, events []AdversaryEvent) AdversaryConfig {
	return AdversaryConfig{Enabled: enabled, Events: events}
}

// Rounds returns the number of rounds the driver runs.
func (c ScheduleConfig) Rounds() int64 {
	if c.Resolution <= 0 {
		return 0
	}
	return c.Iterations / c.Resolution
}

// Schedule returns the events to enact; nil when the adversary is disabled.
func (c AdversaryConfig) Schedule() []AdversaryEvent {
	if !c.Enabled {
		return nil
	}
	if len(c.Events) == 0 {
		return DefaultAdversarySchedule()
	}
	return c.Events
}

// NewAdversary builds a fresh Adversary owned by a single trial.
func (c AdversaryConfig) NewAdversary() *Adversary {
	return NewAdversary(c.Schedule()...)
}

// Undercounts reports whether random starting estimates can exceed the
// histogram bounds. Such runs are valid; out-of-range values are dropped
// from the histograms and counted by Statistics.Dropped.
func (c PopulationConfig) Undercounts() bool {
	return c.RandomMax > 1 && (c.RandomMax > MaxSize || T3*c.RandomMax > MaxTimeSize)
}

// Validate checks that all fields in the config are valid.
func (c TrialConfig) Validate() error {
	if c.Population.Size < 0 {
		return fmt.Errorf("population size must be non-negative, got %d", c.Population.Size)
	}
	if c.Schedule.Resolution < 1 {
		return fmt.Errorf("resolution must be at least 1, got %d", c.Schedule.Resolution)
	}
	if c.Schedule.Iterations < 0 {
		return fmt.Errorf("iterations must be non-negative, got %d", c.Schedule.Iterations)
	}
	var last int64
	for i, ev := range c.Adversary.Events {
		if ev.Target < 0 {
			return fmt.Errorf("adversary event[%d]: target must be non-negative, got %d", i, ev.Target)
		}
		if i > 0 && ev.Time < last {
			return fmt.Errorf("adversary event[%d]: time %d precedes previous event time %d", i, ev.Time, last)
		}
		last = ev.Time
	}
	return nil
}
