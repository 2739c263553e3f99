package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dyluth/collab/internal/scheduler"
	"github.com/dyluth/collab/internal/scoring"
	"github.com/dyluth/collab/pkg/collab"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = "collab.yml"

// Config represents the top-level collab.yml configuration
type Config struct {
	Version   string          `yaml:"version"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Model     ModelConfig     `yaml:"model"`
	Events    EventsConfig    `yaml:"events"`
}

// SchedulerConfig holds run timings. Durations are Go duration strings ("800ms").
type SchedulerConfig struct {
	BaseDelay time.Duration `yaml:"base_delay"`
	Jitter    time.Duration `yaml:"jitter"`
	Stagger   time.Duration `yaml:"stagger"`
	Ceiling   time.Duration `yaml:"ceiling"`
	TimeScale float64       `yaml:"time_scale"` // >1 compresses wall-clock time
}

// ModelConfig parameterises the scoring function and decision model.
type ModelConfig struct {
	ProbabilityCap      float64                  `yaml:"probability_cap"`
	AuthenticityDivisor float64                  `yaml:"authenticity_divisor"`
	EngagementDivisor   float64                  `yaml:"engagement_divisor"`
	NicheMultipliers    map[collab.Niche]float64 `yaml:"niche_multipliers"`
}

// EventsConfig controls where run events are published.
type EventsConfig struct {
	RedisURL string `yaml:"redis_url"` // empty disables Redis publishing
	Instance string `yaml:"instance"`
}

// Default returns the built-in configuration.
func Default() *Config {
	timing := scheduler.DefaultConfig()
	h := scoring.DefaultHeuristic()

	return &Config{
		Version: "1.0",
		Scheduler: SchedulerConfig{
			BaseDelay: timing.BaseDelay,
			Jitter:    timing.Jitter,
			Stagger:   timing.Stagger,
			Ceiling:   timing.Ceiling,
			TimeScale: 1,
		},
		Model: ModelConfig{
			ProbabilityCap:      h.Cap,
			AuthenticityDivisor: h.AuthenticityDivisor,
			EngagementDivisor:   h.EngagementDivisor,
			NicheMultipliers:    scoring.DefaultNicheMultipliers(),
		},
		Events: EventsConfig{
			Instance: "default",
		},
	}
}

// Validate performs strict validation on the configuration
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if err := c.Timing().Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if c.Scheduler.TimeScale <= 0 {
		return fmt.Errorf("scheduler.time_scale must be > 0, got %v", c.Scheduler.TimeScale)
	}

	if c.Model.ProbabilityCap <= 0 || c.Model.ProbabilityCap > 1 {
		return fmt.Errorf("model.probability_cap must be within (0, 1], got %v", c.Model.ProbabilityCap)
	}
	if c.Model.AuthenticityDivisor <= 0 {
		return fmt.Errorf("model.authenticity_divisor must be > 0, got %v", c.Model.AuthenticityDivisor)
	}
	if c.Model.EngagementDivisor <= 0 {
		return fmt.Errorf("model.engagement_divisor must be > 0, got %v", c.Model.EngagementDivisor)
	}
	for niche, m := range c.Model.NicheMultipliers {
		if m <= 0 {
			return fmt.Errorf("model.niche_multipliers: multiplier for '%s' must be > 0, got %v", niche, m)
		}
	}

	if err := collab.ValidateInstanceName(c.Events.Instance); err != nil {
		return fmt.Errorf("events.instance: %w", err)
	}

	return nil
}

// Timing converts the scheduler section to engine timings.
func (c *Config) Timing() scheduler.Config {
	return scheduler.Config{
		BaseDelay: c.Scheduler.BaseDelay,
		Jitter:    c.Scheduler.Jitter,
		Stagger:   c.Scheduler.Stagger,
		Ceiling:   c.Scheduler.Ceiling,
	}
}

// Scorer builds the reach scoring function from the niche table.
func (c *Config) Scorer() *scoring.Reach {
	return scoring.NewReach(c.Model.NicheMultipliers)
}

// DecisionModel builds the acceptance probability model.
func (c *Config) DecisionModel() scoring.Heuristic {
	return scoring.Heuristic{
		Cap:                 c.Model.ProbabilityCap,
		AuthenticityDivisor: c.Model.AuthenticityDivisor,
		EngagementDivisor:   c.Model.EngagementDivisor,
	}
}

// Load reads and validates collab.yml from the specified path. Keys missing
// from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads path if it exists. A missing file yields the defaults
// unless the caller asked for that file explicitly.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && !explicit {
		return Default(), nil
	}
	return Load(path)
}
