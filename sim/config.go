package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultTickMs is the simulated duration of one inner step.
	DefaultTickMs int64 = 100
	// DefaultSeed seeds the arrival and latency RNG streams.
	DefaultSeed int64 = 42
)

// LatencyBucket is one (probability, latency) pair of the synthetic service's
// latency distribution. Percentages of a bucket set sum to exactly 100.
type LatencyBucket struct {
	ID         string  `yaml:"id" json:"id"`
	Percentage int     `yaml:"percentage" json:"percentage"`
	LatencyMs  float64 `yaml:"latency_ms" json:"latencyMs"`
}

// SliMetricConfig defines one SLI: the fraction of completions within
// ThresholdMs over the trailing WindowSec. BurnWindowSec is the shorter trailing
// interval used for the burn rate; zero means "same as WindowSec".
type SliMetricConfig struct {
	ID            string  `yaml:"id" json:"id"`
	Name          string  `yaml:"name" json:"name"`
	ThresholdMs   float64 `yaml:"threshold_ms" json:"thresholdMs"`
	WindowSec     float64 `yaml:"window_sec" json:"windowSec"`
	BurnWindowSec float64 `yaml:"burn_window_sec" json:"burnWindowSec"`
	SloTargetPct  float64 `yaml:"slo_target_pct" json:"sloTargetPct"`
}

// EffectiveBurnWindowSec returns the burn window, falling back to the SLI window.
func (m SliMetricConfig) EffectiveBurnWindowSec() float64 {
	if m.BurnWindowSec <= 0 || m.BurnWindowSec > m.WindowSec {
		return m.WindowSec
	}
	return m.BurnWindowSec
}

// Config is the full engine configuration.
// Loaded from YAML via LoadConfig(path).
type Config struct {
	RPS             float64           `yaml:"rps" json:"rps"`
	SpeedMultiplier int               `yaml:"speed_multiplier" json:"speedMultiplier"`
	TickMs          int64             `yaml:"tick_ms" json:"tickMs"`
	Seed            int64             `yaml:"seed" json:"seed"`
	Buckets         []LatencyBucket   `yaml:"buckets" json:"buckets"`
	Metrics         []SliMetricConfig `yaml:"metrics" json:"metrics"`
}

// Clone returns a deep copy so callers can edit slices without aliasing.
func (c Config) Clone() Config {
	out := c
	out.Buckets = append([]LatencyBucket(nil), c.Buckets...)
	out.Metrics = append([]SliMetricConfig(nil), c.Metrics...)
	return out
}

// withDefaults fills the knobs the engine cannot run without.
func (c Config) withDefaults() Config {
	if c.TickMs <= 0 {
		c.TickMs = DefaultTickMs
	}
	if c.SpeedMultiplier < 1 {
		c.SpeedMultiplier = 1
	}
	if c.RPS < 0 {
		c.RPS = 0
	}
	return c
}

// DefaultConfig returns the scenario a fresh session starts with.
func DefaultConfig() Config {
	return Config{
		RPS:             100,
		SpeedMultiplier: 1,
		TickMs:          DefaultTickMs,
		Seed:            DefaultSeed,
		Buckets: []LatencyBucket{
			{ID: "fast", Percentage: 95, LatencyMs: 800},
			{ID: "slow", Percentage: 5, LatencyMs: 1200},
		},
		Metrics: []SliMetricConfig{
			{ID: "sli-30s", Name: "SLI <= 1000ms / 30s", ThresholdMs: 1000, WindowSec: 30, BurnWindowSec: 5, SloTargetPct: 90},
			{ID: "sli-60s", Name: "SLI <= 1000ms / 60s", ThresholdMs: 1000, WindowSec: 60, BurnWindowSec: 5, SloTargetPct: 90},
			{ID: "sli-300s", Name: "SLI <= 1000ms / 300s", ThresholdMs: 1000, WindowSec: 300, BurnWindowSec: 30, SloTargetPct: 90},
		},
	}
}

// LoadConfig reads and parses a YAML scenario file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading scenario: %w", err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(path string, cfg Config) error {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding scenario: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encoding scenario: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing scenario %s: %w", path, err)
	}
	return nil
}
