package sim

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfig_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	want := DefaultConfig()
	want.RPS = 250

	require.NoError(t, SaveConfig(path, want))
	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadConfig_RejectsUnknownFields(t *testing.T) {
	// GIVEN a YAML scenario with a typo in a key
	path := filepath.Join(t.TempDir(), "typo.yaml")
	data := []byte("rps: 10\nspeed_multipler: 10\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	// WHEN loading it
	_, err := LoadConfig(path)

	// THEN strict parsing rejects it
	require.Error(t, err)
	assert.Contains(t, err.Error(), "speed_multipler")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_ValidateCollectsEveryProblem(t *testing.T) {
	cfg := Config{
		RPS:             0,
		SpeedMultiplier: 5,
		TickMs:          100,
		Buckets: []LatencyBucket{
			{ID: "a", Percentage: 60, LatencyMs: 100},
			{ID: "a", Percentage: 30, LatencyMs: 0},
		},
		Metrics: []SliMetricConfig{
			{ID: "m", Name: " ", ThresholdMs: 0, WindowSec: 5, BurnWindowSec: 10, SloTargetPct: 100},
		},
	}

	err := cfg.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "want *ValidationError, got %T", err)

	// rps, speed, bucket latency, duplicate bucket id, bucket sum,
	// metric name, threshold, window, burn window, target.
	assert.Len(t, verr.Problems, 10, "problems: %v", verr.Problems)
}

func TestValidateSliMetrics_Bounds(t *testing.T) {
	base := SliMetricConfig{ID: "m", Name: "ok", ThresholdMs: 1000, WindowSec: 60, BurnWindowSec: 5, SloTargetPct: 99.9}
	tests := []struct {
		name  string
		edit  func(*SliMetricConfig)
		valid bool
	}{
		{"baseline", func(*SliMetricConfig) {}, true},
		{"threshold at min", func(m *SliMetricConfig) { m.ThresholdMs = MinThresholdMs }, true},
		{"threshold above max", func(m *SliMetricConfig) { m.ThresholdMs = MaxThresholdMs + 1 }, false},
		{"window at max", func(m *SliMetricConfig) { m.WindowSec = MaxWindowSec }, true},
		{"window below min", func(m *SliMetricConfig) { m.WindowSec = 9 }, false},
		{"burn window zero", func(m *SliMetricConfig) { m.BurnWindowSec = 0 }, true},
		{"burn window equals window", func(m *SliMetricConfig) { m.BurnWindowSec = 60 }, true},
		{"burn window negative", func(m *SliMetricConfig) { m.BurnWindowSec = -1 }, false},
		{"target at max", func(m *SliMetricConfig) { m.SloTargetPct = MaxSloTargetPct }, true},
		{"target 100", func(m *SliMetricConfig) { m.SloTargetPct = 100 }, false},
		{"target below min", func(m *SliMetricConfig) { m.SloTargetPct = 89.9 }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := base
			tc.edit(&m)
			problems := ValidateSliMetrics([]SliMetricConfig{m})
			if tc.valid {
				assert.Empty(t, problems)
			} else {
				assert.NotEmpty(t, problems)
			}
		})
	}
}

func TestValidateLatencyBuckets(t *testing.T) {
	assert.NotEmpty(t, ValidateLatencyBuckets(nil))
	assert.Empty(t, ValidateLatencyBuckets([]LatencyBucket{{ID: "only", Percentage: 100, LatencyMs: 1}}))
	assert.NotEmpty(t, ValidateLatencyBuckets([]LatencyBucket{{ID: "only", Percentage: 99, LatencyMs: 1}}))
	assert.NotEmpty(t, ValidateLatencyBuckets([]LatencyBucket{
		{ID: "a", Percentage: 110, LatencyMs: 1},
		{ID: "b", Percentage: -10, LatencyMs: 1},
	}))
}

func TestEffectiveBurnWindowSec(t *testing.T) {
	assert.Equal(t, 60.0, SliMetricConfig{WindowSec: 60}.EffectiveBurnWindowSec())
	assert.Equal(t, 5.0, SliMetricConfig{WindowSec: 60, BurnWindowSec: 5}.EffectiveBurnWindowSec())
	assert.Equal(t, 60.0, SliMetricConfig{WindowSec: 60, BurnWindowSec: 90}.EffectiveBurnWindowSec())
}

func TestConfig_CloneDoesNotAlias(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.Buckets[0].Percentage = 1
	clone.Metrics[0].Name = "changed"
	assert.Equal(t, 95, cfg.Buckets[0].Percentage)
	assert.NotEqual(t, "changed", cfg.Metrics[0].Name)
}
