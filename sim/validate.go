package sim

import (
	"fmt"
	"math"
	"strings"
)

// BucketSumEpsilon is the tolerance on the bucket percentage total.
const BucketSumEpsilon = 0.001

// Metric bounds enforced by Validate.
const (
	MinThresholdMs  = 1
	MaxThresholdMs  = 5000
	MinWindowSec    = 10
	MaxWindowSec    = 600
	MinSloTargetPct = 90
	MaxSloTargetPct = 99.99
)

var validSpeedMultipliers = map[int]bool{1: true, 10: true, 60: true}

// ValidationError lists every problem found in a Config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks the whole configuration and reports all violations at once.
// Returns nil or a *ValidationError.
func (c Config) Validate() error {
	var problems []string
	if !isFinite(c.RPS) || c.RPS <= 0 {
		problems = append(problems, fmt.Sprintf("rps must be positive, got %v", c.RPS))
	}
	if !validSpeedMultipliers[c.SpeedMultiplier] {
		problems = append(problems, fmt.Sprintf("speed_multiplier must be one of 1, 10, 60, got %d", c.SpeedMultiplier))
	}
	if c.TickMs <= 0 {
		problems = append(problems, fmt.Sprintf("tick_ms must be positive, got %d", c.TickMs))
	}
	problems = append(problems, ValidateLatencyBuckets(c.Buckets)...)
	problems = append(problems, ValidateSliMetrics(c.Metrics)...)
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// ValidateLatencyBuckets returns one message per bucket problem.
func ValidateLatencyBuckets(buckets []LatencyBucket) []string {
	var problems []string
	if len(buckets) == 0 {
		problems = append(problems, "at least one latency bucket is required")
	}
	seen := make(map[string]bool, len(buckets))
	total := 0
	for i, b := range buckets {
		if b.Percentage < 0 {
			problems = append(problems, fmt.Sprintf("bucket #%d percentage must be non-negative", i+1))
		}
		if !isFinite(b.LatencyMs) || b.LatencyMs <= 0 {
			problems = append(problems, fmt.Sprintf("bucket #%d latency must be greater than 0 ms", i+1))
		}
		if seen[b.ID] {
			problems = append(problems, fmt.Sprintf("bucket #%d id %q is not unique", i+1, b.ID))
		}
		seen[b.ID] = true
		total += b.Percentage
	}
	if len(buckets) > 0 && math.Abs(float64(total)-100) > BucketSumEpsilon {
		problems = append(problems, fmt.Sprintf("bucket percentages must add up to 100%%, got %d%%", total))
	}
	return problems
}

// ValidateSliMetrics returns one message per metric problem, prefixed with
// the metric's position.
func ValidateSliMetrics(metrics []SliMetricConfig) []string {
	var problems []string
	if len(metrics) == 0 {
		problems = append(problems, "at least one SLI metric is required")
	}
	seen := make(map[string]bool, len(metrics))
	for i, m := range metrics {
		prefix := fmt.Sprintf("metric #%d", i+1)
		for _, p := range validateSliMetric(m) {
			problems = append(problems, prefix+": "+p)
		}
		if seen[m.ID] {
			problems = append(problems, fmt.Sprintf("%s: id %q is not unique", prefix, m.ID))
		}
		seen[m.ID] = true
	}
	return problems
}

func validateSliMetric(m SliMetricConfig) []string {
	var problems []string
	if strings.TrimSpace(m.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !isFinite(m.ThresholdMs) || m.ThresholdMs < MinThresholdMs || m.ThresholdMs > MaxThresholdMs {
		problems = append(problems, fmt.Sprintf("threshold must be between %d and %d ms", MinThresholdMs, MaxThresholdMs))
	}
	if !isFinite(m.WindowSec) || m.WindowSec < MinWindowSec || m.WindowSec > MaxWindowSec {
		problems = append(problems, fmt.Sprintf("window must be between %d and %d seconds", MinWindowSec, MaxWindowSec))
	}
	if !isFinite(m.BurnWindowSec) || m.BurnWindowSec < 0 || m.BurnWindowSec > m.WindowSec {
		problems = append(problems, "burn window must be between 0 and the window length")
	}
	if !isFinite(m.SloTargetPct) || m.SloTargetPct < MinSloTargetPct || m.SloTargetPct > MaxSloTargetPct {
		problems = append(problems, fmt.Sprintf("SLO target must be between %d and %.2f percent", MinSloTargetPct, MaxSloTargetPct))
	}
	return problems
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
