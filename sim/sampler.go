package sim

import (
	"math"
	"math/rand"
)

// FallbackLatencyMs is returned by a sampler built from no usable buckets.
const FallbackLatencyMs = 1000.0

type cumulativeBucket struct {
	threshold float64
	latencyMs float64
}

// LatencySampler draws completion latencies from a discrete bucket distribution.
type LatencySampler struct {
	cdf []cumulativeBucket
}

// NewLatencySampler builds a sampler from buckets, skipping buckets with a
// non-positive percentage or a non-finite/non-positive latency. The last CDF
// entry is forced to exactly 1.0 to absorb floating-point drift.
func NewLatencySampler(buckets []LatencyBucket) *LatencySampler {
	valid := make([]LatencyBucket, 0, len(buckets))
	total := 0.0
	for _, b := range buckets {
		if b.Percentage <= 0 || math.IsNaN(b.LatencyMs) || math.IsInf(b.LatencyMs, 0) || b.LatencyMs <= 0 {
			continue
		}
		valid = append(valid, b)
		total += float64(b.Percentage)
	}
	if total <= 0 {
		return &LatencySampler{}
	}

	cdf := make([]cumulativeBucket, 0, len(valid))
	running := 0.0
	for _, b := range valid {
		running += float64(b.Percentage) / total
		cdf = append(cdf, cumulativeBucket{threshold: running, latencyMs: b.LatencyMs})
	}
	cdf[len(cdf)-1].threshold = 1.0
	return &LatencySampler{cdf: cdf}
}

// Sample returns the latency of the first bucket whose cumulative threshold
// is >= a uniform draw in [0, 1).
func (s *LatencySampler) Sample(rng *rand.Rand) float64 {
	if len(s.cdf) == 0 {
		return FallbackLatencyMs
	}
	u := rng.Float64()
	for _, c := range s.cdf {
		if u <= c.threshold {
			return c.latencyMs
		}
	}
	return s.cdf[len(s.cdf)-1].latencyMs
}

// IsFallback reports whether the sampler has no usable buckets.
func (s *LatencySampler) IsFallback() bool {
	return len(s.cdf) == 0
}
