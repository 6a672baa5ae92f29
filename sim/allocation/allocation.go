// Package allocation keeps a set of latency bucket percentages integral and
// summing to exactly 100 as buckets are edited, added and removed.
package allocation

import (
	"math"
	"sort"

	"github.com/inference-sim/slo-sim/sim"
)

// TotalPercent is the sum every non-empty bucket set keeps.
const TotalPercent = 100

// EvenSplitIntegers splits total into count parts; the first total%count
// parts get one extra unit.
func EvenSplitIntegers(count, total int) []int {
	if count <= 0 {
		return []int{}
	}
	if total < 0 {
		total = 0
	}
	base := total / count
	extra := total - base*count
	out := make([]int, count)
	for i := range out {
		out[i] = base
		if i < extra {
			out[i]++
		}
	}
	return out
}

type share struct {
	index     int
	floor     int
	remainder float64
}

// NormalizeIntegerPercentages scales weights to integers summing to total
// using the largest-remainder method: floor every exact share, then hand the
// leftover units to the largest fractional remainders, ties by lower index.
// Non-positive or non-finite weights count as zero; if nothing is positive the
// total is split evenly. Reapplying it to its own output is a no-op.
func NormalizeIntegerPercentages(weights []float64, total int) []int {
	if total < 0 {
		total = 0
	}
	if len(weights) == 0 {
		return []int{}
	}

	safe := make([]float64, len(weights))
	sum := 0.0
	for i, w := range weights {
		if w > 0 && !math.IsInf(w, 0) {
			safe[i] = w
			sum += w
		}
	}
	if sum <= 0 {
		return EvenSplitIntegers(len(weights), total)
	}

	shares := make([]share, len(safe))
	result := make([]int, len(safe))
	assigned := 0
	for i, w := range safe {
		exact := w / sum * float64(total)
		f := math.Floor(exact)
		shares[i] = share{index: i, floor: int(f), remainder: exact - f}
		result[i] = int(f)
		assigned += int(f)
	}

	sort.SliceStable(shares, func(a, b int) bool {
		if shares[a].remainder != shares[b].remainder {
			return shares[a].remainder > shares[b].remainder
		}
		return shares[a].index < shares[b].index
	})
	remaining := total - assigned
	for _, s := range shares {
		if remaining <= 0 {
			break
		}
		result[s.index]++
		remaining--
	}
	return result
}

// RebalanceWithSelectedBucket pins the selected bucket to targetPct (rounded,
// clamped to 0–100) and rescales every other bucket proportionally into the
// remaining 100 - targetPct. A lone bucket is always 100. An unknown id just
// renormalizes the set.
func RebalanceWithSelectedBucket(buckets []sim.LatencyBucket, selectedID string, targetPct float64) []sim.LatencyBucket {
	if len(buckets) == 0 {
		return []sim.LatencyBucket{}
	}
	if len(buckets) == 1 {
		return []sim.LatencyBucket{withPercentage(buckets[0], TotalPercent)}
	}

	selected := indexOf(buckets, selectedID)
	if selected < 0 {
		return applyPercentages(buckets, NormalizeIntegerPercentages(percentages(buckets), TotalPercent))
	}

	pinned := clampPercent(targetPct)
	others := make([]float64, 0, len(buckets)-1)
	for i, b := range buckets {
		if i != selected {
			others = append(others, float64(b.Percentage))
		}
	}
	scaled := NormalizeIntegerPercentages(others, TotalPercent-pinned)

	out := make([]sim.LatencyBucket, 0, len(buckets))
	next := 0
	for i, b := range buckets {
		if i == selected {
			out = append(out, withPercentage(b, pinned))
			continue
		}
		out = append(out, withPercentage(b, scaled[next]))
		next++
	}
	return out
}

// RedistributeAfterRemoval drops removedID and rescales the rest to 100 in
// proportion to their current values. A lone survivor gets 100.
func RedistributeAfterRemoval(buckets []sim.LatencyBucket, removedID string) []sim.LatencyBucket {
	remaining := make([]sim.LatencyBucket, 0, len(buckets))
	for _, b := range buckets {
		if b.ID != removedID {
			remaining = append(remaining, b)
		}
	}
	switch len(remaining) {
	case 0:
		return []sim.LatencyBucket{}
	case 1:
		return []sim.LatencyBucket{withPercentage(remaining[0], TotalPercent)}
	}
	return applyPercentages(remaining, NormalizeIntegerPercentages(percentages(remaining), TotalPercent))
}

// AllocateForNewBucketEvenSteal repairs the existing set to 100, then takes
// round(100/(n+1)) points from the positive buckets as evenly as possible and
// appends newBucket with exactly what was taken. Donors are never driven
// below zero, so the new share may fall short of the target.
func AllocateForNewBucketEvenSteal(buckets []sim.LatencyBucket, newBucket sim.LatencyBucket) []sim.LatencyBucket {
	if len(buckets) == 0 {
		return []sim.LatencyBucket{withPercentage(newBucket, TotalPercent)}
	}

	normalized := NormalizeIntegerPercentages(percentages(buckets), TotalPercent)
	target := int(math.Round(float64(TotalPercent) / float64(len(buckets)+1)))
	donors, stolen := stealEvenly(normalized, target)

	out := applyPercentages(buckets, donors)
	return append(out, withPercentage(newBucket, stolen))
}

// stealEvenly removes up to amount units from values in equal whole-unit
// rounds over the currently positive entries, the first amount%eligible
// entries giving one extra; each entry gives at most what it has.
func stealEvenly(values []int, amount int) ([]int, int) {
	next := append([]int(nil), values...)
	if amount < 0 {
		amount = 0
	}
	remaining := amount

	for remaining > 0 {
		eligible := make([]int, 0, len(next))
		for i, v := range next {
			if v > 0 {
				eligible = append(eligible, i)
			}
		}
		if len(eligible) == 0 {
			break
		}

		base := remaining / len(eligible)
		extra := remaining % len(eligible)
		round := 0
		for pos, i := range eligible {
			planned := base
			if pos < extra {
				planned++
			}
			take := min(planned, next[i])
			next[i] -= take
			round += take
		}
		if round <= 0 {
			break
		}
		remaining -= round
	}
	return next, amount - remaining
}

func clampPercent(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	return int(math.Max(0, math.Min(TotalPercent, r)))
}

func indexOf(buckets []sim.LatencyBucket, id string) int {
	for i, b := range buckets {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func percentages(buckets []sim.LatencyBucket) []float64 {
	out := make([]float64, len(buckets))
	for i, b := range buckets {
		out[i] = float64(b.Percentage)
	}
	return out
}

func applyPercentages(buckets []sim.LatencyBucket, pcts []int) []sim.LatencyBucket {
	out := make([]sim.LatencyBucket, len(buckets))
	for i, b := range buckets {
		out[i] = withPercentage(b, pcts[i])
	}
	return out
}

func withPercentage(b sim.LatencyBucket, pct int) sim.LatencyBucket {
	b.Percentage = pct
	return b
}
