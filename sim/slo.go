// SLI, error budget and burn rate formulas.
// A nil result means "no data in the window"; callers must special-case it.

package sim

import "math"

// ComputeSliPct returns good/total as a percentage, or nil when total <= 0.
func ComputeSliPct(good, total int64) *float64 {
	if total <= 0 {
		return nil
	}
	v := float64(good) / float64(total) * 100
	return &v
}

// ComputeErrorBudgetRemainingPct returns the share of the allowed failure
// budget (100 - target) not yet consumed, clamped to [0, 100].
// A 100% target has no budget: 100 when the SLI is perfect, 0 otherwise.
func ComputeErrorBudgetRemainingPct(sliPct *float64, sloTargetPct float64) *float64 {
	if sliPct == nil {
		return nil
	}
	var v float64
	denominator := 100 - sloTargetPct
	if denominator <= 0 {
		if *sliPct >= 100 {
			v = 100
		}
		return &v
	}
	v = clamp((*sliPct-sloTargetPct)/denominator, 0, 1) * 100
	return &v
}

// ComputeBurnRate returns the observed failure ratio divided by the allowed
// failure ratio; 1.0 burns the budget exactly on pace.
// A 100% target yields 0 for a perfect SLI and +Inf for anything else.
func ComputeBurnRate(sliPct *float64, sloTargetPct float64) *float64 {
	if sliPct == nil {
		return nil
	}
	var v float64
	allowedBadRatio := (100 - sloTargetPct) / 100
	if allowedBadRatio <= 0 {
		if *sliPct < 100 {
			v = math.Inf(1)
		}
		return &v
	}
	v = ((100 - *sliPct) / 100) / allowedBadRatio
	return &v
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
