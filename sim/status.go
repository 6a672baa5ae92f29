package sim

import "math"

// Status is a traffic-light classification of a burn rate or budget value.
type Status string

const (
	StatusGreen     Status = "green"
	StatusYellow    Status = "yellow"
	StatusRed       Status = "red"
	StatusExhausted Status = "exhausted"
	StatusNA        Status = "na"
)

// Fixed classification thresholds.
const (
	burnRateYellowAt  = 1.0
	burnRateRedAbove  = 2.0
	budgetRedBelow    = 20.0
	budgetYellowBelow = 50.0
)

// BurnRateStatusOf classifies a burn rate: green below 1, yellow from 1 to 2
// inclusive, red above 2, na without a finite value.
func BurnRateStatusOf(burnRate *float64) Status {
	if burnRate == nil || math.IsNaN(*burnRate) || math.IsInf(*burnRate, 0) {
		return StatusNA
	}
	switch {
	case *burnRate < burnRateYellowAt:
		return StatusGreen
	case *burnRate <= burnRateRedAbove:
		return StatusYellow
	default:
		return StatusRed
	}
}

// BudgetStatusOf classifies the remaining error budget percentage.
func BudgetStatusOf(remainingPct *float64) Status {
	if remainingPct == nil || math.IsNaN(*remainingPct) || math.IsInf(*remainingPct, 0) {
		return StatusNA
	}
	switch {
	case *remainingPct <= 0:
		return StatusExhausted
	case *remainingPct < budgetRedBelow:
		return StatusRed
	case *remainingPct < budgetYellowBelow:
		return StatusYellow
	default:
		return StatusGreen
	}
}
