package sim

import (
	"encoding/json"
	"math"
)

// MetricSnapshot is a derived, read-only view of one MetricState.
// Nil pointers mean the corresponding window saw no completions.
type MetricSnapshot struct {
	SimTimeMs               int64    `json:"simTimeMs"`
	SliPct                  *float64 `json:"sliPct"`
	ErrorBudgetRemainingPct *float64 `json:"errorBudgetRemainingPct"`
	BurnRate                *float64 `json:"burnRate"`
	GoodCount               int64    `json:"goodCount"`
	TotalCount              int64    `json:"totalCount"`
	BurnGoodCount           int64    `json:"burnGoodCount"`
	BurnTotalCount          int64    `json:"burnTotalCount"`
	BurnRateStatus          Status   `json:"burnRateStatus"`
	BudgetStatus            Status   `json:"budgetStatus"`
}

// MarshalJSON encodes non-finite values (an infinite burn rate under a 100%
// target) as null, since JSON has no representation for them.
func (s MetricSnapshot) MarshalJSON() ([]byte, error) {
	type plain MetricSnapshot
	out := plain(s)
	out.SliPct = finiteOrNil(s.SliPct)
	out.ErrorBudgetRemainingPct = finiteOrNil(s.ErrorBudgetRemainingPct)
	out.BurnRate = finiteOrNil(s.BurnRate)
	return json.Marshal(out)
}

// MarshalJSON applies the same non-finite handling as MetricSnapshot.
func (p SeriesPoint) MarshalJSON() ([]byte, error) {
	type plain SeriesPoint
	out := plain(p)
	out.SliPct = finiteOrNil(p.SliPct)
	out.ErrorBudgetRemainingPct = finiteOrNil(p.ErrorBudgetRemainingPct)
	out.BurnRate = finiteOrNil(p.BurnRate)
	return json.Marshal(out)
}

func finiteOrNil(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

// SimulationSnapshot aggregates every metric plus global counters.
type SimulationSnapshot struct {
	SimTimeMs      int64                     `json:"simTimeMs"`
	Status         EngineStatus              `json:"status"`
	TotalStarted   int64                     `json:"totalStarted"`
	TotalCompleted int64                     `json:"totalCompleted"`
	InFlight       int                       `json:"inFlight"`
	MetricOrder    []string                  `json:"metricOrder"`
	Metrics        map[string]MetricSnapshot `json:"metrics"`
	ChartSeries    map[string][]SeriesPoint  `json:"chartSeries"`
}
