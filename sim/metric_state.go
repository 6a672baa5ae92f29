package sim

// SeriesRetentionMs bounds how much simulated history the chart series keeps.
const SeriesRetentionMs = 10 * 60 * 1000

// SeriesPoint is one chart sample of a metric.
type SeriesPoint struct {
	SimTimeMs               int64    `json:"simTimeMs"`
	SliPct                  *float64 `json:"sliPct"`
	ErrorBudgetRemainingPct *float64 `json:"errorBudgetRemainingPct"`
	BurnRate                *float64 `json:"burnRate"`
}

// MetricState aggregates completions for one SLI metric over its SLI window
// and its shorter burn window, and keeps a bounded chart series.
type MetricState struct {
	metric SliMetricConfig
	sli    *slidingWindow
	burn   *slidingWindow
	series []SeriesPoint
}

// NewMetricState creates an empty state whose windows start at initialSimTimeMs.
func NewMetricState(metric SliMetricConfig, initialSimTimeMs int64) *MetricState {
	start := float64(initialSimTimeMs)
	return &MetricState{
		metric: metric,
		sli:    newSlidingWindow(metric.WindowSec, start),
		burn:   newSlidingWindow(metric.EffectiveBurnWindowSec(), start),
	}
}

// ID returns the metric id.
func (m *MetricState) ID() string {
	return m.metric.ID
}

// Config returns the metric definition.
func (m *MetricState) Config() SliMetricConfig {
	return m.metric
}

// setConfig swaps non-structural fields (name, SLO target) in place.
func (m *MetricState) setConfig(metric SliMetricConfig) {
	m.metric = metric
}

// AdvanceTo ages out bins that fell out of either window by simTimeMs.
func (m *MetricState) AdvanceTo(simTimeMs int64) {
	t := float64(simTimeMs)
	m.sli.advanceTo(t)
	m.burn.advanceTo(t)
}

// RecordLatency counts one completion; it is good when latencyMs is within
// the threshold. Late completions outside a window contribute nothing to it.
func (m *MetricState) RecordLatency(completionTimeMs, latencyMs float64) {
	good := latencyMs <= m.metric.ThresholdMs
	m.sli.record(completionTimeMs, good)
	m.burn.record(completionTimeMs, good)
}

// Snapshot derives the current view. The burn rate reads the burn window, so it
// reacts faster than the headline SLI.
func (m *MetricState) Snapshot(simTimeMs int64) MetricSnapshot {
	sliPct := ComputeSliPct(m.sli.rollingGood, m.sli.rollingTotal)
	burnSliPct := ComputeSliPct(m.burn.rollingGood, m.burn.rollingTotal)
	budget := ComputeErrorBudgetRemainingPct(sliPct, m.metric.SloTargetPct)
	burnRate := ComputeBurnRate(burnSliPct, m.metric.SloTargetPct)
	return MetricSnapshot{
		SimTimeMs:               simTimeMs,
		SliPct:                  sliPct,
		ErrorBudgetRemainingPct: budget,
		BurnRate:                burnRate,
		GoodCount:               m.sli.rollingGood,
		TotalCount:              m.sli.rollingTotal,
		BurnGoodCount:           m.burn.rollingGood,
		BurnTotalCount:          m.burn.rollingTotal,
		BurnRateStatus:          BurnRateStatusOf(burnRate),
		BudgetStatus:            BudgetStatusOf(budget),
	}
}

// AppendSeriesPoint records a chart point at simTimeMs and evicts points older
// than SeriesRetentionMs.
func (m *MetricState) AppendSeriesPoint(simTimeMs int64) {
	snap := m.Snapshot(simTimeMs)
	m.series = append(m.series, SeriesPoint{
		SimTimeMs:               simTimeMs,
		SliPct:                  snap.SliPct,
		ErrorBudgetRemainingPct: snap.ErrorBudgetRemainingPct,
		BurnRate:                snap.BurnRate,
	})

	drop := 0
	for drop < len(m.series) && simTimeMs-m.series[drop].SimTimeMs > SeriesRetentionMs {
		drop++
	}
	if drop > 0 {
		m.series = append(m.series[:0], m.series[drop:]...)
	}
}

// Series returns a copy of the retained chart points.
func (m *MetricState) Series() []SeriesPoint {
	return append([]SeriesPoint(nil), m.series...)
}
