package server

import (
	"math"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/inference-sim/slo-sim/sim"
)

const namespace = "slo_sim"

var histogramBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Exporter mirrors the latest engine snapshot into Prometheus gauges and
// counts the HTTP requests served. It owns its registry so several servers can
// live in one process.
type Exporter struct {
	registry *prometheus.Registry

	simTime        prometheus.Gauge
	started        prometheus.Gauge
	completed      prometheus.Gauge
	inFlight       prometheus.Gauge
	engineStatus   *prometheus.GaugeVec
	sliPct         *prometheus.GaugeVec
	budgetPct      *prometheus.GaugeVec
	burnRate       *prometheus.GaugeVec
	windowGood     *prometheus.GaugeVec
	windowTotal    *prometheus.GaugeVec
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// NewExporter builds an Exporter with every collector registered.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sim_time_seconds",
			Help: "Simulated time of the latest snapshot",
		}),
		started: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "requests_started",
			Help: "Synthetic requests started since the last reset",
		}),
		completed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "requests_completed",
			Help: "Synthetic requests completed since the last reset",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "requests_in_flight",
			Help: "Synthetic requests awaiting completion",
		}),
		engineStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "engine_status",
			Help: "1 for the engine's current lifecycle state, 0 otherwise",
		}, []string{"status"}),
		sliPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sli_percent",
			Help: "Share of completions within the metric threshold over its window",
		}, []string{"metric", "name"}),
		budgetPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "error_budget_remaining_percent",
			Help: "Unconsumed share of the error budget",
		}, []string{"metric", "name"}),
		burnRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "burn_rate",
			Help: "Observed failure ratio over the burn window divided by the allowed ratio",
		}, []string{"metric", "name"}),
		windowGood: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "window_good_completions",
			Help: "Completions within threshold currently in the window",
		}, []string{"metric", "window"}),
		windowTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "window_completions",
			Help: "Completions currently in the window",
		}, []string{"metric", "window"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "http_requests_total",
			Help: "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "api", Name: "http_request_duration_seconds",
			Help:    "Latency distribution of HTTP handlers",
			Buckets: histogramBuckets,
		}, []string{"method", "route", "status"}),
	}
	e.registry.MustRegister(
		e.simTime, e.started, e.completed, e.inFlight, e.engineStatus,
		e.sliPct, e.budgetPct, e.burnRate, e.windowGood, e.windowTotal,
		e.requestTotal, e.requestLatency,
	)
	return e
}

// Registry returns the registry behind /metrics.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Observe replaces every snapshot gauge with the values in snap. Metrics
// removed from the configuration disappear; values without data are absent.
func (e *Exporter) Observe(snap sim.SimulationSnapshot, names map[string]string) {
	e.simTime.Set(float64(snap.SimTimeMs) / 1000)
	e.started.Set(float64(snap.TotalStarted))
	e.completed.Set(float64(snap.TotalCompleted))
	e.inFlight.Set(float64(snap.InFlight))
	for _, s := range []sim.EngineStatus{sim.StatusIdle, sim.StatusRunning, sim.StatusPaused} {
		v := 0.0
		if s == snap.Status {
			v = 1
		}
		e.engineStatus.WithLabelValues(string(s)).Set(v)
	}

	e.sliPct.Reset()
	e.budgetPct.Reset()
	e.burnRate.Reset()
	e.windowGood.Reset()
	e.windowTotal.Reset()
	for _, id := range snap.MetricOrder {
		m, ok := snap.Metrics[id]
		if !ok {
			continue
		}
		name := names[id]
		setIfPresent(e.sliPct, m.SliPct, id, name)
		setIfPresent(e.budgetPct, m.ErrorBudgetRemainingPct, id, name)
		setIfPresent(e.burnRate, m.BurnRate, id, name)
		e.windowGood.WithLabelValues(id, "sli").Set(float64(m.GoodCount))
		e.windowTotal.WithLabelValues(id, "sli").Set(float64(m.TotalCount))
		e.windowGood.WithLabelValues(id, "burn").Set(float64(m.BurnGoodCount))
		e.windowTotal.WithLabelValues(id, "burn").Set(float64(m.BurnTotalCount))
	}
}

// setIfPresent leaves the series absent when v has no data.
func setIfPresent(vec *prometheus.GaugeVec, v *float64, labels ...string) {
	if v == nil || math.IsNaN(*v) {
		return
	}
	vec.WithLabelValues(labels...).Set(*v)
}

func (e *Exporter) recordRequest(method, route string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	e.requestTotal.With(labels).Inc()
	e.requestLatency.With(labels).Observe(duration.Seconds())
}
