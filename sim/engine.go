// sim/engine.go
package sim

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EngineStatus is the lifecycle state of the tick loop.
type EngineStatus string

const (
	StatusIdle    EngineStatus = "idle"
	StatusRunning EngineStatus = "running"
	StatusPaused  EngineStatus = "paused"
)

// UpdateFunc receives a full snapshot after each tick and each control call.
// Deliveries are serialized and arrive in the order the snapshots were taken;
// a snapshot overtaken by a newer one is dropped. The callback runs without
// the engine lock and may read from the engine, but must not call Start,
// Pause, Reset, UpdateConfig or Tick.
type UpdateFunc func(SimulationSnapshot)

// Engine owns simulated time, the in-flight completion queue, and one
// MetricState per configured metric. All state is guarded by mu so that each
// tick is atomic with respect to control calls and snapshot reads.
type Engine struct {
	mu sync.Mutex

	config      Config
	completions *CompletionQueue
	states      []*MetricState
	sampler     *LatencySampler
	rng         *PartitionedRNG
	onUpdate    UpdateFunc

	simTimeMs          int64
	arrivalAccumulator float64
	totalStarted       int64
	totalCompleted     int64
	lastSeriesSecond   int64

	status EngineStatus
	// loopGen identifies the live tick loop; a loop whose generation no
	// longer matches exits without touching state.
	loopGen int64
	stop    chan struct{}

	// published numbers snapshots under mu; delivered is the newest number
	// handed to onUpdate and is guarded by deliverMu.
	published uint64
	deliverMu sync.Mutex
	delivered uint64
}

// NewEngine builds an idle engine from cfg. onUpdate may be nil.
func NewEngine(cfg Config, onUpdate UpdateFunc) *Engine {
	cfg = cfg.Clone().withDefaults()
	e := &Engine{
		config:      cfg,
		completions: NewCompletionQueue(),
		sampler:     NewLatencySampler(cfg.Buckets),
		rng:         NewPartitionedRNG(cfg.Seed),
		onUpdate:    onUpdate,
		status:      StatusIdle,
	}
	e.rebuildMetricStates()
	e.seedSeries()
	return e
}

// Status returns the current lifecycle state.
func (e *Engine) Status() EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config.Clone()
}

// Start begins the tick loop. Calling Start while running is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.status != StatusRunning {
		e.status = StatusRunning
		e.startLoop()
		logrus.Infof("engine started at %dms (tick=%dms, speed=%dx)", e.simTimeMs, e.config.TickMs, e.config.SpeedMultiplier)
	}
	e.publishAndUnlock()
}

// Pause stops the tick loop and keeps all state. Pausing a non-running engine
// is a no-op.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.status == StatusRunning {
		e.stopLoop()
		e.status = StatusPaused
		logrus.Infof("engine paused at %dms", e.simTimeMs)
	}
	e.publishAndUnlock()
}

// Reset stops the loop and returns to a freshly initialized idle state:
// counters and accumulators zeroed, queue cleared, RNG reseeded, metric
// states rebuilt.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.stopLoop()
	e.status = StatusIdle
	e.simTimeMs = 0
	e.arrivalAccumulator = 0
	e.totalStarted = 0
	e.totalCompleted = 0
	e.lastSeriesSecond = 0
	e.completions.Clear()
	e.rng = NewPartitionedRNG(e.config.Seed)
	e.rebuildMetricStates()
	e.seedSeries()
	logrus.Info("engine reset")
	e.publishAndUnlock()
}

// Close stops the loop and drops the update callback.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLoop()
	if e.status == StatusRunning {
		e.status = StatusPaused
	}
	e.onUpdate = nil
}

// UpdateConfig swaps the configuration atomically. Metric states are rebuilt
// only when the set of (id, threshold, window, burn window) tuples changes;
// otherwise states are reordered and their name/SLO target refreshed in place.
// The sampler is always rebuilt. In-flight completions are kept.
func (e *Engine) UpdateConfig(next Config) {
	next = next.Clone().withDefaults()

	e.mu.Lock()
	structural := !sameMetricStructure(e.config.Metrics, next.Metrics)
	tickChanged := e.config.TickMs != next.TickMs
	e.config = next
	e.sampler = NewLatencySampler(next.Buckets)
	if e.sampler.IsFallback() {
		logrus.Warnf("no usable latency buckets; sampling constant %.0fms", FallbackLatencyMs)
	}

	if structural {
		logrus.Infof("metric set changed; rebuilding %d metric states at %dms", len(next.Metrics), e.simTimeMs)
		e.rebuildMetricStates()
		e.seedSeries()
	} else {
		e.refreshMetricStates()
	}

	if tickChanged && e.status == StatusRunning {
		e.stopLoop()
		e.startLoop()
		logrus.Infof("tick interval changed to %dms; loop restarted", next.TickMs)
	}
	e.publishAndUnlock()
}

// Snapshot advances every window to the current simulated time and returns a
// full snapshot. Besides that lazy eviction it has no side effects.
func (e *Engine) Snapshot() SimulationSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Tick runs one tick synchronously: SpeedMultiplier inner steps of TickMs
// simulated milliseconds each, followed by a snapshot delivery. It works in
// any state and is how headless runs drive a manual clock.
func (e *Engine) Tick() {
	e.mu.Lock()
	e.tickLocked()
	e.publishAndUnlock()
}

func (e *Engine) tickLocked() {
	for i := 0; i < e.config.SpeedMultiplier; i++ {
		e.runStep(e.config.TickMs)
	}
	logrus.Debugf("[%09dms] tick: started=%d completed=%d inflight=%d",
		e.simTimeMs, e.totalStarted, e.totalCompleted, e.completions.Len())
}

func (e *Engine) runStep(stepMs int64) {
	stepStart := e.simTimeMs
	stepEnd := stepStart + stepMs

	e.generateArrivals(stepStart, stepMs)
	e.advanceMetricStates(stepEnd)
	e.processCompletions(stepEnd)

	e.simTimeMs = stepEnd
	e.maybeAppendSeries()
}

// generateArrivals schedules rps*stepMs/1000 arrivals plus the carried
// fractional remainder, each at a uniform offset within the step.
func (e *Engine) generateArrivals(stepStart, stepMs int64) {
	expected := e.config.RPS*float64(stepMs)/1000 + e.arrivalAccumulator
	arrivals := math.Floor(expected)
	e.arrivalAccumulator = expected - arrivals

	n := int64(arrivals)
	if n <= 0 {
		return
	}
	arrivalRNG := e.rng.ForSubsystem(SubsystemArrivals)
	latencyRNG := e.rng.ForSubsystem(SubsystemLatency)
	for i := int64(0); i < n; i++ {
		arrivalMs := float64(stepStart) + arrivalRNG.Float64()*float64(stepMs)
		latencyMs := e.sampler.Sample(latencyRNG)
		e.completions.Push(CompletionEvent{
			CompletionTimeMs: arrivalMs + latencyMs,
			LatencyMs:        latencyMs,
		})
	}
	e.totalStarted += n
	logrus.Tracef("[%09dms] %d arrivals", stepStart, n)
}

// processCompletions pops every completion due by stepEnd in time order.
func (e *Engine) processCompletions(stepEnd int64) {
	for {
		next, ok := e.completions.Peek()
		if !ok || next.CompletionTimeMs > float64(stepEnd) {
			return
		}
		ev, _ := e.completions.PopNext()
		e.totalCompleted++
		for _, s := range e.states {
			s.RecordLatency(ev.CompletionTimeMs, ev.LatencyMs)
		}
	}
}

func (e *Engine) advanceMetricStates(simTimeMs int64) {
	for _, s := range e.states {
		s.AdvanceTo(simTimeMs)
	}
}

func (e *Engine) maybeAppendSeries() {
	second := e.simTimeMs / 1000
	if second <= e.lastSeriesSecond {
		return
	}
	for _, s := range e.states {
		s.AppendSeriesPoint(e.simTimeMs)
	}
	e.lastSeriesSecond = second
}

func (e *Engine) rebuildMetricStates() {
	e.states = make([]*MetricState, 0, len(e.config.Metrics))
	for _, m := range e.config.Metrics {
		e.states = append(e.states, NewMetricState(m, e.simTimeMs))
	}
}

// refreshMetricStates reorders existing states to the configured order and
// updates their non-structural fields.
func (e *Engine) refreshMetricStates() {
	byID := make(map[string]*MetricState, len(e.states))
	for _, s := range e.states {
		byID[s.ID()] = s
	}
	ordered := make([]*MetricState, 0, len(e.config.Metrics))
	for _, m := range e.config.Metrics {
		s, ok := byID[m.ID]
		if !ok {
			s = NewMetricState(m, e.simTimeMs)
		}
		s.setConfig(m)
		ordered = append(ordered, s)
	}
	e.states = ordered
}

func (e *Engine) seedSeries() {
	for _, s := range e.states {
		s.AppendSeriesPoint(e.simTimeMs)
	}
}

func (e *Engine) snapshotLocked() SimulationSnapshot {
	e.advanceMetricStates(e.simTimeMs)
	snap := SimulationSnapshot{
		SimTimeMs:      e.simTimeMs,
		Status:         e.status,
		TotalStarted:   e.totalStarted,
		TotalCompleted: e.totalCompleted,
		InFlight:       e.completions.Len(),
		MetricOrder:    make([]string, 0, len(e.states)),
		Metrics:        make(map[string]MetricSnapshot, len(e.states)),
		ChartSeries:    make(map[string][]SeriesPoint, len(e.states)),
	}
	for _, s := range e.states {
		snap.MetricOrder = append(snap.MetricOrder, s.ID())
		snap.Metrics[s.ID()] = s.Snapshot(e.simTimeMs)
		snap.ChartSeries[s.ID()] = s.Series()
	}
	return snap
}

// publishAndUnlock builds and numbers a snapshot under the lock, releases
// it, then hands the snapshot to the callback unless a newer one has already
// been delivered.
func (e *Engine) publishAndUnlock() {
	cb := e.onUpdate
	if cb == nil {
		e.mu.Unlock()
		return
	}
	e.published++
	seq := e.published
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.deliverMu.Lock()
	defer e.deliverMu.Unlock()
	if seq <= e.delivered {
		logrus.Tracef("[%09dms] dropping stale snapshot %d", snap.SimTimeMs, seq)
		return
	}
	e.delivered = seq
	cb(snap)
}

// startLoop launches a ticker goroutine bound to a fresh generation.
// Caller holds mu.
func (e *Engine) startLoop() {
	e.loopGen++
	e.stop = make(chan struct{})
	go e.loop(e.loopGen, time.Duration(e.config.TickMs)*time.Millisecond, e.stop)
}

// stopLoop invalidates the live loop immediately; the goroutine exits on its
// own. Caller holds mu.
func (e *Engine) stopLoop() {
	if e.stop == nil {
		return
	}
	close(e.stop)
	e.stop = nil
	e.loopGen++
}

func (e *Engine) loop(gen int64, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.mu.Lock()
			if e.loopGen != gen || e.status != StatusRunning {
				e.mu.Unlock()
				return
			}
			e.tickLocked()
			e.publishAndUnlock()
		}
	}
}

type metricKey struct {
	id            string
	thresholdMs   float64
	windowSec     float64
	burnWindowSec float64
}

func metricKeys(metrics []SliMetricConfig) []metricKey {
	keys := make([]metricKey, 0, len(metrics))
	for _, m := range metrics {
		keys = append(keys, metricKey{m.ID, m.ThresholdMs, m.WindowSec, m.EffectiveBurnWindowSec()})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].id < keys[j].id })
	return keys
}

// sameMetricStructure reports whether two metric lists differ only by order,
// names, or SLO targets.
func sameMetricStructure(left, right []SliMetricConfig) bool {
	if len(left) != len(right) {
		return false
	}
	lk, rk := metricKeys(left), metricKeys(right)
	for i := range lk {
		if lk[i] != rk[i] {
			return false
		}
	}
	return true
}
