// Package session holds the user-editable configuration and the Engine it
// drives. It replaces a process-wide engine singleton: whoever constructs a
// Session owns the engine and passes the Session to whatever needs it.
package session

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/slo-sim/sim"
	"github.com/inference-sim/slo-sim/sim/allocation"
)

var (
	ErrLastBucket    = errors.New("at least one latency bucket is required")
	ErrLastMetric    = errors.New("at least one SLI metric is required")
	ErrUnknownBucket = errors.New("unknown latency bucket")
	ErrUnknownMetric = errors.New("unknown SLI metric")
)

// Editing bounds applied before a value reaches the configuration.
const (
	MinRPS          = 1
	MaxRPS          = 1000
	MinLatencyMs    = 1
	MaxLatencyMs    = 10_000
	NewBucketMs     = 1000
	NewMetricMs     = 1000
	NewMetricWindow = 60
	NewMetricBurn   = 5
	NewMetricTarget = 90
)

// MetricPatch carries the fields of an SLI metric to change; nil fields are
// left alone.
type MetricPatch struct {
	Name          *string  `json:"name,omitempty"`
	ThresholdMs   *float64 `json:"thresholdMs,omitempty"`
	WindowSec     *float64 `json:"windowSec,omitempty"`
	BurnWindowSec *float64 `json:"burnWindowSec,omitempty"`
	SloTargetPct  *float64 `json:"sloTargetPct,omitempty"`
}

// Session is safe for concurrent use.
type Session struct {
	mu               sync.Mutex
	config           sim.Config
	validationErrors []string
	engine           *sim.Engine
	newID            func() string
}

// New creates a session around cfg. onUpdate receives every engine snapshot.
func New(cfg sim.Config, onUpdate sim.UpdateFunc) *Session {
	s := &Session{
		config: cfg.Clone(),
		newID:  uuid.NewString,
	}
	s.validationErrors = problemsOf(s.config)
	if len(s.validationErrors) > 0 {
		logrus.Warnf("initial configuration is invalid: %v", s.validationErrors)
	}
	s.engine = sim.NewEngine(s.config, onUpdate)
	return s
}

// Engine exposes the owned engine for read-only consumers such as exporters.
func (s *Session) Engine() *sim.Engine {
	return s.engine
}

// Config returns a copy of the edited configuration, valid or not.
func (s *Session) Config() sim.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Clone()
}

// ValidationErrors returns the problems of the edited configuration.
func (s *Session) ValidationErrors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.validationErrors...)
}

// Snapshot reads the engine's current snapshot.
func (s *Session) Snapshot() sim.SimulationSnapshot {
	return s.engine.Snapshot()
}

// SetConfig replaces the whole configuration.
func (s *Session) SetConfig(cfg sim.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(cfg.Clone())
}

// SetRPS rounds and clamps the arrival rate to [MinRPS, MaxRPS].
func (s *Session) SetRPS(rps float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.config.Clone()
	next.RPS = math.Max(MinRPS, math.Min(MaxRPS, math.Round(rps)))
	return s.applyLocked(next)
}

// SetSpeedMultiplier changes how many inner steps run per tick.
func (s *Session) SetSpeedMultiplier(speed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.config.Clone()
	next.SpeedMultiplier = speed
	return s.applyLocked(next)
}

// AddBucket appends a NewBucketMs bucket funded by an even steal from the
// existing buckets and returns its id.
func (s *Session) AddBucket() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := sim.LatencyBucket{ID: s.newID(), LatencyMs: NewBucketMs}
	next := s.config.Clone()
	next.Buckets = allocation.AllocateForNewBucketEvenSteal(next.Buckets, bucket)
	return bucket.ID, s.applyLocked(next)
}

// SetBucketPercentage pins one bucket and rescales the others around it.
func (s *Session) SetBucketPercentage(id string, pct float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasBucket(id) {
		return fmt.Errorf("%w %q", ErrUnknownBucket, id)
	}
	next := s.config.Clone()
	next.Buckets = allocation.RebalanceWithSelectedBucket(next.Buckets, id, pct)
	return s.applyLocked(next)
}

// SetBucketLatency rounds and clamps the latency to [MinLatencyMs, MaxLatencyMs].
func (s *Session) SetBucketLatency(id string, latencyMs float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasBucket(id) {
		return fmt.Errorf("%w %q", ErrUnknownBucket, id)
	}
	next := s.config.Clone()
	for i := range next.Buckets {
		if next.Buckets[i].ID == id {
			next.Buckets[i].LatencyMs = math.Max(MinLatencyMs, math.Min(MaxLatencyMs, math.Round(latencyMs)))
		}
	}
	return s.applyLocked(next)
}

// RemoveBucket deletes a bucket and redistributes its share. The last bucket
// cannot be removed.
func (s *Session) RemoveBucket(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasBucket(id) {
		return fmt.Errorf("%w %q", ErrUnknownBucket, id)
	}
	if len(s.config.Buckets) <= 1 {
		return ErrLastBucket
	}
	next := s.config.Clone()
	next.Buckets = allocation.RedistributeAfterRemoval(next.Buckets, id)
	return s.applyLocked(next)
}

// AddMetric appends a default SLI metric and returns its id.
func (s *Session) AddMetric() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	metric := sim.SliMetricConfig{
		ID:            s.newID(),
		Name:          fmt.Sprintf("SLI <= %dms / %ds", NewMetricMs, NewMetricWindow),
		ThresholdMs:   NewMetricMs,
		WindowSec:     NewMetricWindow,
		BurnWindowSec: NewMetricBurn,
		SloTargetPct:  NewMetricTarget,
	}
	next := s.config.Clone()
	next.Metrics = append(next.Metrics, metric)
	return metric.ID, s.applyLocked(next)
}

// UpdateMetric applies patch to the metric with id.
func (s *Session) UpdateMetric(id string, patch MetricPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.config.Clone()
	found := false
	for i := range next.Metrics {
		m := &next.Metrics[i]
		if m.ID != id {
			continue
		}
		found = true
		if patch.Name != nil {
			m.Name = *patch.Name
		}
		if patch.ThresholdMs != nil {
			m.ThresholdMs = *patch.ThresholdMs
		}
		if patch.WindowSec != nil {
			m.WindowSec = *patch.WindowSec
		}
		if patch.BurnWindowSec != nil {
			m.BurnWindowSec = *patch.BurnWindowSec
		}
		if patch.SloTargetPct != nil {
			m.SloTargetPct = *patch.SloTargetPct
		}
	}
	if !found {
		return fmt.Errorf("%w %q", ErrUnknownMetric, id)
	}
	return s.applyLocked(next)
}

// RemoveMetric deletes a metric. The last metric cannot be removed.
func (s *Session) RemoveMetric(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.config.Clone()
	kept := next.Metrics[:0]
	for _, m := range next.Metrics {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(next.Metrics) {
		return fmt.Errorf("%w %q", ErrUnknownMetric, id)
	}
	if len(kept) == 0 {
		return ErrLastMetric
	}
	next.Metrics = kept
	return s.applyLocked(next)
}

// Start validates the configuration, pushes it to the engine and starts the
// tick loop. An invalid configuration is reported and nothing starts. The
// lock is held throughout so a concurrent edit cannot be overwritten by the
// configuration validated here.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.config.Validate(); err != nil {
		s.validationErrors = problemsOf(s.config)
		return err
	}
	s.engine.UpdateConfig(s.config.Clone())
	s.engine.Start()
	return nil
}

// Pause stops the tick loop.
func (s *Session) Pause() {
	s.engine.Pause()
}

// Reset returns the engine to a fresh idle state.
func (s *Session) Reset() {
	s.engine.Reset()
}

// Close stops the engine for good.
func (s *Session) Close() {
	s.engine.Close()
}

// applyLocked records next as the edited configuration and forwards it to
// the engine only when it validates. The returned error is the validation
// result; the edit itself is always kept.
func (s *Session) applyLocked(next sim.Config) error {
	s.config = next
	err := next.Validate()
	s.validationErrors = problemsOf(next)
	if err != nil {
		logrus.Debugf("configuration kept but not applied: %v", err)
		return err
	}
	s.engine.UpdateConfig(next)
	return nil
}

func (s *Session) hasBucket(id string) bool {
	for _, b := range s.config.Buckets {
		if b.ID == id {
			return true
		}
	}
	return false
}

func problemsOf(cfg sim.Config) []string {
	var verr *sim.ValidationError
	if errors.As(cfg.Validate(), &verr) {
		return verr.Problems
	}
	return nil
}
