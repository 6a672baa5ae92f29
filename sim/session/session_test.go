package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/slo-sim/sim"
)

// newTestSession returns a session over the default scenario whose generated
// ids are predictable.
func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := New(sim.DefaultConfig(), nil)
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
	t.Cleanup(s.Close)
	return s
}

func bucketPcts(cfg sim.Config) []int {
	out := make([]int, len(cfg.Buckets))
	for i, b := range cfg.Buckets {
		out[i] = b.Percentage
	}
	return out
}

func TestSession_NewWithDefaults(t *testing.T) {
	s := newTestSession(t)
	assert.Empty(t, s.ValidationErrors())
	assert.Equal(t, sim.DefaultConfig(), s.Config())
	assert.Equal(t, sim.StatusIdle, s.Snapshot().Status)
}

func TestSession_SetRPSClamps(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.SetRPS(5000))
	assert.Equal(t, float64(MaxRPS), s.Config().RPS)
	assert.Equal(t, float64(MaxRPS), s.Engine().Config().RPS)

	require.NoError(t, s.SetRPS(0.2))
	assert.Equal(t, float64(MinRPS), s.Config().RPS)

	require.NoError(t, s.SetRPS(42.6))
	assert.Equal(t, 43.0, s.Config().RPS)
}

func TestSession_InvalidEditIsKeptButNotApplied(t *testing.T) {
	// GIVEN a session whose engine runs the default speed
	s := newTestSession(t)

	// WHEN an unsupported speed is set
	err := s.SetSpeedMultiplier(7)

	// THEN the edit is reported, kept in the session, and withheld from the engine
	var verr *sim.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 7, s.Config().SpeedMultiplier)
	assert.NotEmpty(t, s.ValidationErrors())
	assert.Equal(t, 1, s.Engine().Config().SpeedMultiplier)

	// AND Start refuses to run it
	require.Error(t, s.Start())
	assert.Equal(t, sim.StatusIdle, s.Engine().Status())

	// WHEN it is fixed
	require.NoError(t, s.SetSpeedMultiplier(10))
	assert.Empty(t, s.ValidationErrors())
	assert.Equal(t, 10, s.Engine().Config().SpeedMultiplier)
}

func TestSession_AddBucketStealsEvenly(t *testing.T) {
	s := newTestSession(t)

	id, err := s.AddBucket()
	require.NoError(t, err)
	assert.Equal(t, "gen-1", id)

	cfg := s.Config()
	assert.Equal(t, []int{67, 0, 33}, bucketPcts(cfg))
	assert.Equal(t, float64(NewBucketMs), cfg.Buckets[2].LatencyMs)
	assert.Len(t, s.Engine().Config().Buckets, 3)
}

func TestSession_SetBucketPercentage(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetBucketPercentage("fast", 80))
	assert.Equal(t, []int{80, 20}, bucketPcts(s.Config()))

	err := s.SetBucketPercentage("missing", 10)
	assert.ErrorIs(t, err, ErrUnknownBucket)
}

func TestSession_SetBucketLatencyClamps(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetBucketLatency("slow", 99_999))
	assert.Equal(t, float64(MaxLatencyMs), s.Config().Buckets[1].LatencyMs)

	require.NoError(t, s.SetBucketLatency("slow", 0))
	assert.Equal(t, float64(MinLatencyMs), s.Config().Buckets[1].LatencyMs)

	assert.ErrorIs(t, s.SetBucketLatency("missing", 10), ErrUnknownBucket)
}

func TestSession_RemoveBucket(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.RemoveBucket("slow"))
	assert.Equal(t, []int{100}, bucketPcts(s.Config()))

	assert.ErrorIs(t, s.RemoveBucket("fast"), ErrLastBucket)
	assert.ErrorIs(t, s.RemoveBucket("missing"), ErrUnknownBucket)
	assert.Len(t, s.Config().Buckets, 1)
}

func TestSession_AddAndUpdateMetric(t *testing.T) {
	s := newTestSession(t)

	id, err := s.AddMetric()
	require.NoError(t, err)
	metrics := s.Config().Metrics
	require.Len(t, metrics, 4)
	added := metrics[3]
	assert.Equal(t, id, added.ID)
	assert.Equal(t, float64(NewMetricMs), added.ThresholdMs)
	assert.Equal(t, float64(NewMetricWindow), added.WindowSec)
	assert.Equal(t, float64(NewMetricTarget), added.SloTargetPct)
	assert.Contains(t, s.Snapshot().Metrics, id)

	target := 99.5
	name := "tight"
	require.NoError(t, s.UpdateMetric(id, MetricPatch{Name: &name, SloTargetPct: &target}))
	updated := s.Config().Metrics[3]
	assert.Equal(t, "tight", updated.Name)
	assert.Equal(t, 99.5, updated.SloTargetPct)
	assert.Equal(t, float64(NewMetricMs), updated.ThresholdMs, "unpatched fields stay")

	assert.ErrorIs(t, s.UpdateMetric("missing", MetricPatch{Name: &name}), ErrUnknownMetric)
}

func TestSession_UpdateMetricOutOfBounds(t *testing.T) {
	s := newTestSession(t)
	window := 5.0
	err := s.UpdateMetric("sli-30s", MetricPatch{WindowSec: &window})
	require.Error(t, err)
	assert.Equal(t, 5.0, s.Config().Metrics[0].WindowSec)
	assert.Equal(t, 30.0, s.Engine().Config().Metrics[0].WindowSec)
}

func TestSession_RemoveMetric(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.RemoveMetric("sli-60s"))
	require.NoError(t, s.RemoveMetric("sli-300s"))
	assert.ErrorIs(t, s.RemoveMetric("sli-30s"), ErrLastMetric)
	assert.ErrorIs(t, s.RemoveMetric("missing"), ErrUnknownMetric)
	assert.Equal(t, []string{"sli-30s"}, s.Snapshot().MetricOrder)
}

func TestSession_StartPauseReset(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Start())
	assert.Equal(t, sim.StatusRunning, s.Engine().Status())

	s.Pause()
	assert.Equal(t, sim.StatusPaused, s.Engine().Status())

	s.Reset()
	snap := s.Snapshot()
	assert.Equal(t, sim.StatusIdle, snap.Status)
	assert.Equal(t, int64(0), snap.SimTimeMs)
}

func TestSession_StartRacingEditsKeepsEngineInSync(t *testing.T) {
	s := newTestSession(t)
	for i := 1; i <= 200; i++ {
		// WHEN Start and an edit run concurrently
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Start())
		}()
		go func(rps int) {
			defer wg.Done()
			assert.NoError(t, s.SetRPS(float64(rps)))
		}(i)
		wg.Wait()

		// THEN the engine runs exactly what the session holds
		require.Equal(t, s.Config().RPS, s.Engine().Config().RPS, "iteration %d", i)
		require.Equal(t, float64(i), s.Config().RPS)
	}
}

func TestSession_InvalidInitialConfig(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.Buckets[0].Percentage = 10
	s := New(cfg, nil)
	t.Cleanup(s.Close)
	assert.NotEmpty(t, s.ValidationErrors())
	assert.Error(t, s.Start())
}
