package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinsFor(t *testing.T) {
	assert.Equal(t, int64(100), binsFor(10))
	assert.Equal(t, int64(6000), binsFor(600))
	assert.Equal(t, int64(2), binsFor(0.15))
	assert.Equal(t, int64(1), binsFor(0))
}

func TestSlidingWindow_RollingTotalsMatchSlots(t *testing.T) {
	w := newSlidingWindow(1, 0)
	for ts := 0.0; ts < 3000; ts += 37 {
		w.advanceTo(ts)
		w.record(ts, int64(ts)%2 == 0)

		var good, total int64
		for i := range w.total {
			good += w.good[i]
			total += w.total[i]
		}
		if good != w.rollingGood || total != w.rollingTotal {
			t.Fatalf("at %vms: rolling %d/%d, slots %d/%d", ts, w.rollingGood, w.rollingTotal, good, total)
		}
	}
}

func TestSlidingWindow_ThreeEventsAgeOut(t *testing.T) {
	// Completions at 100, 200 and 300ms in a 1s window.
	w := newSlidingWindow(1, 0)
	for _, ts := range []float64{100, 200, 300} {
		w.advanceTo(ts)
		assert.True(t, w.record(ts, true))
	}
	assert.Equal(t, int64(3), w.rollingTotal)

	w.advanceTo(1300)
	assert.Equal(t, int64(0), w.rollingTotal)
}

func TestSlidingWindow_FutureRecordAdvancesFirst(t *testing.T) {
	w := newSlidingWindow(1, 0)
	w.record(50, true)
	assert.True(t, w.record(1550, false))
	// The 50ms completion fell out when the window moved to 1550ms.
	assert.Equal(t, int64(1), w.rollingTotal)
	assert.Equal(t, int64(0), w.rollingGood)
	assert.Equal(t, binOf(1550), w.currentBin)
}

func TestSlidingWindow_StaleRecordDropped(t *testing.T) {
	w := newSlidingWindow(1, 0)
	w.advanceTo(5000)
	assert.False(t, w.record(3900, true))
	assert.Equal(t, int64(0), w.rollingTotal)
}
