package sim

import "math"

// BinMs is the resolution of window bins in simulated milliseconds.
const BinMs = 100

// binOf maps a simulated time to its bin index.
func binOf(simTimeMs float64) int64 {
	return int64(math.Floor(simTimeMs / BinMs))
}

// binsFor returns the number of bins covering windowSec, at least one.
func binsFor(windowSec float64) int64 {
	n := int64(math.Ceil(windowSec * 1000 / BinMs))
	if n < 1 {
		return 1
	}
	return n
}

// slidingWindow counts good/total completions over the trailing len(good) bins.
// Slots are reused circularly; rollingGood/rollingTotal always equal the sum
// of the slots.
type slidingWindow struct {
	good         []int64
	total        []int64
	rollingGood  int64
	rollingTotal int64
	currentBin   int64
}

func newSlidingWindow(windowSec float64, initialSimTimeMs float64) *slidingWindow {
	n := binsFor(windowSec)
	return &slidingWindow{
		good:       make([]int64, n),
		total:      make([]int64, n),
		currentBin: binOf(initialSimTimeMs),
	}
}

func (w *slidingWindow) size() int64 {
	return int64(len(w.total))
}

func (w *slidingWindow) slot(bin int64) int64 {
	n := w.size()
	return ((bin % n) + n) % n
}

// advanceTo ages out every bin after currentBin up to and including the target
// bin. A jump spanning the whole window clears it in one pass.
func (w *slidingWindow) advanceTo(simTimeMs float64) {
	target := binOf(simTimeMs)
	if target <= w.currentBin {
		return
	}
	if target-w.currentBin >= w.size() {
		clear(w.good)
		clear(w.total)
		w.rollingGood, w.rollingTotal = 0, 0
		w.currentBin = target
		return
	}
	for bin := w.currentBin + 1; bin <= target; bin++ {
		i := w.slot(bin)
		w.rollingGood -= w.good[i]
		w.rollingTotal -= w.total[i]
		w.good[i], w.total[i] = 0, 0
	}
	w.currentBin = target
}

// record counts one completion. Completions older than the oldest bin still in
// the window are dropped; completions ahead of the window advance it first.
func (w *slidingWindow) record(completionTimeMs float64, good bool) bool {
	bin := binOf(completionTimeMs)
	if bin > w.currentBin {
		w.advanceTo(completionTimeMs)
	}
	if bin < w.currentBin-w.size()+1 {
		return false
	}
	i := w.slot(bin)
	w.total[i]++
	w.rollingTotal++
	if good {
		w.good[i]++
		w.rollingGood++
	}
	return true
}
