// Package testutil provides shared test infrastructure for the slo-sim engine.
// It consolidates float and optional-value assertions used across sim/ and
// its sub-package tests.
package testutil

import (
	"math"
	"testing"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// RequireValue fails the test when an optional value is nil and returns it
// otherwise.
func RequireValue(t *testing.T, name string, got *float64) float64 {
	t.Helper()
	if got == nil {
		t.Fatalf("%s: got nil, want a value", name)
	}
	return *got
}

// AssertNil reports an optional value that should be absent.
func AssertNil(t *testing.T, name string, got *float64) {
	t.Helper()
	if got != nil {
		t.Errorf("%s: got %v, want nil", name, *got)
	}
}

// AssertPctWithin checks that count/total, as a percentage, lies within
// tolPts percentage points of wantPct.
func AssertPctWithin(t *testing.T, name string, count, total int, wantPct, tolPts float64) {
	t.Helper()
	if total == 0 {
		t.Fatalf("%s: zero total", name)
	}
	got := float64(count) / float64(total) * 100
	if math.Abs(got-wantPct) > tolPts {
		t.Errorf("%s: got %.2f%%, want %.2f%% ± %.1f", name, got, wantPct, tolPts)
	}
}
