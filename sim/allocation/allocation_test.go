package allocation

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/slo-sim/sim"
)

func bucketsOf(pcts ...int) []sim.LatencyBucket {
	ids := []string{"a", "b", "c", "d", "e", "f"}
	out := make([]sim.LatencyBucket, len(pcts))
	for i, p := range pcts {
		out[i] = sim.LatencyBucket{ID: ids[i], Percentage: p, LatencyMs: float64(100 * (i + 1))}
	}
	return out
}

func pctsOf(buckets []sim.LatencyBucket) []int {
	out := make([]int, len(buckets))
	for i, b := range buckets {
		out[i] = b.Percentage
	}
	return out
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

func TestEvenSplitIntegers(t *testing.T) {
	assert.Equal(t, []int{34, 33, 33}, EvenSplitIntegers(3, 100))
	assert.Equal(t, []int{25, 25, 25, 25}, EvenSplitIntegers(4, 100))
	assert.Equal(t, []int{}, EvenSplitIntegers(0, 100))
	assert.Equal(t, []int{0, 0}, EvenSplitIntegers(2, -5))
}

func TestNormalizeIntegerPercentages(t *testing.T) {
	tests := []struct {
		name    string
		weights []float64
		total   int
		want    []int
	}{
		{"thirds", []float64{1, 1, 1}, 100, []int{34, 33, 33}},
		{"two to one", []float64{2, 1}, 100, []int{67, 33}},
		{"all zero splits evenly", []float64{0, 0, 0}, 100, []int{34, 33, 33}},
		{"negative counts as zero", []float64{-5, 10}, 100, []int{0, 100}},
		{"already normalized", []float64{80, 13, 7}, 100, []int{80, 13, 7}},
		{"smaller total", []float64{95, 5}, 50, []int{48, 2}},
		{"empty", nil, 100, []int{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeIntegerPercentages(tc.weights, tc.total)
			assert.Equal(t, tc.want, got)
			if len(tc.want) > 0 {
				assert.Equal(t, tc.total, sum(got))
			}
		})
	}
}

func TestNormalizeIntegerPercentages_Idempotent(t *testing.T) {
	for _, weights := range [][]float64{{1, 1, 1}, {3.3, 7.7, 0.1, 9}, {95, 5}, {0, 0, 1}} {
		once := NormalizeIntegerPercentages(weights, 100)
		again := make([]float64, len(once))
		for i, v := range once {
			again[i] = float64(v)
		}
		assert.Equal(t, once, NormalizeIntegerPercentages(again, 100), "weights %v", weights)
	}
}

func TestRebalanceWithSelectedBucket(t *testing.T) {
	// GIVEN 70/20/10 and a new 80% share for the first bucket
	got := RebalanceWithSelectedBucket(bucketsOf(70, 20, 10), "a", 80)
	// THEN the others split the remaining 20 in their 2:1 proportion
	assert.Equal(t, []int{80, 13, 7}, pctsOf(got))

	got = RebalanceWithSelectedBucket(bucketsOf(50, 30, 20), "a", 60)
	assert.Equal(t, []int{60, 24, 16}, pctsOf(got))

	// Latencies and ids survive.
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, 200.0, got[1].LatencyMs)
}

func TestRebalanceWithSelectedBucket_Clamps(t *testing.T) {
	assert.Equal(t, []int{100, 0}, pctsOf(RebalanceWithSelectedBucket(bucketsOf(50, 50), "a", 150)))
	assert.Equal(t, []int{0, 100}, pctsOf(RebalanceWithSelectedBucket(bucketsOf(50, 50), "a", -3)))
	assert.Equal(t, []int{33, 67}, pctsOf(RebalanceWithSelectedBucket(bucketsOf(50, 50), "a", 32.6)))
}

func TestRebalanceWithSelectedBucket_SingleAndUnknown(t *testing.T) {
	assert.Equal(t, []int{100}, pctsOf(RebalanceWithSelectedBucket(bucketsOf(40), "a", 10)))
	assert.Equal(t, []int{67, 33}, pctsOf(RebalanceWithSelectedBucket(bucketsOf(2, 1), "zzz", 10)))
	assert.Empty(t, RebalanceWithSelectedBucket(nil, "a", 10))
}

func TestRedistributeAfterRemoval(t *testing.T) {
	assert.Equal(t, []int{88, 12}, pctsOf(RedistributeAfterRemoval(bucketsOf(70, 20, 10), "b")))
	assert.Equal(t, []int{100}, pctsOf(RedistributeAfterRemoval(bucketsOf(70, 30), "a")))
	assert.Empty(t, RedistributeAfterRemoval(bucketsOf(100), "a"))

	// An unknown id just renormalizes.
	assert.Equal(t, []int{80, 13, 7}, pctsOf(RedistributeAfterRemoval(bucketsOf(80, 13, 7), "zzz")))
}

func TestAllocateForNewBucketEvenSteal(t *testing.T) {
	tests := []struct {
		name string
		have []int
		want []int
	}{
		{"three donors", []int{70, 20, 10}, []int{61, 12, 2, 25}},
		{"single donor", []int{100}, []int{50, 50}},
		{"small donor runs dry", []int{95, 5}, []int{67, 0, 33}},
		{"zero donor skipped", []int{1, 0, 99}, []int{0, 0, 75, 25}},
		{"drifted set repaired first", []int{2, 1}, []int{50, 17, 33}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := AllocateForNewBucketEvenSteal(bucketsOf(tc.have...), sim.LatencyBucket{ID: "new", LatencyMs: 1000})
			require.Len(t, got, len(tc.have)+1)
			assert.Equal(t, tc.want, pctsOf(got))
			assert.Equal(t, "new", got[len(got)-1].ID)
			assert.Equal(t, TotalPercent, sum(pctsOf(got)))
			for _, b := range got {
				assert.GreaterOrEqual(t, b.Percentage, 0)
			}
		})
	}
}

func TestAllocateForNewBucketEvenSteal_Empty(t *testing.T) {
	got := AllocateForNewBucketEvenSteal(nil, sim.LatencyBucket{ID: "first"})
	assert.Equal(t, []int{100}, pctsOf(got))
}

func TestStealEvenly_StopsWhenDonorsRunOut(t *testing.T) {
	next, stolen := stealEvenly([]int{1, 2}, 10)
	assert.Equal(t, []int{0, 0}, next)
	assert.Equal(t, 3, stolen)
}

// requireWhole checks that a non-empty set sums to 100 with no negative share
// and that normalizing it again changes nothing.
func requireWhole(t *testing.T, buckets []sim.LatencyBucket, step string) {
	t.Helper()
	pcts := pctsOf(buckets)
	require.NotEmpty(t, pcts, step)
	require.Equal(t, TotalPercent, sum(pcts), "%s: %v", step, pcts)
	weights := make([]float64, len(pcts))
	for i, p := range pcts {
		require.GreaterOrEqual(t, p, 0, "%s: %v", step, pcts)
		weights[i] = float64(p)
	}
	require.Equal(t, pcts, NormalizeIntegerPercentages(weights, TotalPercent), "%s: %v", step, pcts)
}

func TestReallocation_RandomEditsKeepWholeSet(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			nextID := 0
			newBucket := func() sim.LatencyBucket {
				nextID++
				return sim.LatencyBucket{ID: fmt.Sprintf("b%d", nextID), LatencyMs: 100}
			}

			// GIVEN an arbitrary, possibly drifted, bucket set
			buckets := make([]sim.LatencyBucket, 1+rng.Intn(6))
			for i := range buckets {
				buckets[i] = newBucket()
				buckets[i].Percentage = rng.Intn(101)
			}
			buckets = RedistributeAfterRemoval(buckets, "")
			requireWhole(t, buckets, "initial")

			// WHEN random edits are applied THEN every result stays whole
			for op := 0; op < 200; op++ {
				pick := buckets[rng.Intn(len(buckets))].ID
				switch rng.Intn(3) {
				case 0:
					target := rng.Float64()*140 - 20
					buckets = RebalanceWithSelectedBucket(buckets, pick, target)
					requireWhole(t, buckets, fmt.Sprintf("op %d: rebalance %s to %.1f", op, pick, target))
				case 1:
					if len(buckets) == 1 {
						continue
					}
					buckets = RedistributeAfterRemoval(buckets, pick)
					requireWhole(t, buckets, fmt.Sprintf("op %d: remove %s", op, pick))
				case 2:
					if len(buckets) >= 12 {
						continue
					}
					buckets = AllocateForNewBucketEvenSteal(buckets, newBucket())
					requireWhole(t, buckets, fmt.Sprintf("op %d: add", op))
				}
			}
		})
	}
}
