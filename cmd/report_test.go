package cmd

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/slo-sim/sim"
)

func TestWriteTextReport_FormatsMissingAndInfiniteValues(t *testing.T) {
	inf := math.Inf(1)
	sli := 99.5
	snap := sim.SimulationSnapshot{
		SimTimeMs:   1500,
		MetricOrder: []string{"empty", "strict"},
		Metrics: map[string]sim.MetricSnapshot{
			"empty":  {BurnRateStatus: sim.StatusNA, BudgetStatus: sim.StatusNA},
			"strict": {SliPct: &sli, BurnRate: &inf, BurnRateStatus: sim.StatusNA},
		},
	}
	metrics := []sim.SliMetricConfig{
		{ID: "empty", Name: "no data", WindowSec: 60},
		{ID: "strict", Name: "perfect", WindowSec: 60, SloTargetPct: 100},
	}

	var out bytes.Buffer
	require.NoError(t, writeTextReport(&out, snap, metrics))
	text := out.String()

	assert.Contains(t, text, "t=1.5s")
	assert.Contains(t, text, "no data")
	assert.Contains(t, text, "sli=N/A")
	assert.Contains(t, text, "sli=99.50%")
	assert.Contains(t, text, "burn=inf")
}

func TestFormatBurn(t *testing.T) {
	v := 1.234
	assert.Equal(t, "1.23x", formatBurn(&v))
	assert.Equal(t, "N/A", formatBurn(nil))
}
