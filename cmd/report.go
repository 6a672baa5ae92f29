package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/fatih/color"

	"github.com/inference-sim/slo-sim/sim"
)

var statusColors = map[sim.Status]*color.Color{
	sim.StatusGreen:     color.New(color.FgGreen),
	sim.StatusYellow:    color.New(color.FgYellow),
	sim.StatusRed:       color.New(color.FgRed),
	sim.StatusExhausted: color.New(color.FgRed, color.Bold),
	sim.StatusNA:        color.New(color.FgHiBlack),
}

func paint(status sim.Status, text string) string {
	c, ok := statusColors[status]
	if !ok {
		return text
	}
	return c.Sprint(text)
}

func formatPct(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", *v)
}

func formatBurn(v *float64) string {
	switch {
	case v == nil:
		return "N/A"
	case math.IsInf(*v, 1):
		return "inf"
	}
	return fmt.Sprintf("%.2fx", *v)
}

// writeTextReport prints one block per metric in configured order.
func writeTextReport(w io.Writer, snap sim.SimulationSnapshot, metrics []sim.SliMetricConfig) error {
	names := make(map[string]sim.SliMetricConfig, len(metrics))
	for _, m := range metrics {
		names[m.ID] = m
	}
	if _, err := fmt.Fprintf(w, "t=%.1fs started=%d completed=%d in-flight=%d\n",
		float64(snap.SimTimeMs)/1000, snap.TotalStarted, snap.TotalCompleted, snap.InFlight); err != nil {
		return err
	}
	for _, id := range snap.MetricOrder {
		m := snap.Metrics[id]
		cfg := names[id]
		label := cfg.Name
		if label == "" {
			label = id
		}
		_, err := fmt.Fprintf(w, "  %-28s sli=%-8s target=%.2f%% budget=%s burn=%s (%d/%d in %gs)\n",
			label,
			formatPct(m.SliPct),
			cfg.SloTargetPct,
			paint(m.BudgetStatus, formatPct(m.ErrorBudgetRemainingPct)),
			paint(m.BurnRateStatus, formatBurn(m.BurnRate)),
			m.BurnGoodCount, m.BurnTotalCount, cfg.EffectiveBurnWindowSec())
		if err != nil {
			return err
		}
	}
	return nil
}

// writeJSONReport prints the snapshot, without chart history, as one JSON line.
func writeJSONReport(w io.Writer, snap sim.SimulationSnapshot) error {
	snap.ChartSeries = nil
	return json.NewEncoder(w).Encode(snap)
}
