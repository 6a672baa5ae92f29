package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inference-sim/slo-sim/sim"
	"github.com/inference-sim/slo-sim/sim/session"
)

var (
	metricName          string  // New name for "metrics set"
	metricThresholdMs   float64 // New threshold for "metrics set"
	metricWindowSec     float64 // New window for "metrics set"
	metricBurnWindowSec float64 // New burn window for "metrics set"
	metricSloTargetPct  float64 // New SLO target for "metrics set"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "List and edit the scenario's SLI metrics",
}

var metricsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List SLI metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := sim.LoadConfig(scenarioPath())
		if err != nil {
			return err
		}
		return writeMetrics(cmd.OutOrStdout(), cfg.Metrics)
	},
}

var metricsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an SLI metric with default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var id string
		cfg, err := editScenario(scenarioPath(), func(s *session.Session) error {
			var err error
			id, err = s.AddMetric()
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added metric %s\n", id)
		return writeMetrics(cmd.OutOrStdout(), cfg.Metrics)
	},
}

var metricsSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Change an SLI metric's name, threshold, windows or target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch := metricPatchFromFlags(cmd)
		if patch == (session.MetricPatch{}) {
			return fmt.Errorf("nothing to change: pass at least one field flag")
		}
		cfg, err := editScenario(scenarioPath(), func(s *session.Session) error {
			return s.UpdateMetric(args[0], patch)
		})
		if err != nil {
			return err
		}
		return writeMetrics(cmd.OutOrStdout(), cfg.Metrics)
	},
}

var metricsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an SLI metric",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := editScenario(scenarioPath(), func(s *session.Session) error {
			return s.RemoveMetric(args[0])
		})
		if err != nil {
			return err
		}
		return writeMetrics(cmd.OutOrStdout(), cfg.Metrics)
	},
}

// metricPatchFromFlags includes only the flags given on the command line.
func metricPatchFromFlags(cmd *cobra.Command) session.MetricPatch {
	var patch session.MetricPatch
	flags := cmd.Flags()
	if flags.Changed("name") {
		patch.Name = &metricName
	}
	if flags.Changed("threshold-ms") {
		patch.ThresholdMs = &metricThresholdMs
	}
	if flags.Changed("window-sec") {
		patch.WindowSec = &metricWindowSec
	}
	if flags.Changed("burn-window-sec") {
		patch.BurnWindowSec = &metricBurnWindowSec
	}
	if flags.Changed("slo-target") {
		patch.SloTargetPct = &metricSloTargetPct
	}
	return patch
}

func writeMetrics(w io.Writer, metrics []sim.SliMetricConfig) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTHRESHOLD\tWINDOW\tBURN WINDOW\tTARGET")
	for _, m := range metrics {
		fmt.Fprintf(tw, "%s\t%s\t%gms\t%gs\t%gs\t%g%%\n",
			m.ID, m.Name, m.ThresholdMs, m.WindowSec, m.EffectiveBurnWindowSec(), m.SloTargetPct)
	}
	return tw.Flush()
}

func init() {
	flags := metricsSetCmd.Flags()
	flags.StringVar(&metricName, "name", "", "Display name")
	flags.Float64Var(&metricThresholdMs, "threshold-ms", 0, "Latency threshold in milliseconds (1-5000)")
	flags.Float64Var(&metricWindowSec, "window-sec", 0, "SLI window in seconds (10-600)")
	flags.Float64Var(&metricBurnWindowSec, "burn-window-sec", 0, "Burn-rate window in seconds (0 uses the SLI window)")
	flags.Float64Var(&metricSloTargetPct, "slo-target", 0, "SLO target percentage (90-99.99)")
	metricsCmd.AddCommand(metricsListCmd, metricsAddCmd, metricsSetCmd, metricsRemoveCmd)
}
