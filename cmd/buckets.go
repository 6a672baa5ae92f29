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
	bucketPercentage float64 // New share for "buckets set"
	bucketLatencyMs  float64 // New latency for "buckets set"
)

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "List and edit the scenario's latency buckets",
}

var bucketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List latency buckets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := sim.LoadConfig(scenarioPath())
		if err != nil {
			return err
		}
		return writeBuckets(cmd.OutOrStdout(), cfg.Buckets)
	},
}

var bucketsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a bucket, taking its share evenly from the others",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var id string
		cfg, err := editScenario(scenarioPath(), func(s *session.Session) error {
			var err error
			id, err = s.AddBucket()
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added bucket %s\n", id)
		return writeBuckets(cmd.OutOrStdout(), cfg.Buckets)
	},
}

var bucketsSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Change a bucket's percentage (rebalancing the rest) or latency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pctChanged := cmd.Flags().Changed("percentage")
		latencyChanged := cmd.Flags().Changed("latency-ms")
		if !pctChanged && !latencyChanged {
			return fmt.Errorf("nothing to change: pass --percentage and/or --latency-ms")
		}
		cfg, err := editScenario(scenarioPath(), func(s *session.Session) error {
			if pctChanged {
				if err := s.SetBucketPercentage(args[0], bucketPercentage); err != nil {
					return err
				}
			}
			if latencyChanged {
				return s.SetBucketLatency(args[0], bucketLatencyMs)
			}
			return nil
		})
		if err != nil {
			return err
		}
		return writeBuckets(cmd.OutOrStdout(), cfg.Buckets)
	},
}

var bucketsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a bucket and redistribute its share",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := editScenario(scenarioPath(), func(s *session.Session) error {
			return s.RemoveBucket(args[0])
		})
		if err != nil {
			return err
		}
		return writeBuckets(cmd.OutOrStdout(), cfg.Buckets)
	},
}

func writeBuckets(w io.Writer, buckets []sim.LatencyBucket) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPERCENT\tLATENCY")
	for _, b := range buckets {
		fmt.Fprintf(tw, "%s\t%d%%\t%gms\n", b.ID, b.Percentage, b.LatencyMs)
	}
	return tw.Flush()
}

func init() {
	bucketsSetCmd.Flags().Float64Var(&bucketPercentage, "percentage", 0, "New percentage (0-100)")
	bucketsSetCmd.Flags().Float64Var(&bucketLatencyMs, "latency-ms", 0, "New latency in milliseconds")
	bucketsCmd.AddCommand(bucketsListCmd, bucketsAddCmd, bucketsSetCmd, bucketsRemoveCmd)
}
