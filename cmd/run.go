package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/slo-sim/sim"
)

var (
	runDuration    time.Duration // Simulated time to run
	runReportEvery time.Duration // Simulated time between reports
	runFormat      string        // Report format: text or json
)

// runCmd drives the engine with a manual clock, as fast as possible.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a headless simulation and print periodic reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadScenario()
		if err != nil {
			return err
		}
		return runHeadless(cmd.OutOrStdout(), cfg, runOptions{
			duration:    runDuration,
			reportEvery: runReportEvery,
			format:      runFormat,
		})
	},
}

type runOptions struct {
	duration    time.Duration
	reportEvery time.Duration
	format      string
}

// runHeadless ticks a fresh engine until opts.duration of simulated time has
// passed, reporting at every reportEvery boundary and once at the end.
func runHeadless(w io.Writer, cfg sim.Config, opts runOptions) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if opts.duration <= 0 {
		return fmt.Errorf("duration must be positive, got %s", opts.duration)
	}
	report, err := reporterFor(opts.format, cfg)
	if err != nil {
		return err
	}

	engine := sim.NewEngine(cfg, nil)
	defer engine.Close()

	endMs := opts.duration.Milliseconds()
	everyMs := opts.reportEvery.Milliseconds()
	nextReport := everyMs
	logrus.Infof("running %s of simulated time at %.0f rps (seed %d)", opts.duration, cfg.RPS, cfg.Seed)

	start := time.Now()
	for {
		snap := engine.Snapshot()
		if snap.SimTimeMs >= endMs {
			break
		}
		engine.Tick()
		if everyMs <= 0 {
			continue
		}
		now := engine.Snapshot()
		if now.SimTimeMs >= nextReport && now.SimTimeMs < endMs {
			if err := report(w, now); err != nil {
				return err
			}
			for nextReport <= now.SimTimeMs {
				nextReport += everyMs
			}
		}
	}
	logrus.Infof("simulated %s in %s", opts.duration, time.Since(start).Round(time.Millisecond))
	return report(w, engine.Snapshot())
}

func reporterFor(format string, cfg sim.Config) (func(io.Writer, sim.SimulationSnapshot) error, error) {
	switch format {
	case "text":
		return func(w io.Writer, snap sim.SimulationSnapshot) error {
			return writeTextReport(w, snap, cfg.Metrics)
		}, nil
	case "json":
		return writeJSONReport, nil
	}
	return nil, fmt.Errorf("unknown report format %q (want text or json)", format)
}

func init() {
	runCmd.Flags().DurationVar(&runDuration, "duration", 5*time.Minute, "Simulated time to run")
	runCmd.Flags().DurationVar(&runReportEvery, "report-every", 30*time.Second, "Simulated time between reports (0 reports only at the end)")
	runCmd.Flags().StringVar(&runFormat, "format", "text", "Report format (text, json)")
}
