package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/slo-sim/sim"
)

const defaultScenarioPath = "slo-sim.yaml"

var initForce bool // Overwrite an existing scenario file

// initCmd writes the built-in scenario so it can be edited.
var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default scenario to a YAML file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := defaultScenarioPath
		if len(args) == 1 {
			path = args[0]
		}
		if err := writeDefaultScenario(path, initForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

func writeDefaultScenario(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	logrus.Debugf("writing default scenario to %s", path)
	return sim.SaveConfig(path, sim.DefaultConfig())
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
}
