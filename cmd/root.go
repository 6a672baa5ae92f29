package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inference-sim/slo-sim/sim"
)

// Viper keys shared by the persistent flags and SLOSIM_* environment variables.
const (
	keyConfig = "config"
	keyLog    = "log"
	keySeed   = "seed"
	keyRPS    = "rps"
	keySpeed  = "speed"
	keyAddr   = "addr"
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "slo-sim",
	Short: "Simulate SLIs, error budgets and burn rates of a synthetic service",
	Long: `slo-sim generates synthetic traffic with a configurable latency distribution
and scores every completion against sliding-window SLIs, reporting error budget
and burn rate in simulated time.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(viper.GetString(keyLog))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", viper.GetString(keyLog), err)
		}
		logrus.SetLevel(level)
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String(keyConfig, "", "Scenario YAML file (defaults to the built-in scenario)")
	flags.String(keyLog, "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	flags.Int64(keySeed, sim.DefaultSeed, "Seed for arrival and latency sampling")
	flags.Float64(keyRPS, 0, "Override the scenario's requests per second")
	flags.Int(keySpeed, 0, "Override the scenario's speed multiplier (1, 10 or 60)")
	for _, key := range []string{keyConfig, keyLog, keySeed, keyRPS, keySpeed} {
		_ = viper.BindPFlag(key, flags.Lookup(key))
	}

	rootCmd.AddCommand(runCmd, serveCmd, initCmd, bucketsCmd, metricsCmd)
}

func initConfig() {
	viper.SetEnvPrefix("SLOSIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault(keyLog, "warn")
	viper.SetDefault(keyAddr, ":8080")
}

// loadScenario reads the configured scenario, or the built-in default, and
// applies explicit seed/rps/speed overrides from flags or environment.
func loadScenario() (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if path := viper.GetString(keyConfig); path != "" {
		loaded, err := sim.LoadConfig(path)
		if err != nil {
			return sim.Config{}, err
		}
		cfg = loaded
		logrus.Infof("loaded scenario %s", path)
	}
	return applyOverrides(cfg), nil
}

func applyOverrides(cfg sim.Config) sim.Config {
	if viper.IsSet(keySeed) {
		cfg.Seed = viper.GetInt64(keySeed)
	}
	if viper.IsSet(keyRPS) {
		cfg.RPS = viper.GetFloat64(keyRPS)
	}
	if viper.IsSet(keySpeed) {
		cfg.SpeedMultiplier = viper.GetInt(keySpeed)
	}
	return cfg
}
