package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inference-sim/slo-sim/server"
)

var serveAutostart bool // Start the engine as soon as the server is up

// serveCmd runs the real-time engine behind the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the real-time simulation over HTTP and websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadScenario()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := server.New(cfg)
		if serveAutostart {
			if err := srv.Session().Start(); err != nil {
				srv.Close()
				return err
			}
		}
		return srv.ListenAndServe(ctx, viper.GetString(keyAddr))
	},
}

func init() {
	serveCmd.Flags().String(keyAddr, ":8080", "Listen address")
	serveCmd.Flags().BoolVar(&serveAutostart, "autostart", false, "Start the engine immediately")
	_ = viper.BindPFlag(keyAddr, serveCmd.Flags().Lookup(keyAddr))
}
