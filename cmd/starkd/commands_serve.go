package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command: load config, wire every
// component, run until a shutdown signal arrives.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the STARK gateway",
		Long: `serve loads the configuration file, connects to Postgres, wires the
dispatcher, tool executor, enabled channel adapters, and the Event
Gateway, then blocks until SIGINT/SIGTERM triggers a graceful shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to config file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
