package main

import "github.com/spf13/cobra"

// buildDoctorCmd creates the "doctor" command: a quick, read-only check
// that the config file parses, the database is reachable, the skill index
// loads cleanly, and the default llm provider is configured, without standing up the gateway or any channel
// adapter.
func buildDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check config, database, and skill index health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to config file")

	return cmd
}
