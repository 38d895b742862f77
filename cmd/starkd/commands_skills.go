package main

import "github.com/spf13/cobra"

// buildSkillsCmd creates the "skills" command group (§4.4's operator
// surface for inspecting the skill index without a running gateway).
func buildSkillsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "skills",
		Short: "Inspect the skill index",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to config file")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List resolvable skills across all tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSkillsList(cmd, configPath)
		},
	})

	return cmd
}
