package main

import "github.com/spf13/cobra"

// buildToolsCmd creates the "tools" command group.
func buildToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the built-in tool registry",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every built-in tool and its group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolsList(cmd)
		},
	})

	return cmd
}
