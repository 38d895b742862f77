// Command starkd is the STARK runtime's entry point: it serves the
// dispatcher, channel adapters, and Event Gateway as one process, and
// offers a handful of operator subcommands (migrate, skills, tools,
// doctor) for running it without a separate admin tool.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during `go build`.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the full command tree. Kept separate from main
// so tests can exercise it without calling os.Exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "starkd",
		Short: "STARK - self-hosted conversational agent runtime",
		Long: `starkd runs the STARK dispatcher, channel adapters, and Event Gateway
as a single process, backed by Postgres.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildServeCmd())
	rootCmd.AddCommand(buildMigrateCmd())
	rootCmd.AddCommand(buildSkillsCmd())
	rootCmd.AddCommand(buildToolsCmd())
	rootCmd.AddCommand(buildDoctorCmd())

	return rootCmd
}

// defaultConfigPath is used whenever a subcommand's --config flag is left
// unset.
func defaultConfigPath() string {
	if v := os.Getenv("STARK_CONFIG"); v != "" {
		return v
	}
	return "stark.yaml"
}
