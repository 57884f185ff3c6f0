package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkmatrix",
		Short: "checkmatrix - discover and build a project's checks as a parallel matrix",
		Long: `Checkmatrix drives a two-phase check pipeline: it asks a build tool's
evaluator to enumerate the project's named checks, then builds each check as
an independent matrix entry.

Entries run on a bounded worker pool with fail-fast disabled by default, so
one failing check never hides the results of its siblings.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newDiscoverCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newInitCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
