package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flakework/checkmatrix/internal/config"
	"github.com/flakework/checkmatrix/internal/wizard"
)

func newInitCommand() *cobra.Command {
	var interactive bool
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a checkmatrix pipeline config",
		Long: `Initialize a checkmatrix.yaml in the given directory.

The generated config uses the Nix flake defaults: the evaluator lists
the flake's checks and the builder runs nix build per matrix entry.

Use --interactive to run a guided wizard that collects pipeline settings.

If no directory is specified, the current directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return initCommandE(cmd, args, interactive, force)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run guided pipeline setup wizard")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")

	return cmd
}

func initCommandE(cmd *cobra.Command, args []string, interactive, force bool) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	cfgPath := filepath.Join(dir, config.DefaultFileName)
	if !force {
		if _, err := os.Stat(cfgPath); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
		}
	}

	answers := &wizard.PipelineAnswers{
		Name:     "checks",
		Target:   ".",
		Parallel: true,
		Workers:  4,
	}

	if interactive {
		var err error
		answers, err = wizard.RunPipelineWizard(cmd.InOrStdin(), cmd.OutOrStdout(), answers.Name)
		if err != nil {
			return err
		}
	}

	content, err := wizard.GenerateConfigYAML(answers)
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	// The rendered config must itself load cleanly.
	if _, err := config.LoadBytes([]byte(content)); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.DefaultFileName, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Initialized check pipeline:") //nolint:errcheck
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", cfgPath)              //nolint:errcheck

	return nil
}
