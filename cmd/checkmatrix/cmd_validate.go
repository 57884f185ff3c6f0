package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flakework/checkmatrix/internal/config"
	"github.com/flakework/checkmatrix/internal/validation"
	"github.com/flakework/checkmatrix/internal/workspace"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [checkmatrix.yaml]",
		Short: "Validate a pipeline config against the schema",
		Long: `Validate a pipeline config file against the config schema and the
semantic rules (placeholders, timeouts, worker counts, overrides).

With no argument, the workspace is searched upward for a checkmatrix.yaml.`,
		Args: cobra.MaximumNArgs(1),
		RunE: validateCommandE,
	}

	return cmd
}

func validateCommandE(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath(args)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	out := cmd.OutOrStdout()

	// Schema first: structural problems make the semantic errors noise.
	if problems := validation.ValidatePipelineBytes(data); len(problems) > 0 {
		fmt.Fprintf(out, "%s: %d schema problem(s)\n", path, len(problems)) //nolint:errcheck
		for _, p := range problems {
			fmt.Fprintf(out, "  - %s\n", p) //nolint:errcheck
		}
		return fmt.Errorf("config does not match the schema")
	}

	if _, err := config.LoadBytes(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Fprintf(out, "%s: OK\n", path) //nolint:errcheck
	return nil
}

func resolveConfigPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}
	wsCtx, err := workspace.Detect(cwd)
	if err != nil {
		return "", err
	}
	if wsCtx.ConfigPath == "" {
		return "", fmt.Errorf("no %s found in %s or any parent directory", config.DefaultFileName, cwd)
	}
	return wsCtx.ConfigPath, nil
}
