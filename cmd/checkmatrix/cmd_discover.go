package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flakework/checkmatrix/internal/discovery"
	"github.com/flakework/checkmatrix/internal/matrix"
)

var (
	discoverTarget string
	discoverSystem string
	discoverFormat string
)

func newDiscoverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover [checkmatrix.yaml]",
		Short: "Run the evaluator and print the discovered check matrix",
		Long: `Run only the discovery phase: invoke the evaluator and print the checks
it reports, without building anything.

The github-output format prints a single matrix=<json> line suitable for
appending to $GITHUB_OUTPUT, so a CI discovery job can feed a build matrix:

  checkmatrix discover --format github-output >> "$GITHUB_OUTPUT"`,
		Args: cobra.MaximumNArgs(1),
		RunE: discoverCommandE,
	}

	cmd.Flags().StringVar(&discoverTarget, "target", "", "Build target the evaluator inspects (overrides config)")
	cmd.Flags().StringVar(&discoverSystem, "system", "", "System identifier, e.g. x86_64-linux (overrides config)")
	cmd.Flags().StringVar(&discoverFormat, "format", "json", "Output format: json, github-output, names")

	return cmd
}

func discoverCommandE(cmd *cobra.Command, args []string) error {
	spec, err := resolveSpec(args)
	if err != nil {
		return err
	}
	if discoverTarget != "" {
		spec.Evaluator.Target = discoverTarget
	}
	if discoverSystem != "" {
		spec.Evaluator.System = discoverSystem
	}

	checks, err := discovery.NewEvaluator(spec).Discover(cmd.Context())
	if err != nil {
		return fmt.Errorf("matrix discovery failed: %w", err)
	}

	checks, err = matrix.Filter(checks, spec.Execution.Checks, spec.Execution.Skip)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	switch discoverFormat {
	case "json":
		names := make([]string, 0, len(checks))
		for _, c := range checks {
			names = append(names, c.Name)
		}
		data, err := json.MarshalIndent(names, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding check list: %w", err)
		}
		fmt.Fprintln(out, string(data)) //nolint:errcheck
	case "github-output":
		line, err := matrix.MarshalGitHubOutput(checks)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, line) //nolint:errcheck
	case "names":
		for _, c := range checks {
			fmt.Fprintln(out, c.Name) //nolint:errcheck
		}
	default:
		return fmt.Errorf("unknown output format: %s (supported: json, github-output, names)", discoverFormat)
	}

	return nil
}
