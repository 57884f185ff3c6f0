package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/flakework/checkmatrix/internal/artifacts"
	"github.com/flakework/checkmatrix/internal/buildlog"
	"github.com/flakework/checkmatrix/internal/cache"
	"github.com/flakework/checkmatrix/internal/config"
	"github.com/flakework/checkmatrix/internal/discovery"
	"github.com/flakework/checkmatrix/internal/executor"
	"github.com/flakework/checkmatrix/internal/hooks"
	"github.com/flakework/checkmatrix/internal/matrix"
	"github.com/flakework/checkmatrix/internal/models"
	"github.com/flakework/checkmatrix/internal/orchestration"
	"github.com/flakework/checkmatrix/internal/reporting"
	"github.com/flakework/checkmatrix/internal/spinner"
)

var (
	runTarget    string
	runSystem    string
	runWorkers   int
	runParallel  bool
	runFailFast  bool
	checkFilters []string
	skipFilters  []string
	outputPath   string
	junitPath    string
	format       string
	interpret    bool
	verbose      bool
	enableCache  bool
	disableCache bool
	runCacheDir  string
	runLogDir    string
	upload       bool
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [checkmatrix.yaml]",
		Short: "Discover checks and build each one as a matrix entry",
		Long: `Run the full pipeline: invoke the evaluator to discover the check matrix,
then build every entry independently.

With no config argument, the workspace is searched upward for a
checkmatrix.yaml; a project without one runs with the Nix flake defaults.
All entries are attempted even when some fail, unless fail-fast is enabled.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVar(&runTarget, "target", "", "Build target the evaluator inspects (overrides config)")
	cmd.Flags().StringVar(&runSystem, "system", "", "System identifier, e.g. x86_64-linux (overrides config)")
	cmd.Flags().BoolVar(&runParallel, "parallel", false, "Run matrix entries concurrently")
	cmd.Flags().IntVar(&runWorkers, "workers", 0, "Number of concurrent workers (default: 4, requires --parallel)")
	cmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "Cancel unstarted entries after the first failure (default: off)")
	cmd.Flags().StringArrayVar(&checkFilters, "check", nil, "Only run checks matching this glob pattern (can be repeated)")
	cmd.Flags().StringArrayVar(&skipFilters, "skip", nil, "Skip checks matching this glob pattern (can be repeated)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for results (an HTML report is written next to it)")
	cmd.Flags().StringVar(&junitPath, "junit", "", "Write a JUnit XML report to this path")
	cmd.Flags().StringVar(&format, "format", "default", "Output format: default, github-comment")
	cmd.Flags().BoolVar(&interpret, "interpret", false, "Print a plain-language interpretation of the results")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output with detailed progress")
	cmd.Flags().BoolVar(&enableCache, "cache", false, "Enable result caching (default: false)")
	cmd.Flags().BoolVar(&disableCache, "no-cache", false, "Disable result caching (default)")
	cmd.Flags().StringVar(&runCacheDir, "cache-dir", ".checkmatrix-cache", "Cache directory for storing results")
	cmd.Flags().StringVar(&runLogDir, "log-dir", "", "Directory for per-check build logs (overrides config)")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload reports and logs to the configured artifact store")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	spec, err := resolveSpec(args)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, spec)

	ctx := cmd.Context()

	// Progress and status chatter. The github-comment format owns stdout
	// (its output is piped into a PR comment), so chatter moves to stderr.
	statusW := statusWriter(format)

	// Phase 1: discovery. A failing or malformed evaluator means no matrix
	// and no builds.
	stopSpinner := func() {}
	if !verbose && term.IsTerminal(int(os.Stderr.Fd())) {
		stopSpinner = spinner.Start(os.Stderr, "Discovering checks...").Stop
	}
	checks, err := discovery.NewEvaluator(spec).Discover(ctx)
	stopSpinner()
	if err != nil {
		return fmt.Errorf("matrix discovery failed: %w", err)
	}

	checks, err = matrix.Filter(checks, spec.Execution.Checks, spec.Execution.Skip)
	if err != nil {
		return err
	}

	runner, logWriter, err := buildRunner(spec, statusW)
	if err != nil {
		return err
	}

	if verbose {
		runner.OnProgress(newVerboseProgressListener(statusW))
	} else {
		runner.OnProgress(newSimpleProgressListener(statusW))
	}

	fmt.Fprintf(statusW, "Running pipeline: %s\n", spec.Name)
	fmt.Fprintf(statusW, "Target: %s\n", spec.Evaluator.Target)
	fmt.Fprintf(statusW, "System: %s\n", spec.Evaluator.System)
	fmt.Fprintf(statusW, "Checks: %d\n", len(checks))
	if spec.Execution.Parallel {
		fmt.Fprintf(statusW, "Parallel: %d workers\n", spec.Execution.Workers)
	}
	fmt.Fprintln(statusW)

	// Phase 2: execution.
	outcome, err := runner.Run(ctx, checks)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	switch format {
	case "github-comment":
		fmt.Print(FormatGitHubComment(outcome))
	case "default":
		printSummary(outcome)

		if interpret {
			fmt.Println()
			fmt.Print(reporting.FormatSummaryReport(outcome))
		}
	default:
		return fmt.Errorf("unknown output format: %s (supported: default, github-comment)", format)
	}

	reportPaths, err := writeReports(outcome, statusW)
	if err != nil {
		return err
	}

	if upload {
		if err := uploadArtifacts(cmd, spec, outcome, reportPaths, logWriter, statusW); err != nil {
			return err
		}
	}

	if !outcome.Digest.AllPassed() {
		return &CheckFailureError{
			Message: fmt.Sprintf("pipeline completed with %d failed, %d error(s), %d skipped",
				outcome.Digest.Failed, outcome.Digest.Errors, outcome.Digest.Skipped),
		}
	}

	return nil
}

// applyRunFlags lets CLI flags override the loaded config.
func applyRunFlags(cmd *cobra.Command, spec *config.PipelineSpec) {
	if runTarget != "" {
		spec.Evaluator.Target = runTarget
	}
	if runSystem != "" {
		spec.Evaluator.System = runSystem
	}
	if runParallel {
		spec.Execution.Parallel = true
	}
	if runWorkers > 0 {
		spec.Execution.Workers = runWorkers
	}
	if cmd.Flags().Changed("fail-fast") {
		spec.Execution.FailFast = runFailFast
	}
	if len(checkFilters) > 0 {
		spec.Execution.Checks = checkFilters
	}
	if len(skipFilters) > 0 {
		spec.Execution.Skip = skipFilters
	}
	if runLogDir != "" {
		spec.Logs.Dir = runLogDir
	}
}

// statusWriter picks the stream for human-facing progress output. Formats
// meant for machine consumption keep stdout to themselves.
func statusWriter(format string) io.Writer {
	if format == "github-comment" {
		return os.Stderr
	}
	return os.Stdout
}

// buildRunner assembles the runner with cache, logs, and hooks per config.
func buildRunner(spec *config.PipelineSpec, statusW io.Writer) (*orchestration.Runner, *buildlog.Writer, error) {
	opts := []orchestration.RunnerOption{
		orchestration.WithVerbose(verbose),
		orchestration.WithHooks(&hooks.Runner{Verbose: verbose}),
	}

	if enableCache && !disableCache {
		absCacheDir, err := filepath.Abs(runCacheDir)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving cache directory: %w", err)
		}
		opts = append(opts, orchestration.WithCache(cache.New(absCacheDir)))
		if verbose {
			fmt.Fprintf(statusW, "Cache enabled: %s\n", absCacheDir)
		}
	}

	var logWriter *buildlog.Writer
	if spec.Logs.Dir != "" {
		logWriter = buildlog.NewWriter(spec.Logs.Dir, spec.Logs.Compress)
		opts = append(opts, orchestration.WithBuildLogs(logWriter))
	}

	tool := executor.NewCommandBuildTool(spec)
	return orchestration.NewRunner(spec, tool, opts...), logWriter, nil
}

// writeReports saves the JSON outcome, the HTML report, and the JUnit file
// when requested. It returns the written paths for artifact upload.
func writeReports(outcome *models.PipelineOutcome, statusW io.Writer) ([]string, error) {
	var paths []string

	if outputPath != "" {
		if err := saveOutcome(outcome, outputPath); err != nil {
			return nil, fmt.Errorf("failed to save output: %w", err)
		}
		fmt.Fprintf(statusW, "\nResults saved to: %s\n", outputPath)
		paths = append(paths, outputPath)

		htmlPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".html"
		if err := reporting.WriteHTMLFile(FormatGitHubComment(outcome), htmlPath); err != nil {
			return nil, err
		}
		paths = append(paths, htmlPath)
	}

	if junitPath != "" {
		if err := reporting.WriteJUnitFile(outcome, junitPath); err != nil {
			return nil, err
		}
		paths = append(paths, junitPath)
	}

	return paths, nil
}

func uploadArtifacts(cmd *cobra.Command, spec *config.PipelineSpec, outcome *models.PipelineOutcome, reportPaths []string, logWriter *buildlog.Writer, statusW io.Writer) error {
	if spec.Artifacts == nil {
		return fmt.Errorf("--upload requires an artifacts section in the pipeline config")
	}

	files := append([]string{}, reportPaths...)
	if logWriter.Enabled() {
		for _, co := range outcome.CheckOutcomes {
			if co.LogPath != "" {
				files = append(files, co.LogPath)
			}
		}
	}
	if len(files) == 0 {
		fmt.Fprintln(statusW, "Nothing to upload: no reports or build logs were written")
		return nil
	}

	uploader, err := artifacts.NewUploader(spec.Artifacts)
	if err != nil {
		return err
	}
	if err := uploader.UploadFiles(cmd.Context(), outcome.RunID, files); err != nil {
		return err
	}
	fmt.Fprintf(statusW, "Uploaded %d artifact(s) for %s\n", len(files), outcome.RunID)
	return nil
}

func saveOutcome(outcome *models.PipelineOutcome, path string) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling outcome: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func newVerboseProgressListener(w io.Writer) orchestration.ProgressListener {
	return func(event orchestration.ProgressEvent) {
		switch event.EventType {
		case orchestration.EventPipelineStart:
			fmt.Fprintf(w, "Starting pipeline with %d check(s)...\n\n", event.TotalChecks)
		case orchestration.EventCheckStart:
			fmt.Fprintf(w, "[%d/%d] Building check: %s\n", event.CheckNum, event.TotalChecks, event.CheckName)
		case orchestration.EventCheckCached:
			fmt.Fprintf(w, "[%d/%d] Check %s: %s [cached]\n", event.CheckNum, event.TotalChecks, event.CheckName, event.Status)
		case orchestration.EventCheckComplete:
			duration := time.Duration(event.DurationMs) * time.Millisecond
			fmt.Fprintf(w, "[%d/%d] Check %s: %s (%v)\n", event.CheckNum, event.TotalChecks, event.CheckName, event.Status, duration)
		case orchestration.EventPipelineStopped:
			fmt.Fprintf(w, "Pipeline stopped early: %v\n", event.Details["reason"])
		case orchestration.EventPipelineComplete:
			duration := time.Duration(event.DurationMs) * time.Millisecond
			fmt.Fprintf(w, "\nPipeline completed in %v\n\n", duration)
		}
	}
}

func newSimpleProgressListener(w io.Writer) orchestration.ProgressListener {
	return func(event orchestration.ProgressEvent) {
		switch event.EventType {
		case orchestration.EventCheckCached:
			fmt.Fprintf(w, "✓ [%d/%d] %s [cached]\n", event.CheckNum, event.TotalChecks, event.CheckName)
		case orchestration.EventCheckComplete:
			status := "✓"
			if event.Status != models.StatusPassed {
				status = "✗"
			}
			fmt.Fprintf(w, "%s [%d/%d] %s\n", status, event.CheckNum, event.TotalChecks, event.CheckName)
		}
	}
}
