package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/flakework/checkmatrix/internal/config"
	"github.com/flakework/checkmatrix/internal/models"
	"github.com/flakework/checkmatrix/internal/workspace"
)

// resolveSpec loads the pipeline spec from an explicit config argument, or
// by workspace detection when no argument was given.
func resolveSpec(args []string) (*config.PipelineSpec, error) {
	if len(args) > 0 {
		spec, err := config.Load(args[0])
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", args[0], err)
		}
		return spec, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	wsCtx, err := workspace.Detect(cwd)
	if err != nil {
		return nil, err
	}
	return wsCtx.LoadSpec()
}

// formatDuration formats a duration in a consistent, human-readable way.
// This ensures stable output regardless of Go version changes.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.String()
}

func printSummary(outcome *models.PipelineOutcome) {
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println(" CHECK MATRIX RESULTS")
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println()

	digest := outcome.Digest

	fmt.Printf("Total Checks:   %d\n", digest.TotalChecks)
	fmt.Printf("Passed:         %d\n", digest.Passed)
	fmt.Printf("Failed:         %d\n", digest.Failed)
	fmt.Printf("Errors:         %d\n", digest.Errors)
	if digest.Skipped > 0 {
		fmt.Printf("Skipped:        %d\n", digest.Skipped)
	}
	if digest.Cached > 0 {
		fmt.Printf("Cached:         %d\n", digest.Cached)
	}
	fmt.Printf("Success Rate:   %.1f%%\n", digest.SuccessRate*100)

	duration := time.Duration(digest.DurationMs) * time.Millisecond
	fmt.Printf("Duration:       %v\n", duration)
	if digest.Durations != nil {
		fmt.Printf("Check Times:    min=%dms  max=%dms  mean=%dms  median=%dms\n",
			digest.Durations.MinMs, digest.Durations.MaxMs,
			digest.Durations.MeanMs, digest.Durations.MedianMs)
	}
	fmt.Println()

	// Per-check breakdown
	fmt.Println("-" + strings.Repeat("-", 50))
	fmt.Println(" PER-CHECK BREAKDOWN")
	fmt.Println("-" + strings.Repeat("-", 50))

	nameWidth := 0
	for _, co := range outcome.CheckOutcomes {
		if w := runewidth.StringWidth(co.Name); w > nameWidth {
			nameWidth = w
		}
	}

	for _, co := range outcome.CheckOutcomes {
		icon := "✓"
		switch co.Status {
		case models.StatusPassed:
		case models.StatusSkipped:
			icon = "-"
		default:
			icon = "✗"
		}
		line := fmt.Sprintf("  %s %s [%s]", icon, padRight(co.Name, nameWidth), co.Status)
		if co.Cached {
			line += " [cached]"
		} else if co.DurationMs > 0 {
			line += fmt.Sprintf(" %dms", co.DurationMs)
		}
		fmt.Println(line)
		if co.ErrorMsg != "" {
			fmt.Printf("      %s\n", co.ErrorMsg)
		}
		if co.Status == models.StatusFailed && co.OutputTail != "" {
			for _, tailLine := range strings.Split(co.OutputTail, "\n") {
				fmt.Printf("      | %s\n", tailLine)
			}
		}
	}
	fmt.Println()
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// FormatGitHubComment formats a PipelineOutcome as a markdown comment for GitHub PRs
func FormatGitHubComment(outcome *models.PipelineOutcome) string {
	var b strings.Builder

	digest := outcome.Digest
	duration := time.Duration(digest.DurationMs) * time.Millisecond

	b.WriteString("## 🧪 Check Matrix Results\n\n")

	statusIcon := "✅ Passed"
	if !digest.AllPassed() {
		statusIcon = "❌ Failed"
	}

	b.WriteString(fmt.Sprintf("**Status:** %s | **Checks:** %d | **Duration:** %s\n\n",
		statusIcon, digest.TotalChecks, formatDuration(duration)))

	b.WriteString(fmt.Sprintf("- **Results:** %d passed, %d failed, %d errors, %d skipped\n",
		digest.Passed, digest.Failed, digest.Errors, digest.Skipped))
	b.WriteString(fmt.Sprintf("- **Success Rate:** %.1f%%\n", digest.SuccessRate*100))
	if digest.Cached > 0 {
		b.WriteString(fmt.Sprintf("- **Cached:** %d check(s) reused earlier results\n", digest.Cached))
	}
	b.WriteString("\n")

	if digest.TotalChecks == 0 {
		b.WriteString("The evaluator discovered no checks, so the matrix expanded to zero builds.\n\n")
	} else {
		b.WriteString("### Check Results\n\n")
		b.WriteString("| Check | Status | Duration |\n")
		b.WriteString("|-------|--------|----------|\n")

		for _, co := range outcome.CheckOutcomes {
			icon := "✅"
			switch co.Status {
			case models.StatusPassed:
			case models.StatusSkipped:
				icon = "⏭️"
			default:
				icon = "❌"
			}
			durCell := formatDuration(time.Duration(co.DurationMs) * time.Millisecond)
			if co.Cached {
				durCell = "cached"
			} else if co.Status == models.StatusSkipped {
				durCell = "-"
			}
			b.WriteString(fmt.Sprintf("| %s | %s %s | %s |\n", co.Name, icon, co.Status, durCell))
		}
		b.WriteString("\n")
	}

	// Failure details with the tail of each failing build log
	if digest.Failed > 0 || digest.Errors > 0 {
		b.WriteString("### Failed Check Details\n\n")
		for _, co := range outcome.CheckOutcomes {
			if co.Status == models.StatusPassed || co.Status == models.StatusSkipped {
				continue
			}
			b.WriteString(fmt.Sprintf("#### %s\n\n", co.Name))
			if co.ErrorMsg != "" {
				b.WriteString(fmt.Sprintf("%s\n\n", co.ErrorMsg))
			}
			if co.Status == models.StatusFailed && co.ExitCode != 0 {
				b.WriteString(fmt.Sprintf("Exited with code %d.\n\n", co.ExitCode))
			}
			if co.OutputTail != "" {
				b.WriteString("```\n")
				b.WriteString(co.OutputTail)
				if !strings.HasSuffix(co.OutputTail, "\n") {
					b.WriteString("\n")
				}
				b.WriteString("```\n\n")
			}
		}
	}

	b.WriteString("---\n\n")
	b.WriteString(fmt.Sprintf("**Target:** %s | **System:** %s | **Run:** %s\n",
		outcome.Target, outcome.System, outcome.RunID))

	return b.String()
}
