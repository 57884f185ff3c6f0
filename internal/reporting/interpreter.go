package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/flakework/checkmatrix/internal/models"
)

// InterpretPassRate returns a human-readable explanation of a pass rate (0–1).
func InterpretPassRate(rate float64) string {
	pct := rate * 100
	switch {
	case pct >= 100:
		return fmt.Sprintf("All checks passed (%.0f%%)", pct)
	case pct >= 80:
		return fmt.Sprintf("Most checks passed (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("About half the checks passed (%.0f%%)", pct)
	default:
		return fmt.Sprintf("Few checks passed (%.0f%%)", pct)
	}
}

// InterpretCheck explains one check outcome in plain language.
func InterpretCheck(co *models.CheckOutcome) string {
	switch co.Status {
	case models.StatusPassed:
		if co.Cached {
			return "passed (result reused from cache)"
		}
		return "passed"
	case models.StatusFailed:
		if co.ErrorMsg != "" {
			return fmt.Sprintf("failed: %s", co.ErrorMsg)
		}
		return fmt.Sprintf("failed with exit code %d — inspect the build log for the first error", co.ExitCode)
	case models.StatusError:
		return fmt.Sprintf("could not run: %s — the build command itself failed to start", co.ErrorMsg)
	case models.StatusSkipped:
		return "skipped — fail-fast canceled it after an earlier failure"
	default:
		return string(co.Status)
	}
}

// FormatSummaryReport produces a full plain-language report from a
// PipelineOutcome.
func FormatSummaryReport(outcome *models.PipelineOutcome) string {
	var b strings.Builder

	d := outcome.Digest
	duration := time.Duration(d.DurationMs) * time.Millisecond

	b.WriteString("=== Interpretation ===\n\n")

	if d.TotalChecks == 0 {
		b.WriteString("The evaluator discovered no checks, so nothing was built. This counts as success.\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("Pass Rate: %s\n", InterpretPassRate(d.SuccessRate)))
	b.WriteString(fmt.Sprintf("Duration:  %v\n", duration))
	b.WriteString(fmt.Sprintf("Checks:    %d passed, %d failed, %d errors, %d skipped out of %d total\n",
		d.Passed, d.Failed, d.Errors, d.Skipped, d.TotalChecks))
	if d.Cached > 0 {
		b.WriteString(fmt.Sprintf("Cache:     %d of %d results reused\n", d.Cached, d.TotalChecks))
	}
	if d.Durations != nil {
		b.WriteString(fmt.Sprintf("Build time: median %v, slowest %v\n",
			time.Duration(d.Durations.MedianMs)*time.Millisecond,
			time.Duration(d.Durations.MaxMs)*time.Millisecond))
	}

	b.WriteString("\nPer-Check Interpretation:\n")
	for _, co := range outcome.CheckOutcomes {
		icon := "✓"
		if co.Status != models.StatusPassed {
			icon = "✗"
		}
		b.WriteString(fmt.Sprintf("  %s %s: %s\n", icon, co.Name, InterpretCheck(&co)))
	}

	return b.String()
}
