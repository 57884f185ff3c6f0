package models

import (
	"fmt"
	"time"

	"github.com/flakework/checkmatrix/internal/statistics"
)

// Status represents the outcome status of a single check.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	StatusError  Status = "error"
	// StatusSkipped is reported for checks that never started because
	// fail-fast canceled the run before they were scheduled.
	StatusSkipped Status = "skipped"
)

// PipelineOutcome represents the complete result of one pipeline run:
// one discovery phase followed by one build per matrix entry.
type PipelineOutcome struct {
	RunID         string         `json:"run_id"`
	Target        string         `json:"target"`
	System        string         `json:"system"`
	Timestamp     time.Time      `json:"timestamp"`
	Setup         OutcomeSetup   `json:"config"`
	Digest        OutcomeDigest  `json:"summary"`
	CheckOutcomes []CheckOutcome `json:"checks"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// OutcomeSetup records the execution configuration the run used.
type OutcomeSetup struct {
	Evaluator  string `json:"evaluator"`
	Builder    string `json:"builder"`
	Workers    int    `json:"workers"`
	Parallel   bool   `json:"parallel"`
	FailFast   bool   `json:"fail_fast"`
	TimeoutSec int    `json:"timeout_sec"`
}

// OutcomeDigest aggregates per-check results for the whole run.
type OutcomeDigest struct {
	TotalChecks int     `json:"total_checks"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	Errors      int     `json:"errors"`
	Skipped     int     `json:"skipped"`
	Cached      int     `json:"cached"`
	SuccessRate float64 `json:"success_rate"`
	DurationMs  int64   `json:"duration_ms"`

	// Durations is populated when at least one check actually built.
	Durations *statistics.DurationSummary `json:"durations,omitempty"`
}

// CheckOutcome represents the result of one matrix entry.
type CheckOutcome struct {
	Name        string `json:"name"`
	Installable string `json:"installable"`
	Status      Status `json:"status"`
	ExitCode    int    `json:"exit_code"`
	DurationMs  int64  `json:"duration_ms"`
	Cached      bool   `json:"cached,omitempty"`
	Command     string `json:"command,omitempty"`
	LogPath     string `json:"log_path,omitempty"`
	// OutputTail holds the last lines of the build output for failed checks,
	// so reports can show context without reloading the full log.
	OutputTail string `json:"output_tail,omitempty"`
	ErrorMsg   string `json:"error_msg,omitempty"`
}

// NewRunID returns a run identifier derived from the start time.
func NewRunID(t time.Time) string {
	return fmt.Sprintf("run_%s", t.UTC().Format("20060102T150405Z"))
}

// ComputeDigest aggregates check outcomes into a digest. durationMs is the
// wall-clock duration of the whole run, not the sum of per-check durations.
func ComputeDigest(outcomes []CheckOutcome, durationMs int64) OutcomeDigest {
	digest := OutcomeDigest{
		TotalChecks: len(outcomes),
		DurationMs:  durationMs,
	}

	var built []int64
	for _, co := range outcomes {
		switch co.Status {
		case StatusPassed:
			digest.Passed++
		case StatusFailed:
			digest.Failed++
		case StatusError:
			digest.Errors++
		case StatusSkipped:
			digest.Skipped++
		}
		if co.Cached {
			digest.Cached++
		}
		if !co.Cached && co.Status != StatusSkipped {
			built = append(built, co.DurationMs)
		}
	}

	attempted := digest.TotalChecks - digest.Skipped
	if attempted > 0 {
		digest.SuccessRate = float64(digest.Passed) / float64(attempted)
	} else {
		// Empty matrix: vacuous success.
		digest.SuccessRate = 1.0
	}

	digest.Durations = statistics.SummarizeDurations(built)
	return digest
}

// AllPassed reports whether no check failed, errored, or was skipped due to
// cancellation. An empty matrix counts as passed.
func (d OutcomeDigest) AllPassed() bool {
	return d.Failed == 0 && d.Errors == 0 && d.Skipped == 0
}
