// Package orchestration fans the discovered check matrix out over a bounded
// worker pool and aggregates per-check results into a pipeline outcome.
package orchestration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/flakework/checkmatrix/internal/buildlog"
	"github.com/flakework/checkmatrix/internal/cache"
	"github.com/flakework/checkmatrix/internal/config"
	"github.com/flakework/checkmatrix/internal/executor"
	"github.com/flakework/checkmatrix/internal/hooks"
	"github.com/flakework/checkmatrix/internal/matrix"
	"github.com/flakework/checkmatrix/internal/models"
)

// outputTailLines is how many trailing log lines failed checks keep inline.
const outputTailLines = 25

// EventType represents the type of progress event.
type EventType string

// EventType constants
const (
	EventPipelineStart    EventType = "pipeline_start"
	EventPipelineComplete EventType = "pipeline_complete"
	EventPipelineStopped  EventType = "pipeline_stopped"
	EventCheckStart       EventType = "check_start"
	EventCheckComplete    EventType = "check_complete"
	EventCheckCached      EventType = "check_cached"
)

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	EventType   EventType
	CheckName   string
	CheckNum    int
	TotalChecks int
	Status      models.Status
	DurationMs  int64
	Details     map[string]any
}

// ProgressListener receives progress updates.
type ProgressListener func(event ProgressEvent)

// Runner orchestrates the execution of the check matrix.
type Runner struct {
	spec    *config.PipelineSpec
	tool    executor.BuildTool
	verbose bool

	cache      *cache.Cache
	logs       *buildlog.Writer
	hookRunner *hooks.Runner

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCache enables result caching.
func WithCache(c *cache.Cache) RunnerOption {
	return func(r *Runner) {
		r.cache = c
	}
}

// WithBuildLogs enables per-check build log persistence.
func WithBuildLogs(w *buildlog.Writer) RunnerOption {
	return func(r *Runner) {
		r.logs = w
	}
}

// WithHooks enables lifecycle hook execution.
func WithHooks(h *hooks.Runner) RunnerOption {
	return func(r *Runner) {
		r.hookRunner = h
	}
}

// WithVerbose enables verbose progress output.
func WithVerbose(v bool) RunnerOption {
	return func(r *Runner) {
		r.verbose = v
	}
}

// NewRunner creates a runner for the given spec and build tool.
func NewRunner(spec *config.PipelineSpec, tool executor.BuildTool, opts ...RunnerOption) *Runner {
	r := &Runner{
		spec:      spec,
		tool:      tool,
		listeners: []ProgressListener{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener.
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run executes every matrix entry derived from checks and returns the
// aggregated pipeline outcome. An empty check list is a valid run with zero
// instances. Run returns an error only for orchestration failures (bad
// overrides, failing before_run hooks); per-check build failures are
// reported through the outcome.
func (r *Runner) Run(ctx context.Context, checks []models.Check) (*models.PipelineOutcome, error) {
	startTime := time.Now()

	entries, err := r.entries(checks)
	if err != nil {
		return nil, err
	}

	if r.hookRunner != nil && len(r.spec.Hooks.BeforeRun) > 0 {
		if err := r.hookRunner.Execute(ctx, "before_run", "", r.spec.Hooks.BeforeRun); err != nil {
			return nil, fmt.Errorf("before_run hooks: %w", err)
		}
	}

	r.notifyProgress(ProgressEvent{
		EventType:   EventPipelineStart,
		TotalChecks: len(entries),
	})

	var checkOutcomes []models.CheckOutcome
	if r.spec.Execution.Parallel {
		checkOutcomes = r.runParallel(ctx, entries)
	} else {
		checkOutcomes = r.runSequential(ctx, entries)
	}

	if r.hookRunner != nil && len(r.spec.Hooks.AfterRun) > 0 {
		if err := r.hookRunner.Execute(ctx, "after_run", "", r.spec.Hooks.AfterRun); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] after_run hook error: %v\n", err)
		}
	}

	outcome := r.buildOutcome(checkOutcomes, startTime)

	r.notifyProgress(ProgressEvent{
		EventType:  EventPipelineComplete,
		DurationMs: outcome.Digest.DurationMs,
	})

	return outcome, nil
}

// entries applies per-check overrides to produce the effective matrix.
func (r *Runner) entries(checks []models.Check) ([]matrix.Entry, error) {
	entries := make([]matrix.Entry, 0, len(checks))
	for _, c := range checks {
		entry := matrix.Entry{Check: c}
		override, err := r.spec.OverrideFor(c.Name)
		if err != nil {
			return nil, fmt.Errorf("overrides for check %q: %w", c.Name, err)
		}
		if override != nil {
			entry.ExtraArgs = override.ExtraArgs
			entry.TimeoutSec = override.TimeoutSec
			entry.ExitCodes = override.ExitCodes
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *Runner) runSequential(ctx context.Context, entries []matrix.Entry) []models.CheckOutcome {
	outcomes := make([]models.CheckOutcome, 0, len(entries))

	for i, entry := range entries {
		if r.spec.Execution.FailFast && anyFailed(outcomes) {
			r.notifyProgress(ProgressEvent{
				EventType: EventPipelineStopped,
				Details:   map[string]any{"reason": "fail_fast enabled and a previous check failed"},
			})
			// Record the remaining entries as skipped so the digest still
			// accounts for the full matrix.
			for _, rest := range entries[i:] {
				outcomes = append(outcomes, skippedOutcome(rest))
			}
			return outcomes
		}

		outcomes = append(outcomes, r.runEntry(ctx, entry, i+1, len(entries)))
	}

	return outcomes
}

func (r *Runner) runParallel(ctx context.Context, entries []matrix.Entry) []models.CheckOutcome {
	workers := r.spec.Execution.Workers
	if workers <= 0 {
		workers = 4
	}

	// Fail-fast only gates entries that have not started yet: the first
	// failure trips stopCtx and later entries are recorded as skipped at
	// admission time. Builds that already started keep the parent context,
	// so an in-flight entry always runs to completion.
	stopCtx, stop := context.WithCancel(ctx)
	defer stop()

	type result struct {
		index   int
		outcome models.CheckOutcome
	}

	resultChan := make(chan result, len(entries))
	semaphore := make(chan struct{}, workers)

	var wg sync.WaitGroup

	for i, entry := range entries {
		wg.Add(1)
		go func(idx int, entry matrix.Entry) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if r.spec.Execution.FailFast && stopCtx.Err() != nil {
				resultChan <- result{index: idx, outcome: skippedOutcome(entry)}
				return
			}

			outcome := r.runEntry(ctx, entry, idx+1, len(entries))
			if r.spec.Execution.FailFast && outcome.Status != models.StatusPassed {
				stop()
			}
			resultChan <- result{index: idx, outcome: outcome}
		}(i, entry)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// Collect results in matrix order.
	outcomes := make([]models.CheckOutcome, len(entries))
	for res := range resultChan {
		outcomes[res.index] = res.outcome
	}

	return outcomes
}

// runEntry executes one matrix entry end to end: hooks, cache lookup, build,
// log persistence.
func (r *Runner) runEntry(ctx context.Context, entry matrix.Entry, checkNum, totalChecks int) models.CheckOutcome {
	name := entry.Check.Name

	if r.hookRunner != nil && len(r.spec.Hooks.BeforeCheck) > 0 {
		if err := r.hookRunner.Execute(ctx, "before_check", name, r.spec.Hooks.BeforeCheck); err != nil {
			outcome := models.CheckOutcome{
				Name:        name,
				Installable: entry.Check.Installable,
				Status:      models.StatusFailed,
				ErrorMsg:    err.Error(),
			}
			r.notifyCheckDone(outcome, checkNum, totalChecks, false)
			return outcome
		}
	}

	r.notifyProgress(ProgressEvent{
		EventType:   EventCheckStart,
		CheckName:   name,
		CheckNum:    checkNum,
		TotalChecks: totalChecks,
	})

	outcome, wasCached := r.buildEntry(ctx, entry)

	if r.hookRunner != nil && len(r.spec.Hooks.AfterCheck) > 0 {
		if err := r.hookRunner.Execute(ctx, "after_check", name, r.spec.Hooks.AfterCheck); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] after_check hook error for %s: %v\n", name, err)
		}
	}

	r.notifyCheckDone(outcome, checkNum, totalChecks, wasCached)
	return outcome
}

func (r *Runner) notifyCheckDone(outcome models.CheckOutcome, checkNum, totalChecks int, wasCached bool) {
	eventType := EventCheckComplete
	if wasCached {
		eventType = EventCheckCached
	}
	r.notifyProgress(ProgressEvent{
		EventType:   eventType,
		CheckName:   outcome.Name,
		CheckNum:    checkNum,
		TotalChecks: totalChecks,
		Status:      outcome.Status,
		DurationMs:  outcome.DurationMs,
	})
}

// buildEntry consults the cache, runs the build on a miss, and stores
// passing results.
func (r *Runner) buildEntry(ctx context.Context, entry matrix.Entry) (models.CheckOutcome, bool) {
	var cacheKey string
	if r.cache != nil {
		key, err := cache.Key(r.spec.Builder.Command, r.spec.Evaluator.Target, r.spec.Evaluator.System, entry)
		if err == nil {
			cacheKey = key
			if cached, found := r.cache.Get(cacheKey); found {
				cached.Cached = true
				return *cached, true
			}
		}
	}

	outcome := r.buildEntryUncached(ctx, entry)

	if r.cache != nil && cacheKey != "" && outcome.Status == models.StatusPassed {
		if err := r.cache.Put(cacheKey, &outcome); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Failed to write cache for check %q: %v\n", entry.Check.Name, err)
		}
	}

	return outcome, false
}

func (r *Runner) buildEntryUncached(ctx context.Context, entry matrix.Entry) models.CheckOutcome {
	outcome := models.CheckOutcome{
		Name:        entry.Check.Name,
		Installable: entry.Check.Installable,
	}

	result, err := r.tool.Build(ctx, entry)
	if err != nil {
		outcome.Status = models.StatusError
		outcome.ErrorMsg = err.Error()
		return outcome
	}

	outcome.ExitCode = result.ExitCode
	outcome.DurationMs = result.Duration.Milliseconds()
	outcome.Command = result.Command

	if r.logs.Enabled() {
		logPath, err := r.logs.Write(entry.Check.Name, result.Output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Failed to write build log for %q: %v\n", entry.Check.Name, err)
		} else {
			outcome.LogPath = logPath
		}
	}

	switch {
	case result.TimedOut:
		outcome.Status = models.StatusFailed
		outcome.ErrorMsg = "build timed out"
		outcome.OutputTail = buildlog.Tail(result.Output, outputTailLines)
	case executor.ExitAllowed(result.ExitCode, entry.ExitCodes):
		outcome.Status = models.StatusPassed
	default:
		outcome.Status = models.StatusFailed
		outcome.OutputTail = buildlog.Tail(result.Output, outputTailLines)
	}

	return outcome
}

func (r *Runner) buildOutcome(checkOutcomes []models.CheckOutcome, startTime time.Time) *models.PipelineOutcome {
	return &models.PipelineOutcome{
		RunID:         models.NewRunID(startTime),
		Target:        r.spec.Evaluator.Target,
		System:        r.spec.Evaluator.System,
		Timestamp:     startTime.UTC(),
		Setup:         r.setup(),
		Digest:        models.ComputeDigest(checkOutcomes, time.Since(startTime).Milliseconds()),
		CheckOutcomes: checkOutcomes,
	}
}

func (r *Runner) setup() models.OutcomeSetup {
	return models.OutcomeSetup{
		Evaluator:  r.spec.Evaluator.Command[0],
		Builder:    r.spec.Builder.Command[0],
		Workers:    r.spec.Execution.Workers,
		Parallel:   r.spec.Execution.Parallel,
		FailFast:   r.spec.Execution.FailFast,
		TimeoutSec: r.spec.Builder.TimeoutSec,
	}
}

func anyFailed(outcomes []models.CheckOutcome) bool {
	for _, o := range outcomes {
		if o.Status != models.StatusPassed {
			return true
		}
	}
	return false
}

func skippedOutcome(entry matrix.Entry) models.CheckOutcome {
	return models.CheckOutcome{
		Name:        entry.Check.Name,
		Installable: entry.Check.Installable,
		Status:      models.StatusSkipped,
	}
}
