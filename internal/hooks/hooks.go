package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Hook defines a single lifecycle hook command.
type Hook struct {
	Command          string `yaml:"command" json:"command"`
	WorkingDirectory string `yaml:"working_directory,omitempty" json:"working_directory,omitempty"`
	ExitCodes        []int  `yaml:"exit_codes,omitempty" json:"exit_codes,omitempty"`
	ErrorOnFail      bool   `yaml:"error_on_fail,omitempty" json:"error_on_fail,omitempty"`
}

// Config holds the hooks for every pipeline lifecycle point.
type Config struct {
	BeforeRun   []Hook `yaml:"before_run,omitempty" json:"before_run,omitempty"`
	AfterRun    []Hook `yaml:"after_run,omitempty" json:"after_run,omitempty"`
	BeforeCheck []Hook `yaml:"before_check,omitempty" json:"before_check,omitempty"`
	AfterCheck  []Hook `yaml:"after_check,omitempty" json:"after_check,omitempty"`
}

// Runner executes hook commands at lifecycle points.
type Runner struct {
	Verbose bool
}

// Execute runs all hooks for a lifecycle point in order. point identifies the
// lifecycle point (e.g. "before_run") for logging and error context. check is
// the matrix entry name for check-scoped points, empty for run-scoped ones;
// it is exported to hook processes as CHECKMATRIX_CHECK.
func (r *Runner) Execute(ctx context.Context, point string, check string, hooks []Hook) error {
	for i, h := range hooks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("hook %s: context canceled: %w", point, err)
		}
		if err := r.runHook(ctx, point, check, i, h); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runHook(ctx context.Context, point, check string, index int, h Hook) error {
	if strings.TrimSpace(h.Command) == "" {
		return fmt.Errorf("hook %s[%d]: empty command", point, index)
	}

	parts := strings.Fields(h.Command)
	//nolint:gosec // hook commands are user-configured in the pipeline YAML, not untrusted input
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)

	if h.WorkingDirectory != "" {
		cmd.Dir = h.WorkingDirectory
	}
	if check != "" {
		cmd.Env = append(os.Environ(), "CHECKMATRIX_CHECK="+check)
	}

	output, err := cmd.CombinedOutput()

	if r.Verbose && len(output) > 0 {
		fmt.Printf("[hook:%s] %s\n", point, string(output))
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode := exitErr.ExitCode()
			if !isAcceptableExit(exitCode, h.ExitCodes) {
				if h.ErrorOnFail {
					return fmt.Errorf("hook %s[%d]: command exited with code %d", point, index, exitCode)
				}
				fmt.Printf("[WARN] hook %s[%d] exited with code %d (continuing)\n", point, index, exitCode)
			}
			return nil
		}
		// Non-exit error (e.g. command not found)
		if h.ErrorOnFail {
			return fmt.Errorf("hook %s[%d]: %w", point, index, err)
		}
		fmt.Printf("[WARN] hook %s[%d] failed: %v\n", point, index, err)
		return nil
	}

	// err == nil means exit code 0; verify 0 is acceptable
	if !isAcceptableExit(0, h.ExitCodes) {
		if h.ErrorOnFail {
			return fmt.Errorf("hook %s[%d]: command exited with code 0 but expected %v", point, index, h.ExitCodes)
		}
		fmt.Printf("[WARN] hook %s[%d] exited with code 0 but expected %v (continuing)\n", point, index, h.ExitCodes)
	}

	return nil
}

// isAcceptableExit checks whether exitCode is in the allowed list.
// An empty allowedCodes list defaults to allowing only exit code 0.
func isAcceptableExit(exitCode int, allowedCodes []int) bool {
	if len(allowedCodes) == 0 {
		return exitCode == 0
	}
	for _, code := range allowedCodes {
		if exitCode == code {
			return true
		}
	}
	return false
}
