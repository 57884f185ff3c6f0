// Package executor invokes the external build command for one matrix entry
// at a time and reports its exit status.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/flakework/checkmatrix/internal/config"
	"github.com/flakework/checkmatrix/internal/matrix"
)

//go:generate go tool mockgen -source=buildtool.go -destination=mock_buildtool.go -package=executor

// BuildResult is the outcome of one build invocation.
type BuildResult struct {
	ExitCode int
	Output   []byte
	Duration time.Duration
	// Command is the rendered command line, kept for reports.
	Command  string
	TimedOut bool
}

// BuildTool executes the build command for a single matrix entry.
type BuildTool interface {
	Build(ctx context.Context, entry matrix.Entry) (*BuildResult, error)
}

// CommandBuildTool renders the configured builder argv per entry and runs it
// as a subprocess.
type CommandBuildTool struct {
	spec *config.PipelineSpec

	// Dir is the working directory for build processes. Empty means the
	// current directory.
	Dir string
}

// NewCommandBuildTool creates a build tool for the given pipeline spec.
func NewCommandBuildTool(spec *config.PipelineSpec) *CommandBuildTool {
	return &CommandBuildTool{spec: spec}
}

// Build runs the builder command for one entry. A non-zero exit code is a
// result, not an error; errors are reserved for invocation failures such as
// a missing binary.
func (t *CommandBuildTool) Build(ctx context.Context, entry matrix.Entry) (*BuildResult, error) {
	argv := config.ExpandArgv(t.spec.Builder.Command, map[string]string{
		config.PlaceholderCheck:       entry.Check.Name,
		config.PlaceholderTarget:      t.spec.Evaluator.Target,
		config.PlaceholderSystem:      t.spec.Evaluator.System,
		config.PlaceholderInstallable: entry.Check.Installable,
	})
	argv = append(argv, entry.ExtraArgs...)

	timeoutSec := t.spec.Builder.TimeoutSec
	if entry.TimeoutSec > 0 {
		timeoutSec = entry.TimeoutSec
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	slog.Debug("running builder", "check", entry.Check.Name, "argv", argv)

	//nolint:gosec // the builder command comes from the user's pipeline config
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = t.Dir

	start := time.Now()
	output, err := cmd.CombinedOutput()
	result := &BuildResult{
		Output:   output,
		Duration: time.Since(start),
		Command:  strings.Join(argv, " "),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			result.TimedOut = ctx.Err() == context.DeadlineExceeded
			return result, nil
		}
		return nil, fmt.Errorf("invoking builder for check %q: %w", entry.Check.Name, err)
	}

	return result, nil
}

// ExitAllowed reports whether an exit code counts as success. An empty
// allowed list admits only zero.
func ExitAllowed(code int, allowed []int) bool {
	if len(allowed) == 0 {
		return code == 0
	}
	for _, c := range allowed {
		if code == c {
			return true
		}
	}
	return false
}
