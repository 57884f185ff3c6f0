package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flakework/checkmatrix/internal/config"
	"github.com/flakework/checkmatrix/internal/matrix"
	"github.com/flakework/checkmatrix/internal/models"
)

func specWithBuilder(argv []string, timeoutSec int) *config.PipelineSpec {
	spec := config.Default()
	spec.Builder.Command = argv
	if timeoutSec > 0 {
		spec.Builder.TimeoutSec = timeoutSec
	}
	return spec
}

func entryFor(name string) matrix.Entry {
	return matrix.Entry{Check: models.NewCheck(name, ".", "x86_64-linux")}
}

func TestBuildSuccess(t *testing.T) {
	spec := specWithBuilder([]string{"echo", "building", "{check}"}, 0)
	tool := NewCommandBuildTool(spec)

	result, err := tool.Build(context.Background(), entryFor("unit"))
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.False(t, result.TimedOut)
	assert.Contains(t, string(result.Output), "building unit")
	assert.Equal(t, "echo building unit", result.Command)
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestBuildNonZeroExit(t *testing.T) {
	spec := specWithBuilder([]string{"sh", "-c", "echo oops for {check}; exit 3"}, 0)
	tool := NewCommandBuildTool(spec)

	// A failing build is a result, not an error.
	result, err := tool.Build(context.Background(), entryFor("unit"))
	require.NoError(t, err)

	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, string(result.Output), "oops for unit")
}

func TestBuildExpandsPlaceholders(t *testing.T) {
	spec := specWithBuilder([]string{"echo", "{target}", "{system}", "{installable}"}, 0)
	spec.Evaluator.Target = "./proj"
	spec.Evaluator.System = "aarch64-linux"
	tool := NewCommandBuildTool(spec)

	entry := matrix.Entry{Check: models.NewCheck("lint", "./proj", "aarch64-linux")}
	result, err := tool.Build(context.Background(), entry)
	require.NoError(t, err)

	assert.Contains(t, string(result.Output), "./proj aarch64-linux ./proj#checks.aarch64-linux.lint")
}

func TestBuildAppendsExtraArgs(t *testing.T) {
	spec := specWithBuilder([]string{"echo", "{check}"}, 0)
	tool := NewCommandBuildTool(spec)

	entry := entryFor("unit")
	entry.ExtraArgs = []string{"--keep-going", "--verbose"}
	result, err := tool.Build(context.Background(), entry)
	require.NoError(t, err)

	assert.Equal(t, "echo unit --keep-going --verbose", result.Command)
}

func TestBuildMissingBinary(t *testing.T) {
	spec := specWithBuilder([]string{"definitely-not-a-real-binary-xyz", "{check}"}, 0)
	tool := NewCommandBuildTool(spec)

	_, err := tool.Build(context.Background(), entryFor("unit"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoking builder")
}

func TestBuildTimeout(t *testing.T) {
	spec := specWithBuilder([]string{"sleep", "30"}, 1)
	tool := NewCommandBuildTool(spec)

	start := time.Now()
	result, err := tool.Build(context.Background(), entryFor("slow"))
	require.NoError(t, err)

	assert.True(t, result.TimedOut)
	assert.NotEqual(t, 0, result.ExitCode)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestBuildPerEntryTimeoutOverride(t *testing.T) {
	spec := specWithBuilder([]string{"sleep", "30"}, 3600)
	tool := NewCommandBuildTool(spec)

	entry := entryFor("slow")
	entry.TimeoutSec = 1

	start := time.Now()
	result, err := tool.Build(context.Background(), entry)
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExitAllowed(t *testing.T) {
	assert.True(t, ExitAllowed(0, nil))
	assert.False(t, ExitAllowed(1, nil))
	assert.True(t, ExitAllowed(3, []int{0, 3}))
	assert.False(t, ExitAllowed(1, []int{0, 3}))
	assert.False(t, ExitAllowed(0, []int{3}))
}
