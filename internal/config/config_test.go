package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytesDefaults(t *testing.T) {
	spec, err := LoadBytes([]byte("name: my-checks\n"))
	require.NoError(t, err)

	assert.Equal(t, "my-checks", spec.Name)
	assert.Equal(t, ".", spec.Evaluator.Target)
	assert.Equal(t, HostSystem(), spec.Evaluator.System)
	assert.Equal(t, []string{
		"nix", "eval", "--json",
		"{target}#checks.{system}",
		"--apply", "builtins.attrNames",
	}, spec.Evaluator.Command)
	assert.Equal(t, 300, spec.Evaluator.TimeoutSec)
	assert.Equal(t, []string{"nix", "build", "--no-link", "{installable}"}, spec.Builder.Command)
	assert.Equal(t, 3600, spec.Builder.TimeoutSec)
	assert.Equal(t, 4, spec.Execution.Workers)
	assert.False(t, spec.Execution.FailFast, "fail-fast must default to off")
}

func TestLoadBytesFullConfig(t *testing.T) {
	yaml := `name: ci
evaluator:
  command: ["my-eval", "--list", "{target}"]
  target: ./project
  system: aarch64-linux
  timeout_seconds: 60
builder:
  command: ["my-build", "{check}"]
  timeout_seconds: 120
execution:
  parallel: true
  max_workers: 8
  fail_fast: true
  checks: ["unit-*"]
  skip: ["unit-slow"]
overrides:
  unit-db:
    extra_args: ["--keep-going"]
    timeout_seconds: 600
    exit_codes: [0, 3]
logs:
  dir: .logs
  compress: true
`
	spec, err := LoadBytes([]byte(yaml))
	require.NoError(t, err)

	assert.Equal(t, []string{"my-eval", "--list", "{target}"}, spec.Evaluator.Command)
	assert.Equal(t, "./project", spec.Evaluator.Target)
	assert.Equal(t, "aarch64-linux", spec.Evaluator.System)
	assert.Equal(t, 60, spec.Evaluator.TimeoutSec)
	assert.Equal(t, 120, spec.Builder.TimeoutSec)
	assert.True(t, spec.Execution.Parallel)
	assert.Equal(t, 8, spec.Execution.Workers)
	assert.True(t, spec.Execution.FailFast)
	assert.Equal(t, []string{"unit-*"}, spec.Execution.Checks)
	assert.Equal(t, ".logs", spec.Logs.Dir)
	assert.True(t, spec.Logs.Compress)

	override, err := spec.OverrideFor("unit-db")
	require.NoError(t, err)
	require.NotNil(t, override)
	assert.Equal(t, []string{"--keep-going"}, override.ExtraArgs)
	assert.Equal(t, 600, override.TimeoutSec)
	assert.Equal(t, []int{0, 3}, override.ExitCodes)
}

func TestLoadBytesInvalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		errText string
	}{
		{
			name: "builder without check placeholder",
			yaml: `builder:
  command: ["make", "all"]
`,
			errText: "builder.command must reference",
		},
		{
			name: "zero workers",
			yaml: `execution:
  max_workers: -1
`,
			errText: "max_workers",
		},
		{
			name: "unknown override field",
			yaml: `overrides:
  foo:
    timeout: 5
`,
			errText: "overrides.foo",
		},
		{
			name: "artifacts without container",
			yaml: `artifacts:
  account_url: https://example.blob.core.windows.net
`,
			errText: "artifacts.container",
		},
		{
			name:    "malformed yaml",
			yaml:    "name: [\n",
			errText: "parsing pipeline config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("name: from-file\n"), 0o644))

	spec, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", spec.Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestOverrideForMissing(t *testing.T) {
	spec := Default()
	override, err := spec.OverrideFor("nope")
	require.NoError(t, err)
	assert.Nil(t, override)
}

func TestExpandArgv(t *testing.T) {
	argv := []string{"nix", "eval", "--json", "{target}#checks.{system}", "--apply", "builtins.attrNames"}
	expanded := ExpandArgv(argv, map[string]string{
		PlaceholderTarget: ".",
		PlaceholderSystem: "x86_64-linux",
	})

	assert.Equal(t, []string{"nix", "eval", "--json", ".#checks.x86_64-linux", "--apply", "builtins.attrNames"}, expanded)
	// The input must not be mutated.
	assert.Equal(t, "{target}#checks.{system}", argv[3])
}

func TestHostSystem(t *testing.T) {
	sys := HostSystem()
	assert.NotEmpty(t, sys)
	assert.Contains(t, sys, "-")
}
