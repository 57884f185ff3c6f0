package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFailureErrorMapping(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &CheckFailureError{Message: "2 checks failed"})

	var checkFailureErr *CheckFailureError
	require.True(t, errors.As(err, &checkFailureErr))
	assert.Equal(t, "2 checks failed", checkFailureErr.Message)
}

func TestRootCommandSubcommands(t *testing.T) {
	root := newRootCommand()

	expected := []string{"run", "discover", "validate", "init"}
	for _, name := range expected {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "missing subcommand %q", name)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkmatrix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDiscoverCommandGitHubOutput(t *testing.T) {
	cfgPath := writeConfig(t, `name: ci
evaluator:
  command: ["echo", "[\"build\",\"test\"]"]
`)

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"discover", cfgPath, "--format", "github-output"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `matrix={"check":["build","test"]}`)
}

func TestDiscoverCommandNames(t *testing.T) {
	cfgPath := writeConfig(t, `name: ci
evaluator:
  command: ["echo", "{\"b\": {}, \"a\": {}}"]
`)

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"discover", cfgPath, "--format", "names"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "a\nb\n", out.String())
}

func TestValidateCommand(t *testing.T) {
	good := writeConfig(t, "name: ci\n")

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"validate", good})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "OK")
}

func TestValidateCommandRejectsBadConfig(t *testing.T) {
	bad := writeConfig(t, "evaluator:\n  timeout_seconds: 0\n")

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"validate", bad})

	require.Error(t, root.Execute())
	assert.Contains(t, out.String(), "schema problem")
}

func TestInitCommandWritesConfig(t *testing.T) {
	dir := t.TempDir()

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"init", dir})
	require.NoError(t, root.Execute())

	data, err := os.ReadFile(filepath.Join(dir, "checkmatrix.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: checks")

	// A second init without --force must refuse to overwrite.
	again := newRootCommand()
	again.SetOut(&out)
	again.SetErr(&out)
	again.SetArgs([]string{"init", dir})
	require.Error(t, again.Execute())
}
