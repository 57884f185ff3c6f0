package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flakework/checkmatrix/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDetectFindsConfigInStartDir(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, config.DefaultFileName)
	writeFile(t, cfgPath, "name: here\n")

	ctx, err := Detect(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, ctx.Root)
	assert.Equal(t, cfgPath, ctx.ConfigPath)
}

func TestDetectWalksUpToConfig(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, config.DefaultFileName)
	writeFile(t, cfgPath, "name: parent\n")

	nested := filepath.Join(root, "sub", "deeper")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	ctx, err := Detect(nested)
	require.NoError(t, err)
	assert.Equal(t, root, ctx.Root)
	assert.Equal(t, cfgPath, ctx.ConfigPath)
}

func TestDetectFallsBackToFlakeRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "flake.nix"), "{}\n")

	nested := filepath.Join(root, "modules", "x")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	ctx, err := Detect(nested)
	require.NoError(t, err)
	assert.Equal(t, root, ctx.Root)
	assert.Empty(t, ctx.ConfigPath)
}

func TestDetectConfigWinsOverFlake(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "flake.nix"), "{}\n")

	sub := filepath.Join(root, "ci")
	cfgPath := filepath.Join(sub, config.DefaultFileName)
	writeFile(t, cfgPath, "name: ci\n")

	// The config in a subdirectory wins over the flake root above it.
	ctx, err := Detect(sub)
	require.NoError(t, err)
	assert.Equal(t, sub, ctx.Root)
	assert.Equal(t, cfgPath, ctx.ConfigPath)
}

func TestDetectNoMarkersUsesStartDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	ctx, err := Detect(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, ctx.Root)
	assert.Empty(t, ctx.ConfigPath)
}

func TestLoadSpec(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.DefaultFileName), "name: loaded\n")

	ctx, err := Detect(dir)
	require.NoError(t, err)

	spec, err := ctx.LoadSpec()
	require.NoError(t, err)
	assert.Equal(t, "loaded", spec.Name)
}

func TestLoadSpecDefaultsWithoutConfig(t *testing.T) {
	ctx := &Context{Root: t.TempDir()}

	spec, err := ctx.LoadSpec()
	require.NoError(t, err)
	assert.Equal(t, "checks", spec.Name)
	assert.NotEmpty(t, spec.Evaluator.Command)
}

func TestLoadSpecInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, config.DefaultFileName)
	writeFile(t, cfgPath, "builder:\n  command: [\"make\"]\n")

	ctx := &Context{Root: dir, ConfigPath: cfgPath}
	_, err := ctx.LoadSpec()
	require.Error(t, err)
	assert.Contains(t, err.Error(), cfgPath)
}
