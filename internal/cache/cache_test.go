package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flakework/checkmatrix/internal/matrix"
	"github.com/flakework/checkmatrix/internal/models"
)

func testEntry(name string) matrix.Entry {
	return matrix.Entry{Check: models.NewCheck(name, ".", "x86_64-linux")}
}

var builderCmd = []string{"nix", "build", "--no-link", "{installable}"}

func TestKey(t *testing.T) {
	key1, err := Key(builderCmd, ".", "x86_64-linux", testEntry("build"))
	require.NoError(t, err)
	assert.Len(t, key1, 64) // SHA256 hex is 64 chars

	// Same inputs produce the same key.
	key2, err := Key(builderCmd, ".", "x86_64-linux", testEntry("build"))
	require.NoError(t, err)
	assert.Equal(t, key1, key2)

	// A different check produces a different key.
	key3, err := Key(builderCmd, ".", "x86_64-linux", testEntry("test"))
	require.NoError(t, err)
	assert.NotEqual(t, key1, key3)

	// A different builder command produces a different key.
	key4, err := Key([]string{"nix", "build", "{installable}"}, ".", "x86_64-linux", testEntry("build"))
	require.NoError(t, err)
	assert.NotEqual(t, key1, key4)

	// Overrides are part of the key: changed args mean a rebuild.
	entry := testEntry("build")
	entry.ExtraArgs = []string{"--keep-going"}
	key5, err := Key(builderCmd, ".", "x86_64-linux", entry)
	require.NoError(t, err)
	assert.NotEqual(t, key1, key5)
}

func TestKeyFieldBoundaries(t *testing.T) {
	// Length prefixing keeps adjacent fields from colliding.
	a, err := Key(builderCmd, "ab", "c", testEntry("x"))
	require.NoError(t, err)
	b, err := Key(builderCmd, "a", "bc", testEntry("x"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGetPutRoundtrip(t *testing.T) {
	c := New(t.TempDir())

	key, err := Key(builderCmd, ".", "x86_64-linux", testEntry("build"))
	require.NoError(t, err)

	_, found := c.Get(key)
	assert.False(t, found)

	outcome := &models.CheckOutcome{
		Name:        "build",
		Installable: ".#checks.x86_64-linux.build",
		Status:      models.StatusPassed,
		DurationMs:  1234,
	}
	require.NoError(t, c.Put(key, outcome))

	got, found := c.Get(key)
	require.True(t, found)
	assert.Equal(t, outcome.Name, got.Name)
	assert.Equal(t, outcome.Status, got.Status)
	assert.Equal(t, outcome.DurationMs, got.DurationMs)
}

func TestGetCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "badkey.json"), []byte("{not json"), 0o644))

	_, found := c.Get("badkey")
	assert.False(t, found, "corrupt entries are treated as misses")
}

func TestDisabledCache(t *testing.T) {
	c := New("")

	_, found := c.Get("anything")
	assert.False(t, found)
	assert.NoError(t, c.Put("anything", &models.CheckOutcome{Name: "x"}))
	assert.NoError(t, c.Clear())
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	c := New(cacheDir)

	require.NoError(t, c.Put("key1", &models.CheckOutcome{Name: "a"}))
	require.NoError(t, c.Put("key2", &models.CheckOutcome{Name: "b"}))

	require.NoError(t, c.Clear())
	_, err := os.Stat(cacheDir)
	assert.True(t, os.IsNotExist(err))

	// Clearing a non-existent directory is fine.
	assert.NoError(t, c.Clear())
}

func TestClearRefusesForeignFiles(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep me"), 0o644))

	err := c.Clear()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to delete")

	_, statErr := os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, statErr)
}

func TestClearRefusesSubdirectories(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))

	err := c.Clear()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to delete")
}

func TestConcurrentAccess(t *testing.T) {
	c := New(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key, err := Key(builderCmd, ".", "x86_64-linux", testEntry("check"))
			assert.NoError(t, err)
			assert.NoError(t, c.Put(key, &models.CheckOutcome{Name: "check", Status: models.StatusPassed}))
			_, _ = c.Get(key)
		}(i)
	}
	wg.Wait()
}
