// Package cache stores per-check build results keyed by the inputs that
// determine them, so unchanged checks can be skipped on repeat runs.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/flakework/checkmatrix/internal/matrix"
	"github.com/flakework/checkmatrix/internal/models"
)

// Cache provides result caching for check builds.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// New creates a cache rooted at the given directory. An empty directory
// disables the cache.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// Key generates the cache key for one matrix entry. The key covers the
// builder command, the target and system, the check installable, and the
// entry's effective overrides: if any of those change, the entry rebuilds.
func Key(builderCommand []string, target, system string, entry matrix.Entry) (string, error) {
	h := sha256.New()

	for _, arg := range builderCommand {
		if err := writeString(h, arg); err != nil {
			return "", err
		}
	}
	if err := writeString(h, target); err != nil {
		return "", err
	}
	if err := writeString(h, system); err != nil {
		return "", err
	}
	if err := writeString(h, entry.Check.Installable); err != nil {
		return "", err
	}

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshaling matrix entry: %w", err)
	}
	if _, err := h.Write(entryJSON); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get retrieves a cached check outcome if it exists.
func (c *Cache) Get(key string) (*models.CheckOutcome, bool) {
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.cachePath(key))
	if err != nil {
		// Cache miss
		return nil, false
	}

	var outcome models.CheckOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		// Invalid cache entry, treat as miss
		return nil, false
	}

	return &outcome, true
}

// Put stores a check outcome in the cache. Only passing outcomes are worth
// storing; failures should rebuild on the next run.
func (c *Cache) Put(key string, outcome *models.CheckOutcome) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling outcome: %w", err)
	}

	if err := os.WriteFile(c.cachePath(key), data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return nil
}

// Clear removes all cached results.
func (c *Cache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	// Refuse to delete anything that does not look like a cache directory.
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
		}
		if filepath.Ext(entry.Name()) != ".json" {
			return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

func (c *Cache) cachePath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func writeString(w io.Writer, s string) error {
	// Length-prefix each field so adjacent fields cannot collide.
	if err := binary.Write(w, binary.LittleEndian, int64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}
