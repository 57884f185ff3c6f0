// Package buildlog persists per-check build output under a log directory.
package buildlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Writer writes one log file per check.
type Writer struct {
	dir      string
	compress bool
}

// NewWriter creates a log writer. An empty dir disables log persistence.
func NewWriter(dir string, compress bool) *Writer {
	return &Writer{dir: dir, compress: compress}
}

// Enabled reports whether logs will be written.
func (w *Writer) Enabled() bool {
	return w != nil && w.dir != ""
}

// Write stores the combined build output for a check and returns the log
// file path. Logs are gzip-compressed when configured.
func (w *Writer) Write(check string, output []byte) (string, error) {
	if !w.Enabled() {
		return "", nil
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating log directory: %w", err)
	}

	name := sanitizeName(check) + ".log"
	if w.compress {
		name += ".gz"
	}
	path := filepath.Join(w.dir, name)

	if !w.compress {
		if err := os.WriteFile(path, output, 0o644); err != nil {
			return "", fmt.Errorf("writing build log: %w", err)
		}
		return path, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating build log: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if _, err := gz.Write(output); err != nil {
		return "", fmt.Errorf("compressing build log: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("finalizing build log: %w", err)
	}
	return path, nil
}

// Tail returns the last maxLines lines of output, trimmed of trailing
// whitespace. Reports embed this for failed checks.
func Tail(output []byte, maxLines int) string {
	text := strings.TrimRight(string(output), "\n")
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}

// sanitizeName makes a check name safe to use as a file name.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
