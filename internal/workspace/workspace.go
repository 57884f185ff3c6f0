// Package workspace locates the project root and pipeline config relative
// to the current directory.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flakework/checkmatrix/internal/config"
)

// Context describes the detected project workspace.
type Context struct {
	// Root is the directory treated as the project root.
	Root string
	// ConfigPath is the detected pipeline config file, empty when the
	// project has none and defaults apply.
	ConfigPath string
}

// Detect walks up from startDir looking for a checkmatrix.yaml or, failing
// that, a flake.nix marking the project root. When neither exists the
// starting directory itself is the root and defaults apply.
func Detect(startDir string) (*Context, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("resolving start directory: %w", err)
	}
	start := dir

	var flakeRoot string
	for {
		cfgPath := filepath.Join(dir, config.DefaultFileName)
		if fileExists(cfgPath) {
			return &Context{Root: dir, ConfigPath: cfgPath}, nil
		}
		if flakeRoot == "" && fileExists(filepath.Join(dir, "flake.nix")) {
			flakeRoot = dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if flakeRoot != "" {
		return &Context{Root: flakeRoot}, nil
	}
	return &Context{Root: start}, nil
}

// LoadSpec loads the detected config, or the default spec when the
// workspace has no config file.
func (c *Context) LoadSpec() (*config.PipelineSpec, error) {
	if c.ConfigPath == "" {
		return config.Default(), nil
	}
	spec, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", c.ConfigPath, err)
	}
	return spec, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
