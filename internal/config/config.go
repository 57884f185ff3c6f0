// Package config loads and validates the pipeline configuration file.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/flakework/checkmatrix/internal/hooks"
)

// DefaultFileName is the config file looked up during workspace resolution.
const DefaultFileName = "checkmatrix.yaml"

// Placeholders recognized in evaluator and builder command arguments.
const (
	PlaceholderCheck       = "{check}"
	PlaceholderTarget      = "{target}"
	PlaceholderSystem      = "{system}"
	PlaceholderInstallable = "{installable}"
)

// PipelineSpec is the complete pipeline configuration.
type PipelineSpec struct {
	Name      string                    `yaml:"name"`
	Evaluator EvaluatorConfig           `yaml:"evaluator"`
	Builder   BuilderConfig             `yaml:"builder"`
	Execution ExecutionConfig           `yaml:"execution"`
	Overrides map[string]map[string]any `yaml:"overrides,omitempty"`
	Hooks     hooks.Config              `yaml:"hooks,omitempty"`
	Logs      LogsConfig                `yaml:"logs,omitempty"`
	Artifacts *ArtifactsConfig          `yaml:"artifacts,omitempty"`
}

// EvaluatorConfig controls the matrix discovery phase.
type EvaluatorConfig struct {
	// Command is the evaluator argv. Arguments may contain {target} and
	// {system} placeholders. Empty means the Nix default.
	Command    []string `yaml:"command,omitempty"`
	Target     string   `yaml:"target,omitempty"`
	System     string   `yaml:"system,omitempty"`
	TimeoutSec int      `yaml:"timeout_seconds,omitempty"`
}

// BuilderConfig controls per-check execution.
type BuilderConfig struct {
	// Command is the builder argv, run once per matrix entry. Arguments may
	// contain {check}, {target}, {system} and {installable} placeholders.
	// Empty means the Nix default.
	Command    []string `yaml:"command,omitempty"`
	TimeoutSec int      `yaml:"timeout_seconds,omitempty"`
}

// ExecutionConfig controls matrix fan-out behavior.
type ExecutionConfig struct {
	Parallel bool `yaml:"parallel,omitempty"`
	Workers  int  `yaml:"max_workers,omitempty"`
	// FailFast cancels unstarted entries after the first failure. Disabled
	// by default: every entry is attempted regardless of sibling failures.
	FailFast bool     `yaml:"fail_fast,omitempty"`
	Checks   []string `yaml:"checks,omitempty"`
	Skip     []string `yaml:"skip,omitempty"`
}

// LogsConfig controls per-check build log persistence.
type LogsConfig struct {
	Dir      string `yaml:"dir,omitempty"`
	Compress bool   `yaml:"compress,omitempty"`
}

// ArtifactsConfig enables report upload to Azure Blob Storage.
type ArtifactsConfig struct {
	AccountURL string `yaml:"account_url"`
	Container  string `yaml:"container"`
	Prefix     string `yaml:"prefix,omitempty"`
}

// CheckOverride holds per-check execution overrides, decoded from the
// loosely-typed overrides map.
type CheckOverride struct {
	ExtraArgs  []string `mapstructure:"extra_args"`
	TimeoutSec int      `mapstructure:"timeout_seconds"`
	ExitCodes  []int    `mapstructure:"exit_codes"`
}

// Load reads a pipeline spec from a YAML file, applies defaults, and
// validates it.
func Load(path string) (*PipelineSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadBytes(data)
}

// LoadBytes parses a pipeline spec from YAML bytes, applies defaults, and
// validates it.
func LoadBytes(data []byte) (*PipelineSpec, error) {
	var spec PipelineSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing pipeline config: %w", err)
	}

	spec.ApplyDefaults()

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Default returns a spec with all defaults applied and no config file.
func Default() *PipelineSpec {
	spec := &PipelineSpec{}
	spec.ApplyDefaults()
	return spec
}

// ApplyDefaults fills unset fields with the Nix flake defaults the tool
// was built around.
func (s *PipelineSpec) ApplyDefaults() {
	if s.Name == "" {
		s.Name = "checks"
	}
	if s.Evaluator.Target == "" {
		s.Evaluator.Target = "."
	}
	if s.Evaluator.System == "" {
		s.Evaluator.System = HostSystem()
	}
	if len(s.Evaluator.Command) == 0 {
		s.Evaluator.Command = []string{
			"nix", "eval", "--json",
			"{target}#checks.{system}",
			"--apply", "builtins.attrNames",
		}
	}
	if s.Evaluator.TimeoutSec == 0 {
		s.Evaluator.TimeoutSec = 300
	}
	if len(s.Builder.Command) == 0 {
		s.Builder.Command = []string{"nix", "build", "--no-link", "{installable}"}
	}
	if s.Builder.TimeoutSec == 0 {
		s.Builder.TimeoutSec = 3600
	}
	if s.Execution.Workers == 0 {
		s.Execution.Workers = 4
	}
}

// Validate checks that the pipeline configuration is executable.
func (s *PipelineSpec) Validate() error {
	if len(s.Evaluator.Command) == 0 {
		return fmt.Errorf("evaluator.command must not be empty")
	}
	if len(s.Builder.Command) == 0 {
		return fmt.Errorf("builder.command must not be empty")
	}
	if !hasCheckPlaceholder(s.Builder.Command) {
		return fmt.Errorf("builder.command must reference %s or %s so each matrix entry builds a distinct check",
			PlaceholderCheck, PlaceholderInstallable)
	}
	if s.Evaluator.TimeoutSec < 1 {
		return fmt.Errorf("evaluator.timeout_seconds must be at least 1, got %d", s.Evaluator.TimeoutSec)
	}
	if s.Builder.TimeoutSec < 1 {
		return fmt.Errorf("builder.timeout_seconds must be at least 1, got %d", s.Builder.TimeoutSec)
	}
	if s.Execution.Workers < 1 {
		return fmt.Errorf("execution.max_workers must be at least 1, got %d", s.Execution.Workers)
	}
	if s.Artifacts != nil {
		if s.Artifacts.AccountURL == "" {
			return fmt.Errorf("artifacts.account_url must be set when artifacts are configured")
		}
		if s.Artifacts.Container == "" {
			return fmt.Errorf("artifacts.container must be set when artifacts are configured")
		}
	}
	for name := range s.Overrides {
		if _, err := s.OverrideFor(name); err != nil {
			return fmt.Errorf("overrides.%s: %w", name, err)
		}
	}
	return nil
}

// OverrideFor decodes the override entry for the named check. Returns nil
// when no override exists.
func (s *PipelineSpec) OverrideFor(name string) (*CheckOverride, error) {
	params, ok := s.Overrides[name]
	if !ok {
		return nil, nil
	}

	var v CheckOverride
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &v,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(params); err != nil {
		return nil, fmt.Errorf("decoding override: %w", err)
	}
	return &v, nil
}

func hasCheckPlaceholder(argv []string) bool {
	for _, arg := range argv {
		if strings.Contains(arg, PlaceholderCheck) || strings.Contains(arg, PlaceholderInstallable) {
			return true
		}
	}
	return false
}

// HostSystem returns the Nix-style system identifier for the current host,
// e.g. "x86_64-linux".
func HostSystem() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	}
	return arch + "-" + runtime.GOOS
}
