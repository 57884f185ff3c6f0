// Package wizard collects pipeline settings interactively and renders the
// initial checkmatrix.yaml.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// PipelineAnswers holds all fields collected during the interactive wizard.
type PipelineAnswers struct {
	Name     string
	Target   string
	System   string
	Parallel bool
	Workers  int
	FailFast bool
	LogsDir  string
}

const configTemplate = `name: {{ .Name }}

evaluator:
  target: {{ .Target }}
{{- if .System }}
  system: {{ .System }}
{{- end }}

execution:
  parallel: {{ .Parallel }}
{{- if .Parallel }}
  max_workers: {{ .Workers }}
{{- end }}
  fail_fast: {{ .FailFast }}
{{- if .LogsDir }}

logs:
  dir: {{ .LogsDir }}
  compress: true
{{- end }}
`

// RunPipelineWizard runs an interactive huh form to collect pipeline
// settings. If initialName is non-empty, it pre-populates the name field.
func RunPipelineWizard(in io.Reader, out io.Writer, initialName string) (*PipelineAnswers, error) {
	var (
		name       = initialName
		target     = "."
		system     string
		parallel   = true
		workersRaw = "4"
		failFast   bool
		logsDir    string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Pipeline name").
				Description("A short name for this check pipeline").
				Placeholder("checks").
				Value(&name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Target").
				Description("The flake or build target the evaluator inspects").
				Placeholder(".").
				Value(&target),
			huh.NewInput().
				Title("System").
				Description("Nix system identifier; leave empty to auto-detect").
				Placeholder("x86_64-linux").
				Value(&system),
			huh.NewConfirm().
				Title("Run checks in parallel?").
				Value(&parallel),
			huh.NewInput().
				Title("Worker count").
				Description("Maximum concurrent builds when parallel").
				Value(&workersRaw).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n < 1 {
						return fmt.Errorf("worker count must be a positive integer")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Stop remaining checks after the first failure?").
				Description("Leave off to always attempt every check").
				Value(&failFast),
			huh.NewInput().
				Title("Build log directory").
				Description("Leave empty to skip persisting build logs").
				Placeholder(".checkmatrix/logs").
				Value(&logsDir),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	workers, _ := strconv.Atoi(strings.TrimSpace(workersRaw))

	return &PipelineAnswers{
		Name:     strings.TrimSpace(name),
		Target:   strings.TrimSpace(target),
		System:   strings.TrimSpace(system),
		Parallel: parallel,
		Workers:  workers,
		FailFast: failFast,
		LogsDir:  strings.TrimSpace(logsDir),
	}, nil
}

// GenerateConfigYAML renders a checkmatrix.yaml from the given answers.
func GenerateConfigYAML(answers *PipelineAnswers) (string, error) {
	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, answers); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}
