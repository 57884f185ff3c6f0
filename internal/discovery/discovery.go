// Package discovery runs the evaluator command and turns its JSON output
// into the list of checks that seeds the build matrix.
package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/flakework/checkmatrix/internal/config"
	"github.com/flakework/checkmatrix/internal/models"
	"github.com/flakework/checkmatrix/internal/validation"
)

// MalformedOutputError reports evaluator output that parsed as JSON but does
// not match the expected matrix shape.
type MalformedOutputError struct {
	Problems []string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("evaluator output does not match the expected shape: %s",
		strings.Join(e.Problems, "; "))
}

// Evaluator discovers checks by invoking the configured evaluator command.
type Evaluator struct {
	spec *config.PipelineSpec

	// Dir is the working directory for the evaluator process. Empty means
	// the current directory.
	Dir string
}

// NewEvaluator creates an evaluator for the given pipeline spec.
func NewEvaluator(spec *config.PipelineSpec) *Evaluator {
	return &Evaluator{spec: spec}
}

// Discover runs the evaluator once and returns the discovered checks in
// deterministic order. It fails when the evaluator exits non-zero, times
// out, or produces output that is not a JSON list of names or an attribute
// set keyed by name.
func (e *Evaluator) Discover(ctx context.Context) ([]models.Check, error) {
	ev := e.spec.Evaluator

	argv := config.ExpandArgv(ev.Command, map[string]string{
		config.PlaceholderTarget: ev.Target,
		config.PlaceholderSystem: ev.System,
	})

	ctx, cancel := context.WithTimeout(ctx, time.Duration(ev.TimeoutSec)*time.Second)
	defer cancel()

	slog.Debug("running evaluator", "argv", argv)

	//nolint:gosec // the evaluator command comes from the user's pipeline config
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, fmt.Errorf("evaluator timed out after %ds: %w", ev.TimeoutSec, ctxErr)
			}
			return nil, fmt.Errorf("evaluator canceled: %w", ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("evaluator failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("evaluator failed: %w", err)
	}

	names, err := ParseMatrixPayload(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	checks := make([]models.Check, 0, len(names))
	for _, name := range names {
		checks = append(checks, models.NewCheck(name, ev.Target, ev.System))
	}

	slog.Debug("discovery complete", "checks", len(checks))
	return checks, nil
}

// ParseMatrixPayload decodes evaluator output into an ordered list of check
// names. A JSON array keeps its order; an attribute set is sorted by key.
func ParseMatrixPayload(data []byte) ([]string, error) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding evaluator output: %w", err)
	}

	if problems := validation.ValidateMatrixPayload(payload); len(problems) > 0 {
		return nil, &MalformedOutputError{Problems: problems}
	}

	switch v := payload.(type) {
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			names = append(names, item.(string))
		}
		return names, nil
	case map[string]any:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	default:
		// The schema only admits arrays and objects.
		return nil, &MalformedOutputError{Problems: []string{"payload is neither a list nor an attribute set"}}
	}
}
