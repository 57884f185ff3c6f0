// Package matrix expands a discovered check list into matrix entries and
// encodes the payload a CI platform's matrix mechanism consumes.
package matrix

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/flakework/checkmatrix/internal/models"
)

// Entry is one matrix instance: a check plus its effective execution
// parameters after per-check overrides were applied.
type Entry struct {
	Check      models.Check
	ExtraArgs  []string
	TimeoutSec int
	ExitCodes  []int
}

// Filter returns the subset of checks matching at least one include pattern
// and no skip pattern. Empty includes means all checks are included.
// Patterns use path.Match glob syntax over the check name.
func Filter(checks []models.Check, includes, skips []string) ([]models.Check, error) {
	var out []models.Check
	for _, c := range checks {
		included := len(includes) == 0
		if !included {
			ok, err := matchesAny(c.Name, includes)
			if err != nil {
				return nil, err
			}
			included = ok
		}
		if !included {
			continue
		}
		skipped, err := matchesAny(c.Name, skips)
		if err != nil {
			return nil, err
		}
		if !skipped {
			out = append(out, c)
		}
	}
	return out, nil
}

func matchesAny(name string, patterns []string) (bool, error) {
	for _, p := range patterns {
		ok, err := filepath.Match(p, name)
		if err != nil {
			return false, fmt.Errorf("invalid check filter pattern %q: %w", p, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// GitHubOutput is the shape the platform's matrix-expansion mechanism
// consumes: one axis named "check".
type GitHubOutput struct {
	Check []string `json:"check"`
}

// MarshalGitHubOutput encodes checks as a `matrix=<json>` line suitable for
// appending to a job output channel. An empty check list is valid and
// expands to zero instances.
func MarshalGitHubOutput(checks []models.Check) (string, error) {
	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name)
	}
	payload, err := json.Marshal(GitHubOutput{Check: names})
	if err != nil {
		return "", fmt.Errorf("encoding matrix payload: %w", err)
	}
	return "matrix=" + string(payload), nil
}
