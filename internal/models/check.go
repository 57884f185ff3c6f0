package models

import "fmt"

// Check names one independently buildable unit discovered by the evaluator.
type Check struct {
	// Name is the attribute name reported by the evaluator (e.g. "deploy-rs").
	Name string `json:"name"`
	// Installable is the fully qualified build target for the check,
	// e.g. ".#checks.x86_64-linux.deploy-rs".
	Installable string `json:"installable"`
}

// NewCheck derives the build installable for a check name under the given
// target and system.
func NewCheck(name, target, system string) Check {
	return Check{
		Name:        name,
		Installable: fmt.Sprintf("%s#checks.%s.%s", target, system, name),
	}
}
