package config

import "strings"

// ExpandArgv returns a copy of argv with every placeholder occurrence
// replaced. vars maps placeholder tokens (e.g. PlaceholderCheck) to values.
func ExpandArgv(argv []string, vars map[string]string) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		for token, value := range vars {
			arg = strings.ReplaceAll(arg, token, value)
		}
		out[i] = arg
	}
	return out
}
