package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} and ${VAR:-default}, optionally escaped with
// a second leading $.
//   - ${VAR} expands to the env var value, or empty string if unset
//   - ${VAR:-default} expands to the env var value, or "default" if unset/empty
//   - $${VAR} is left as the literal ${VAR}, for message placeholders that
//     expand at publish time
var envVarPattern = regexp.MustCompile(`\$?\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} patterns in the input string
// with their corresponding environment variable values.
//
// Unset variables without defaults expand to empty string (not an error).
func ExpandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		if len(match) > 1 && match[1] == '$' {
			return match[1:]
		}

		groups := envVarPattern.FindStringSubmatch(match)
		value, ok := os.LookupEnv(groups[1])
		if ok && value != "" {
			return value
		}
		return groups[2]
	})
}
