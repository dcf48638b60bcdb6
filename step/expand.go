package step

import (
	"os"
	"regexp"
)

// placeholderPattern matches ${Name} and ${Name:-default}.
var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_.\-]*)(?::-([^}]*))?\}`)

// Expander resolves ${Name} and ${Name:-default} placeholders in message
// text. A name resolves to the first non-empty of: the property value, the
// environment variable, the default. Otherwise it expands to "".
type Expander struct {
	// Properties are step and run properties.
	Properties map[string]string
	// LookupEnv reads the environment. Nil disables environment fallback.
	LookupEnv func(string) (string, bool)
}

// NewExpander returns an expander over props with environment fallback.
func NewExpander(props map[string]string) *Expander {
	return &Expander{Properties: props, LookupEnv: os.LookupEnv}
}

// Expand returns input with every placeholder replaced.
func (e *Expander) Expand(input string) string {
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		name, def := groups[1], groups[2]

		if v := e.Properties[name]; v != "" {
			return v
		}
		if e.LookupEnv != nil {
			if v, ok := e.LookupEnv(name); ok && v != "" {
				return v
			}
		}
		return def
	})
}
