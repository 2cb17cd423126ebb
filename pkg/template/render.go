// Package template provides the reusable flow skeleton catalog and the
// instantiator that clones a skeleton into a tenant-owned flow.
package template

import (
	"fmt"
	"regexp"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Substitute replaces every {{key}} token in text with the string form of
// vars[key]. Tokens with no matching key are left untouched.
func Substitute(text string, vars map[string]any) string {
	if len(vars) == 0 {
		return text
	}

	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		key := tokenPattern.FindStringSubmatch(token)[1]

		value, ok := vars[key]
		if !ok {
			return token
		}

		return fmt.Sprintf("%v", value)
	})
}

// SubstituteConfig applies Substitute to every string value in a node
// configuration map, recursing into nested maps and string slices. The
// input map is not mutated.
func SubstituteConfig(config map[string]any, vars map[string]any) map[string]any {
	if config == nil {
		return nil
	}

	out := make(map[string]any, len(config))
	for key, value := range config {
		out[key] = substituteValue(value, vars)
	}

	return out
}

func substituteValue(value any, vars map[string]any) any {
	switch v := value.(type) {
	case string:
		return Substitute(v, vars)
	case map[string]any:
		return SubstituteConfig(v, vars)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = substituteValue(item, vars)
		}

		return out
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = Substitute(item, vars)
		}

		return out
	default:
		return value
	}
}
