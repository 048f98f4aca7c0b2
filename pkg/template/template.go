// Package template provides ${path} placeholder interpolation against
// execution data for message text, integration calls, and expressions.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Resolve looks up a dot-separated path in nested map data. A missing path
// reports ok=false rather than an error.
func Resolve(path string, data map[string]any) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = data

	for _, segment := range strings.Split(path, ".") {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = asMap[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// Interpolate replaces every ${path} placeholder in input with the stringified
// value resolved from data. Unresolvable placeholders become empty strings.
func Interpolate(input string, data map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-1])

		value, ok := Resolve(path, data)
		if !ok {
			return ""
		}

		return Stringify(value)
	})
}

// InterpolateValue walks an arbitrary JSON-shaped value, interpolating every
// string it contains. Used for integration request bodies.
func InterpolateValue(value any, data map[string]any) any {
	switch v := value.(type) {
	case string:
		// A value that is exactly one placeholder keeps its resolved type
		// instead of being flattened to a string.
		if matches := placeholderPattern.FindStringSubmatch(v); matches != nil && matches[0] == v {
			if resolved, ok := Resolve(strings.TrimSpace(matches[1]), data); ok {
				return resolved
			}
		}

		return Interpolate(v, data)
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, item := range v {
			result[key] = InterpolateValue(item, data)
		}

		return result
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = InterpolateValue(item, data)
		}

		return result
	default:
		return value
	}
}

// Stringify renders a resolved value the way it should appear inside text.
// JSON numbers are formatted without a spurious fraction part.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
