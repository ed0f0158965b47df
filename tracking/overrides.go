package tracking

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// keySanitizer strips characters that override syntax allows but tracking
// backends reject in parameter keys.
var keySanitizer = strings.NewReplacer(
	"@", "AT",
	"/", "_",
	"+", "",
	"~", "-",
)

// ParseOverrides turns raw key=value override strings into parameters for
// the tracking session. Malformed entries are skipped. Keys are sanitized
// for the backend; unquoted values cast as literals, so "0.50" records as
// "0.5" and "True" as "true", while quoted values stay textual.
func ParseOverrides(overrides []string) map[string]string {
	if len(overrides) == 0 {
		return nil
	}
	params := make(map[string]string, len(overrides))
	for _, override := range overrides {
		key, value, ok := strings.Cut(override, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		key = keySanitizer.Replace(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if unquoted, ok := unquote(value); ok {
			params[key] = unquoted
		} else {
			params[key] = castLiteral(value)
		}
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1], true
		}
	}
	return s, false
}

// castLiteral parses a value as a YAML scalar and re-renders numbers and
// booleans in canonical form. Anything else keeps its textual form.
func castLiteral(s string) string {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(v)
	default:
		return s
	}
}
