// Package sanitize strips injected script blocks from request payloads.
//
// This is a best-effort mitigation. It removes well-formed <script> blocks
// only; attribute handlers, javascript: URLs and other vectors pass through.
// Output encoding at render time remains the real defence.
package sanitize

import (
	"regexp"
	"strings"
)

var scriptBlock = regexp.MustCompile(`(?is)<script\b.*?</script>`)

// String removes every <script>...</script> block from s and trims it.
// Removal repeats until no block remains, so String(String(s)) == String(s).
func String(s string) string {
	for {
		next := scriptBlock.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}

// Value walks a decoded JSON value. Strings are cleaned, slices and maps are
// rebuilt with cleaned elements in the same order and under the same keys,
// and any other value is returned unchanged.
func Value(v any) any {
	switch val := v.(type) {
	case string:
		return String(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Value(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Value(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = String(item)
		}
		return out
	default:
		return v
	}
}
