// Package sanitize recursively redacts likely-secret values from a
// decoded JSON document before it is written to a log line (spec.md §7,
// T7 idempotence).
package sanitize

import "strings"

const redacted = "[REDACTED]"

var secretSubstrings = []string{
	"secret",
	"token",
	"auth",
	"password",
	"passwd",
	"apikey",
	"api_key",
	"key",
}

// Doc returns a deep copy of v with any map value whose key looks like a
// secret replaced by a fixed redaction marker. Keys are matched
// case-insensitively against secretSubstrings. Running Doc again over
// its own output is a no-op: every matched value is already the
// redaction marker, a string containing none of the trigger substrings.
func Doc(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if looksSecret(k) {
				out[k] = redacted
				continue
			}
			out[k] = Doc(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Doc(e)
		}
		return out
	default:
		return t
	}
}

func looksSecret(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range secretSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
