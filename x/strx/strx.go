// Package strx holds small string helpers shared by config and the CLI.
package strx

// Coalesce returns the first non-empty value, or "" if all are empty.
// Later values act as fallbacks: Coalesce(flag, fromFile, builtin).
func Coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
