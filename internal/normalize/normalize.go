package normalize

import "strings"

// Username returns a normalized form of a chosen username suitable for
// presence lookups and comparisons. Normalization currently trims
// surrounding whitespace; usernames stay case-sensitive.
func Username(u string) string {
	return strings.TrimSpace(u)
}
