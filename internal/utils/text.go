// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

// Shorten truncates s to at most max runes, appending "..." when anything was
// cut. Used for thread titles and select-menu labels, which the platform caps.
//
// Example:
//
//	Shorten("a very long question title", 10) // "a very ..."
func Shorten(s string, max int) string {
	if max <= 3 {
		max = 3
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
