// Package normalize canonicalizes user-supplied values before they are
// compared or stored.
package normalize

import "strings"

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace and collapses inner runs of spaces.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Role trims and lowercases a role name.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ID trims an opaque identifier. IDs are case-sensitive.
func ID(s string) string {
	return strings.TrimSpace(s)
}
