// Package inputval holds the input checks shared by the HTTP layer and the
// membership service.
package inputval

import (
	"regexp"
	"strings"
)

// emailPattern accepts local@domain where the domain has at least one dot.
// Whitespace and extra @ signs are rejected.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail reports whether s (after trimming) looks like an address.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return emailPattern.MatchString(s)
}

// IsBlank reports whether s is empty after trimming.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// IsValidRole reports whether role is one of the profile roles.
func IsValidRole(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "admin", "user":
		return true
	}
	return false
}

// IsValidHistoryType reports whether t is a known history entry type.
func IsValidHistoryType(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "upload", "download":
		return true
	}
	return false
}
