package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CollapseSpaces trims `s` and replaces inner runs of whitespace by a single space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
