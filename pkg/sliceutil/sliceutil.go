// Package sliceutil provides small helpers for working with string slices,
// used throughout project filtering, tag matching, and the query engine.
package sliceutil

import "strings"

// Contains reports whether slice contains item.
func Contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// ContainsIgnoreCase reports whether slice contains item, case-insensitively.
func ContainsIgnoreCase(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}

// Dedup returns a copy of slice with duplicates removed, preserving the
// first occurrence's order.
func Dedup(slice []string) []string {
	seen := make(map[string]struct{}, len(slice))
	out := make([]string, 0, len(slice))
	for _, s := range slice {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Intersects reports whether a and b share at least one element.
func Intersects(a, b []string) bool {
	for _, x := range a {
		if Contains(b, x) {
			return true
		}
	}
	return false
}
