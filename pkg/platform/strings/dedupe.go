// Package strings holds small slice helpers for query and request parsing.
package strings

import (
	"strings"
)

// DedupeAndTrim trims every value, drops blanks and duplicates, and keeps
// first-occurrence order. It is used to parse comma-separated filters.
//
//	DedupeAndTrim([]string{" ACTIVE", "ACTIVE", "", "EXPIRED"}) // [ACTIVE EXPIRED]
func DedupeAndTrim(values []string) []string {
	if values == nil {
		return nil
	}
	trimmed := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			trimmed = append(trimmed, v)
		}
	}
	return Unique(trimmed)
}

// Unique removes duplicate values, keeping first-occurrence order.
func Unique[T comparable](values []T) []T {
	if len(values) == 0 {
		return values
	}
	seen := make(map[T]struct{}, len(values))
	result := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
