// Package utils holds tiny helpers shared across layers. Nothing in here
// knows about drafts, mail, or Slack.
package utils

import "strconv"

// AtoiDefault parses s as an int, falling back to def when s is empty or
// malformed. Query-string parsing never needs to surface a parse error.
//
//	utils.AtoiDefault("42", 0) // 42
//	utils.AtoiDefault("", 10)  // 10
//	utils.AtoiDefault("x", 5)  // 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampInt bounds n to the inclusive range [lo, hi].
func ClampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
