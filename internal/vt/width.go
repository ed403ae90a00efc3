package vt

import "github.com/rivo/uniseg"

// RuneWidth reports the terminal column width of r: 0 for combining
// marks and other zero-width runes, 1 for narrow characters, 2 for
// East-Asian-wide and emoji. Delegates to uniseg's East Asian Width
// tables rather than a hand-rolled range table, consistent with the
// rest of the pack's reliance on uniseg-family width logic.
func RuneWidth(r rune) int {
	return uniseg.StringWidth(string(r))
}

// IsZeroWidth reports whether r should be folded into the previous
// cell's ZeroWidthTail instead of occupying its own column.
func IsZeroWidth(r rune) bool {
	return RuneWidth(r) == 0
}
