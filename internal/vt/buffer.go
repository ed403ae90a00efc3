package vt

import "strings"

// CurrentBuffer extracts the text of the in-progress command line: the
// region between ShellState.CmdCursor and the last occupied cell of the
// active grid, excluding any cell flagged IN_PROMPT or IN_SUGGESTION,
// collapsing skipped cells into padding spaces, and preserving zero-width
// continuations. It also returns the cursor's byte offset within the
// extracted string, for callers that need to position an editing cursor
// inside the recovered buffer.
func (t *Term) CurrentBuffer() (buffer string, cursorByteOffset int) {
	start := t.Shell.CmdCursor()
	if start == nil {
		return "", 0
	}

	var b strings.Builder
	cursorLine, cursorCol := t.cursor.Line, t.cursor.Column
	offsetKnown := false

	cols := t.active.Cols()
	rows := t.active.Rows()

	line, col := start.Line, start.Column
	if col < 0 {
		col = 0
	}

	lastOccupiedLine := t.lastOccupiedLine(start.Line)

	for l := line; l <= lastOccupiedLine && l < rows; l++ {
		from := 0
		if l == start.Line {
			from = col
		}
		row := t.active.Row(l)
		to := cols
		if l == lastOccupiedLine {
			to = t.lastOccupiedColumn(row) + 1
		}
		for c := from; c < to; c++ {
			if l == cursorLine && c == cursorCol && !offsetKnown {
				cursorByteOffset = b.Len()
				offsetKnown = true
			}
			cell := row[c]
			if cell.HasIntegrationFlag(FlagInPrompt) || cell.HasIntegrationFlag(FlagInSuggestion) {
				continue
			}
			if cell.IsWideSpacer() {
				continue
			}
			r := cell.Codepoint
			if r == 0 {
				r = ' '
			}
			if cell.HasShellFlag(FlagWrapline) {
				// Wrapped line continuation: no hard newline, the
				// logical line just continues onto the next row.
				b.WriteRune(r)
				for _, zw := range cell.ZeroWidthTail {
					b.WriteRune(zw)
				}
				continue
			}
			b.WriteRune(r)
			for _, zw := range cell.ZeroWidthTail {
				b.WriteRune(zw)
			}
		}
		if l != lastOccupiedLine && !rowEndsWithWrap(row) {
			b.WriteByte('\n')
		}
	}

	if !offsetKnown {
		cursorByteOffset = b.Len()
	}
	return b.String(), cursorByteOffset
}

func rowEndsWithWrap(row []Cell) bool {
	if len(row) == 0 {
		return false
	}
	return row[len(row)-1].HasShellFlag(FlagWrapline)
}

func (t *Term) lastOccupiedLine(from int) int {
	last := from
	for l := from; l < t.active.Rows(); l++ {
		if rowHasContent(t.active.Row(l)) {
			last = l
		}
	}
	return last
}

func (t *Term) lastOccupiedColumn(row []Cell) int {
	for c := len(row) - 1; c >= 0; c-- {
		if row[c].Codepoint != ' ' && row[c].Codepoint != 0 {
			return c
		}
		if len(row[c].ZeroWidthTail) > 0 {
			return c
		}
	}
	return -1
}

func rowHasContent(row []Cell) bool {
	for _, c := range row {
		if c.Codepoint != ' ' && c.Codepoint != 0 {
			return true
		}
		if len(c.ZeroWidthTail) > 0 {
			return true
		}
	}
	return false
}
