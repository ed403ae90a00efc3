package vt

// Mode is a bitset of terminal modes toggled via SM/RM (ANSI) and
// DECSET/DECRST (DEC private) sequences.
type Mode uint32

const (
	ModeInsert Mode = 1 << iota
	ModeOrigin
	ModeAutoWrap
	ModeLineFeedNewLine
	ModeCursorVisible
	ModeApplicationCursorKeys
	ModeBracketedPaste
	ModeAltScreen
	ModeMouseReporting
)

const maxTitleStackDepth = 4096

// Term is the top-level terminal state machine: two grids (primary and
// alternate), the cursor, scroll region, tab stops, title stack, and the
// embedded shell-integration decoder. It implements Handler, so a Parser
// can drive it directly from raw PTY bytes.
type Term struct {
	primary *Grid
	alt     *Grid
	active  *Grid
	inAlt   bool

	cursor Cursor

	savedPrimary SavedCursor
	savedAlt     SavedCursor

	// altSwitchSaved holds the primary cursor across a 1049 alt-screen
	// switch, kept separate from savedPrimary (DECSC/DECRC) so entering
	// the alternate screen never clobbers a pending ESC 7 save.
	altSwitchSaved SavedCursor

	modes Mode

	scrollTop, scrollBottom int
	tabStops                []bool

	titleStack []string

	pendingSGRFg, pendingSGRBg Color

	suggestionFg    Color
	hasSuggestionFg bool

	Shell *ShellState
}

// NewTerm builds a terminal with the given grid dimensions and a
// scrollback cap applying to the primary grid only (the alternate
// screen, per xterm convention, never scrolls into history).
func NewTerm(cols, rows, maxScrollback int) *Term {
	t := &Term{
		primary:       NewGrid(cols, rows, maxScrollback),
		alt:           NewGrid(cols, rows, 0),
		scrollBottom:  rows - 1,
		modes:         ModeAutoWrap | ModeCursorVisible,
	}
	t.active = t.primary
	t.cursor = NewCursor()
	t.resetTabStops()
	t.Shell = NewShellState(t)
	return t
}

// Grid returns the currently active grid (primary or alternate).
func (t *Term) Grid() *Grid { return t.active }

// Cursor returns a copy of the current cursor state.
func (t *Term) Cursor() Cursor { return t.cursor }

// Mode reports whether every bit in m is currently set.
func (t *Term) Mode(m Mode) bool { return t.modes&m == m }

func (t *Term) setMode(m Mode, on bool) {
	if on {
		t.modes |= m
	} else {
		t.modes &^= m
	}
}

func (t *Term) resetTabStops() {
	t.tabStops = make([]bool, t.active.Cols())
	for i := 0; i < len(t.tabStops); i += 8 {
		t.tabStops[i] = true
	}
}

// Resize propagates a resize to both grids and clamps cursor/scroll
// region state to the new dimensions.
func (t *Term) Resize(cols, rows int) {
	t.primary.Resize(cols, rows)
	t.alt.Resize(cols, rows)
	if t.scrollBottom >= rows {
		t.scrollBottom = rows - 1
	}
	if t.cursor.Line >= rows {
		t.cursor.Line = rows - 1
	}
	if t.cursor.Column >= cols {
		t.cursor.Column = cols - 1
	}
	t.resetTabStops()
}

// --- Handler implementation ---

// Print writes r at the cursor using the cursor's current template
// attributes, handling autowrap and wide-character pairing.
func (t *Term) Print(r rune) {
	if IsZeroWidth(r) && t.cursor.Column > 0 {
		prevLine, prevCol := t.cursor.Line, t.cursor.Column-1
		t.active.Cell(prevLine, prevCol).AppendZeroWidth(r)
		return
	}

	w := RuneWidth(r)
	if w == 0 {
		w = 1
	}

	if t.cursor.InputNeedsWrap {
		t.lineWrap()
	}

	cols := t.active.Cols()
	if w == 2 && t.cursor.Column == cols-1 {
		// Not enough room for a wide glyph in the last column: mark it
		// as a wrap spacer and wrap before placing the glyph.
		cell := t.active.Cell(t.cursor.Line, t.cursor.Column)
		*cell = t.cursor.Template
		cell.Codepoint = ' '
		cell.SetShellFlag(FlagLeadingWideCharSpacer)
		cell.SetShellFlag(FlagWrapline)
		t.lineWrap()
	}

	cell := t.active.Cell(t.cursor.Line, t.cursor.Column)
	*cell = t.cursor.Template
	cell.Codepoint = r
	t.shellTagCell(t.cursor.Line, t.cursor.Column)
	if w == 2 {
		cell.SetShellFlag(FlagWideChar)
		spacer := t.active.Cell(t.cursor.Line, t.cursor.Column+1)
		*spacer = t.cursor.Template
		spacer.Codepoint = ' '
		spacer.SetShellFlag(FlagWideCharSpacer)
		t.shellTagCell(t.cursor.Line, t.cursor.Column+1)
	}

	t.cursor.Column += w
	if t.cursor.Column >= cols {
		t.cursor.Column = cols - 1
		t.cursor.InputNeedsWrap = t.Mode(ModeAutoWrap)
	}
}

func (t *Term) shellTagCell(line, col int) {
	if t.Shell.InPrompt() {
		t.active.Cell(line, col).IntegrationFlags |= FlagInPrompt
	}
}

func (t *Term) lineWrap() {
	cell := t.active.Cell(t.cursor.Line, t.active.Cols()-1)
	cell.SetShellFlag(FlagWrapline)
	t.cursor.InputNeedsWrap = false
	t.indexDown()
	t.cursor.Column = 0
}

// Execute handles a C0 control code.
func (t *Term) Execute(b byte) {
	switch b {
	case '\n', '\v', '\f':
		t.indexDown()
		if t.Mode(ModeLineFeedNewLine) {
			t.cursor.Column = 0
		}
	case '\r':
		t.cursor.Column = 0
		t.cursor.InputNeedsWrap = false
	case '\b':
		if t.cursor.Column > 0 {
			t.cursor.Column--
		}
		t.cursor.InputNeedsWrap = false
	case '\t':
		t.cursor.Column = t.nextTabStop(t.cursor.Column)
	case 0x07: // BEL
		// No audible bell to ring; shell integration may still be
		// mid-OSC-string when this fires from a malformed stream.
	case 0x0e, 0x0f: // SO/SI — switch G1/G0 into GL
		if b == 0x0e {
			t.cursor.ActiveCharset = 1
		} else {
			t.cursor.ActiveCharset = 0
		}
	}
}

func (t *Term) nextTabStop(from int) int {
	for c := from + 1; c < len(t.tabStops); c++ {
		if t.tabStops[c] {
			return c
		}
	}
	return t.active.Cols() - 1
}

// indexDown moves the cursor down one line, scrolling the active region
// if already at the bottom margin.
func (t *Term) indexDown() {
	if t.cursor.Line == t.scrollBottom {
		t.active.ScrollUp(t.scrollTop, t.scrollBottom, 1)
		return
	}
	if t.cursor.Line < t.active.Rows()-1 {
		t.cursor.Line++
	}
}

// indexUp moves the cursor up one line (reverse index), scrolling down
// if already at the top margin.
func (t *Term) indexUp() {
	if t.cursor.Line == t.scrollTop {
		t.active.ScrollDown(t.scrollTop, t.scrollBottom, 1)
		return
	}
	if t.cursor.Line > 0 {
		t.cursor.Line--
	}
}

// ESCDispatch handles two/three-byte escape sequences outside CSI/OSC/DCS.
func (t *Term) ESCDispatch(intermediates []byte, final byte) {
	if len(intermediates) == 0 {
		switch final {
		case '7':
			saved := t.cursor.Save(t.Mode(ModeOrigin))
			if t.inAlt {
				t.savedAlt = saved
			} else {
				t.savedPrimary = saved
			}
		case '8':
			t.restoreSavedCursor()
		case 'c':
			t.reset()
		case 'D':
			t.indexDown()
		case 'M':
			t.indexUp()
		case 'E':
			t.cursor.Column = 0
			t.indexDown()
		case 'H':
			if t.cursor.Column < len(t.tabStops) {
				t.tabStops[t.cursor.Column] = true
			}
		}
		return
	}
	switch intermediates[0] {
	case '(':
		t.cursor.Charsets[0] = charsetFromFinal(final)
	case ')':
		t.cursor.Charsets[1] = charsetFromFinal(final)
	case '*':
		t.cursor.Charsets[2] = charsetFromFinal(final)
	case '+':
		t.cursor.Charsets[3] = charsetFromFinal(final)
	}
}

func charsetFromFinal(final byte) Charset {
	switch final {
	case '0':
		return CharsetLineDrawing
	case 'A':
		return CharsetUK
	default:
		return CharsetASCII
	}
}

func (t *Term) restoreSavedCursor() {
	saved := t.savedPrimary
	if t.inAlt {
		saved = t.savedAlt
	}
	origin := t.cursor.Restore(saved)
	t.setMode(ModeOrigin, origin)
}

func (t *Term) reset() {
	t.modes = ModeAutoWrap | ModeCursorVisible
	t.scrollTop = 0
	t.scrollBottom = t.active.Rows() - 1
	t.cursor = NewCursor()
	t.resetTabStops()
	t.primary.Clear()
	t.alt.Clear()
}

// DCSHook/DCSPut/DCSUnhook: qterm consumes no DCS payload today.
func (t *Term) DCSHook([]int, []byte, byte) {}
func (t *Term) DCSPut(byte)                 {}
func (t *Term) DCSUnhook()                  {}
