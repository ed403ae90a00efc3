package vt

// CSIDispatch handles a completed CSI sequence.
func (t *Term) CSIDispatch(params []int, intermediates []byte, final byte, private bool) {
	if private {
		t.csiPrivateDispatch(params, final)
		return
	}
	if len(intermediates) > 0 {
		// SGR/other sequences with intermediates (e.g. DECSCUSR "q")
		// aren't part of qterm's supported verb set; ignore quietly.
		return
	}
	switch final {
	case 'A':
		t.moveCursor(-param(params, 0, 1), 0, true)
	case 'B', 'e':
		t.moveCursor(param(params, 0, 1), 0, true)
	case 'C', 'a':
		t.moveCursor(0, param(params, 0, 1), true)
	case 'D':
		t.moveCursor(0, -param(params, 0, 1), true)
	case 'E':
		t.cursor.Column = 0
		t.moveCursor(param(params, 0, 1), 0, true)
	case 'F':
		t.cursor.Column = 0
		t.moveCursor(-param(params, 0, 1), 0, true)
	case 'G', '`':
		t.setCursorColumn(param(params, 0, 1) - 1)
	case 'd':
		t.setCursorLine(param(params, 0, 1) - 1)
	case 'H', 'f':
		line := param(params, 0, 1) - 1
		col := param(params, 1, 1) - 1
		t.setCursorPosition(line, col)
	case 'J':
		t.eraseDisplay(param(params, 0, 0))
	case 'K':
		t.eraseLine(param(params, 0, 0))
	case 'L':
		t.insertLines(param(params, 0, 1))
	case 'M':
		t.deleteLines(param(params, 0, 1))
	case 'P':
		t.deleteChars(param(params, 0, 1))
	case '@':
		t.insertChars(param(params, 0, 1))
	case 'X':
		t.eraseChars(param(params, 0, 1))
	case 'S':
		t.active.ScrollUp(t.scrollTop, t.scrollBottom, param(params, 0, 1))
	case 'T':
		t.active.ScrollDown(t.scrollTop, t.scrollBottom, param(params, 0, 1))
	case 'I':
		for i, n := 0, param(params, 0, 1); i < n; i++ {
			t.cursor.Column = t.nextTabStop(t.cursor.Column)
		}
	case 'Z':
		for i, n := 0, param(params, 0, 1); i < n; i++ {
			t.cursor.Column = t.prevTabStop(t.cursor.Column)
		}
	case 'g':
		t.clearTabStops(param(params, 0, 0))
	case 'r':
		t.setScrollRegion(params)
	case 'm':
		t.selectGraphicRendition(params)
	case 'n':
		// Device status report (cursor position, etc.) requires a
		// reply channel back to the PTY master; qterm's Term is a
		// read-only model of the screen and has none, so DSR is a
		// deliberate no-op here.
	case 'h':
		t.setANSIMode(params, true)
	case 'l':
		t.setANSIMode(params, false)
	}
}

func param(params []int, idx, def int) int {
	if idx >= len(params) || params[idx] == 0 {
		return def
	}
	return params[idx]
}

func rawParam(params []int, idx, def int) int {
	if idx >= len(params) {
		return def
	}
	return params[idx]
}

func (t *Term) moveCursor(dLine, dCol int, clampWrap bool) {
	t.setCursorPosition(t.cursor.Line+dLine, t.cursor.Column+dCol)
	if clampWrap {
		t.cursor.InputNeedsWrap = false
	}
}

func (t *Term) setCursorColumn(col int) {
	t.setCursorPosition(t.cursor.Line, col)
}

func (t *Term) setCursorLine(line int) {
	t.setCursorPosition(line, t.cursor.Column)
}

func (t *Term) setCursorPosition(line, col int) {
	minLine, maxLine := 0, t.active.Rows()-1
	if t.Mode(ModeOrigin) {
		minLine, maxLine = t.scrollTop, t.scrollBottom
		line += t.scrollTop
	}
	if line < minLine {
		line = minLine
	}
	if line > maxLine {
		line = maxLine
	}
	if col < 0 {
		col = 0
	}
	if col > t.active.Cols()-1 {
		col = t.active.Cols() - 1
	}
	t.cursor.Line = line
	t.cursor.Column = col
	t.cursor.InputNeedsWrap = false
}

func (t *Term) eraseDisplay(mode int) {
	switch mode {
	case 0:
		t.eraseLineFrom(t.cursor.Line, t.cursor.Column)
		for l := t.cursor.Line + 1; l < t.active.Rows(); l++ {
			t.active.ClearRow(l)
		}
	case 1:
		for l := 0; l < t.cursor.Line; l++ {
			t.active.ClearRow(l)
		}
		t.eraseLineTo(t.cursor.Line, t.cursor.Column)
	case 2, 3:
		t.active.Clear()
	}
}

func (t *Term) eraseLine(mode int) {
	switch mode {
	case 0:
		t.eraseLineFrom(t.cursor.Line, t.cursor.Column)
	case 1:
		t.eraseLineTo(t.cursor.Line, t.cursor.Column)
	case 2:
		t.active.ClearRow(t.cursor.Line)
	}
}

func (t *Term) eraseLineFrom(line, col int) {
	row := t.active.Row(line)
	for c := col; c < len(row); c++ {
		row[c] = t.cursor.Template
		row[c].Codepoint = ' '
	}
}

func (t *Term) eraseLineTo(line, col int) {
	row := t.active.Row(line)
	for c := 0; c <= col && c < len(row); c++ {
		row[c] = t.cursor.Template
		row[c].Codepoint = ' '
	}
}

func (t *Term) insertLines(n int) {
	if t.cursor.Line < t.scrollTop || t.cursor.Line > t.scrollBottom {
		return
	}
	t.active.ScrollDown(t.cursor.Line, t.scrollBottom, n)
}

func (t *Term) deleteLines(n int) {
	if t.cursor.Line < t.scrollTop || t.cursor.Line > t.scrollBottom {
		return
	}
	t.active.ScrollUp(t.cursor.Line, t.scrollBottom, n)
}

func (t *Term) insertChars(n int) {
	row := t.active.Row(t.cursor.Line)
	col := t.cursor.Column
	if col >= len(row) {
		return
	}
	if n > len(row)-col {
		n = len(row) - col
	}
	copy(row[col+n:], row[col:len(row)-n])
	for i := col; i < col+n; i++ {
		row[i] = t.cursor.Template
		row[i].Codepoint = ' '
	}
}

func (t *Term) deleteChars(n int) {
	row := t.active.Row(t.cursor.Line)
	col := t.cursor.Column
	if col >= len(row) {
		return
	}
	if n > len(row)-col {
		n = len(row) - col
	}
	copy(row[col:], row[col+n:])
	for i := len(row) - n; i < len(row); i++ {
		row[i] = t.cursor.Template
		row[i].Codepoint = ' '
	}
}

func (t *Term) eraseChars(n int) {
	row := t.active.Row(t.cursor.Line)
	col := t.cursor.Column
	end := col + n
	if end > len(row) {
		end = len(row)
	}
	for i := col; i < end; i++ {
		row[i] = t.cursor.Template
		row[i].Codepoint = ' '
	}
}

func (t *Term) prevTabStop(from int) int {
	for c := from - 1; c >= 0; c-- {
		if t.tabStops[c] {
			return c
		}
	}
	return 0
}

func (t *Term) clearTabStops(mode int) {
	switch mode {
	case 0:
		if t.cursor.Column < len(t.tabStops) {
			t.tabStops[t.cursor.Column] = false
		}
	case 3:
		for i := range t.tabStops {
			t.tabStops[i] = false
		}
	}
}

func (t *Term) setScrollRegion(params []int) {
	top := param(params, 0, 1) - 1
	bottom := rawParam(params, 1, t.active.Rows()) - 1
	if bottom == -1 {
		bottom = t.active.Rows() - 1
	}
	if top < 0 {
		top = 0
	}
	if bottom > t.active.Rows()-1 {
		bottom = t.active.Rows() - 1
	}
	if top >= bottom {
		top, bottom = 0, t.active.Rows()-1
	}
	t.scrollTop, t.scrollBottom = top, bottom
	t.setCursorPosition(0, 0)
}

func (t *Term) setANSIMode(params []int, on bool) {
	for _, p := range params {
		if p == 20 {
			t.setMode(ModeLineFeedNewLine, on)
		}
	}
}

func (t *Term) csiPrivateDispatch(params []int, final byte) {
	if final != 'h' && final != 'l' {
		return
	}
	on := final == 'h'
	for _, p := range params {
		switch p {
		case 1:
			t.setMode(ModeApplicationCursorKeys, on)
		case 6:
			t.setMode(ModeOrigin, on)
			t.setCursorPosition(0, 0)
		case 7:
			t.setMode(ModeAutoWrap, on)
		case 25:
			t.setMode(ModeCursorVisible, on)
		case 1000, 1002, 1003:
			t.setMode(ModeMouseReporting, on)
		case 1049, 47, 1047:
			t.switchAltScreen(on, p == 1049)
		case 2004:
			t.setMode(ModeBracketedPaste, on)
		}
	}
}

func (t *Term) switchAltScreen(enable, saveCursor bool) {
	if enable == t.inAlt {
		return
	}
	if enable {
		if saveCursor {
			t.altSwitchSaved = t.cursor.Save(t.Mode(ModeOrigin))
		}
		t.inAlt = true
		t.active = t.alt
		t.active.Clear()
		t.cursor = NewCursor()
	} else {
		t.inAlt = false
		t.active = t.primary
		if saveCursor {
			origin := t.cursor.Restore(t.altSwitchSaved)
			t.setMode(ModeOrigin, origin)
		} else {
			t.cursor = NewCursor()
		}
	}
	t.setMode(ModeAltScreen, enable)
}
