package vt

// selectGraphicRendition applies an SGR (CSI ... m) parameter sequence to
// the cursor's template cell, and re-evaluates shell-integration
// suggestion-color detection whenever the foreground changes.
func (t *Term) selectGraphicRendition(params []int) {
	if len(params) == 0 {
		t.resetAttributes()
		return
	}
	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			t.resetAttributes()
		case p == 1:
			t.cursor.Template.SetShellFlag(FlagBold)
		case p == 2:
			t.cursor.Template.SetShellFlag(FlagDim)
		case p == 3:
			t.cursor.Template.SetShellFlag(FlagItalic)
		case p == 4:
			t.cursor.Template.SetShellFlag(FlagUnderline)
		case p == 7:
			t.cursor.Template.SetShellFlag(FlagInverse)
		case p == 8:
			t.cursor.Template.SetShellFlag(FlagHidden)
		case p == 9:
			t.cursor.Template.SetShellFlag(FlagStrikeout)
		case p == 21:
			t.cursor.Template.SetShellFlag(FlagDoubleUnderline)
		case p == 22:
			t.cursor.Template.ClearShellFlag(FlagBold)
			t.cursor.Template.ClearShellFlag(FlagDim)
		case p == 23:
			t.cursor.Template.ClearShellFlag(FlagItalic)
		case p == 24:
			t.cursor.Template.ClearShellFlag(FlagUnderline)
			t.cursor.Template.ClearShellFlag(FlagDoubleUnderline)
		case p == 27:
			t.cursor.Template.ClearShellFlag(FlagInverse)
		case p == 28:
			t.cursor.Template.ClearShellFlag(FlagHidden)
		case p == 29:
			t.cursor.Template.ClearShellFlag(FlagStrikeout)
		case p >= 30 && p <= 37:
			t.setTemplateFg(Color{Named: NamedColor(ColorBlack + NamedColor(p-30))})
		case p == 38:
			i += t.parseExtendedColor(params, i, true)
		case p == 39:
			t.setTemplateFg(DefaultFg)
		case p >= 40 && p <= 47:
			t.cursor.Template.Bg = Color{Named: NamedColor(ColorBlack + NamedColor(p-40))}
		case p == 48:
			i += t.parseExtendedColor(params, i, false)
		case p == 49:
			t.cursor.Template.Bg = DefaultBg
		case p >= 90 && p <= 97:
			t.setTemplateFg(Color{Named: NamedColor(ColorBrightBlack + NamedColor(p-90))})
		case p >= 100 && p <= 107:
			t.cursor.Template.Bg = Color{Named: NamedColor(ColorBrightBlack + NamedColor(p-100))}
		}
	}
}

func (t *Term) resetAttributes() {
	t.cursor.Template = BlankCell()
	t.term_clearSuggestionOnTemplate()
}

func (t *Term) term_clearSuggestionOnTemplate() {
	t.cursor.Template.IntegrationFlags &^= FlagInSuggestion
}

// setTemplateFg applies a new foreground color and re-checks it against
// the shell's configured suggestion colors, per spec's "compare resulting
// (fg,bg) against configured suggestion colors" rule.
func (t *Term) setTemplateFg(c Color) {
	t.cursor.Template.Fg = c
	if t.Shell != nil && t.Shell.MatchesSuggestionColor(c) {
		t.cursor.Template.IntegrationFlags |= FlagInSuggestion
	} else {
		t.cursor.Template.IntegrationFlags &^= FlagInSuggestion
	}
}

// parseExtendedColor handles the 38/48 ";5;n" (256-color) and
// ";2;r;g;b" (truecolor) forms, returning how many extra params were
// consumed so the caller's loop index can skip over them.
func (t *Term) parseExtendedColor(params []int, i int, isFg bool) int {
	if i+1 >= len(params) {
		return 0
	}
	switch params[i+1] {
	case 2:
		if i+4 < len(params) {
			c := RGB(uint8(params[i+2]), uint8(params[i+3]), uint8(params[i+4]))
			if isFg {
				t.setTemplateFg(c)
			} else {
				t.cursor.Template.Bg = c
			}
			return 4
		}
	case 5:
		if i+2 < len(params) {
			c := color256(params[i+2])
			if isFg {
				t.setTemplateFg(c)
			} else {
				t.cursor.Template.Bg = c
			}
			return 2
		}
	}
	return 0
}

// color256 maps an xterm 256-color index to a Color. Indices 0-15 map to
// the named palette; 16-231 are a 6x6x6 RGB cube; 232-255 are a
// grayscale ramp.
func color256(idx int) Color {
	switch {
	case idx < 16:
		return Color{Named: NamedColor(int(ColorBlack) + idx)}
	case idx < 232:
		idx -= 16
		r := (idx / 36) % 6
		g := (idx / 6) % 6
		b := idx % 6
		scale := func(v int) uint8 {
			if v == 0 {
				return 0
			}
			return uint8(55 + v*40)
		}
		return RGB(scale(r), scale(g), scale(b))
	default:
		level := uint8(8 + (idx-232)*10)
		return RGB(level, level, level)
	}
}
