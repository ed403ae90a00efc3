// Package vt implements a VT/ANSI-compliant terminal grid, parser, and
// shell-integration decoder. It is the screen model the orchestrator drives
// with a live shell's PTY output to recover prompt boundaries, command
// text, and the user's in-progress input line.
package vt

// ShellFlags is a bitmask of per-cell rendering and structural attributes.
type ShellFlags uint16

const (
	FlagInverse ShellFlags = 1 << iota
	FlagBold
	FlagDim
	FlagItalic
	FlagUnderline
	FlagDoubleUnderline
	FlagHidden
	FlagStrikeout
	FlagWrapline
	FlagWideChar
	FlagWideCharSpacer
	FlagLeadingWideCharSpacer
)

// IntegrationFlags marks cells written while shell integration reported the
// cursor to be inside a prompt or an inline suggestion. Both are excluded
// from the buffer extracted by Term.CurrentBuffer.
type IntegrationFlags uint8

const (
	FlagInPrompt IntegrationFlags = 1 << iota
	FlagInSuggestion
)

// Color is a resolved terminal color: either a named palette slot or an
// explicit RGB triple. Keeping this as a small value type (rather than
// image/color.Color) avoids pulling in a rasterization dependency that
// qterm, unlike go-headless-term, never needs — the grid is read by the
// shell-integration decoder, never painted to a framebuffer.
type Color struct {
	Named   NamedColor
	R, G, B uint8
	IsRGB   bool
}

// NamedColor enumerates the 16 ANSI colors plus the default fg/bg slots.
type NamedColor uint8

const (
	ColorDefaultFg NamedColor = iota
	ColorDefaultBg
	ColorBlack
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
	ColorBrightBlack
	ColorBrightRed
	ColorBrightGreen
	ColorBrightYellow
	ColorBrightBlue
	ColorBrightMagenta
	ColorBrightCyan
	ColorBrightWhite
)

// DefaultFg and DefaultBg are the zero-value colors cells start with.
var (
	DefaultFg = Color{Named: ColorDefaultFg}
	DefaultBg = Color{Named: ColorDefaultBg}
)

// RGB builds an explicit RGB color.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, IsRGB: true}
}

// Equal reports whether two colors resolve to the same value.
func (c Color) Equal(o Color) bool {
	if c.IsRGB != o.IsRGB {
		return false
	}
	if c.IsRGB {
		return c.R == o.R && c.G == o.G && c.B == o.B
	}
	return c.Named == o.Named
}

// Cell is one grid position: a codepoint, an optional zero-width
// continuation tail (combining marks, variation selectors), foreground and
// background color, and the shell/integration flag bitsets.
//
// Invariant: a cell flagged FlagWideChar at column c implies the cell at
// c+1 is flagged FlagWideCharSpacer (or, if the wide char wrapped to a new
// row, the previous row's last cell is flagged FlagLeadingWideCharSpacer).
type Cell struct {
	Codepoint       rune
	ZeroWidthTail   []rune
	Fg              Color
	Bg              Color
	ShellFlags      ShellFlags
	IntegrationFlags IntegrationFlags
}

// BlankCell returns a cell holding a space with default colors and no flags.
func BlankCell() Cell {
	return Cell{Codepoint: ' ', Fg: DefaultFg, Bg: DefaultBg}
}

// Reset clears the cell back to BlankCell, preserving nothing.
func (c *Cell) Reset() {
	*c = BlankCell()
}

// HasShellFlag reports whether the given shell flag is set.
func (c *Cell) HasShellFlag(f ShellFlags) bool { return c.ShellFlags&f != 0 }

// SetShellFlag sets the given shell flag.
func (c *Cell) SetShellFlag(f ShellFlags) { c.ShellFlags |= f }

// ClearShellFlag clears the given shell flag.
func (c *Cell) ClearShellFlag(f ShellFlags) { c.ShellFlags &^= f }

// HasIntegrationFlag reports whether the given integration flag is set.
func (c *Cell) HasIntegrationFlag(f IntegrationFlags) bool {
	return c.IntegrationFlags&f != 0
}

// IsWide reports whether this cell holds the first column of a wide glyph.
func (c *Cell) IsWide() bool { return c.HasShellFlag(FlagWideChar) }

// IsWideSpacer reports whether this cell is the spacer half of a wide glyph.
func (c *Cell) IsWideSpacer() bool {
	return c.HasShellFlag(FlagWideCharSpacer) || c.HasShellFlag(FlagLeadingWideCharSpacer)
}

// AppendZeroWidth attaches a zero-width codepoint to this cell as a
// continuation (combining accents, variation selectors, ZWJ sequences).
func (c *Cell) AppendZeroWidth(r rune) {
	c.ZeroWidthTail = append(c.ZeroWidthTail, r)
}

// Clone returns an independent copy of the cell, including its zero-width tail.
func (c Cell) Clone() Cell {
	if len(c.ZeroWidthTail) > 0 {
		tail := make([]rune, len(c.ZeroWidthTail))
		copy(tail, c.ZeroWidthTail)
		c.ZeroWidthTail = tail
	}
	return c
}
