package vt

// Charset selects a character-set variant for a G0-G3 slot.
type Charset int

const (
	CharsetASCII Charset = iota
	CharsetLineDrawing
	CharsetUK
)

// Point is a (line, column) grid coordinate, 0-based.
type Point struct {
	Line   int
	Column int
}

// Cursor tracks position, the template cell applied to newly written
// characters, the four charset slots, and the deferred-wrap flag that
// implements VT100's "last column" wrap-on-next-write behavior.
type Cursor struct {
	Line            int
	Column          int
	Template        Cell
	Charsets        [4]Charset
	ActiveCharset   int
	InputNeedsWrap  bool
}

// NewCursor returns a cursor at the origin with a blank template cell.
func NewCursor() Cursor {
	return Cursor{Template: BlankCell()}
}

// SavedCursor is the snapshot taken by DECSC / restored by DECRC, and the
// one kept per-grid across alternate-screen switches.
type SavedCursor struct {
	Line           int
	Column         int
	Template       Cell
	Charsets       [4]Charset
	ActiveCharset  int
	OriginMode     bool
}

// Save captures the cursor's restorable state (position, template,
// charsets) plus the origin-mode flag, which travels with saved cursors
// per ECMA-48.
func (c Cursor) Save(originMode bool) SavedCursor {
	return SavedCursor{
		Line:          c.Line,
		Column:        c.Column,
		Template:      c.Template,
		Charsets:      c.Charsets,
		ActiveCharset: c.ActiveCharset,
		OriginMode:    originMode,
	}
}

// Restore applies a saved cursor snapshot back onto c, returning the
// origin-mode flag that was saved alongside it.
func (c *Cursor) Restore(s SavedCursor) bool {
	c.Line = s.Line
	c.Column = s.Column
	c.Template = s.Template
	c.Charsets = s.Charsets
	c.ActiveCharset = s.ActiveCharset
	return s.OriginMode
}
