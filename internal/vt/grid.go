package vt

// Grid is a fixed-width, fixed-height matrix of cells plus a scrollback
// ring buffer of rows pushed off the top by scrolling. Rows are indexed
// 0..Rows-1 for the visible area; scrollback is addressed separately via
// ScrollbackLen/ScrollbackLine.
type Grid struct {
	cols, rows int
	lines      [][]Cell

	scrollback    [][]Cell
	maxScrollback int

	savedCursor  SavedCursor
	hasSavedCursor bool
}

// NewGrid allocates a blank grid of the given size with a scrollback cap.
func NewGrid(cols, rows, maxScrollback int) *Grid {
	g := &Grid{cols: cols, rows: rows, maxScrollback: maxScrollback}
	g.lines = make([][]Cell, rows)
	for i := range g.lines {
		g.lines[i] = newBlankRow(cols)
	}
	return g
}

func newBlankRow(cols int) []Cell {
	row := make([]Cell, cols)
	blank := BlankCell()
	for i := range row {
		row[i] = blank
	}
	return row
}

// Cols and Rows report the grid's current dimensions.
func (g *Grid) Cols() int { return g.cols }
func (g *Grid) Rows() int { return g.rows }

// Cell returns a pointer to the cell at (line, col) in the visible area.
// Callers must ensure line/col are in range.
func (g *Grid) Cell(line, col int) *Cell {
	return &g.lines[line][col]
}

// Row returns the visible row at the given line, 0..Rows-1.
func (g *Grid) Row(line int) []Cell {
	return g.lines[line]
}

// ScrollbackLen reports how many rows of scrollback are retained.
func (g *Grid) ScrollbackLen() int { return len(g.scrollback) }

// ScrollbackLine returns the scrollback row at the given index, 0 being
// the oldest retained row.
func (g *Grid) ScrollbackLine(i int) []Cell { return g.scrollback[i] }

// ScrollUp shifts the visible grid up by n rows within [top, bottom]
// (inclusive, 0-based), pushing rows off the top of the whole grid (top
// == 0) into scrollback, and filling the bottom with blank rows.
func (g *Grid) ScrollUp(top, bottom, n int) {
	if n <= 0 {
		return
	}
	region := g.lines[top : bottom+1]
	for i := 0; i < n && i < len(region); i++ {
		if top == 0 {
			g.pushScrollback(region[i])
		}
	}
	if n >= len(region) {
		for i := range region {
			region[i] = newBlankRow(g.cols)
		}
		return
	}
	copy(region, region[n:])
	for i := len(region) - n; i < len(region); i++ {
		region[i] = newBlankRow(g.cols)
	}
}

// ScrollDown shifts the visible grid down by n rows within [top, bottom],
// discarding rows pushed off the bottom and filling the top with blanks.
// Scrollback is untouched — only ScrollUp with top==0 ever populates it.
func (g *Grid) ScrollDown(top, bottom, n int) {
	if n <= 0 {
		return
	}
	region := g.lines[top : bottom+1]
	if n >= len(region) {
		for i := range region {
			region[i] = newBlankRow(g.cols)
		}
		return
	}
	copy(region[n:], region[:len(region)-n])
	for i := 0; i < n; i++ {
		region[i] = newBlankRow(g.cols)
	}
}

func (g *Grid) pushScrollback(row []Cell) {
	cp := make([]Cell, len(row))
	for i, c := range row {
		cp[i] = c.Clone()
	}
	g.scrollback = append(g.scrollback, cp)
	if g.maxScrollback > 0 && len(g.scrollback) > g.maxScrollback {
		g.scrollback = g.scrollback[len(g.scrollback)-g.maxScrollback:]
	}
}

// Clear blanks every visible row without touching scrollback.
func (g *Grid) Clear() {
	for i := range g.lines {
		g.lines[i] = newBlankRow(g.cols)
	}
}

// ClearRow blanks a single visible row.
func (g *Grid) ClearRow(line int) {
	g.lines[line] = newBlankRow(g.cols)
}

// Resize reflows the grid to newCols/newRows. Rows are preserved top-down;
// columns beyond newCols are truncated, new columns are blank-padded.
// Excess rows beyond newRows are pushed into scrollback (if line 0 of the
// grid is at the top, matching ScrollUp's convention); missing rows are
// pulled back out of scrollback when growing, falling back to blank rows
// once scrollback is exhausted.
func (g *Grid) Resize(newCols, newRows int) {
	if newCols == g.cols && newRows == g.rows {
		return
	}
	reflowed := make([][]Cell, 0, newRows)
	if newRows < g.rows {
		overflow := g.rows - newRows
		for i := 0; i < overflow; i++ {
			g.pushScrollback(g.lines[i])
		}
		reflowed = append(reflowed, g.lines[overflow:]...)
	} else {
		need := newRows - g.rows
		pulled := 0
		for pulled < need && len(g.scrollback) > 0 {
			last := g.scrollback[len(g.scrollback)-1]
			g.scrollback = g.scrollback[:len(g.scrollback)-1]
			reflowed = append(reflowed, last)
			pulled++
		}
		// pulled rows came out newest-first; reverse them back to order.
		for i, j := 0, len(reflowed)-1; i < j; i, j = i+1, j-1 {
			reflowed[i], reflowed[j] = reflowed[j], reflowed[i]
		}
		reflowed = append(reflowed, g.lines...)
		for pulled < need {
			reflowed = append([][]Cell{newBlankRow(g.cols)}, reflowed...)
			pulled++
		}
	}

	for i, row := range reflowed {
		reflowed[i] = resizeRow(row, newCols)
	}

	g.lines = reflowed
	g.cols = newCols
	g.rows = newRows
}

func resizeRow(row []Cell, newCols int) []Cell {
	if len(row) == newCols {
		return row
	}
	out := make([]Cell, newCols)
	blank := BlankCell()
	for i := range out {
		if i < len(row) {
			out[i] = row[i]
		} else {
			out[i] = blank
		}
	}
	return out
}
