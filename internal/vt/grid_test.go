package vt

import "testing"

func TestGridScrollUpPushesScrollback(t *testing.T) {
	g := NewGrid(10, 3, 100)
	g.Cell(0, 0).Codepoint = 'a'
	g.Cell(1, 0).Codepoint = 'b'
	g.Cell(2, 0).Codepoint = 'c'

	g.ScrollUp(0, 2, 1)

	if g.ScrollbackLen() != 1 {
		t.Fatalf("scrollback len = %d, want 1", g.ScrollbackLen())
	}
	if g.ScrollbackLine(0)[0].Codepoint != 'a' {
		t.Fatalf("expected scrolled-off row to hold 'a'")
	}
	if g.Cell(0, 0).Codepoint != 'b' || g.Cell(1, 0).Codepoint != 'c' {
		t.Fatalf("rows did not shift up correctly")
	}
	if g.Cell(2, 0).Codepoint != ' ' {
		t.Fatalf("expected blank row at bottom after scroll")
	}
}

func TestGridResizeGrowPullsFromScrollback(t *testing.T) {
	g := NewGrid(10, 2, 100)
	g.Cell(0, 0).Codepoint = 'x'
	g.Cell(1, 0).Codepoint = 'y'
	g.ScrollUp(0, 1, 1) // pushes 'x' into scrollback, leaves 'y' then blank

	g.Resize(10, 3)
	if g.Rows() != 3 {
		t.Fatalf("rows = %d, want 3", g.Rows())
	}
	if g.Cell(0, 0).Codepoint != 'x' {
		t.Fatalf("expected resize-grow to pull 'x' back from scrollback, got %q", string(g.Cell(0, 0).Codepoint))
	}
}

func TestGridResizeShrinkPadsAndTruncatesColumns(t *testing.T) {
	g := NewGrid(5, 2, 100)
	g.Resize(3, 2)
	if g.Cols() != 3 {
		t.Fatalf("cols = %d, want 3", g.Cols())
	}
	g.Resize(8, 2)
	if g.Cols() != 8 {
		t.Fatalf("cols = %d, want 8", g.Cols())
	}
	if g.Cell(0, 7).Codepoint != ' ' {
		t.Fatalf("expected new columns to be blank-padded")
	}
}
