package vt

// Handler receives parsed terminal actions from Parser.Advance. Term
// implements Handler; tests and alternate consumers (e.g. a headless
// transcript recorder) can supply their own.
type Handler interface {
	// Print writes a single printable rune at the cursor, advancing it.
	Print(r rune)

	// Execute handles a single C0/C1 control code (e.g. '\n', '\r', '\b').
	Execute(b byte)

	// CSIDispatch handles a completed CSI sequence: params, any
	// intermediate bytes, and the final byte that identifies it.
	CSIDispatch(params []int, intermediates []byte, final byte, private bool)

	// ESCDispatch handles a completed two-or-three-byte escape sequence
	// (not CSI/OSC/DCS), e.g. ESC c (RIS) or ESC 7 (DECSC).
	ESCDispatch(intermediates []byte, final byte)

	// OSCDispatch handles a complete OSC string, split on ';' into
	// parameters with the terminator (BEL or ST) already stripped.
	OSCDispatch(params [][]byte)

	// DCSHook/DCSPut/DCSUnhook handle Device Control String sequences.
	// qterm has no DCS consumer of its own; Term implements these as
	// no-ops but the hooks exist so a future Sixel/tmux-passthrough
	// handler can be layered in without changing the parser.
	DCSHook(params []int, intermediates []byte, final byte)
	DCSPut(b byte)
	DCSUnhook()
}
