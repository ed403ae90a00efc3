package vt

import "unicode/utf8"

// parserState is one node of the VT500-series escape-sequence state
// machine (Paul Williams' state diagram), hand-written directly against
// ECMA-48/VT100 rather than imported: qterm has no dependency on an
// importable standalone VT parser that isn't gated behind a private
// replace directive, so this is the one piece of CORE-A built on the
// standard library alone.
type parserState int

const (
	stateGround parserState = iota
	stateEscape
	stateEscapeIntermediate
	stateCSIEntry
	stateCSIParam
	stateCSIIntermediate
	stateCSIIgnore
	stateOSCString
	stateDCSEntry
	stateDCSParam
	stateDCSIntermediate
	stateDCSPassthrough
	stateDCSIgnore
)

const (
	maxCSIParams       = 32
	maxIntermediates   = 8
	maxOSCParamLen     = 1 << 20
	maxOSCParams       = 32
)

// Parser turns a byte stream (raw PTY output) into calls on a Handler. It
// keeps just enough state to span Advance calls at arbitrary byte
// boundaries, including a partial UTF-8 sequence left over from the
// previous write.
type Parser struct {
	state parserState

	params        []int
	curParam      int
	paramStarted  bool
	intermediates []byte
	private       bool

	oscParams  [][]byte
	oscCur     []byte

	utf8Buf [4]byte
	utf8Len int

	dcsParams        []int
	dcsIntermediates []byte

	// pendingTerm records which string-type sequence (OSC or DCS) was
	// in progress when an ESC byte was seen, so escapeByte can tell a
	// genuine ST (ESC \) terminator from an ESC that aborts the string
	// and starts a fresh escape sequence.
	pendingTerm byte
}

// NewParser returns a parser positioned in the ground state.
func NewParser() *Parser {
	return &Parser{state: stateGround}
}

// Advance feeds a chunk of bytes through the state machine, invoking h
// for every completed action. It is safe to call repeatedly with
// successive chunks of a stream.
func (p *Parser) Advance(h Handler, data []byte) {
	for i := 0; i < len(data); i++ {
		b := data[i]
		if p.state == stateGround && b >= 0x20 && b != 0x7f {
			// Fast path: accumulate a UTF-8 rune directly, avoiding a
			// state transition per byte for the common case of plain text.
			n := p.feedUTF8(h, data[i:])
			i += n - 1
			continue
		}
		p.step(h, b)
	}
}

// feedUTF8 decodes one rune starting at buf[0] (continuing any partial
// sequence buffered from a prior Advance call) and prints it. It returns
// the number of bytes of buf consumed.
func (p *Parser) feedUTF8(h Handler, buf []byte) int {
	if p.utf8Len > 0 {
		n := copy(p.utf8Buf[p.utf8Len:], buf)
		full := p.utf8Buf[:p.utf8Len+n]
		r, size := utf8.DecodeRune(full)
		if r == utf8.RuneError && size <= p.utf8Len {
			p.utf8Len = 0
			h.Print(utf8.RuneError)
			return 1
		}
		if size > len(full) {
			p.utf8Len = len(full)
			copy(p.utf8Buf[:], full)
			return n
		}
		p.utf8Len = 0
		h.Print(r)
		return size - (len(full) - n)
	}

	r, size := utf8.DecodeRune(buf)
	if r == utf8.RuneError && size == 1 && !utf8.FullRune(buf) {
		p.utf8Len = copy(p.utf8Buf[:], buf)
		return len(buf)
	}
	h.Print(r)
	return size
}

func (p *Parser) step(h Handler, b byte) {
	switch p.state {
	case stateGround:
		p.groundByte(h, b)
	case stateEscape:
		p.escapeByte(h, b)
	case stateEscapeIntermediate:
		p.escapeIntermediateByte(h, b)
	case stateCSIEntry:
		p.csiEntryByte(h, b)
	case stateCSIParam:
		p.csiParamByte(h, b)
	case stateCSIIntermediate:
		p.csiIntermediateByte(h, b)
	case stateCSIIgnore:
		p.csiIgnoreByte(b)
	case stateOSCString:
		p.oscByte(h, b)
	case stateDCSEntry:
		p.dcsEntryByte(b)
	case stateDCSParam:
		p.dcsParamByte(b)
	case stateDCSIntermediate:
		p.dcsIntermediateByte(b)
	case stateDCSPassthrough:
		p.dcsPassthroughByte(h, b)
	case stateDCSIgnore:
		p.dcsIgnoreByte(b)
	}
}

func (p *Parser) groundByte(h Handler, b byte) {
	switch {
	case b == 0x1b:
		p.enterEscape()
	case b < 0x20 || b == 0x7f:
		h.Execute(b)
	default:
		h.Print(rune(b))
	}
}

func (p *Parser) enterEscape() {
	p.state = stateEscape
	p.intermediates = p.intermediates[:0]
	p.private = false
}

func (p *Parser) escapeByte(h Handler, b byte) {
	if p.pendingTerm != 0 {
		term := p.pendingTerm
		p.pendingTerm = 0
		if b == '\\' {
			switch term {
			case 'O':
				p.finishOSCParam()
				h.OSCDispatch(p.oscParams)
			case 'D':
				h.DCSUnhook()
			}
			p.state = stateGround
			return
		}
		// Not a real ST: the string was aborted. Fall through and
		// process b as the start of a fresh escape sequence.
	}
	switch {
	case b == '[':
		p.enterCSIEntry()
	case b == ']':
		p.enterOSC()
	case b == 'P':
		p.enterDCSEntry()
	case b == 'X' || b == '^' || b == '_':
		// SOS/PM/APC — consumed and discarded, same shape as DCS-ignore.
		p.state = stateDCSIgnore
	case b >= 0x20 && b <= 0x2f:
		p.intermediates = append(p.intermediates, b)
		p.state = stateEscapeIntermediate
	case b < 0x20:
		h.Execute(b)
	default:
		h.ESCDispatch(p.intermediates, b)
		p.state = stateGround
	}
}

func (p *Parser) escapeIntermediateByte(h Handler, b byte) {
	switch {
	case b >= 0x20 && b <= 0x2f:
		if len(p.intermediates) < maxIntermediates {
			p.intermediates = append(p.intermediates, b)
		}
	case b < 0x20:
		h.Execute(b)
	default:
		h.ESCDispatch(p.intermediates, b)
		p.state = stateGround
	}
}

func (p *Parser) enterCSIEntry() {
	p.state = stateCSIEntry
	p.params = p.params[:0]
	p.intermediates = p.intermediates[:0]
	p.curParam = 0
	p.paramStarted = false
	p.private = false
}

func (p *Parser) csiEntryByte(h Handler, b byte) {
	switch {
	case b == '?' || b == '<' || b == '=' || b == '>':
		p.private = true
		p.state = stateCSIParam
	case b >= '0' && b <= '9':
		p.curParam = int(b - '0')
		p.paramStarted = true
		p.state = stateCSIParam
	case b == ';':
		p.pushParam()
		p.state = stateCSIParam
	case b >= 0x20 && b <= 0x2f:
		p.intermediates = append(p.intermediates, b)
		p.state = stateCSIIntermediate
	case b < 0x20:
		h.Execute(b)
	case b >= 0x40 && b <= 0x7e:
		p.pushParam()
		h.CSIDispatch(p.params, p.intermediates, b, p.private)
		p.state = stateGround
	default:
		p.state = stateCSIIgnore
	}
}

func (p *Parser) csiParamByte(h Handler, b byte) {
	switch {
	case b >= '0' && b <= '9':
		p.paramStarted = true
		p.curParam = p.curParam*10 + int(b-'0')
		if p.curParam > 1<<20 {
			p.curParam = 1 << 20
		}
	case b == ';':
		p.pushParam()
	case b >= 0x20 && b <= 0x2f:
		p.intermediates = append(p.intermediates, b)
		p.state = stateCSIIntermediate
	case b < 0x20:
		h.Execute(b)
	case b >= 0x40 && b <= 0x7e:
		p.pushParam()
		h.CSIDispatch(p.params, p.intermediates, b, p.private)
		p.state = stateGround
	default:
		p.state = stateCSIIgnore
	}
}

func (p *Parser) csiIntermediateByte(h Handler, b byte) {
	switch {
	case b >= 0x20 && b <= 0x2f:
		if len(p.intermediates) < maxIntermediates {
			p.intermediates = append(p.intermediates, b)
		}
	case b < 0x20:
		h.Execute(b)
	case b >= 0x40 && b <= 0x7e:
		p.pushParam()
		h.CSIDispatch(p.params, p.intermediates, b, p.private)
		p.state = stateGround
	default:
		p.state = stateCSIIgnore
	}
}

func (p *Parser) csiIgnoreByte(b byte) {
	if b >= 0x40 && b <= 0x7e {
		p.state = stateGround
	}
}

func (p *Parser) pushParam() {
	if len(p.params) >= maxCSIParams {
		return
	}
	if !p.paramStarted && len(p.params) == 0 {
		// No digits at all and nothing pending: an empty param list,
		// e.g. bare CSI 'm'. Leave params empty; callers treat missing
		// params as their documented default.
		return
	}
	p.params = append(p.params, p.curParam)
	p.curParam = 0
	p.paramStarted = false
}

func (p *Parser) enterOSC() {
	p.state = stateOSCString
	p.oscParams = p.oscParams[:0]
	p.oscCur = p.oscCur[:0]
}

func (p *Parser) oscByte(h Handler, b byte) {
	switch b {
	case 0x07: // BEL terminator
		p.finishOSCParam()
		h.OSCDispatch(p.oscParams)
		p.state = stateGround
	case 0x1b:
		// Tentatively ST (ESC \); the next byte must confirm it.
		p.pendingTerm = 'O'
		p.state = stateEscape
	case ';':
		p.finishOSCParam()
	default:
		if len(p.oscCur) < maxOSCParamLen {
			p.oscCur = append(p.oscCur, b)
		}
	}
}

func (p *Parser) finishOSCParam() {
	if len(p.oscParams) < maxOSCParams {
		cp := make([]byte, len(p.oscCur))
		copy(cp, p.oscCur)
		p.oscParams = append(p.oscParams, cp)
	}
	p.oscCur = p.oscCur[:0]
}

func (p *Parser) enterDCSEntry() {
	p.state = stateDCSEntry
	p.dcsParams = p.dcsParams[:0]
	p.dcsIntermediates = p.dcsIntermediates[:0]
	p.curParam = 0
	p.paramStarted = false
	p.private = false
}

func (p *Parser) dcsEntryByte(b byte) {
	switch {
	case b >= '0' && b <= '9':
		p.curParam = int(b - '0')
		p.paramStarted = true
		p.state = stateDCSParam
	case b == ';':
		p.pushDCSParam()
		p.state = stateDCSParam
	case b >= 0x20 && b <= 0x2f:
		p.dcsIntermediates = append(p.dcsIntermediates, b)
		p.state = stateDCSIntermediate
	case b >= 0x40 && b <= 0x7e:
		p.pushDCSParam()
		p.state = stateDCSPassthrough
	default:
		p.state = stateDCSIgnore
	}
}

func (p *Parser) dcsParamByte(b byte) {
	switch {
	case b >= '0' && b <= '9':
		p.curParam = p.curParam*10 + int(b-'0')
	case b == ';':
		p.pushDCSParam()
	case b >= 0x40 && b <= 0x7e:
		p.pushDCSParam()
		p.state = stateDCSPassthrough
	default:
		p.state = stateDCSIgnore
	}
}

func (p *Parser) dcsIntermediateByte(b byte) {
	switch {
	case b >= 0x20 && b <= 0x2f:
		p.dcsIntermediates = append(p.dcsIntermediates, b)
	case b >= 0x40 && b <= 0x7e:
		p.state = stateDCSPassthrough
	default:
		p.state = stateDCSIgnore
	}
}

func (p *Parser) pushDCSParam() {
	if len(p.dcsParams) < maxCSIParams {
		p.dcsParams = append(p.dcsParams, p.curParam)
	}
	p.curParam = 0
	p.paramStarted = false
}

func (p *Parser) dcsPassthroughByte(h Handler, b byte) {
	if b == 0x1b {
		p.pendingTerm = 'D'
		p.state = stateEscape
		return
	}
	h.DCSPut(b)
}

func (p *Parser) dcsIgnoreByte(b byte) {
	if b == 0x1b {
		p.state = stateEscape
	}
}
