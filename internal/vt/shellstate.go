package vt

import (
	"bytes"
	"os"
	"strconv"
)

// CommandState is the prompt/command lifecycle state machine driven by
// the private OSC-697 shell-integration verbs.
//
//	Idle ──StartPrompt──▶ InPrompt ──EndPrompt──▶ ReadyForCmd
//	ReadyForCmd ──NewCmd──▶ Editing (cmd_cursor set, preexec=false)
//	Editing ──PreExec──▶ Executing (command text captured)
//	Executing ──StartPrompt──▶ InPrompt (CommandComplete, implicitly)
type CommandState int

const (
	StateIdle CommandState = iota
	StateInPrompt
	StateReadyForCmd
	StateEditing
	StateExecuting
)

// ShellContext is the per-session identity reported by shell-integration
// verbs: pid/tty/shell/cwd/username/etc. Fields are pointers so "never
// reported" is distinguishable from "reported as empty".
type ShellContext struct {
	PID        *int
	TTY        *string
	Shell      *string
	ShellPath  *string
	WSLDistro  *string
	Dir        *string
	SessionID  *string
	Username   *string
}

// delayedEvent is one queued EndPrompt/NewCmd call, held back on Windows
// until FlushDelayedEvents runs them in the fixed EndPrompt-then-NewCmd
// order required by spec (conhost reorders the two as emitted).
type delayedEvent struct {
	isNewCmd  bool
	sessionID string
}

// ShellState decodes the OSC-697 verb stream into CommandState transitions
// and exposes the current command's starting grid coordinate (cmd_cursor)
// for buffer extraction. One ShellState is owned by exactly one Term.
type ShellState struct {
	term *Term

	state        CommandState
	hasSeenPrompt bool
	preexec      bool
	cmdCursor    *Point
	commandText  string

	context ShellContext

	oscLock string

	suggestionColors map[string]Color
	activeShellKey   string

	logLevel string

	windowsDelayEndPrompt bool
	delayedEvents         []delayedEvent

	promptOffsetWorkaround int
}

// NewShellState returns a ShellState bound to term, with the
// Q_PROMPT_OFFSET_WORKAROUND environment override (if set) pre-parsed.
func NewShellState(term *Term) *ShellState {
	s := &ShellState{
		term:             term,
		suggestionColors: make(map[string]Color),
	}
	if v := os.Getenv("Q_PROMPT_OFFSET_WORKAROUND"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.promptOffsetWorkaround = n
		}
	}
	return s
}

// State returns the current lifecycle state.
func (s *ShellState) State() CommandState { return s.state }

// InPrompt reports whether cells currently being written should be
// flagged IN_PROMPT (i.e. we are between StartPrompt and EndPrompt).
func (s *ShellState) InPrompt() bool { return s.state == StateInPrompt }

// CmdCursor returns the grid coordinate where the current command began,
// or nil if no NewCmd has fired since the last prompt.
func (s *ShellState) CmdCursor() *Point { return s.cmdCursor }

// CommandText returns the command line captured at PreExec.
func (s *ShellState) CommandText() string { return s.commandText }

// SetWindowsDelayEndPrompt toggles the Windows conhost workaround: when
// enabled, EndPrompt and NewCmd are queued instead of applied
// immediately, to be replayed in order by FlushDelayedEvents.
func (s *ShellState) SetWindowsDelayEndPrompt(on bool) {
	s.windowsDelayEndPrompt = on
}

// FlushDelayedEvents drains the queued EndPrompt/NewCmd events in the
// fixed order spec.md's Open Question 3 resolves: EndPrompt before
// NewCmd, regardless of the order conhost actually emitted them in.
func (s *ShellState) FlushDelayedEvents() {
	var hadEndPrompt bool
	var newCmdSession string
	var hadNewCmd bool
	for _, ev := range s.delayedEvents {
		if ev.isNewCmd {
			hadNewCmd = true
			newCmdSession = ev.sessionID
		} else {
			hadEndPrompt = true
		}
	}
	s.delayedEvents = s.delayedEvents[:0]
	if hadEndPrompt {
		s.applyEndPrompt()
	}
	if hadNewCmd {
		s.applyNewCmd(newCmdSession)
	}
}

// HandleOSC decodes one OSC-697 payload: fields is the verb token,
// further split on '=' for verbs that carry a value.
func (s *ShellState) HandleOSC(fields [][]byte) {
	if len(fields) == 0 {
		return
	}
	verb, value, _ := bytesCutByte(fields[0], '=')

	if v := string(verb); s.oscLock != "" && v != "OscUnlock" && v != "osc_unlock" {
		return
	}

	switch string(verb) {
	case "StartPrompt", "start_prompt":
		s.startPrompt()
	case "EndPrompt", "end_prompt":
		if s.windowsDelayEndPrompt {
			s.delayedEvents = append(s.delayedEvents, delayedEvent{isNewCmd: false})
			return
		}
		s.applyEndPrompt()
	case "NewCmd", "new_cmd":
		sid := string(value)
		if s.windowsDelayEndPrompt {
			s.delayedEvents = append(s.delayedEvents, delayedEvent{isNewCmd: true, sessionID: sid})
			return
		}
		s.applyNewCmd(sid)
	case "PreExec", "pre_exec":
		s.preExec()
	case "Dir", "dir":
		v := string(value)
		s.context.Dir = &v
	case "Shell", "shell":
		v := string(value)
		s.context.Shell = &v
	case "ShellPath", "shell_path":
		v := string(value)
		s.context.ShellPath = &v
	case "Pid", "pid":
		if n, err := strconv.Atoi(string(value)); err == nil {
			s.context.PID = &n
		}
	case "Tty", "tty":
		v := string(value)
		s.context.TTY = &v
	case "Username", "username":
		v := string(value)
		s.context.Username = &v
	case "WslDistro", "wsl_distro":
		v := string(value)
		s.context.WSLDistro = &v
	case "ExitCode", "exit_code":
		// Recorded for observers (the orchestrator's prompt decoder);
		// ShellState itself has no subscriber mechanism, so this is a
		// deliberate no-op beyond the state transition already implied
		// by reaching a new prompt.
	case "OscLock", "osc_lock":
		if !sessionMismatch(s.context.SessionID, string(value)) {
			s.oscLock = string(value)
		}
	case "OscUnlock", "osc_unlock":
		if string(value) == s.oscLock {
			s.oscLock = ""
		}
	case "Log", "log":
		s.logLevel = string(value)
	default:
		s.handleSuggestionColorVerb(string(verb), value)
	}
}

func (s *ShellState) startPrompt() {
	s.state = StateInPrompt
	s.hasSeenPrompt = true
	s.cmdCursor = nil
}

func (s *ShellState) applyEndPrompt() {
	if s.state == StateInPrompt {
		s.state = StateReadyForCmd
	}
}

func (s *ShellState) applyNewCmd(sessionID string) {
	if sessionID != "" {
		s.context.SessionID = &sessionID
	}
	c := s.term.Cursor()
	col := c.Column - s.promptOffsetWorkaround
	// Open Question 1: no clamping is applied here by design — a large
	// workaround value can drive col negative, matching the documented
	// scroll_up_relative bug this mirrors rather than papering over it.
	s.cmdCursor = &Point{Line: c.Line, Column: col}
	s.preexec = false
	s.state = StateEditing
}

func (s *ShellState) preExec() {
	buf, _ := s.term.CurrentBuffer()
	s.commandText = buf
	s.preexec = true
	s.state = StateExecuting
}

// handleSuggestionColorVerb recognizes the per-shell "<shell>_suggestion_color"
// verb family (fish_suggestion_color, zsh_suggestion_color, nu_suggestion_color)
// plus a user override, storing the parsed color keyed by shell name.
func (s *ShellState) handleSuggestionColorVerb(verb string, value []byte) {
	const suffix = "_suggestion_color"
	if len(verb) <= len(suffix) || verb[len(verb)-len(suffix):] != suffix {
		return
	}
	shellKey := verb[:len(verb)-len(suffix)]
	if c, ok := parseOSCColor(value); ok {
		s.suggestionColors[shellKey] = c
	}
}

// MatchesSuggestionColor reports whether fg/bg matches the configured
// suggestion color for the currently-identified shell (or the "override"
// key, which always takes precedence when present).
func (s *ShellState) MatchesSuggestionColor(fg Color) bool {
	if c, ok := s.suggestionColors["override"]; ok && fg.Equal(c) {
		return true
	}
	shell := "default"
	if s.context.Shell != nil {
		shell = *s.context.Shell
	}
	c, ok := s.suggestionColors[shell]
	return ok && fg.Equal(c)
}

func bytesCutByte(b []byte, sep byte) (before, after []byte, found bool) {
	i := bytes.IndexByte(b, sep)
	if i < 0 {
		return b, nil, false
	}
	return b[:i], b[i+1:], true
}

func sessionMismatch(current *string, lock string) bool {
	if current == nil {
		return true
	}
	return *current != lock
}
