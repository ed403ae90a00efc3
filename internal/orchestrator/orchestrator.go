// Package orchestrator drives the outer turn-taking loop that sits above
// the agentic tool-use loop in internal/conversation: prompting for the
// next input, dispatching slash commands, injecting per-turn context, and
// deciding when to compact history before handing a message to the model.
//
// internal/conversation.Loop already owns the inner cycle of
// validate-tools/execute-tools/stream-response for a single turn; this
// package models the cycle around it (prompt, handle input, compact,
// exit) the way the state machine driving a chat session would, so a
// non-interactive driver (print mode, scripted input) has the same
// explicit states as the interactive one instead of a bare for-loop.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/qterm/qterm/internal/contextmgr"
	"github.com/qterm/qterm/internal/conversation"
	"github.com/qterm/qterm/internal/hooks"
)

// ErrNoMoreInput signals that an InputSource is exhausted; the
// orchestrator treats this as a clean exit rather than a failure.
var ErrNoMoreInput = errors.New("orchestrator: no more input")

// InputSource supplies the next user input. Implementations may read a
// line from stdin, pop from a queue of scripted prompts, or return
// ErrNoMoreInput once exhausted.
type InputSource interface {
	NextInput(ctx context.Context) (string, error)
}

// ConversationRunner is the subset of *conversation.Loop the
// orchestrator drives. Defined as an interface so the state machine can
// be tested without a live API client.
type ConversationRunner interface {
	SendMessage(ctx context.Context, userMessage string) error
	Compact(ctx context.Context) error
	Clear()
	History() *conversation.History
}

// state names the outer states of the turn-taking loop, mirroring the
// ChatState enum this is grounded on: PromptUser, HandleInput,
// CompactHistory, Exit. ValidateTools/ExecuteTools/HandleResponseStream
// are collapsed into a single HandleInput->SendMessage call because
// conversation.Loop already runs that inner cycle to completion.
type state int

const (
	statePromptUser state = iota
	stateHandleInput
	stateCompactHistory
	stateExit
)

// Config wires the pieces the orchestrator coordinates.
type Config struct {
	Runner ConversationRunner
	Cwd    string

	// Hooks fires the lifecycle PreToolUse/PostToolUse/etc events; it is
	// already wired into Runner when Runner is a *conversation.Loop, so
	// Orchestrator only calls the Stop/SessionStart edges that live
	// outside a single SendMessage call.
	Hooks conversation.HookRunner

	// ContextHooks and ContextHookDefs implement the separate
	// context-injection hook system (ConversationStart/PerPrompt),
	// distinct from Hooks above.
	ContextHooks    *hooks.ContextHookRunner
	ContextHookDefs []hooks.ContextHookDef

	// ContextFiles, when non-nil, is consulted once per turn to collect
	// glob-matched files and fold them into the outgoing message.
	ContextFiles *contextmgr.ProfileConfig

	Slash *Dispatcher
	Out   io.Writer

	// MaxTurns bounds the number of user turns processed before forcing
	// an exit; 0 means unbounded.
	MaxTurns int
}

// Orchestrator runs Config.Runner through the PromptUser -> HandleInput
// -> CompactHistory -> Exit cycle.
type Orchestrator struct {
	cfg         Config
	turns       int
	startedOnce bool
	lastContext string // last injected context block, so an unchanged one isn't sent twice in a row
}

// New creates an Orchestrator from cfg, filling in a discard writer for
// Out and an empty dispatcher for Slash if left zero-valued.
func New(cfg Config) *Orchestrator {
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Slash == nil {
		cfg.Slash = NewDispatcher()
	}
	return &Orchestrator{cfg: cfg}
}

// Run drives the loop until source is exhausted, a slash command exits
// it, or ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, source InputSource) error {
	if err := o.fireConversationStart(ctx); err != nil {
		fmt.Fprintf(o.cfg.Out, "Warning: conversation-start hook error: %v\n", err)
	}

	st := statePromptUser
	var pendingInput string

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch st {
		case statePromptUser:
			if o.cfg.MaxTurns > 0 && o.turns >= o.cfg.MaxTurns {
				st = stateExit
				continue
			}
			input, err := source.NextInput(ctx)
			if errors.Is(err, ErrNoMoreInput) {
				st = stateExit
				continue
			}
			if err != nil {
				return err
			}
			pendingInput = input
			st = stateHandleInput

		case stateHandleInput:
			next, err := o.handleInput(ctx, pendingInput)
			if err != nil {
				return err
			}
			st = next

		case stateCompactHistory:
			if err := o.cfg.Runner.Compact(ctx); err != nil {
				fmt.Fprintf(o.cfg.Out, "Warning: compaction failed: %v\n", err)
			}
			st = statePromptUser

		case stateExit:
			if o.cfg.Hooks != nil {
				_ = o.cfg.Hooks.RunStop(ctx)
			}
			return nil
		}
	}
}

// handleInput classifies pendingInput as a slash command or a plain
// message, runs the PerPrompt context hooks and context-file injection
// for plain messages, and returns the next state.
func (o *Orchestrator) handleInput(ctx context.Context, input string) (state, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return statePromptUser, nil
	}

	if strings.HasPrefix(trimmed, "/") {
		result := o.cfg.Slash.Dispatch(ctx, trimmed, o)
		if result.Output != "" {
			fmt.Fprintln(o.cfg.Out, result.Output)
		}
		if result.Exit {
			return stateExit, nil
		}
		if result.Compact {
			return stateCompactHistory, nil
		}
		return statePromptUser, nil
	}

	// A leading "!" (shell passthrough) is forwarded as a plain message;
	// the Bash tool registered on the conversation's ToolExecutor is what
	// actually interprets it, the same as the interactive surface.
	message := o.injectContext(ctx, input)
	o.turns++
	if err := o.cfg.Runner.SendMessage(ctx, message); err != nil {
		return statePromptUser, fmt.Errorf("sending message: %w", err)
	}
	return statePromptUser, nil
}

// injectContext runs PerPrompt context hooks and glob-matched context
// file collection, folding any non-empty result into message as a
// leading block. A block identical to the last one injected is skipped
// to avoid re-sending unchanged file contents turn after turn.
func (o *Orchestrator) injectContext(ctx context.Context, message string) string {
	var blocks []string

	if o.cfg.ContextHooks != nil && len(o.cfg.ContextHookDefs) > 0 {
		results := o.cfg.ContextHooks.Run(ctx, o.cfg.ContextHookDefs, hooks.TriggerPerPrompt)
		for _, r := range results {
			if r.Output != "" {
				blocks = append(blocks, r.Output)
			}
		}
	}

	if o.cfg.ContextFiles != nil {
		collected, err := contextmgr.CollectContextFilesWithLimit(o.cfg.Cwd, *o.cfg.ContextFiles)
		if err == nil {
			if block := contextmgr.BuildContextBlock(collected); block != "" {
				blocks = append(blocks, block)
			}
		}
	}

	if len(blocks) == 0 {
		return message
	}
	combined := strings.Join(blocks, "\n\n")
	if combined == o.lastContext {
		return message
	}
	o.lastContext = combined
	return combined + "\n\n" + message
}

func (o *Orchestrator) fireConversationStart(ctx context.Context) error {
	if o.startedOnce {
		return nil
	}
	o.startedOnce = true
	if o.cfg.Hooks != nil {
		if err := o.cfg.Hooks.RunSessionStart(ctx); err != nil {
			return err
		}
	}
	if o.cfg.ContextHooks == nil || len(o.cfg.ContextHookDefs) == 0 {
		return nil
	}
	o.cfg.ContextHooks.Run(ctx, o.cfg.ContextHookDefs, hooks.TriggerConversationStart)
	return nil
}

// Runner exposes the underlying ConversationRunner to slash command
// handlers that need it (e.g. /clear, /compact, /context).
func (o *Orchestrator) Runner() ConversationRunner {
	return o.cfg.Runner
}
