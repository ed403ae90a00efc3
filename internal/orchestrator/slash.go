package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// SlashResult is what a slash command handler reports back to the state
// machine: text to print, and whether it requests an exit or a
// compaction pass.
type SlashResult struct {
	Output  string
	Exit    bool
	Compact bool
}

// SlashHandler implements one slash command.
type SlashHandler func(ctx context.Context, args string, o *Orchestrator) SlashResult

// Dispatcher is the slash command table the Orchestrator consults for
// both the interactive prompt and scripted input. NewDispatcher
// registers help, clear, compact, context and exit/quit;
// RegisterCLICommands adds the rest of the CLI surface.
type Dispatcher struct {
	handlers map[string]SlashHandler
	names    []string
}

// NewDispatcher returns a Dispatcher pre-populated with the built-in
// commands.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{handlers: make(map[string]SlashHandler)}

	d.Register("help", func(ctx context.Context, args string, o *Orchestrator) SlashResult {
		return SlashResult{Output: d.helpText()}
	})
	d.Register("clear", func(ctx context.Context, args string, o *Orchestrator) SlashResult {
		o.Runner().Clear()
		return SlashResult{Output: "Conversation history cleared."}
	})
	d.Register("compact", func(ctx context.Context, args string, o *Orchestrator) SlashResult {
		return SlashResult{Compact: true}
	})
	d.Register("context", func(ctx context.Context, args string, o *Orchestrator) SlashResult {
		n := o.Runner().History().Len()
		return SlashResult{Output: fmt.Sprintf("Messages in history: %d", n)}
	})
	d.Register("quit", func(ctx context.Context, args string, o *Orchestrator) SlashResult {
		return SlashResult{Exit: true}
	})
	d.Register("exit", func(ctx context.Context, args string, o *Orchestrator) SlashResult {
		return SlashResult{Exit: true}
	})

	return d
}

// Register adds or replaces a command handler.
func (d *Dispatcher) Register(name string, h SlashHandler) {
	if _, exists := d.handlers[name]; !exists {
		d.names = append(d.names, name)
		sort.Strings(d.names)
	}
	d.handlers[name] = h
}

// Dispatch parses a leading-slash line into a command name and
// argument string, and runs the matching handler. Unknown commands
// produce an Output describing the failure rather than an error, since
// a typo in a slash command shouldn't abort a scripted run.
func (d *Dispatcher) Dispatch(ctx context.Context, line string, o *Orchestrator) SlashResult {
	body := strings.TrimPrefix(line, "/")
	name, args, _ := strings.Cut(body, " ")
	name = strings.ToLower(strings.TrimSpace(name))

	h, ok := d.handlers[name]
	if !ok {
		return SlashResult{Output: fmt.Sprintf("Unknown command: /%s", name)}
	}
	return h(ctx, strings.TrimSpace(args), o)
}

func (d *Dispatcher) helpText() string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range d.names {
		b.WriteString("  /" + name + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
