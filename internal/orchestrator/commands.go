package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/qterm/qterm/internal/api"
	"github.com/qterm/qterm/internal/config"
	"github.com/qterm/qterm/internal/contextmgr"
	"github.com/qterm/qterm/internal/mcp"
	"github.com/qterm/qterm/internal/session"
)

// ToolInfo is the subset of *tools.Registry the CLI surface needs:
// looking up a schema for /tools schema, and checking whether a name
// is registered.
type ToolInfo interface {
	Schema(name string) (json.RawMessage, bool)
	HasTool(name string) bool
}

// CLIDeps bundles the infrastructure RegisterCLICommands wires onto a
// Dispatcher. Every field is optional; a command whose dependency is
// nil reports that the feature isn't available rather than panicking.
type CLIDeps struct {
	Tools       ToolInfo
	Permissions *config.ToolPermissionContext
	Sessions    *session.Store
	Session     *session.Session
	MCP         *mcp.Manager
	Context     *contextmgr.Manager
	Cwd         string
}

// RegisterCLICommands adds the external CLI surface on top of
// Dispatcher's base help/clear/compact/context/quit/exit commands:
// /profile, /tools, /prompts, /usage, /export, /import, /editor, /issue,
// and a /context that replaces the base one.
func RegisterCLICommands(d *Dispatcher, deps CLIDeps) {
	d.Register("tools", func(ctx context.Context, args string, o *Orchestrator) SlashResult {
		return handleTools(ctx, args, deps)
	})
	d.Register("profile", func(ctx context.Context, args string, o *Orchestrator) SlashResult {
		return handleProfile(ctx, args, deps)
	})
	d.Register("context", func(ctx context.Context, args string, o *Orchestrator) SlashResult {
		return handleContext(ctx, args, o, deps)
	})
	d.Register("prompts", func(ctx context.Context, args string, o *Orchestrator) SlashResult {
		return handlePrompts(ctx, args, deps)
	})
	d.Register("usage", func(ctx context.Context, args string, o *Orchestrator) SlashResult {
		return handleUsage(ctx, args, o)
	})
	d.Register("export", func(ctx context.Context, args string, o *Orchestrator) SlashResult {
		return handleExport(ctx, args, o, deps)
	})
	d.Register("import", func(ctx context.Context, args string, o *Orchestrator) SlashResult {
		return handleImport(ctx, args, o, deps)
	})
	d.Register("editor", func(ctx context.Context, args string, o *Orchestrator) SlashResult {
		return handleEditor(ctx, args, o)
	})
	d.Register("issue", func(ctx context.Context, args string, o *Orchestrator) SlashResult {
		return handleIssue(ctx, args, o)
	})
}

// handleTools implements /tools trust|untrust|trustall|reset|reset-single <name>|schema <name>|help.
func handleTools(ctx context.Context, args string, deps CLIDeps) SlashResult {
	if deps.Permissions == nil {
		return SlashResult{Output: "Tool permission context is not available in this session."}
	}
	sub, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	rest = strings.TrimSpace(rest)

	switch sub {
	case "", "help":
		return SlashResult{Output: strings.Join([]string{
			"/tools trust <name>         always allow a tool for this session",
			"/tools untrust <name>       always deny a tool for this session",
			"/tools trustall             switch to bypass-permissions mode",
			"/tools reset                clear all session trust/deny rules",
			"/tools reset-single <name>  clear rules naming just this tool",
			"/tools schema <name>        print a tool's JSON Schema",
		}, "\n")}

	case "trust":
		if rest == "" {
			return SlashResult{Output: "Usage: /tools trust <name>"}
		}
		deps.Permissions.AddRules("allow", "session", []string{rest})
		return SlashResult{Output: fmt.Sprintf("Tool %q will always be allowed this session.", rest)}

	case "untrust":
		if rest == "" {
			return SlashResult{Output: "Usage: /tools untrust <name>"}
		}
		deps.Permissions.AddRules("deny", "session", []string{rest})
		return SlashResult{Output: fmt.Sprintf("Tool %q will always be denied this session.", rest)}

	case "trustall":
		deps.Permissions.SetMode(config.ModeBypassPermissions)
		return SlashResult{Output: "Permission mode set to bypassPermissions: every tool call will run unprompted."}

	case "reset":
		for _, behavior := range []string{"allow", "deny", "ask"} {
			deps.Permissions.RemoveRules(behavior, "session", deps.Permissions.GetAllRules(behavior))
		}
		return SlashResult{Output: "Cleared all session-level tool trust rules."}

	case "reset-single":
		if rest == "" {
			return SlashResult{Output: "Usage: /tools reset-single <name>"}
		}
		for _, behavior := range []string{"allow", "deny", "ask"} {
			deps.Permissions.RemoveRules(behavior, "session", []string{rest})
		}
		return SlashResult{Output: fmt.Sprintf("Cleared session trust rules for %q.", rest)}

	case "schema":
		if rest == "" {
			return SlashResult{Output: "Usage: /tools schema <name>"}
		}
		if deps.Tools == nil {
			return SlashResult{Output: "Tool registry is not available in this session."}
		}
		schema, ok := deps.Tools.Schema(rest)
		if !ok {
			return SlashResult{Output: fmt.Sprintf("Unknown tool: %s", rest)}
		}
		return SlashResult{Output: string(schema)}

	default:
		return SlashResult{Output: fmt.Sprintf("Unknown /tools subcommand: %s (try /tools help)", sub)}
	}
}

// handleProfile implements /profile list|set|create|delete|rename|help.
func handleProfile(ctx context.Context, args string, deps CLIDeps) SlashResult {
	if deps.Context == nil {
		return SlashResult{Output: "Context profiles are not available in this session."}
	}
	sub, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	rest = strings.TrimSpace(rest)

	switch sub {
	case "", "list":
		var b strings.Builder
		for _, name := range deps.Context.ListProfiles() {
			marker := "  "
			if name == deps.Context.ActiveProfile {
				marker = "* "
			}
			fmt.Fprintf(&b, "%s%s\n", marker, name)
		}
		return SlashResult{Output: strings.TrimRight(b.String(), "\n")}

	case "set":
		if rest == "" {
			return SlashResult{Output: "Usage: /profile set <name>"}
		}
		if err := deps.Context.SetActiveProfile(rest); err != nil {
			return SlashResult{Output: err.Error()}
		}
		return SlashResult{Output: fmt.Sprintf("Active profile: %s", rest)}

	case "create":
		if rest == "" {
			return SlashResult{Output: "Usage: /profile create <name>"}
		}
		if err := deps.Context.CreateProfile(rest); err != nil {
			return SlashResult{Output: err.Error()}
		}
		return SlashResult{Output: fmt.Sprintf("Created profile: %s", rest)}

	case "delete":
		if rest == "" {
			return SlashResult{Output: "Usage: /profile delete <name>"}
		}
		if err := deps.Context.DeleteProfile(rest); err != nil {
			return SlashResult{Output: err.Error()}
		}
		return SlashResult{Output: fmt.Sprintf("Deleted profile: %s", rest)}

	case "rename":
		oldName, newName, ok := strings.Cut(rest, " ")
		if !ok || newName == "" {
			return SlashResult{Output: "Usage: /profile rename <old> <new>"}
		}
		if err := deps.Context.RenameProfile(oldName, strings.TrimSpace(newName)); err != nil {
			return SlashResult{Output: err.Error()}
		}
		return SlashResult{Output: fmt.Sprintf("Renamed profile %s -> %s", oldName, strings.TrimSpace(newName))}

	case "help":
		return SlashResult{Output: strings.Join([]string{
			"/profile list               show profiles, * marks the active one",
			"/profile set <name>         switch the active profile",
			"/profile create <name>      add a new empty profile",
			"/profile delete <name>      remove a profile (not the active one)",
			"/profile rename <old> <new> rename a profile",
		}, "\n")}

	default:
		return SlashResult{Output: fmt.Sprintf("Unknown /profile subcommand: %s (try /profile help)", sub)}
	}
}

// handleContext implements /context show [--expand] | add [--global] [--force] <paths> |
// rm [--global] <paths> | clear [--global]. Without a contextmgr.Manager
// it falls back to the base Dispatcher's plain message count.
func handleContext(ctx context.Context, args string, o *Orchestrator, deps CLIDeps) SlashResult {
	if deps.Context == nil {
		return SlashResult{Output: fmt.Sprintf("Messages in history: %d", o.Runner().History().Len())}
	}
	sub, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	rest = strings.TrimSpace(rest)

	global := false
	fields := strings.Fields(rest)
	var kept []string
	for _, f := range fields {
		if f == "--global" {
			global = true
			continue
		}
		if f == "--force" || f == "--expand" {
			continue // accepted, no behavioral difference for a glob-based path list
		}
		kept = append(kept, f)
	}
	rest = strings.Join(kept, " ")

	switch sub {
	case "", "show":
		eff := deps.Context.EffectiveConfig()
		if len(eff.Paths) == 0 {
			return SlashResult{Output: "No context file paths configured."}
		}
		return SlashResult{Output: "Context file patterns:\n  " + strings.Join(eff.Paths, "\n  ")}

	case "add":
		if rest == "" {
			return SlashResult{Output: "Usage: /context add [--global] <paths...>"}
		}
		paths := strings.Fields(rest)
		deps.Context.AddPaths(global, paths)
		return SlashResult{Output: fmt.Sprintf("Added %d context path pattern(s).", len(paths))}

	case "rm":
		if rest == "" {
			return SlashResult{Output: "Usage: /context rm [--global] <paths...>"}
		}
		paths := strings.Fields(rest)
		deps.Context.RemovePaths(global, paths)
		return SlashResult{Output: fmt.Sprintf("Removed %d context path pattern(s).", len(paths))}

	case "clear":
		deps.Context.ClearPaths(global)
		return SlashResult{Output: "Cleared context path patterns."}

	case "hooks":
		return SlashResult{Output: "Context hooks are configured via settings.json; nothing to change interactively."}

	default:
		return SlashResult{Output: fmt.Sprintf("Unknown /context subcommand: %s", sub)}
	}
}

// handlePrompts implements /prompts list [word] | get <name[/args]> | help.
func handlePrompts(ctx context.Context, args string, deps CLIDeps) SlashResult {
	if deps.MCP == nil {
		return SlashResult{Output: "No MCP servers are connected."}
	}
	sub, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	rest = strings.TrimSpace(rest)

	switch sub {
	case "", "list":
		refs := deps.MCP.ListPrompts(ctx)
		var b strings.Builder
		for _, r := range refs {
			if rest != "" && !strings.Contains(r.Prompt.Name, rest) {
				continue
			}
			fmt.Fprintf(&b, "%s/%s", r.Server, r.Prompt.Name)
			if r.Prompt.Description != "" {
				fmt.Fprintf(&b, " - %s", r.Prompt.Description)
			}
			b.WriteString("\n")
		}
		if b.Len() == 0 {
			return SlashResult{Output: "No prompts available."}
		}
		return SlashResult{Output: strings.TrimRight(b.String(), "\n")}

	case "get":
		if rest == "" {
			return SlashResult{Output: "Usage: /prompts get <name[/arg1=val1,arg2=val2]>"}
		}
		name, argStr, _ := strings.Cut(rest, " ")
		promptArgs := parsePromptArgs(argStr)
		result, err := deps.MCP.GetPrompt(ctx, name, promptArgs)
		if err != nil {
			return SlashResult{Output: err.Error()}
		}
		var b strings.Builder
		for _, msg := range result.Messages {
			fmt.Fprintf(&b, "[%s] %s\n", msg.Role, msg.Content.Text)
		}
		return SlashResult{Output: strings.TrimRight(b.String(), "\n")}

	case "help":
		return SlashResult{Output: strings.Join([]string{
			"/prompts list [word]           list prompt templates, optionally filtered",
			"/prompts get <name> [k=v,...]  render a prompt template",
		}, "\n")}

	default:
		return SlashResult{Output: fmt.Sprintf("Unknown /prompts subcommand: %s (try /prompts help)", sub)}
	}
}

// parsePromptArgs parses a "k=v,k2=v2" argument string into a map.
func parsePromptArgs(s string) map[string]string {
	if s == "" {
		return nil
	}
	args := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		args[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return args
}

// usageReporter is implemented by a ConversationRunner that also tracks
// token usage (*conversation.Loop does); a runner that doesn't simply
// can't back /usage.
type usageReporter interface {
	Usage() (last, total api.Usage)
}

// handleUsage implements /usage.
func handleUsage(ctx context.Context, args string, o *Orchestrator) SlashResult {
	ur, ok := o.Runner().(usageReporter)
	if !ok {
		return SlashResult{Output: "Usage tracking is not available in this session."}
	}
	last, total := ur.Usage()
	return SlashResult{Output: fmt.Sprintf(
		"Last turn:     %d input / %d output tokens\nSession total: %d input / %d output tokens",
		last.InputTokens, last.OutputTokens, total.InputTokens, total.OutputTokens,
	)}
}

// handleExport implements /export <path> [--force].
func handleExport(ctx context.Context, args string, o *Orchestrator, deps CLIDeps) SlashResult {
	path, force := parsePathFlag(args, "--force")
	if path == "" {
		return SlashResult{Output: "Usage: /export <path> [--force]"}
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return SlashResult{Output: fmt.Sprintf("%s already exists; use --force to overwrite.", path)}
		}
	}

	messages := o.Runner().History().Messages()
	data, err := marshalMessages(messages)
	if err != nil {
		return SlashResult{Output: fmt.Sprintf("Export failed: %v", err)}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return SlashResult{Output: fmt.Sprintf("Export failed: %v", err)}
	}
	return SlashResult{Output: fmt.Sprintf("Exported %d message(s) to %s", len(messages), path)}
}

// handleImport implements /import <path>.
func handleImport(ctx context.Context, args string, o *Orchestrator, deps CLIDeps) SlashResult {
	path := strings.TrimSpace(args)
	if path == "" {
		return SlashResult{Output: "Usage: /import <path>"}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return SlashResult{Output: fmt.Sprintf("Import failed: %v", err)}
	}
	messages, err := unmarshalMessages(data)
	if err != nil {
		return SlashResult{Output: fmt.Sprintf("Import failed: %v", err)}
	}
	o.Runner().History().SetMessages(messages)
	return SlashResult{Output: fmt.Sprintf("Imported %d message(s) from %s", len(messages), path)}
}

// handleEditor implements /editor [text]: compose a message in $EDITOR
// (falling back to vi), then send the result as the next user turn.
func handleEditor(ctx context.Context, args string, o *Orchestrator) SlashResult {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	f, err := os.CreateTemp("", "qterm-editor-*.md")
	if err != nil {
		return SlashResult{Output: fmt.Sprintf("Could not create scratch file: %v", err)}
	}
	path := f.Name()
	defer os.Remove(path)
	if args != "" {
		f.WriteString(args)
	}
	f.Close()

	cmd := exec.CommandContext(ctx, editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return SlashResult{Output: fmt.Sprintf("Editor exited with error: %v", err)}
	}

	composed, err := os.ReadFile(path)
	if err != nil {
		return SlashResult{Output: fmt.Sprintf("Could not read composed message: %v", err)}
	}
	text := strings.TrimSpace(string(composed))
	if text == "" {
		return SlashResult{Output: "Empty message, nothing sent."}
	}
	if err := o.Runner().SendMessage(ctx, text); err != nil {
		return SlashResult{Output: fmt.Sprintf("Sending message: %v", err)}
	}
	return SlashResult{}
}

// handleIssue implements /issue [text]: prints a prefilled bug-report
// template the user can paste into their tracker of choice.
func handleIssue(ctx context.Context, args string, o *Orchestrator) SlashResult {
	n := o.Runner().History().Len()
	var b strings.Builder
	b.WriteString("## Summary\n")
	if args != "" {
		b.WriteString(args + "\n")
	} else {
		b.WriteString("(describe the problem)\n")
	}
	fmt.Fprintf(&b, "\n## Session\nmessages in history: %d\n", n)
	return SlashResult{Output: b.String()}
}

func parsePathFlag(args, flag string) (path string, hasFlag bool) {
	fields := strings.Fields(args)
	var kept []string
	for _, f := range fields {
		if f == flag {
			hasFlag = true
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " "), hasFlag
}

// marshalMessages/unmarshalMessages give /export and /import a plain
// JSON array of api.Message, the same shape session.Session stores its
// Messages field as.
func marshalMessages(msgs []api.Message) ([]byte, error) {
	return json.MarshalIndent(msgs, "", "  ")
}

func unmarshalMessages(data []byte) ([]api.Message, error) {
	var msgs []api.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
