package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/qterm/qterm/internal/api"
	"github.com/qterm/qterm/internal/config"
)

// ToolExecutor executes tool calls and returns results.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, input []byte) (string, error)
	HasTool(name string) bool
}

// SchemaProvider is implemented by a ToolExecutor that can supply a
// tool's JSON Schema for ValidateTools to check a model-supplied
// ToolUse's arguments against before ExecuteTools ever runs it.
type SchemaProvider interface {
	Schema(name string) (json.RawMessage, bool)
}

// SuffixResolver is implemented by a ToolExecutor that can attempt the
// tool-manager's suffix-based name resolution (see internal/mcp's
// namespaced tool registry) for a bare name the model guessed.
type SuffixResolver interface {
	ResolveToolName(name string) (resolved string, ok bool)
}

// HookRunner fires lifecycle hooks at various points in the agentic loop.
// A nil HookRunner means no hooks are configured.
type HookRunner interface {
	RunPreToolUse(ctx context.Context, toolName string, input json.RawMessage) error
	RunPostToolUse(ctx context.Context, toolName string, input json.RawMessage, output string, isError bool) error
	RunUserPromptSubmit(ctx context.Context, message string) (HookSubmitResult, error)
	RunSessionStart(ctx context.Context) error
	RunStop(ctx context.Context) error
	RunPermissionRequest(ctx context.Context, toolName string, input json.RawMessage) error
}

// HookSubmitResult is the outcome of a UserPromptSubmit hook.
type HookSubmitResult struct {
	Block   bool   // true = reject the message
	Message string // possibly modified message
}

// Loop is the main agentic conversation loop.
type Loop struct {
	client         *api.Client
	history        *History
	system         []api.SystemBlock
	tools          []api.ToolDefinition
	toolExec       ToolExecutor
	handler        api.StreamHandler
	compactor      *Compactor
	onTurnComplete func(history *History)
	hooks          HookRunner // Phase 7: nil = no hooks
	fastMode       bool       // when true, sends speed:"fast" on eligible models
	contextMessage string     // <system-reminder> context prepended to messages
	lastUsage      api.Usage
	totalUsage     api.Usage
}

// LoopConfig configures the agentic loop.
type LoopConfig struct {
	Client         *api.Client
	System         []api.SystemBlock
	Tools          []api.ToolDefinition
	ToolExec       ToolExecutor
	Handler        api.StreamHandler
	History        *History               // if non-nil, resume from this history
	Compactor      *Compactor             // if non-nil, enables auto-compaction
	OnTurnComplete func(history *History)  // called after each API round-trip
	Hooks          HookRunner             // Phase 7: nil = no hooks
	ContextMessage string                 // <system-reminder> context prepended to messages
}

// NewLoop creates a new agentic conversation loop.
func NewLoop(cfg LoopConfig) *Loop {
	history := cfg.History
	if history == nil {
		history = NewHistory()
	}
	return &Loop{
		client:         cfg.Client,
		history:        history,
		system:         cfg.System,
		tools:          cfg.Tools,
		toolExec:       cfg.ToolExec,
		handler:        cfg.Handler,
		compactor:      cfg.Compactor,
		onTurnComplete: cfg.OnTurnComplete,
		hooks:          cfg.Hooks,
		contextMessage: cfg.ContextMessage,
	}
}

// History returns the loop's conversation history.
func (l *Loop) History() *History {
	return l.history
}

// SetHandler replaces the stream handler. This allows a caller to inject
// its own handler after the loop is created.
func (l *Loop) SetHandler(h api.StreamHandler) {
	l.handler = h
}

// SetModel changes the model used for subsequent API calls.
func (l *Loop) SetModel(model string) {
	l.client.SetModel(model)
}

// FastMode returns whether fast mode is enabled.
func (l *Loop) FastMode() bool {
	return l.fastMode
}

// SetFastMode enables or disables fast mode.
func (l *Loop) SetFastMode(on bool) {
	l.fastMode = on
}

// SetPermissionHandler replaces the permission handler on the tool executor.
// This is a no-op if the executor doesn't support it.
func (l *Loop) SetPermissionHandler(h interface{}) {
	type permSetter interface {
		SetPermissionHandler(h interface{})
	}
	if ps, ok := l.toolExec.(permSetter); ok {
		ps.SetPermissionHandler(h)
	}
}

// Usage returns the token usage of the most recently completed API call,
// and the cumulative usage across the life of the loop (session totals,
// the way /usage reports them).
func (l *Loop) Usage() (last, total api.Usage) {
	return l.lastUsage, l.totalUsage
}

// GetPermissionContext returns the session-level permission context from the
// tool executor, if it supports it. Returns nil otherwise.
func (l *Loop) GetPermissionContext() *config.ToolPermissionContext {
	type permCtxGetter interface {
		GetPermissionContext() *config.ToolPermissionContext
	}
	if pg, ok := l.toolExec.(permCtxGetter); ok {
		return pg.GetPermissionContext()
	}
	return nil
}

// SendMessage sends a user message and runs the agentic loop until the
// assistant produces a final text response (stop_reason = "end_turn").
func (l *Loop) SendMessage(ctx context.Context, userMessage string) error {
	// Phase 7: UserPromptSubmit hook.
	if l.hooks != nil {
		result, err := l.hooks.RunUserPromptSubmit(ctx, userMessage)
		if err != nil {
			return fmt.Errorf("UserPromptSubmit hook: %w", err)
		}
		if result.Block {
			return nil // hook rejected the message
		}
		userMessage = result.Message // hook may modify the message
	}
	l.history.AddUserMessage(userMessage)
	return l.run(ctx)
}

// Compact triggers manual context compaction.
func (l *Loop) Compact(ctx context.Context) error {
	if l.compactor == nil {
		return fmt.Errorf("compaction not configured")
	}
	return l.compactor.Compact(ctx, l.history)
}

// Clear resets the conversation history to empty, starting a fresh conversation.
func (l *Loop) Clear() {
	l.history.SetMessages(nil)
}

// SetOnTurnComplete replaces the turn-complete callback. This is used by
// /clear to point the callback at the new session after clearing.
func (l *Loop) SetOnTurnComplete(fn func(history *History)) {
	l.onTurnComplete = fn
}

// toolResolver returns the ToolResolver over l.toolExec's known tools,
// used by EnforceInvariants to rewrite unresolvable ToolUse names.
func (l *Loop) toolResolver() ToolResolver {
	if l.toolExec == nil {
		return nil
	}
	sr, _ := l.toolExec.(SuffixResolver)
	return loopToolResolver{exec: l.toolExec, suffix: sr}
}

type loopToolResolver struct {
	exec   ToolExecutor
	suffix SuffixResolver
}

func (r loopToolResolver) KnownTool(name string) bool { return r.exec.HasTool(name) }

func (r loopToolResolver) ResolveSuffix(name string) (string, bool) {
	if r.suffix == nil {
		return "", false
	}
	return r.suffix.ResolveToolName(name)
}

// validateToolUse checks block's Input against the tool's InputSchema,
// when the executor can supply one. A tool with no schema, or an
// executor that doesn't implement SchemaProvider, is treated as valid
// (ValidateTools has nothing to check against).
func (l *Loop) validateToolUse(block api.ContentBlock) error {
	sp, ok := l.toolExec.(SchemaProvider)
	if !ok {
		return nil
	}
	schema, ok := sp.Schema(block.Name)
	if !ok {
		return nil
	}
	input := block.Input
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(input))
	if err != nil {
		return fmt.Errorf("schema error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}

// collectToolUses extracts the tool_use blocks from an assistant
// response, in the order the model emitted them (tool uses must be
// executed in emission order per the concurrency model).
func collectToolUses(content []api.ContentBlock) []api.ContentBlock {
	var uses []api.ContentBlock
	for _, b := range content {
		if b.Type == api.ContentTypeToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

func (l *Loop) run(ctx context.Context) error {
	for {
		l.history.EnforceInvariants(l.toolResolver())

		msgs := l.history.Messages()

		// Prepend context message if configured (matching JS CLI's TN1 pattern).
		// The context message is a user message containing <system-reminder>
		// blocks with claudeMd and currentDate (gitStatus is in the system prompt).
		if l.contextMessage != "" {
			contextMsg := api.NewTextMessage(api.RoleUser, l.contextMessage)
			msgs = append([]api.Message{contextMsg}, msgs...)
		}

		system := l.system
		tools := l.tools

		// Apply prompt caching if enabled for the current model.
		// This adds cache_control breakpoints to system blocks, tool
		// definitions, and the last ~2 conversation messages so the API
		// can serve cached prefixes instead of reprocessing everything.
		if IsCachingEnabled(l.client.Model()) {
			system = WithSystemPromptCaching(system)
			tools = WithToolsCaching(tools)
			msgs = WithMessageCaching(msgs)
		}

		req := &api.CreateMessageRequest{
			Messages: msgs,
			System:   system,
			Tools:    tools,
		}

		// Apply fast mode: add speed:"fast" when enabled on an eligible model.
		if l.fastMode && api.IsOpus46Model(l.client.Model()) {
			req.Speed = "fast"
		}

		resp, err := l.client.CreateMessageStream(ctx, req, l.handler)
		if err != nil {
			return fmt.Errorf("API call: %w", err)
		}

		if resp == nil {
			return fmt.Errorf("no response received")
		}

		// Add assistant response to history.
		l.history.AddAssistantResponse(resp.Content)

		l.lastUsage = resp.Usage
		l.totalUsage.InputTokens += resp.Usage.InputTokens
		l.totalUsage.OutputTokens += resp.Usage.OutputTokens

		// Check for auto-compaction after each API response.
		if l.compactor != nil && l.compactor.ShouldCompact(resp.Usage) {
			if err := l.compactor.Compact(ctx, l.history); err != nil {
				// Log but don't fail the loop.
				log.Printf("Warning: compaction failed: %v", err)
			}
		}

		// Check if we need to execute tools.
		if resp.StopReason != api.StopReasonToolUse {
			// Phase 7: Stop hook.
			if l.hooks != nil {
				_ = l.hooks.RunStop(ctx)
			}
			// No tool calls - conversation turn is done.
			l.notifyTurnComplete()
			return nil
		}

		// ValidateTools: deserialize each use's args against its tool's
		// schema before anything is executed. Invalid uses are answered
		// with a status=Error result and never reach ExecuteTools; this
		// never surfaces to the user, only to the model (spec §7).
		toolUses := collectToolUses(resp.Content)
		var toolResults []api.ContentBlock
		var toExecute []api.ContentBlock
		for _, tu := range toolUses {
			if l.toolExec == nil || !l.toolExec.HasTool(tu.Name) {
				toolResults = append(toolResults, MakeToolResult(tu.ID,
					fmt.Sprintf("Tool %q is not available.", tu.Name), true))
				continue
			}
			if err := l.validateToolUse(tu); err != nil {
				toolResults = append(toolResults, MakeToolResult(tu.ID,
					fmt.Sprintf("Invalid arguments: %v", err), true))
				continue
			}
			toExecute = append(toExecute, tu)
		}

		// ExecuteTools: run the validated uses in order. Every
		// suspension point checks ctx for cancellation; a cancelled
		// turn synthesizes a cancelled result for the use that was
		// interrupted and every use still queued behind it, so the
		// tool-use/tool-result pairing invariant survives a Ctrl-C.
		for i, tu := range toExecute {
			if err := ctx.Err(); err != nil {
				for _, remaining := range toExecute[i:] {
					toolResults = append(toolResults, CancelledToolResult(remaining.ID))
				}
				l.history.AddToolResults(toolResults)
				l.notifyTurnComplete()
				return err
			}

			if l.hooks != nil {
				if err := l.hooks.RunPreToolUse(ctx, tu.Name, tu.Input); err != nil {
					toolResults = append(toolResults, MakeToolResult(tu.ID,
						fmt.Sprintf("Hook blocked tool execution: %v", err), true))
					continue
				}
			}

			output, execErr := l.toolExec.Execute(ctx, tu.Name, tu.Input)

			if l.hooks != nil {
				_ = l.hooks.RunPostToolUse(ctx, tu.Name, tu.Input, output, execErr != nil)
			}

			if errors.Is(execErr, context.Canceled) {
				toolResults = append(toolResults, CancelledToolResult(tu.ID))
				for _, remaining := range toExecute[i+1:] {
					toolResults = append(toolResults, CancelledToolResult(remaining.ID))
				}
				l.history.AddToolResults(toolResults)
				l.notifyTurnComplete()
				return execErr
			}

			if execErr != nil {
				// If tool returned output along with an error, use the output.
				msg := output
				if msg == "" {
					msg = fmt.Sprintf("Error executing tool: %v", execErr)
				}
				toolResults = append(toolResults, MakeToolResult(tu.ID, msg, true))
			} else {
				toolResults = append(toolResults, MakeToolResult(tu.ID, output, false))
			}
		}

		if len(toolResults) == 0 {
			// Stop reason was tool_use but no tool blocks found - shouldn't happen.
			return fmt.Errorf("stop_reason was tool_use but no tool_use blocks found")
		}

		l.history.AddToolResults(toolResults)
		l.notifyTurnComplete()
		// Loop back to call API again with tool results.
	}
}

func (l *Loop) notifyTurnComplete() {
	if l.onTurnComplete != nil {
		l.onTurnComplete(l.history)
	}
}

// PrintStreamHandler is a basic StreamHandler that prints text to stdout.
type PrintStreamHandler struct{}

func (h *PrintStreamHandler) OnMessageStart(msg api.MessageResponse) {}

func (h *PrintStreamHandler) OnContentBlockStart(index int, block api.ContentBlock) {}

func (h *PrintStreamHandler) OnTextDelta(index int, text string) {
	fmt.Print(text)
}

func (h *PrintStreamHandler) OnInputJSONDelta(index int, partialJSON string) {}

func (h *PrintStreamHandler) OnContentBlockStop(index int) {}

func (h *PrintStreamHandler) OnMessageDelta(delta api.MessageDeltaBody, usage *api.Usage) {}

func (h *PrintStreamHandler) OnMessageStop() {
	fmt.Println()
}

func (h *PrintStreamHandler) OnError(err error) {
	fmt.Fprintf(os.Stderr, "\nStream error: %v\n", err)
}

// ToolAwareStreamHandler extends PrintStreamHandler with tool call display.
// It accumulates tool input JSON from deltas and shows a summary when the
// tool call block is complete.
type ToolAwareStreamHandler struct {
	toolNames map[int]string
	jsonBufs  map[int][]byte
}

func (h *ToolAwareStreamHandler) OnMessageStart(msg api.MessageResponse) {}

func (h *ToolAwareStreamHandler) OnContentBlockStart(index int, block api.ContentBlock) {
	if block.Type == api.ContentTypeToolUse {
		if h.toolNames == nil {
			h.toolNames = make(map[int]string)
			h.jsonBufs = make(map[int][]byte)
		}
		h.toolNames[index] = block.Name
		h.jsonBufs[index] = nil
	}
}

func (h *ToolAwareStreamHandler) OnTextDelta(index int, text string) {
	fmt.Print(text)
}

func (h *ToolAwareStreamHandler) OnInputJSONDelta(index int, partialJSON string) {
	if h.jsonBufs != nil {
		h.jsonBufs[index] = append(h.jsonBufs[index], []byte(partialJSON)...)
	}
}

func (h *ToolAwareStreamHandler) OnContentBlockStop(index int) {
	if name, ok := h.toolNames[index]; ok {
		assembled := json.RawMessage(h.jsonBufs[index])
		fmt.Printf("\n[tool: %s]", name)
		summary := toolInputSummary(name, assembled)
		if summary != "" {
			fmt.Printf(" %s", summary)
		}
		fmt.Println()
		delete(h.toolNames, index)
		delete(h.jsonBufs, index)
	}
}

func (h *ToolAwareStreamHandler) OnMessageDelta(delta api.MessageDeltaBody, usage *api.Usage) {
}

func (h *ToolAwareStreamHandler) OnMessageStop() {
	fmt.Println()
}

func (h *ToolAwareStreamHandler) OnError(err error) {
	fmt.Fprintf(os.Stderr, "\nStream error: %v\n", err)
}

// toolInputSummary produces a short description from assembled tool input JSON.
func toolInputSummary(name string, input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(input, &m); err != nil {
		return ""
	}

	extractString := func(key string) string {
		v, ok := m[key]
		if !ok {
			return ""
		}
		var s string
		json.Unmarshal(v, &s)
		return s
	}

	switch name {
	case "Bash":
		if s := extractString("command"); s != "" {
			if len(s) > 200 {
				s = s[:197] + "..."
			}
			return fmt.Sprintf("$ %s", s)
		}
	case "FileRead":
		if s := extractString("file_path"); s != "" {
			return s
		}
	case "FileEdit":
		if s := extractString("file_path"); s != "" {
			return s
		}
	case "FileWrite":
		if s := extractString("file_path"); s != "" {
			return s
		}
	case "Glob":
		if s := extractString("pattern"); s != "" {
			return s
		}
	case "Grep":
		if s := extractString("pattern"); s != "" {
			return fmt.Sprintf("/%s/", s)
		}
	case "Agent":
		if s := extractString("description"); s != "" {
			return s
		}
	case "TodoWrite":
		return "updating task list"
	case "AskUserQuestion":
		return "asking user"
	case "WebFetch":
		if s := extractString("url"); s != "" {
			return s
		}
	case "WebSearch":
		if s := extractString("query"); s != "" {
			return fmt.Sprintf("searching: %s", s)
		}
	case "NotebookEdit":
		if s := extractString("notebook_path"); s != "" {
			return s
		}
	case "ExitPlanMode":
		return "plan ready"
	case "Config":
		if s := extractString("setting"); s != "" {
			return s
		}
	case "EnterWorktree":
		return "creating worktree"
	case "TaskOutput":
		if s := extractString("task_id"); s != "" {
			return fmt.Sprintf("reading task %s", s)
		}
	case "TaskStop":
		return "stopping task"
	}
	return ""
}
