package conversation

import (
	"fmt"

	"github.com/qterm/qterm/internal/api"
)

// MaxHistoryPairs bounds the number of (user, assistant) pairs retained
// in history before EnforceInvariants starts dropping the oldest ones.
// It deliberately sits well below any model's real context window: the
// invariant enforcer's job is to keep the pairing invariants intact,
// not to do token-accurate budgeting (that is Compactor's job).
const MaxHistoryPairs = 100

// DummyToolName replaces a ToolUse.name that cannot be resolved against
// the set of currently known tools, so a model hallucinating a tool (or
// an MCP server dropping one between turns) can't leave history holding
// a tool_use the model could call again.
const DummyToolName = "DUMMY"

// ToolResolver answers whether name is a directly known tool, and
// attempts a suffix-based fallback resolution, the way a namespaced MCP
// tool ("server___tool") can be matched from the model's bare "tool"
// guess. Exactly one candidate must resolve; zero or multiple do not.
type ToolResolver interface {
	KnownTool(name string) bool
	ResolveSuffix(name string) (resolved string, ok bool)
}

// EnforceInvariants rewrites h in place to satisfy ConversationState's
// invariants before the history is handed to the model:
//  1. pair count bounded by MaxHistoryPairs,
//  2. the first pair's user message carries no tool results,
//  3. the last pair's assistant tool uses are matched by the following
//     user message's tool results (missing ones are synthesized as
//     cancelled),
//  4. every ToolUse.name resolves to a known tool or is rewritten to
//     DummyToolName.
//
// It returns a human-readable note per correction it made, for
// diagnostics; nil means history already satisfied every invariant.
// resolver may be nil, in which case invariant 4 is skipped.
func (h *History) EnforceInvariants(resolver ToolResolver) []string {
	var notes []string
	notes = append(notes, h.boundPairs()...)
	notes = append(notes, h.dropOrphanedToolResults()...)
	notes = append(notes, h.synthesizeCancelledResults()...)
	if resolver != nil {
		notes = append(notes, h.resolveToolNames(resolver)...)
	}
	return notes
}

// boundPairs drops whole (user, assistant) pairs from the front of
// history until at most MaxHistoryPairs remain. A trailing unpaired
// user message (next_user_message) is never touched here.
func (h *History) boundPairs() []string {
	pairs := len(h.messages) / 2
	if pairs <= MaxHistoryPairs {
		return nil
	}
	drop := pairs - MaxHistoryPairs
	h.messages = h.messages[drop*2:]
	return []string{fmt.Sprintf("dropped %d oldest history pair(s) to stay within the %d-pair bound", drop, MaxHistoryPairs)}
}

// dropOrphanedToolResults enforces invariant 2: the first pair's user
// message must not carry tool results. Bounding pairs above can leave a
// tool-result message stranded as the new first message once the
// assistant tool-use it answers has been dropped; such a pair is
// meaningless to the model without its antecedent, so it is dropped in
// turn, repeating until the invariant holds.
func (h *History) dropOrphanedToolResults() []string {
	var notes []string
	for len(h.messages) >= 2 {
		blocks, ok := decodeBlocks(h.messages[0])
		if !ok || !containsToolResult(blocks) {
			break
		}
		h.messages = h.messages[2:]
		notes = append(notes, "dropped leading pair whose user message carried orphaned tool results")
	}
	return notes
}

// synthesizeCancelledResults enforces invariant 3. If the last pair's
// assistant message carries tool uses, every one of them must be
// matched by a tool result in the following user message; any that
// aren't (because the turn was cancelled mid ExecuteTools, or the
// model's stream ended before every use was answered) get a synthetic
// cancelled tool_result appended so the pairing survives.
func (h *History) synthesizeCancelledResults() []string {
	n := len(h.messages)
	if n == 0 {
		return nil
	}

	var assistantIdx int
	haveTrailingResult := false
	switch {
	case n%2 == 0:
		assistantIdx = n - 1 // history ends on the assistant message itself
	case n >= 2:
		assistantIdx = n - 2 // a user message already follows it
		haveTrailingResult = true
	default:
		return nil // a lone leading user message: nothing to pair yet
	}

	if h.messages[assistantIdx].Role != api.RoleAssistant {
		return nil
	}
	blocks, _ := decodeBlocks(h.messages[assistantIdx])
	pending := toolUseIDs(blocks)
	if len(pending) == 0 {
		return nil
	}

	existing := map[string]bool{}
	if haveTrailingResult {
		resultBlocks, _ := decodeBlocks(h.messages[n-1])
		existing = toolResultIDs(resultBlocks)
	}

	var missing []string
	for _, id := range pending {
		if !existing[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	cancelled := make([]api.ContentBlock, 0, len(missing))
	for _, id := range missing {
		cancelled = append(cancelled, CancelledToolResult(id))
	}

	if haveTrailingResult {
		resultBlocks, _ := decodeBlocks(h.messages[n-1])
		resultBlocks = append(resultBlocks, cancelled...)
		h.messages[n-1] = api.NewBlockMessage(api.RoleUser, resultBlocks)
	} else {
		h.messages = append(h.messages, api.NewBlockMessage(api.RoleUser, cancelled))
	}
	return []string{fmt.Sprintf("synthesized %d cancelled tool result(s) for unmatched tool use(s)", len(missing))}
}

// resolveToolNames enforces invariant 4 across the whole history, not
// just the last pair: a tool removed mid-conversation (server restart,
// config change) must not leave a resolvable-looking name behind that a
// later turn's invariant check would wrongly treat as still valid.
func (h *History) resolveToolNames(resolver ToolResolver) []string {
	changed := 0
	for i, msg := range h.messages {
		if msg.Role != api.RoleAssistant {
			continue
		}
		blocks, ok := decodeBlocks(msg)
		if !ok {
			continue
		}
		dirty := false
		for j, b := range blocks {
			if b.Type != api.ContentTypeToolUse || b.Name == DummyToolName {
				continue
			}
			if resolver.KnownTool(b.Name) {
				continue
			}
			if resolved, ok := resolver.ResolveSuffix(b.Name); ok {
				blocks[j].Name = resolved
			} else {
				blocks[j].Name = DummyToolName
			}
			dirty = true
			changed++
		}
		if dirty {
			h.messages[i] = api.NewBlockMessage(api.RoleAssistant, blocks)
		}
	}
	if changed == 0 {
		return nil
	}
	return []string{fmt.Sprintf("rewrote %d unresolvable tool use name(s) to %s", changed, DummyToolName)}
}
