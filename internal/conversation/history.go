package conversation

import (
	"encoding/json"

	"github.com/qterm/qterm/internal/api"
)

// History manages conversation messages for the agentic loop. Messages
// alternate user/assistant starting with a user message; a trailing,
// unpaired user message (sent but not yet answered by the model) plays
// the role of ConversationState.next_user_message until the matching
// assistant response arrives.
type History struct {
	messages []api.Message
}

// NewHistory creates an empty conversation history.
func NewHistory() *History {
	return &History{}
}

// NewHistoryFrom returns a History seeded with a copy of msgs, so later
// mutation of either the caller's slice or the History is independent.
func NewHistoryFrom(msgs []api.Message) *History {
	h := &History{messages: make([]api.Message, len(msgs))}
	copy(h.messages, msgs)
	return h
}

// Messages returns the current message list.
func (h *History) Messages() []api.Message {
	return h.messages
}

// AddUserMessage appends a user text message.
func (h *History) AddUserMessage(text string) {
	h.messages = append(h.messages, api.NewTextMessage(api.RoleUser, text))
}

// AddAssistantResponse appends the assistant's response (with content blocks).
func (h *History) AddAssistantResponse(blocks []api.ContentBlock) {
	h.messages = append(h.messages, api.NewBlockMessage(api.RoleAssistant, blocks))
}

// AddToolResults appends tool result blocks as a user message.
func (h *History) AddToolResults(results []api.ContentBlock) {
	h.messages = append(h.messages, api.NewBlockMessage(api.RoleUser, results))
}

// Len returns the number of messages.
func (h *History) Len() int {
	return len(h.messages)
}

// SetMessages replaces the message list wholesale (used by /clear to
// start a fresh conversation).
func (h *History) SetMessages(msgs []api.Message) {
	h.messages = msgs
}

// ReplaceRange replaces messages[start:end] with replacement. It is a
// no-op on an invalid range (start<0, end>len, or start>end) rather
// than panicking, since callers derive ranges from a length snapshot
// that compaction or invariant enforcement may have already changed.
func (h *History) ReplaceRange(start, end int, replacement []api.Message) {
	if start < 0 || end > len(h.messages) || start > end {
		return
	}
	merged := make([]api.Message, 0, start+len(replacement)+(len(h.messages)-end))
	merged = append(merged, h.messages[:start]...)
	merged = append(merged, replacement...)
	merged = append(merged, h.messages[end:]...)
	h.messages = merged
}

// MakeToolResult creates a tool_result content block.
func MakeToolResult(toolUseID string, content string, isError bool) api.ContentBlock {
	contentJSON, _ := json.Marshal(content)
	return api.ContentBlock{
		Type:      api.ContentTypeToolResult,
		ToolUseID: toolUseID,
		Content:   contentJSON,
		IsError:   isError,
	}
}

// CancelledToolResult builds the tool_result block synthesized for a
// tool use that was still outstanding when a turn was cancelled, so the
// tool-use/tool-result pairing invariant survives the cancellation.
func CancelledToolResult(toolUseID string) api.ContentBlock {
	return MakeToolResult(toolUseID, "Tool execution was cancelled by the user.", true)
}

// decodeBlocks decodes msg's content as a content-block array. Plain
// text messages (content is a bare JSON string) report ok=false, since
// they carry neither tool uses nor tool results.
func decodeBlocks(msg api.Message) (blocks []api.ContentBlock, ok bool) {
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return nil, false
	}
	return blocks, true
}

func containsToolResult(blocks []api.ContentBlock) bool {
	for _, b := range blocks {
		if b.Type == api.ContentTypeToolResult {
			return true
		}
	}
	return false
}

func toolUseIDs(blocks []api.ContentBlock) []string {
	var ids []string
	for _, b := range blocks {
		if b.Type == api.ContentTypeToolUse {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

func toolResultIDs(blocks []api.ContentBlock) map[string]bool {
	m := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		if b.Type == api.ContentTypeToolResult {
			m[b.ToolUseID] = true
		}
	}
	return m
}
