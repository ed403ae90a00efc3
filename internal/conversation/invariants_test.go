package conversation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/qterm/qterm/internal/api"
)

type fakeResolver struct {
	known  map[string]bool
	suffix map[string]string
}

func (f fakeResolver) KnownTool(name string) bool { return f.known[name] }

func (f fakeResolver) ResolveSuffix(name string) (string, bool) {
	resolved, ok := f.suffix[name]
	return resolved, ok
}

func toolUseMessage(id, name string) api.Message {
	return api.NewBlockMessage(api.RoleAssistant, []api.ContentBlock{
		{Type: api.ContentTypeToolUse, ID: id, Name: name, Input: []byte(`{}`)},
	})
}

func toolResultMessage(id string) api.Message {
	return api.NewBlockMessage(api.RoleUser, []api.ContentBlock{
		MakeToolResult(id, "ok", false),
	})
}

// TestEnforceInvariants_CancelledToolUse matches Scenario S3: an
// assistant tool use with no following tool result must come out of
// enforcement with a synthesized cancelled result carrying the same id.
func TestEnforceInvariants_CancelledToolUse(t *testing.T) {
	h := NewHistory()
	h.AddUserMessage("write the file")
	h.AddAssistantResponse([]api.ContentBlock{
		{Type: api.ContentTypeText, Text: "ok"},
		{Type: api.ContentTypeToolUse, ID: "t1", Name: "fs_write", Input: []byte(`{}`)},
	})

	h.EnforceInvariants(nil)

	msgs := h.Messages()
	if len(msgs) != 3 {
		t.Fatalf("Len = %d, want 3 (user, assistant, synthesized user)", len(msgs))
	}
	blocks, ok := decodeBlocks(msgs[2])
	if !ok || len(blocks) != 1 {
		t.Fatalf("expected one synthesized tool result, got %+v", blocks)
	}
	b := blocks[0]
	if b.ToolUseID != "t1" {
		t.Errorf("ToolUseID = %q, want t1", b.ToolUseID)
	}
	if !b.IsError {
		t.Error("IsError = false, want true (status Error)")
	}
	var content string
	if err := json.Unmarshal(b.Content, &content); err != nil {
		t.Fatalf("decoding content: %v", err)
	}
	if !strings.Contains(strings.ToLower(content), "cancel") {
		t.Errorf("content %q does not mention cancellation", content)
	}
}

// TestEnforceInvariants_PartialCancellation covers a turn where some
// tool uses already completed before cancellation: only the missing
// ids get synthesized, existing results are left untouched.
func TestEnforceInvariants_PartialCancellation(t *testing.T) {
	h := NewHistory()
	h.AddUserMessage("do two things")
	h.AddAssistantResponse([]api.ContentBlock{
		{Type: api.ContentTypeToolUse, ID: "t1", Name: "fs_write", Input: []byte(`{}`)},
		{Type: api.ContentTypeToolUse, ID: "t2", Name: "fs_write", Input: []byte(`{}`)},
	})
	h.AddToolResults([]api.ContentBlock{MakeToolResult("t1", "done", false)})

	h.EnforceInvariants(nil)

	msgs := h.Messages()
	blocks, _ := decodeBlocks(msgs[len(msgs)-1])
	if len(blocks) != 2 {
		t.Fatalf("expected 2 results (1 original + 1 synthesized), got %d", len(blocks))
	}
	ids := toolResultIDs(blocks)
	if !ids["t1"] || !ids["t2"] {
		t.Errorf("expected results for both t1 and t2, got %+v", ids)
	}
	for _, b := range blocks {
		if b.ToolUseID == "t1" && b.IsError {
			t.Error("t1's original successful result should not be rewritten to an error")
		}
	}
}

func TestEnforceInvariants_BoundsPairCount(t *testing.T) {
	h := NewHistory()
	for i := 0; i < MaxHistoryPairs+5; i++ {
		h.AddUserMessage("hi")
		h.AddAssistantResponse([]api.ContentBlock{{Type: api.ContentTypeText, Text: "hi"}})
	}

	h.EnforceInvariants(nil)

	if got := h.Len() / 2; got != MaxHistoryPairs {
		t.Errorf("pair count = %d, want %d", got, MaxHistoryPairs)
	}
}

func TestEnforceInvariants_DropsOrphanedLeadingToolResults(t *testing.T) {
	h := NewHistory()
	h.SetMessages([]api.Message{
		toolResultMessage("orphan"), // no preceding assistant tool use
		toolUseMessage("t1", "fs_write"),
		api.NewTextMessage(api.RoleUser, "hello"),
		api.NewTextMessage(api.RoleAssistant, "hi"),
	})

	h.EnforceInvariants(nil)

	msgs := h.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Len = %d, want 2 after dropping the orphaned leading pair", len(msgs))
	}
	if blocks, ok := decodeBlocks(msgs[0]); ok && containsToolResult(blocks) {
		t.Error("first pair's user message still carries tool results")
	}
}

func TestEnforceInvariants_ResolvesToolNames(t *testing.T) {
	h := NewHistory()
	h.AddUserMessage("hi")
	h.AddAssistantResponse([]api.ContentBlock{
		{Type: api.ContentTypeToolUse, ID: "t1", Name: "legacy_tool", Input: []byte(`{}`)},
	})
	h.AddToolResults([]api.ContentBlock{MakeToolResult("t1", "ok", false)})
	h.AddUserMessage("hi again")
	h.AddAssistantResponse([]api.ContentBlock{
		{Type: api.ContentTypeToolUse, ID: "t2", Name: "totally_unknown", Input: []byte(`{}`)},
	})
	h.AddToolResults([]api.ContentBlock{MakeToolResult("t2", "ok", false)})

	resolver := fakeResolver{
		known:  map[string]bool{},
		suffix: map[string]string{"legacy_tool": "server___legacy_tool"},
	}
	h.EnforceInvariants(resolver)

	msgs := h.Messages()
	blocks, _ := decodeBlocks(msgs[1])
	if blocks[0].Name != "server___legacy_tool" {
		t.Errorf("suffix-resolvable name = %q, want server___legacy_tool", blocks[0].Name)
	}
	blocks, _ = decodeBlocks(msgs[4])
	if blocks[0].Name != DummyToolName {
		t.Errorf("unresolvable name = %q, want %s", blocks[0].Name, DummyToolName)
	}
}
