package conversation

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCompactByTruncationCapsOldMessages(t *testing.T) {
	h := NewHistory()
	h.AddUserMessage(strings.Repeat("x", 100))
	h.AddUserMessage("short")
	h.AddUserMessage("tail 1")
	h.AddUserMessage("tail 2")

	c := &Compactor{Strategy: CompactStrategy{MessagesToExclude: 2, MaxMessageLength: 10}}
	changed := c.CompactByTruncation(h)
	if !changed {
		t.Fatalf("expected truncation to report a change")
	}

	msgs := h.Messages()
	var first string
	if err := unmarshalText(msgs[0].Content, &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasSuffix(first, "[... truncated ...]") {
		t.Fatalf("expected first message to be truncated, got %q", first)
	}

	var lastTail string
	unmarshalText(msgs[3].Content, &lastTail)
	if lastTail != "tail 2" {
		t.Fatalf("expected excluded tail message untouched, got %q", lastTail)
	}
}

func TestCompactByTruncationNoopWhenEverythingExcluded(t *testing.T) {
	h := NewHistory()
	h.AddUserMessage("only message")
	c := &Compactor{Strategy: CompactStrategy{MessagesToExclude: 4, MaxMessageLength: 1}}
	if c.CompactByTruncation(h) {
		t.Fatalf("expected no-op when MessagesToExclude covers the whole history")
	}
}

func unmarshalText(content []byte, out *string) error {
	return json.Unmarshal(content, out)
}
