package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qterm/qterm/internal/api"
)

// Default context window limits by model family.
const (
	// DefaultMaxInputTokens is the threshold at which compaction is triggered.
	// This is set conservatively below the actual context limit to leave room
	// for the next response.
	DefaultMaxInputTokens = 150_000

	// DefaultPreserveRecent is the number of recent messages to keep during compaction.
	DefaultPreserveRecent = 4
)

// CompactStrategy is the non-summarizing compaction policy: rather than
// asking the model to summarize, it caps the text length of every message
// outside the most recent MessagesToExclude. No message is removed. It is
// cheaper and deterministic, at the cost of losing detail a summary would
// have preserved; Compactor tries it first and falls back to LLM
// summarization only when truncation changed nothing. Whether the result
// is back under the token threshold is not checked.
type CompactStrategy struct {
	// MessagesToExclude is how many of the most recent messages are
	// never truncated, regardless of size.
	MessagesToExclude int
	// MaxMessageLength caps the text content of any message outside the
	// excluded tail, in runes. 0 means unbounded.
	MaxMessageLength int
}

// DefaultCompactStrategy matches the conservative defaults used when no
// profile overrides the compaction policy.
var DefaultCompactStrategy = CompactStrategy{
	MessagesToExclude: DefaultPreserveRecent,
	MaxMessageLength:  4000,
}

// Compactor handles context window management by summarizing older messages
// when the conversation approaches the token limit.
type Compactor struct {
	Client         *api.Client
	MaxInputTokens int // trigger threshold
	PreserveRecent int // number of recent messages to keep
	Strategy       CompactStrategy
}

// NewCompactor creates a compactor with the given settings.
func NewCompactor(client *api.Client) *Compactor {
	return &Compactor{
		Client:         client,
		MaxInputTokens: DefaultMaxInputTokens,
		PreserveRecent: DefaultPreserveRecent,
		Strategy:       DefaultCompactStrategy,
	}
}

// CompactByTruncation applies Strategy directly to history without an API
// call: every message before the excluded tail has its text content
// capped at MaxMessageLength, with a "[... truncated ...]" marker left in
// place of the removed portion. Returns true if anything was changed.
func (c *Compactor) CompactByTruncation(history *History) bool {
	msgs := history.Messages()
	cutoff := len(msgs) - c.Strategy.MessagesToExclude
	if cutoff <= 0 || c.Strategy.MaxMessageLength <= 0 {
		return false
	}

	changed := false
	truncated := make([]api.Message, cutoff)
	for i := 0; i < cutoff; i++ {
		msg, didChange := truncateMessage(msgs[i], c.Strategy.MaxMessageLength)
		truncated[i] = msg
		changed = changed || didChange
	}
	if changed {
		history.ReplaceRange(0, cutoff, truncated)
	}
	return changed
}

// truncateMessage caps msg's text content at maxLen runes. Content is
// stored as json.RawMessage (either a bare string or a []ContentBlock
// array), so both shapes are decoded, truncated, and re-encoded.
func truncateMessage(msg api.Message, maxLen int) (api.Message, bool) {
	var asString string
	if err := json.Unmarshal(msg.Content, &asString); err == nil {
		r := []rune(asString)
		if len(r) <= maxLen {
			return msg, false
		}
		truncated, _ := json.Marshal(string(r[:maxLen]) + "\n[... truncated ...]")
		msg.Content = truncated
		return msg, true
	}

	var blocks []api.ContentBlock
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return msg, false
	}
	changed := false
	for i, block := range blocks {
		if block.Type == api.ContentTypeText {
			r := []rune(block.Text)
			if len(r) > maxLen {
				block.Text = string(r[:maxLen]) + "\n[... truncated ...]"
				blocks[i] = block
				changed = true
			}
		}
	}
	if !changed {
		return msg, false
	}
	encoded, _ := json.Marshal(blocks)
	msg.Content = encoded
	return msg, true
}

// ShouldCompact returns true if the conversation should be compacted
// based on the token usage from the most recent API response.
func (c *Compactor) ShouldCompact(usage api.Usage) bool {
	return usage.InputTokens >= c.MaxInputTokens
}

// Compact summarizes older messages in the history, replacing them with a
// concise summary to free up context window space. It first tries the
// cheaper CompactByTruncation; summarization only runs if truncation
// alone didn't touch anything (e.g. Strategy.MaxMessageLength is 0 or
// every remaining message is already short).
func (c *Compactor) Compact(ctx context.Context, history *History) error {
	if c.CompactByTruncation(history) {
		return nil
	}
	msgs := history.Messages()
	if len(msgs) <= c.PreserveRecent {
		return nil // nothing to compact
	}

	// Split messages: older ones to summarize, recent ones to keep.
	splitPoint := len(msgs) - c.PreserveRecent
	if splitPoint <= 0 {
		return nil
	}

	olderMsgs := msgs[:splitPoint]

	// Build a summarization request.
	summary, err := c.summarize(ctx, olderMsgs)
	if err != nil {
		return fmt.Errorf("summarizing messages: %w", err)
	}

	// Replace the older messages with a summary message.
	summaryMsg := api.NewTextMessage(api.RoleUser, summary)
	history.ReplaceRange(0, splitPoint, []api.Message{summaryMsg})

	return nil
}

// summarize calls the API to generate a concise summary of the given messages.
func (c *Compactor) summarize(ctx context.Context, messages []api.Message) (string, error) {
	systemPrompt := []api.SystemBlock{
		{
			Type: "text",
			Text: `You are a conversation summarizer. Your job is to create a concise summary of the conversation so far that preserves all important context, decisions made, files modified, commands run, and their results. The summary should enable continuing the conversation without loss of critical information.

Be concise but thorough. Include:
- Key decisions and their rationale
- Files that were read, created, or modified (with paths)
- Important command outputs or errors
- Current state of any ongoing task
- Any constraints or requirements mentioned by the user`,
		},
	}

	// Create a user message asking for the summary.
	summaryRequest := api.NewTextMessage(api.RoleUser,
		"Please summarize the above conversation concisely, preserving all important context for continuation.")

	// Build messages: the conversation to summarize + the summary request.
	allMsgs := make([]api.Message, len(messages)+1)
	copy(allMsgs, messages)
	allMsgs[len(allMsgs)-1] = summaryRequest

	req := &api.CreateMessageRequest{
		Messages: allMsgs,
		System:   systemPrompt,
	}

	// Use a no-op handler since we just want the final response.
	resp, err := c.Client.CreateMessageStream(ctx, req, &noOpStreamHandler{})
	if err != nil {
		return "", fmt.Errorf("API call for summarization: %w", err)
	}

	if resp == nil || len(resp.Content) == 0 {
		return "", fmt.Errorf("empty summarization response")
	}

	// Extract text from the response.
	var summary string
	for _, block := range resp.Content {
		if block.Type == api.ContentTypeText {
			summary += block.Text
		}
	}

	if summary == "" {
		return "", fmt.Errorf("no text in summarization response")
	}

	return fmt.Sprintf("[Conversation Summary]\n%s", summary), nil
}

// noOpStreamHandler discards all streaming events (used for summarization calls).
type noOpStreamHandler struct{}

func (h *noOpStreamHandler) OnMessageStart(msg api.MessageResponse)                     {}
func (h *noOpStreamHandler) OnContentBlockStart(index int, block api.ContentBlock)       {}
func (h *noOpStreamHandler) OnTextDelta(index int, text string)                          {}
func (h *noOpStreamHandler) OnThinkingDelta(index int, thinking string)                  {}
func (h *noOpStreamHandler) OnSignatureDelta(index int, signature string)                {}
func (h *noOpStreamHandler) OnInputJSONDelta(index int, partialJSON string)              {}
func (h *noOpStreamHandler) OnContentBlockStop(index int)                                {}
func (h *noOpStreamHandler) OnMessageDelta(delta api.MessageDeltaBody, usage *api.Usage) {}
func (h *noOpStreamHandler) OnMessageStop()                                              {}
func (h *noOpStreamHandler) OnError(err error)                                           {}
