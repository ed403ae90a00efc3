package mcp

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NamespaceDelimiter separates an MCP server name from its tool name in
// the fully-qualified tool name the model sees. Three underscores were
// chosen (over Claude-Code-style "mcp__") so the prefix survives models
// that collapse double underscores in generated tool-call arguments.
const NamespaceDelimiter = "___"

// maxToolNameLen is the hard cap enforced by the Messages API on tool
// names; names that would exceed it after namespacing are cut to a
// readable prefix followed by a deterministic hash, rather than plainly
// truncated (truncation alone risks collisions between tools that only
// differ after a long common prefix).
const maxToolNameLen = 64

// sanitizeName replaces each character of s outside [A-Za-z0-9_-] with
// an underscore, matching the permissive tool-name
// alphabet accepted across Messages-API-compatible backends.
func sanitizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// QualifiedToolName computes the fully-qualified, namespaced name for a
// server/tool pair as the model will see it, deterministically handling
// the 64-byte cap: names that fit are returned sanitized and verbatim;
// names that don't are replaced by a fixed-width hash of the original
// pair, prefixed so collisions across servers remain vanishingly
// unlikely without needing the original string back.
func QualifiedToolName(server, tool string) string {
	name := sanitizeName(server) + NamespaceDelimiter + sanitizeName(tool)
	if len(name) <= maxToolNameLen {
		return name
	}
	sum := sha256.Sum256([]byte(server + NamespaceDelimiter + tool))
	hash := hex.EncodeToString(sum[:])
	// Keep a short readable prefix plus enough hash to stay unique; the
	// whole thing still fits under the cap.
	prefix := name[:maxToolNameLen-1-16]
	return prefix + "_" + hash[:16]
}

// ToolNameRegistry resolves qualified names back to (server, tool) pairs
// and deduplicates collisions (two servers whose sanitized names hash or
// truncate to the same qualified name) with a numeric suffix, applied in
// registration order.
type ToolNameRegistry struct {
	byQualified map[string]serverTool
	seen        map[string]int
}

type serverTool struct {
	server, tool string
}

// NewToolNameRegistry returns an empty registry.
func NewToolNameRegistry() *ToolNameRegistry {
	return &ToolNameRegistry{
		byQualified: make(map[string]serverTool),
		seen:        make(map[string]int),
	}
}

// Register computes the qualified name for (server, tool), resolving a
// collision against any name already registered by appending "1", "11",
// ... to the base name (trimmed to fit the cap again if needed).
func (r *ToolNameRegistry) Register(server, tool string) string {
	base := QualifiedToolName(server, tool)
	name := base
	for {
		if _, exists := r.byQualified[name]; !exists {
			break
		}
		r.seen[base]++
		suffix := strings.Repeat("1", r.seen[base])
		trimmed := base
		if len(trimmed)+len(suffix) > maxToolNameLen {
			trimmed = trimmed[:maxToolNameLen-len(suffix)]
		}
		name = trimmed + suffix
	}
	r.byQualified[name] = serverTool{server: server, tool: tool}
	return name
}

// Resolve looks up a qualified name exactly, then — if that fails —
// by unambiguous suffix match against every registered tool's bare
// name, mirroring chat assistants that let the model refer to a tool
// by its unqualified name when that's unambiguous. Two or more
// candidates, or zero, fail closed: the caller is expected to rewrite
// the tool_use block to a synthetic DUMMY call rather than guess.
//
// This suffix-match fallback trades a small amount of ambiguity (a
// genuine typo in a server name could accidentally resolve to an
// unrelated tool sharing the same bare name) for tolerance of models
// that drop the server-name prefix; flagged here rather than silently
// "fixed" with an undocumented confidence threshold.
func (r *ToolNameRegistry) Resolve(qualified string) (server, tool string, ok bool) {
	if st, exists := r.byQualified[qualified]; exists {
		return st.server, st.tool, true
	}

	var matchServer, matchTool string
	matches := 0
	for name, st := range r.byQualified {
		if strings.HasSuffix(name, NamespaceDelimiter+qualified) || st.tool == qualified {
			matchServer, matchTool = st.server, st.tool
			matches++
		}
	}
	if matches == 1 {
		return matchServer, matchTool, true
	}
	return "", "", false
}
