// Package integration writes the small, idempotent files that wire
// ctx-agent into an editor: an MCP server registration stanza and a
// short rules document for the assistant to read.
package integration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EditorKind identifies which editor a config is being written for.
// Cursor and Claude Code both read the same mcpServers JSON shape, so
// kind only matters to the caller choosing which file path to target;
// WriteEditorConfig's own output doesn't vary by kind today.
type EditorKind string

const (
	EditorCursor EditorKind = "cursor"
	EditorClaude EditorKind = "claude"
)

// mcpServerEntry is the stanza both Cursor's and Claude Code's mcpServers
// maps expect: a command plus arguments to launch the server over stdio.
type mcpServerEntry struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// WriteEditorConfig registers ctx-agent as an MCP server for the given
// editor kind at path, merging by key into any existing file rather
// than overwriting it: unrelated keys and other configured MCP
// servers are left untouched, and re-running with identical inputs
// produces byte-identical output.
func WriteEditorConfig(kind EditorKind, path, project string) error {
	raw := map[string]json.RawMessage{}

	existing, err := os.ReadFile(path) //nolint:gosec // path is operator-configured, not attacker input
	if err == nil {
		if err := json.Unmarshal(existing, &raw); err != nil {
			return fmt.Errorf("parsing existing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	servers := map[string]json.RawMessage{}
	if serversRaw, ok := raw["mcpServers"]; ok {
		if err := json.Unmarshal(serversRaw, &servers); err != nil {
			return fmt.Errorf("parsing mcpServers in %s: %w", path, err)
		}
	}

	entry := mcpServerEntry{
		Command: "ctxagent",
		Args:    []string{"rpc", "--project=" + project},
	}
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling mcp server entry: %w", err)
	}

	const serverKey = "ctx-agent"
	if existingEntry, ok := servers[serverKey]; ok && string(existingEntry) == string(entryJSON) {
		return nil // already up to date, avoid an unnecessary rewrite
	}
	servers[serverKey] = entryJSON

	serversJSON, err := json.Marshal(servers)
	if err != nil {
		return fmt.Errorf("marshaling mcpServers: %w", err)
	}
	raw["mcpServers"] = serversJSON

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	output, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	output = append(output, '\n')

	return os.WriteFile(path, output, 0o644) //nolint:gosec // G306: editor config is not secrets
}

const (
	rulesMarkerStart = "<!-- ctx-agent:start -->"
	rulesMarkerEnd   = "<!-- ctx-agent:end -->"
)

// WriteRulesDocument writes or updates a marker-guarded region within
// path, replacing only the content between the ctx-agent markers and
// leaving any hand-authored content outside them untouched. If the
// file or the markers don't exist yet, the region is appended.
func WriteRulesDocument(path, body string) error {
	existing, err := os.ReadFile(path) //nolint:gosec // path is operator-configured, not attacker input
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	managed := rulesMarkerStart + "\n" + body + "\n" + rulesMarkerEnd
	content := string(existing)

	startIdx := strings.Index(content, rulesMarkerStart)
	endIdx := strings.Index(content, rulesMarkerEnd)

	var updated string
	switch {
	case startIdx >= 0 && endIdx > startIdx:
		updated = content[:startIdx] + managed + content[endIdx+len(rulesMarkerEnd):]
	case content == "":
		updated = managed + "\n"
	default:
		sep := "\n"
		if hasTrailingNewline(content) {
			sep = ""
		}
		updated = content + sep + "\n" + managed + "\n"
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating rules directory: %w", err)
	}
	return os.WriteFile(path, []byte(updated), 0o644) //nolint:gosec // G306: rules doc is plain markdown
}

func hasTrailingNewline(s string) bool {
	return len(s) > 0 && s[len(s)-1] == '\n'
}
