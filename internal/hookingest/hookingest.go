// Package hookingest implements the one-shot process invoked by an
// editor's own hook mechanism (e.g. Claude Code's settings.json hook
// commands): it reads one JSON payload from stdin, turns it into an
// event, and exits.
package hookingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ctxmemory/ctx-agent/internal/redact"
	"github.com/ctxmemory/ctx-agent/internal/store"
)

// hookTypeMap maps an editor's hook event name to the event type it
// produces. Names not listed here coerce to task_status.
var hookTypeMap = map[string]string{
	"UserPromptSubmit": store.EventUserIntent,
	"PreToolUse":       store.EventToolUse,
	"PostToolUse":      store.EventToolUse,
	"Stop":             store.EventHandoff,
}

func eventTypeForHook(hookName string) string {
	if t, ok := hookTypeMap[hookName]; ok {
		return t
	}
	return store.EventTaskStatus
}

// payload is the loosely-typed shape of the JSON object an editor's
// hook mechanism may send on stdin.
type payload struct {
	Summary      string   `json:"summary"`
	Message      string   `json:"message"`
	Text         string   `json:"text"`
	Prompt       string   `json:"prompt"`
	Input        string   `json:"input"`
	Content      string   `json:"content"`
	FilesTouched []string `json:"files_touched"`
	Files        []string `json:"files"`
	ChangedFiles []string `json:"changed_files"`
	ToolName     string   `json:"tool_name"`
	Result       string   `json:"result"`
}

func parsePayload(raw []byte) payload {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return payload{Text: string(raw)}
	}
	return p
}

func (p payload) summary(hookName string) string {
	if s := firstNonEmpty(p.Summary, p.Message, p.Text, p.Prompt, p.Input, p.Content); s != "" {
		return s
	}
	return fmt.Sprintf("Claude hook event received: %s.", hookName)
}

func (p payload) filesTouched() []string {
	if len(p.FilesTouched) > 0 {
		return p.FilesTouched
	}
	if len(p.Files) > 0 {
		return p.Files
	}
	return p.ChangedFiles
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

const hookSource = "hook:claude"

// Result reports what Ingest did, for the CLI entry point to render.
type Result struct {
	Stored  bool
	EventID int64
	Notice  string
}

// Ingest reads one JSON (or plain-text) payload from r, maps hookName
// to an event type, and inserts it against the active session. If no
// session is running, it returns a notice and Stored=false without
// touching the store, matching the hook's "never block the editor"
// contract.
func Ingest(ctx context.Context, st *store.Store, hookName string, r io.Reader) (Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("reading hook input: %w", err)
	}

	sess, err := st.ActiveSession(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("checking active session: %w", err)
	}
	if sess == nil {
		return Result{Notice: "ctx-agent: no active session, hook event not recorded"}, nil
	}

	p := parsePayload(raw)
	input := store.NewEventInput{
		SessionID:    sess.ID,
		EventType:    eventTypeForHook(hookName),
		Summary:      redact.String(p.summary(hookName)),
		FilesTouched: p.filesTouched(),
		Source:       hookSource,
		IsEffective:  true,
	}
	if input.EventType == store.EventToolUse {
		input.ToolName = p.ToolName
		input.Result = redact.String(p.Result)
	}

	id, err := st.InsertEvent(ctx, input)
	if err != nil {
		return Result{}, fmt.Errorf("inserting hook event: %w", err)
	}

	_ = st.RecordSourceStatus(ctx, sess.ID, hookSource, store.SourceAvailable, "")

	return Result{Stored: true, EventID: id}, nil
}
