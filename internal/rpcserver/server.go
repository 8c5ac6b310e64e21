// Package rpcserver implements the single-client stdio JSON-RPC
// endpoint that editor integrations (Cursor, Claude Code) talk to:
// a small fixed method set plus a tools/call dispatch exposing the
// Project Store through five MCP-shaped tools.
package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ctxmemory/ctx-agent/internal/logging"
	"github.com/ctxmemory/ctx-agent/internal/store"
)

const protocolVersion = "2024-11-05"

var knownClients = map[string]bool{"cursor": true, "claude": true}

// Server serves one stdio session against a single project's Store.
type Server struct {
	store *store.Store
}

// New constructs a Server bound to a project's Store.
func New(st *store.Store) *Server {
	return &Server{store: st}
}

// Serve runs the read-dispatch-write loop until the input stream ends
// or a transport-level error occurs. Each request is handled fully
// before the next is read: this server is deliberately single-threaded
// per connection, matching its single-client contract.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	t := newTransport(r, w)

	for {
		raw, err := t.readMessage()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		resp, skip := s.handleMessage(ctx, raw)
		if skip {
			continue
		}

		body, err := json.Marshal(resp)
		if err != nil {
			logging.Error(ctx, "rpcserver: failed to marshal response", "error", err)
			continue
		}
		if err := t.writeMessage(body); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, raw []byte) (response, bool) {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, CodeParseError, "parse error"), false
	}

	if req.isNotification() {
		// notifications/initialized and any other notification get no reply.
		return response{}, true
	}

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]any{"name": "ctx-memory"},
			"capabilities":    map[string]any{"tools": map[string]any{}},
		}), false
	case "ping":
		return resultResponse(req.ID, map[string]any{"ok": true}), false
	case "tools/list":
		return resultResponse(req.ID, map[string]any{"tools": toolDefinitions()}), false
	case "tools/call":
		return s.handleToolsCall(ctx, req), false
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method)), false
	}
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleToolsCall(ctx context.Context, req request) response {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params")
	}

	args := map[string]any{}
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return errorResponse(req.ID, CodeInvalidParams, "invalid arguments")
		}
	}

	var result any
	var toolErr *rpcError

	switch params.Name {
	case "ping":
		result, toolErr = s.toolPing(ctx, args)
	case "get_context":
		result, toolErr = s.toolGetContext(ctx, args)
	case "append_event":
		result, toolErr = s.toolAppendEvent(ctx, args)
	case "start_chat_session":
		result, toolErr = s.toolStartChatSession(ctx, args)
	case "stop_chat_session":
		result, toolErr = s.toolStopChatSession(ctx, args)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown tool %q", params.Name))
	}

	if toolErr != nil {
		return errorResponse(req.ID, toolErr.Code, toolErr.Message)
	}
	return resultResponse(req.ID, toolCallEnvelope(result))
}

// toolCallEnvelope wraps a tool's structured result in the MCP
// content/structuredContent shape, reusing mcp-go's text content type
// for the textual rendering.
func toolCallEnvelope(result any) map[string]any {
	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(`{}`)
	}
	textResult := mcp.NewToolResultText(string(payload))
	return map[string]any{
		"content":           textResult.Content,
		"structuredContent": result,
	}
}

func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func boolArg(args map[string]any, key string) bool {
	v, ok := args[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// numberArg reads a numeric argument that may arrive as a JSON number
// or (leniently) as a numeric string, returning ok=false if absent.
func numberArg(args map[string]any, key string) (float64, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%f", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func sourceForClient(client, detail string) string {
	base := "mcp:unknown"
	if knownClients[client] {
		base = "mcp:" + client
	}
	if detail != "" {
		if len(detail) > 40 {
			detail = detail[:40]
		}
		base = base + ":" + detail
	}
	return base
}

func heartbeatSource(client string) string {
	if knownClients[client] {
		return "mcp:" + client
	}
	return "mcp:unknown"
}

func (s *Server) refreshHeartbeat(ctx context.Context, sessionID int64, client string) {
	if sessionID == 0 {
		return
	}
	_ = s.store.RecordSourceStatus(ctx, sessionID, heartbeatSource(client), store.SourceAvailable, "")
}

func (s *Server) toolPing(ctx context.Context, args map[string]any) (any, *rpcError) {
	client := stringArg(args, "client")
	if !knownClients[client] {
		return nil, &rpcError{Code: CodeInvalidParams, Message: "client must be cursor or claude"}
	}

	sess, err := s.store.ActiveSession(ctx)
	if err != nil {
		return nil, &rpcError{Code: CodeInternalError, Message: err.Error()}
	}

	var sessionID any
	if sess != nil {
		s.refreshHeartbeat(ctx, sess.ID, client)
		sessionID = sess.ID
	}

	return map[string]any{"pong": true, "client": client, "session_id": sessionID}, nil
}

func (s *Server) toolGetContext(ctx context.Context, args map[string]any) (any, *rpcError) {
	maxEvents := 20
	if n, ok := numberArg(args, "max_events"); ok {
		maxEvents = int(n)
		if maxEvents < 1 {
			maxEvents = 1
		}
		if maxEvents > 100 {
			maxEvents = 100
		}
	}

	status, err := s.store.Status(ctx)
	if err != nil {
		return nil, &rpcError{Code: CodeInternalError, Message: err.Error()}
	}

	events, err := s.store.ListRecentEvents(ctx, maxEvents)
	if err != nil {
		return nil, &rpcError{Code: CodeInternalError, Message: err.Error()}
	}

	result := map[string]any{
		"project":         status.Project.Path,
		"last_updated_at": formatOptionalTime(status),
		"recent_events":   renderEvents(events),
		"open_items":      []any{},
		"style_signals":   []any{},
	}

	if boolArg(args, "include_effective_state") {
		result["effective_changed_files"] = effectiveChangedFiles(events)
	}

	return result, nil
}

func formatOptionalTime(status *store.StatusSnapshot) any {
	if len(status.RecentEvents) == 0 {
		return nil
	}
	return status.RecentEvents[0].UpdatedAt.UTC().Format("2006-01-02T15:04:05Z")
}

func renderEvents(events []store.Event) []map[string]any {
	out := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		out = append(out, map[string]any{
			"id":            ev.ID,
			"event_type":    ev.EventType,
			"summary":       ev.Summary,
			"files_touched": ev.FilesTouched,
			"source":        ev.Source,
			"is_effective":  ev.IsEffective,
			"created_at":    ev.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return out
}

func effectiveChangedFiles(events []store.Event) []string {
	seen := map[string]bool{}
	var out []string
	for _, ev := range events {
		if !ev.IsEffective {
			continue
		}
		for _, f := range ev.FilesTouched {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func (s *Server) toolAppendEvent(ctx context.Context, args map[string]any) (any, *rpcError) {
	summary := stringArg(args, "summary")
	if strings.TrimSpace(summary) == "" {
		return nil, &rpcError{Code: CodeInvalidParams, Message: "summary is required"}
	}

	sessionID, err := s.resolveSessionID(ctx, args)
	if err != nil {
		return nil, err
	}

	client := stringArg(args, "client")
	input := store.NewEventInput{
		SessionID:    sessionID,
		EventType:    stringArg(args, "event_type"),
		Summary:      summary,
		FilesTouched: stringSliceArg(args, "files_touched"),
		Source:       sourceForClient(client, stringArg(args, "source_detail")),
		IsEffective:  true,
		ToolName:     stringArg(args, "tool_name"),
		Result:       stringArg(args, "tool_result"),
		Decision:     boolArg(args, "decision"),
	}

	id, insertErr := s.store.InsertEvent(ctx, input)
	if insertErr != nil {
		return nil, mapStoreError(insertErr)
	}

	s.refreshHeartbeat(ctx, sessionID, client)

	return map[string]any{"ok": true, "event_id": id, "session_id": sessionID}, nil
}

func stringSliceArg(args map[string]any, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (s *Server) resolveSessionID(ctx context.Context, args map[string]any) (int64, *rpcError) {
	if n, ok := numberArg(args, "session_id"); ok {
		return int64(n), nil
	}

	sess, err := s.store.ActiveSession(ctx)
	if err != nil {
		return 0, &rpcError{Code: CodeInternalError, Message: err.Error()}
	}
	if sess == nil {
		return 0, &rpcError{Code: CodeNoActiveSess, Message: "no active session"}
	}
	return sess.ID, nil
}

func mapStoreError(err error) *rpcError {
	switch {
	case errors.Is(err, store.ErrNoActiveSession):
		return &rpcError{Code: CodeNoActiveSess, Message: err.Error()}
	case errors.Is(err, store.ErrInvalidArgument):
		return &rpcError{Code: CodeInvalidParams, Message: err.Error()}
	default:
		return &rpcError{Code: CodeInternalError, Message: err.Error()}
	}
}

func (s *Server) toolStartChatSession(ctx context.Context, args map[string]any) (any, *rpcError) {
	client := stringArg(args, "client")
	if client == "" {
		return nil, &rpcError{Code: CodeInvalidParams, Message: "client is required"}
	}
	externalRef := stringArg(args, "external_session_ref")

	sess, err := s.store.ActiveSession(ctx)
	if err != nil {
		return nil, &rpcError{Code: CodeInternalError, Message: err.Error()}
	}

	if sess != nil {
		s.refreshHeartbeat(ctx, sess.ID, client)
		return map[string]any{"session_id": sess.ID}, nil
	}

	newSess, err := s.store.StartSession(ctx, client, externalRef)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.refreshHeartbeat(ctx, newSess.ID, client)
	return map[string]any{"session_id": newSess.ID}, nil
}

func (s *Server) toolStopChatSession(ctx context.Context, args map[string]any) (any, *rpcError) {
	n, ok := numberArg(args, "session_id")
	if !ok {
		return nil, &rpcError{Code: CodeInvalidParams, Message: "session_id is required"}
	}
	sessionID := int64(n)

	if err := s.store.StopSession(ctx, sessionID); err != nil {
		return nil, mapStoreError(err)
	}
	return map[string]any{"stopped": true, "session_id": sessionID}, nil
}
