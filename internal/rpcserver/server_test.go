package rpcserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxmemory/ctx-agent/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	projectRoot := t.TempDir()
	memoryRoot := filepath.Join(projectRoot, ".context-memory")
	dbPath := filepath.Join(memoryRoot, "context.db")

	s, err := store.Open(projectRoot, memoryRoot, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newlineFrame(method string, id int, params any) []byte {
	req := map[string]any{"jsonrpc": "2.0", "method": method}
	if id != 0 {
		req["id"] = id
	}
	if params != nil {
		req["params"] = params
	}
	b, _ := json.Marshal(req)
	return append(b, '\n')
}

func runOneExchange(t *testing.T, srv *Server, frame []byte) map[string]any {
	t.Helper()
	var out bytes.Buffer
	in := bytes.NewReader(frame)
	err := srv.Serve(context.Background(), in, &out)
	require.NoError(t, err)

	line, err := bufio.NewReader(&out).ReadString('\n')
	require.NoError(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	return resp
}

func TestInitializeReturnsProtocolVersion(t *testing.T) {
	srv := New(openTestStore(t))
	resp := runOneExchange(t, srv, newlineFrame("initialize", 1, nil))

	result := resp["result"].(map[string]any)
	assert.Equal(t, protocolVersion, result["protocolVersion"])
	serverInfo := result["serverInfo"].(map[string]any)
	assert.Equal(t, "ctx-memory", serverInfo["name"])
}

func TestPingMethodReturnsOK(t *testing.T) {
	srv := New(openTestStore(t))
	resp := runOneExchange(t, srv, newlineFrame("ping", 1, nil))
	result := resp["result"].(map[string]any)
	assert.Equal(t, true, result["ok"])
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	srv := New(openTestStore(t))
	resp := runOneExchange(t, srv, newlineFrame("bogus", 1, nil))
	errObj := resp["error"].(map[string]any)
	assert.Equal(t, float64(CodeMethodNotFound), errObj["code"])
}

func TestToolsListReturnsFiveTools(t *testing.T) {
	srv := New(openTestStore(t))
	resp := runOneExchange(t, srv, newlineFrame("tools/list", 1, nil))
	result := resp["result"].(map[string]any)
	tools := result["tools"].([]any)
	assert.Len(t, tools, 5)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) map[string]any {
	t.Helper()
	frame := newlineFrame("tools/call", 1, map[string]any{"name": name, "arguments": args})
	return runOneExchange(t, srv, frame)
}

func TestAppendEventRequiresActiveSession(t *testing.T) {
	srv := New(openTestStore(t))
	resp := callTool(t, srv, "append_event", map[string]any{"summary": "did a thing"})
	errObj := resp["error"].(map[string]any)
	assert.Equal(t, float64(CodeNoActiveSess), errObj["code"])
}

func TestAppendEventMissingSummaryIsInvalidParams(t *testing.T) {
	st := openTestStore(t)
	_, err := st.StartSession(context.Background(), "claude", "")
	require.NoError(t, err)

	srv := New(st)
	resp := callTool(t, srv, "append_event", map[string]any{"client": "claude"})
	errObj := resp["error"].(map[string]any)
	assert.Equal(t, float64(CodeInvalidParams), errObj["code"])
}

func TestAppendEventWrappedStoreErrorMapsToNoActiveSession(t *testing.T) {
	st := openTestStore(t)
	_, err := st.StartSession(context.Background(), "claude", "")
	require.NoError(t, err)

	srv := New(st)
	// session_id:0 bypasses resolveSessionID's active-session lookup and
	// reaches InsertEvent directly, which wraps ErrNoActiveSession with
	// fmt.Errorf("%w: ...", ...) rather than returning it bare.
	resp := callTool(t, srv, "append_event", map[string]any{
		"summary": "did a thing", "session_id": float64(0),
	})
	errObj := resp["error"].(map[string]any)
	assert.Equal(t, float64(CodeNoActiveSess), errObj["code"])
}

func TestAppendEventAndGetContextRoundTrip(t *testing.T) {
	st := openTestStore(t)
	sess, err := st.StartSession(context.Background(), "claude", "")
	require.NoError(t, err)

	srv := New(st)
	resp := callTool(t, srv, "append_event", map[string]any{
		"client":  "claude",
		"summary": "Implemented the thing",
	})
	result := resp["result"].(map[string]any)
	structured := result["structuredContent"].(map[string]any)
	assert.Equal(t, true, structured["ok"])
	assert.Equal(t, float64(sess.ID), structured["session_id"])

	ctxResp := callTool(t, srv, "get_context", nil)
	ctxResult := ctxResp["result"].(map[string]any)
	ctxStructured := ctxResult["structuredContent"].(map[string]any)
	events := ctxStructured["recent_events"].([]any)
	require.Len(t, events, 1)
	first := events[0].(map[string]any)
	assert.Equal(t, "Implemented the thing", first["summary"])
}

func TestStartChatSessionReusesRunningSession(t *testing.T) {
	st := openTestStore(t)
	srv := New(st)

	resp1 := callTool(t, srv, "start_chat_session", map[string]any{"client": "cursor"})
	r1 := resp1["result"].(map[string]any)["structuredContent"].(map[string]any)

	resp2 := callTool(t, srv, "start_chat_session", map[string]any{"client": "cursor"})
	r2 := resp2["result"].(map[string]any)["structuredContent"].(map[string]any)

	assert.Equal(t, r1["session_id"], r2["session_id"])
}

func TestStopChatSessionMarksStopped(t *testing.T) {
	st := openTestStore(t)
	sess, err := st.StartSession(context.Background(), "claude", "")
	require.NoError(t, err)

	srv := New(st)
	resp := callTool(t, srv, "stop_chat_session", map[string]any{"session_id": float64(sess.ID)})
	result := resp["result"].(map[string]any)["structuredContent"].(map[string]any)
	assert.Equal(t, true, result["stopped"])

	active, err := st.ActiveSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestLengthPrefixedFramingRoundTrip(t *testing.T) {
	srv := New(openTestStore(t))

	body, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": "ping"})
	frame := []byte(fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body))

	var out bytes.Buffer
	err := srv.Serve(context.Background(), bytes.NewReader(frame), &out)
	require.NoError(t, err)

	written := out.String()
	require.Contains(t, written, "Content-Length:")

	headerEnd := bytes.Index(out.Bytes(), []byte("\r\n\r\n"))
	require.GreaterOrEqual(t, headerEnd, 0)
	payload := out.Bytes()[headerEnd+4:]

	var resp map[string]any
	require.NoError(t, json.Unmarshal(payload, &resp))
	result := resp["result"].(map[string]any)
	assert.Equal(t, true, result["ok"])
}

func TestNotificationReceivesNoResponse(t *testing.T) {
	srv := New(openTestStore(t))
	frame := newlineFrame("notifications/initialized", 0, nil)

	var out bytes.Buffer
	err := srv.Serve(context.Background(), bytes.NewReader(frame), &out)
	require.NoError(t, err)
	assert.Empty(t, out.String())
}
