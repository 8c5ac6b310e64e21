package hookingest

import (
	"bytes"
	"context"
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

func TestIngestNoActiveSessionReturnsNotice(t *testing.T) {
	st := openTestStore(t)
	result, err := Ingest(context.Background(), st, "UserPromptSubmit", bytes.NewReader([]byte(`{"prompt":"hello"}`)))
	require.NoError(t, err)
	assert.False(t, result.Stored)
	assert.NotEmpty(t, result.Notice)
}

func TestIngestMapsHookNameToEventType(t *testing.T) {
	st := openTestStore(t)
	_, err := st.StartSession(context.Background(), "claude", "")
	require.NoError(t, err)

	result, err := Ingest(context.Background(), st, "UserPromptSubmit", bytes.NewReader([]byte(`{"prompt":"fix the bug"}`)))
	require.NoError(t, err)
	require.True(t, result.Stored)

	ev, err := st.GetEvent(context.Background(), result.EventID)
	require.NoError(t, err)
	assert.Equal(t, store.EventUserIntent, ev.EventType)
	assert.Equal(t, "fix the bug", ev.Summary)
	assert.Equal(t, "hook:claude", ev.Source)
}

func TestIngestFallsBackToPlainText(t *testing.T) {
	st := openTestStore(t)
	_, err := st.StartSession(context.Background(), "claude", "")
	require.NoError(t, err)

	result, err := Ingest(context.Background(), st, "Stop", bytes.NewReader([]byte("not json at all")))
	require.NoError(t, err)
	require.True(t, result.Stored)

	ev, err := st.GetEvent(context.Background(), result.EventID)
	require.NoError(t, err)
	assert.Equal(t, store.EventHandoff, ev.EventType)
	assert.Equal(t, "not json at all", ev.Summary)
}

func TestIngestUnknownHookNameCoercesToTaskStatus(t *testing.T) {
	st := openTestStore(t)
	_, err := st.StartSession(context.Background(), "claude", "")
	require.NoError(t, err)

	result, err := Ingest(context.Background(), st, "SessionEnd", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	require.True(t, result.Stored)

	ev, err := st.GetEvent(context.Background(), result.EventID)
	require.NoError(t, err)
	assert.Equal(t, store.EventTaskStatus, ev.EventType)
	assert.Equal(t, "Claude hook event received: SessionEnd.", ev.Summary)
}

func TestIngestCapturesToolUseFields(t *testing.T) {
	st := openTestStore(t)
	_, err := st.StartSession(context.Background(), "claude", "")
	require.NoError(t, err)

	result, err := Ingest(context.Background(), st, "PreToolUse", bytes.NewReader(
		[]byte(`{"summary":"running tests","tool_name":"Bash","result":"ok","files":["a.go","b.go"]}`)))
	require.NoError(t, err)
	require.True(t, result.Stored)

	ev, err := st.GetEvent(context.Background(), result.EventID)
	require.NoError(t, err)
	assert.Equal(t, store.EventToolUse, ev.EventType)
	assert.Equal(t, "running tests", ev.Summary)
	assert.ElementsMatch(t, []string{"a.go", "b.go"}, ev.FilesTouched)
}
