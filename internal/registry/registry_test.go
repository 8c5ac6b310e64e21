package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	home := t.TempDir()
	r, err := Open(home)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestUpsertNeverClearsDisplayName(t *testing.T) {
	r := openTestRegistry(t)

	_, err := r.Upsert("/repo/a", "repo-a")
	require.NoError(t, err)

	p, err := r.Upsert("/repo/a", "")
	require.NoError(t, err)
	assert.Equal(t, "repo-a", p.DisplayName)

	p, err = r.Upsert("/repo/a", "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", p.DisplayName)
}

func TestGetNotFound(t *testing.T) {
	r := openTestRegistry(t)
	_, err := r.Get("/nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListExcludesDeletedByDefault(t *testing.T) {
	r := openTestRegistry(t)
	_, err := r.Upsert("/repo/a", "a")
	require.NoError(t, err)
	_, err = r.Upsert("/repo/b", "b")
	require.NoError(t, err)
	require.NoError(t, r.SetDeleted("/repo/b"))

	active, err := r.List(false)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := r.List(true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFindByDisplayNameAmbiguous(t *testing.T) {
	r := openTestRegistry(t)
	_, err := r.Upsert("/repo/a", "shared")
	require.NoError(t, err)
	_, err = r.Upsert("/repo/b", "shared")
	require.NoError(t, err)

	matches, err := r.FindByDisplayName("shared")
	assert.ErrorIs(t, err, ErrAmbiguousName)
	assert.Len(t, matches, 2)
}

func TestSetRecordingStateStoppedClearsSessionAndPID(t *testing.T) {
	r := openTestRegistry(t)
	_, err := r.Upsert("/repo/a", "a")
	require.NoError(t, err)

	require.NoError(t, r.SetRecordingState("/repo/a", RecordingRecording, 42, 1234))
	p, err := r.Get("/repo/a")
	require.NoError(t, err)
	require.NotNil(t, p.ActiveSessionID)
	assert.EqualValues(t, 42, *p.ActiveSessionID)

	require.NoError(t, r.SetRecordingState("/repo/a", RecordingStopped, 0, 0))
	p, err = r.Get("/repo/a")
	require.NoError(t, err)
	assert.Nil(t, p.ActiveSessionID)
	assert.Nil(t, p.RecorderPID)
}

func TestSetDeletedForcesStoppedState(t *testing.T) {
	r := openTestRegistry(t)
	_, err := r.Upsert("/repo/a", "a")
	require.NoError(t, err)
	require.NoError(t, r.SetRecordingState("/repo/a", RecordingRecording, 1, 1))

	require.NoError(t, r.SetDeleted("/repo/a"))
	p, err := r.Get("/repo/a")
	require.NoError(t, err)
	assert.True(t, p.IsDeleted())
	assert.Equal(t, RecordingStopped, p.RecordingState)
	assert.Nil(t, p.ActiveSessionID)
}

func TestSetAdapterLogPathRejectsUnknownAdapter(t *testing.T) {
	r := openTestRegistry(t)
	_, err := r.Upsert("/repo/a", "a")
	require.NoError(t, err)

	err = r.SetAdapterLogPath("/repo/a", "not-a-real-adapter", "/tmp/x.log")
	assert.ErrorIs(t, err, ErrUnknownAdapter)
}

func TestSetAdapterLogPathWritesTOMLMirror(t *testing.T) {
	home := t.TempDir()
	r, err := Open(home)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Upsert("/repo/a", "a")
	require.NoError(t, err)
	require.NoError(t, r.SetAdapterLogPath("/repo/a", "claude", "/repo/a/.claude/session.log"))

	data, err := os.ReadFile(filepath.Join(home, "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "log_path")
	assert.Contains(t, string(data), "/repo/a/.claude/session.log")

	adapters, err := r.AdapterMap("/repo/a")
	require.NoError(t, err)
	assert.Equal(t, "/repo/a/.claude/session.log", adapters["claude"])
}

func TestRemoveDeletesProjectAndAdapters(t *testing.T) {
	r := openTestRegistry(t)
	_, err := r.Upsert("/repo/a", "a")
	require.NoError(t, err)
	require.NoError(t, r.SetAdapterLogPath("/repo/a", "cursor", "/tmp/x.log"))

	require.NoError(t, r.Remove("/repo/a"))
	_, err = r.Get("/repo/a")
	assert.ErrorIs(t, err, ErrNotFound)

	adapters, err := r.AdapterMap("/repo/a")
	require.NoError(t, err)
	assert.Empty(t, adapters)
}
