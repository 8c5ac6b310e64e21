package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFiles(t *testing.T) {
	dir := t.TempDir()
	settings, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, settings.Enabled)
	assert.Equal(t, DefaultPollIntervalSeconds, settings.PollIntervalSeconds)
	assert.EqualValues(t, DefaultStorageCapBytes, settings.StorageCapBytes)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	settings := defaults()
	settings.Client = "claude"
	settings.LogLevel = "debug"

	require.NoError(t, Save(dir, settings))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "claude", loaded.Client)
	assert.Equal(t, "debug", loaded.LogLevel)
}

func TestLocalOverridesMergeOntoBase(t *testing.T) {
	dir := t.TempDir()
	base := defaults()
	base.Client = "claude"
	base.PollIntervalSeconds = 10
	require.NoError(t, Save(dir, base))

	local := &Settings{LogLevel: "debug"}
	require.NoError(t, SaveLocal(dir, local))

	merged, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "claude", merged.Client, "base value survives when local doesn't override it")
	assert.Equal(t, "debug", merged.LogLevel, "local override applied")
	assert.Equal(t, 10, merged.PollIntervalSeconds)
}

func TestFeatureEnabled(t *testing.T) {
	s := &Settings{Features: map[string]bool{"vector_search_backend": true}}
	assert.True(t, s.FeatureEnabled("vector_search_backend"))
	assert.False(t, s.FeatureEnabled("unknown"))

	var empty Settings
	assert.False(t, empty.FeatureEnabled("anything"))
}

func TestIsEnabledDefaultsTrueOnMissingFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nonexistent")
	enabled, err := IsEnabled(dir)
	require.NoError(t, err)
	assert.True(t, enabled)
}
