package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxmemory/ctx-agent/internal/paths"
	"github.com/ctxmemory/ctx-agent/internal/registry"
)

// setupTestProject creates a temp project directory and a temp
// registry home, pointing CTX_HOME at the latter, and changes the
// working directory to the former.
func setupTestProject(t *testing.T) string {
	t.Helper()
	projectDir := t.TempDir()
	t.Chdir(projectDir)
	paths.ClearRepoRootCache()

	registryHome := t.TempDir()
	t.Setenv(paths.RegistryHomeEnvVar, registryHome)

	return projectDir
}

func TestRunInitRegistersProjectAndWritesFiles(t *testing.T) {
	projectDir := setupTestProject(t)

	var stdout bytes.Buffer
	cmd := newInitCmd()
	cmd.SetOut(&stdout)
	cmd.SetContext(context.Background())
	require.NoError(t, runInit(cmd, "claude", "claude"))

	assert.FileExists(t, filepath.Join(projectDir, ".context-memory", "settings.json"))
	assert.FileExists(t, filepath.Join(projectDir, ".mcp.json"))
	assert.FileExists(t, filepath.Join(projectDir, "CLAUDE.md"))

	reg, err := openRegistry()
	require.NoError(t, err)
	defer reg.Close()
	project, err := reg.Get(projectDir)
	require.NoError(t, err)
	assert.Equal(t, registry.RecordingStopped, project.RecordingState)
}

func TestRunStatusBeforeInitShowsEmptySnapshot(t *testing.T) {
	setupTestProject(t)

	var stdout bytes.Buffer
	cmd := newStatusCmd()
	cmd.SetOut(&stdout)
	cmd.SetContext(context.Background())
	require.NoError(t, runStatus(cmd))

	assert.Contains(t, stdout.String(), "Session:  none")
}

func TestRunListWithNoProjectsReportsEmpty(t *testing.T) {
	setupTestProject(t)

	var stdout bytes.Buffer
	cmd := newListCmd()
	cmd.SetOut(&stdout)
	require.NoError(t, runList(cmd, ""))
	assert.Contains(t, stdout.String(), "No projects registered.")
}

func TestRunListAmbiguousNameExitsTwo(t *testing.T) {
	setupTestProject(t)

	reg, err := openRegistry()
	require.NoError(t, err)
	defer reg.Close()
	_, err = reg.Upsert("/repo/one", "shared-name")
	require.NoError(t, err)
	_, err = reg.Upsert("/repo/two", "shared-name")
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	cmd := newListCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err = runList(cmd, "shared-name")
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))
	assert.Contains(t, stderr.String(), "ambiguous")
}

func TestRunDoctorForceReconcilesStaleProjects(t *testing.T) {
	setupTestProject(t)

	reg, err := openRegistry()
	require.NoError(t, err)
	defer reg.Close()
	_, err = reg.Upsert("/repo/stale", "stale-project")
	require.NoError(t, err)
	require.NoError(t, reg.SetRecordingState("/repo/stale", registry.RecordingRecording, 1, 999999))

	var stdout bytes.Buffer
	cmd := newDoctorCmd()
	cmd.SetOut(&stdout)
	require.NoError(t, runDoctor(cmd, true))

	assert.Contains(t, stdout.String(), "reconciled to stopped")

	project, err := reg.Get("/repo/stale")
	require.NoError(t, err)
	assert.Equal(t, registry.RecordingStopped, project.RecordingState)
}

func TestRunDoctorSkipsLiveRecorders(t *testing.T) {
	setupTestProject(t)

	reg, err := openRegistry()
	require.NoError(t, err)
	defer reg.Close()
	_, err = reg.Upsert("/repo/live", "live-project")
	require.NoError(t, err)
	require.NoError(t, reg.SetRecordingState("/repo/live", registry.RecordingRecording, 1, os.Getpid()))

	var stdout bytes.Buffer
	cmd := newDoctorCmd()
	cmd.SetOut(&stdout)
	require.NoError(t, runDoctor(cmd, true))

	assert.Contains(t, stdout.String(), "No stuck projects found.")
}

func TestExitCodeMapsAmbiguousToTwo(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 2, ExitCode(exitCodeError{code: 2, err: errors.New("ambiguous")}))
}

func TestProcessAliveFalseForBogusPID(t *testing.T) {
	assert.False(t, processAlive(0))
	assert.False(t, processAlive(-1))
}

func TestStopRecorderProcessNoopWhenNotAlive(t *testing.T) {
	require.NoError(t, stopRecorderProcess(context.Background(), 999999999))
}

func TestDisplayNameForUsesBaseName(t *testing.T) {
	assert.Equal(t, "my-project", displayNameFor(filepath.Join("/", "repos", "my-project")))
}

func TestResolveProjectRootPrefersExplicitPath(t *testing.T) {
	setupTestProject(t)
	root, err := resolveProjectRoot("/explicit/path")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(root, filepath.Join("explicit", "path")))
}
