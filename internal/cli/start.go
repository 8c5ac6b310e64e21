package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ctxmemory/ctx-agent/internal/paths"
	"github.com/ctxmemory/ctx-agent/internal/registry"
)

func newStartCmd() *cobra.Command {
	var agentLabel string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start recording the current project",
		Long:  "Start a session and spawn the Recorder, unless one is already running for this project.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStart(cmd, agentLabel)
		},
	}

	cmd.Flags().StringVar(&agentLabel, "agent", "", "coding assistant label recorded on the session")

	return cmd
}

func runStart(cmd *cobra.Command, agentLabel string) error {
	root, err := resolveProjectRoot("")
	if err != nil {
		return err
	}
	memoryRoot := paths.MemoryRoot(root)
	if err := ensureSettingsFile(memoryRoot); err != nil {
		return err
	}

	reg, err := openRegistry()
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}
	defer reg.Close()

	project, err := reg.Get(root)
	if err != nil && !errors.Is(err, registry.ErrNotFound) {
		return fmt.Errorf("looking up project: %w", err)
	}
	if project != nil && project.RecordingState == registry.RecordingRecording &&
		project.RecorderPID != nil && processAlive(*project.RecorderPID) {
		return fmt.Errorf("recording already running for %s (pid %d)", root, *project.RecorderPID)
	}

	st, err := openProjectStore(root)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	session, err := st.StartSession(cmd.Context(), agentLabel, "")
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	pid, err := spawnDetachedRecorder(root)
	if err != nil {
		return fmt.Errorf("spawning recorder: %w", err)
	}

	if err := st.SetRecorderPID(cmd.Context(), pid); err != nil {
		return fmt.Errorf("recording recorder pid: %w", err)
	}
	if err := reg.SetRecordingState(root, registry.RecordingRecording, session.ID, pid); err != nil {
		return fmt.Errorf("updating registry: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Started session %d for %s (recorder pid %d)\n", session.ID, root, pid)

	return nil
}
