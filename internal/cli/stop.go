package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ctxmemory/ctx-agent/internal/registry"
)

// recorderExitPollInterval and the two wait windows below mirror the
// teacher's stop command timeout shape: a generous grace period for a
// clean exit, then a short final wait after escalating.
const (
	recorderGraceTimeout  = 10 * time.Second
	recorderKillTimeout   = 2 * time.Second
	recorderExitPollEvery = 200 * time.Millisecond
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop recording the current project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStop(cmd)
		},
	}
}

func runStop(cmd *cobra.Command) error {
	root, err := resolveProjectRoot("")
	if err != nil {
		return err
	}

	reg, err := openRegistry()
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}
	defer reg.Close()

	project, err := reg.Get(root)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return fmt.Errorf("project not registered: run `ctxagent init` first")
		}
		return fmt.Errorf("looking up project: %w", err)
	}
	if project.RecordingState != registry.RecordingRecording {
		return fmt.Errorf("no recording session running for %s", root)
	}

	st, err := openProjectStore(root)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if project.ActiveSessionID != nil {
		if err := st.StopSession(cmd.Context(), *project.ActiveSessionID); err != nil {
			return fmt.Errorf("stopping session: %w", err)
		}
	}

	if project.RecorderPID != nil {
		if err := stopRecorderProcess(cmd.Context(), *project.RecorderPID); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
	}

	if err := reg.SetRecordingState(root, registry.RecordingStopped, 0, 0); err != nil {
		return fmt.Errorf("updating registry: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stopped recording for %s\n", root)
	return nil
}

// stopRecorderProcess sends SIGTERM and waits up to recorderGraceTimeout
// for the process to exit on its own; if it's still alive, escalates to
// SIGKILL and waits up to recorderKillTimeout more.
func stopRecorderProcess(ctx context.Context, pid int) error {
	if !processAlive(pid) {
		return nil
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding recorder process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signaling recorder process: %w", err)
	}
	if waitForExit(ctx, pid, recorderGraceTimeout) {
		return nil
	}

	if err := proc.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("killing recorder process: %w", err)
	}
	if waitForExit(ctx, pid, recorderKillTimeout) {
		return nil
	}
	return fmt.Errorf("recorder process %d did not exit", pid)
}

func waitForExit(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(recorderExitPollEvery)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return !processAlive(pid)
}
