package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/ctxmemory/ctx-agent/internal/registry"
)

func newDoctorCmd() *cobra.Command {
	var forceFlag bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Fix projects stuck in a recording state",
		Long: `Scan the Registry for projects marked recording whose recorder
process is no longer alive, and reconcile their state to stopped.

Use --force to reconcile all stale projects without prompting.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, forceFlag)
		},
	}

	cmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "reconcile all stale projects without prompting")

	return cmd
}

func runDoctor(cmd *cobra.Command, force bool) error {
	reg, err := openRegistry()
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}
	defer reg.Close()

	projects, err := reg.List(false)
	if err != nil {
		return fmt.Errorf("listing projects: %w", err)
	}

	var stale []registry.Project
	for _, p := range projects {
		if p.RecordingState != registry.RecordingRecording {
			continue
		}
		if p.RecorderPID != nil && processAlive(*p.RecorderPID) {
			continue
		}
		stale = append(stale, p)
	}

	w := cmd.OutOrStdout()
	if len(stale) == 0 {
		fmt.Fprintln(w, "No stuck projects found.")
		return nil
	}

	fmt.Fprintf(w, "Found %d project(s) marked recording with no live recorder:\n\n", len(stale))
	for _, p := range stale {
		pid := 0
		if p.RecorderPID != nil {
			pid = *p.RecorderPID
		}
		fmt.Fprintf(w, "  %s (%s) — last known recorder pid %d\n", p.DisplayName, p.Path, pid)

		reconcile := force
		if !force {
			reconcile, err = promptReconcile(p)
			if err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return fmt.Errorf("prompting: %w", err)
			}
		}

		if !reconcile {
			fmt.Fprintln(w, "  -> skipped")
			continue
		}
		if err := reg.SetRecordingState(p.Path, registry.RecordingStopped, 0, 0); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "  -> failed to reconcile %s: %v\n", p.Path, err)
			continue
		}
		fmt.Fprintln(w, "  -> reconciled to stopped")
	}

	return nil
}

func promptReconcile(p registry.Project) (bool, error) {
	var confirm bool
	form := newAccessibleForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Mark %s as stopped?", p.DisplayName)).
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return confirm, nil
}
