package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ctxmemory/ctx-agent/internal/hookingest"
)

func newHooksCmd() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:    "hooks <hook-name>",
		Short:  "Ingest a coding assistant hook event from stdin",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHooks(cmd, args[0], project)
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project root (defaults to the nearest git repository)")

	return cmd
}

func runHooks(cmd *cobra.Command, hookName, project string) error {
	root, err := resolveProjectRoot(project)
	if err != nil {
		return err
	}

	st, err := openProjectStore(root)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	result, err := hookingest.Ingest(cmd.Context(), st, hookName, cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("ingesting hook event: %w", err)
	}

	if !result.Stored {
		fmt.Fprintln(cmd.ErrOrStderr(), result.Notice)
		return nil
	}

	return nil
}
