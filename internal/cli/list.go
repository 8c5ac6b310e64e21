package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ctxmemory/ctx-agent/internal/registry"
)

func newListCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects known to ctx-agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, name)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "filter to projects with this display name")

	return cmd
}

func runList(cmd *cobra.Command, name string) error {
	reg, err := openRegistry()
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}
	defer reg.Close()

	var projects []registry.Project
	if name != "" {
		projects, err = reg.FindByDisplayName(name)
		switch {
		case errors.Is(err, registry.ErrAmbiguousName):
			fmt.Fprintf(cmd.ErrOrStderr(), "ambiguous: more than one project named %q\n", name)
			return exitCodeError{code: 2, err: err}
		case errors.Is(err, registry.ErrNotFound):
			projects = nil
		case err != nil:
			return fmt.Errorf("looking up %q: %w", name, err)
		}
	} else {
		projects, err = reg.List(false)
		if err != nil {
			return fmt.Errorf("listing projects: %w", err)
		}
	}

	if len(projects) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No projects registered.")
		return nil
	}

	w := cmd.OutOrStdout()
	for _, p := range projects {
		fmt.Fprintf(w, "%-20s %-10s %s\n", p.DisplayName, p.RecordingState, p.Path)
	}
	return nil
}
