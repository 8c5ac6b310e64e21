package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// defaultOutputWidth is used when stdout isn't a terminal (piped,
// redirected to a file) and golang.org/x/term can't report a size.
const defaultOutputWidth = 100

// outputWidth returns the terminal column width for wrapping wide
// fields like event summaries, falling back when stdout isn't a TTY.
func outputWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultOutputWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultOutputWidth
	}
	return width
}

func truncateToWidth(s string, width int) string {
	if width <= 1 || len(s) <= width {
		return s
	}
	return s[:width-1] + "…"
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current project's recording status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	root, err := resolveProjectRoot("")
	if err != nil {
		return err
	}

	st, err := openProjectStore(root)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	snapshot, err := st.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading status: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Project:  %s\n", root)
	fmt.Fprintf(w, "State:    %s\n", snapshot.Project.RecordingState)
	if snapshot.ActiveSession != nil {
		fmt.Fprintf(w, "Session:  #%d (%s, started %s)\n",
			snapshot.ActiveSession.ID, snapshot.ActiveSession.AgentLabel,
			snapshot.ActiveSession.StartedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintln(w, "Session:  none")
	}
	fmt.Fprintf(w, "Storage:  %d / %d bytes\n", snapshot.Project.StorageUsedBytes, snapshot.Project.StorageCapBytes)
	fmt.Fprintf(w, "Dirty files: %d\n", snapshot.DirtyFileCount)

	if len(snapshot.SourceStatuses) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, src := range snapshot.SourceStatuses {
			line := fmt.Sprintf("  %-20s %s", src.SourceName, src.Status)
			if src.Detail != "" {
				line += " (" + src.Detail + ")"
			}
			fmt.Fprintln(w, line)
		}
	}

	if snapshot.LastRevert != nil {
		fmt.Fprintf(w, "\nLast revert: %s (%s)\n", snapshot.LastRevert.Summary,
			snapshot.LastRevert.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	if len(snapshot.RecentEvents) > 0 {
		fmt.Fprintln(w, "\nRecent events:")
		limit := len(snapshot.RecentEvents)
		if limit > 10 {
			limit = 10
		}
		width := outputWidth()
		for _, ev := range snapshot.RecentEvents[:limit] {
			prefix := fmt.Sprintf("  [%s] %s: ", ev.CreatedAt.Format("15:04:05"), ev.EventType)
			summary := ev.Summary
			if budget := width - len(prefix); budget > 0 {
				summary = truncateToWidth(summary, budget)
			}
			fmt.Fprintln(w, prefix+summary)
		}
	}

	return nil
}
