package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ctxmemory/ctx-agent/internal/config"
	"github.com/ctxmemory/ctx-agent/internal/paths"
	"github.com/ctxmemory/ctx-agent/internal/telemetry"
)

// Commit is set at build time.
var Commit = "unknown"

// NewRootCmd builds the ctxagent command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ctxagent",
		Short: "ctx-agent: durable context memory for AI coding assistants",
		Long: `ctxagent records what an AI coding assistant does to a project -
prompts, tool calls, file changes, commits - into a local, durable
store, and serves that history back over an MCP-compatible RPC
interface so the assistant can recover context across sessions.`,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			settings := loadEffectiveSettings(paths.RepoRootOr("."))
			telemetry.TrackCommandDetached(cmd, settings.Client, settings.Enabled, Version)
			checkForUpdate(cmd, Version)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newHooksCmd())
	cmd.AddCommand(newRPCCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newSendAnalyticsCmd())
	cmd.AddCommand(newRecorderDaemonCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ctxagent %s (%s)\n", Version, Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newSendAnalyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "__send-analytics",
		Hidden: true,
		Run: func(_ *cobra.Command, _ []string) {
			telemetry.SendEvent(os.Getenv(telemetry.SendAnalyticsEnvVar))
		},
	}
}

// loadEffectiveSettings loads project settings for telemetry/defaults
// purposes, tolerating a project that hasn't been initialized yet.
func loadEffectiveSettings(root string) *config.Settings {
	settings, err := config.Load(paths.MemoryRoot(root))
	if err != nil {
		return &config.Settings{Enabled: true, PollIntervalSeconds: config.DefaultPollIntervalSeconds}
	}
	return settings
}
