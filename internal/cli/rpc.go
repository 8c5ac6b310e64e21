package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ctxmemory/ctx-agent/internal/logging"
	"github.com/ctxmemory/ctx-agent/internal/paths"
	"github.com/ctxmemory/ctx-agent/internal/rpcserver"
)

func newRPCCmd() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:    "rpc",
		Short:  "Serve the MCP-compatible RPC interface over stdio",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRPC(cmd, project)
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project root (defaults to the nearest git repository)")

	return cmd
}

func runRPC(cmd *cobra.Command, project string) error {
	root, err := resolveProjectRoot(project)
	if err != nil {
		return err
	}

	memoryRoot := paths.MemoryRoot(root)
	if err := logging.Init(memoryRoot, "rpc"); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logging.Close()

	st, err := openProjectStore(root)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	server := rpcserver.New(st)
	return server.Serve(cmd.Context(), os.Stdin, os.Stdout)
}
