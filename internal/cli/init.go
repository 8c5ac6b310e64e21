package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ctxmemory/ctx-agent/internal/config"
	"github.com/ctxmemory/ctx-agent/internal/integration"
	"github.com/ctxmemory/ctx-agent/internal/paths"
)

const defaultRulesBody = `ctx-agent is recording this project's prompts, tool calls, file
changes, and commits into a local, durable store. Use its MCP tools
(get_context, append_event) to recover what happened in earlier
sessions instead of asking the operator to repeat themselves.`

func newInitCmd() *cobra.Command {
	var client string
	var editor string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Register the current project with ctx-agent",
		Long: `Register the current project in the Registry, write a default
settings.json, and wire ctx-agent into the given editor as an MCP
server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, client, editor)
		},
	}

	cmd.Flags().StringVar(&client, "client", "", "coding assistant this project is wired to (claude, cursor)")
	cmd.Flags().StringVar(&editor, "editor", "claude", "editor integration to write (claude, cursor)")

	return cmd
}

func runInit(cmd *cobra.Command, client, editor string) error {
	root, err := resolveProjectRoot("")
	if err != nil {
		return err
	}

	reg, err := openRegistry()
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}
	defer reg.Close()

	displayName := displayNameFor(root)
	if _, err := reg.Upsert(root, displayName); err != nil {
		return fmt.Errorf("registering project: %w", err)
	}

	memoryRoot := paths.MemoryRoot(root)
	settings := &config.Settings{
		Enabled:             true,
		Client:              client,
		PollIntervalSeconds: config.DefaultPollIntervalSeconds,
		StorageCapBytes:     config.DefaultStorageCapBytes,
	}
	if err := config.Save(memoryRoot, settings); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}

	kind := integration.EditorClaude
	configPath := filepath.Join(root, ".mcp.json")
	rulesPath := filepath.Join(root, "CLAUDE.md")
	if editor == "cursor" {
		kind = integration.EditorCursor
		configPath = filepath.Join(root, ".cursor", "mcp.json")
		rulesPath = filepath.Join(root, ".cursor", "rules", "ctx-agent.md")
	}

	if err := integration.WriteEditorConfig(kind, configPath, root); err != nil {
		return fmt.Errorf("writing editor config: %w", err)
	}
	if err := integration.WriteRulesDocument(rulesPath, defaultRulesBody); err != nil {
		return fmt.Errorf("writing rules document: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized ctx-agent for %s\n", root)
	fmt.Fprintf(cmd.OutOrStdout(), "  registry:    %s\n", displayName)
	fmt.Fprintf(cmd.OutOrStdout(), "  settings:    %s\n", filepath.Join(memoryRoot, "settings.json"))
	fmt.Fprintf(cmd.OutOrStdout(), "  editor:      %s\n", configPath)
	fmt.Fprintf(cmd.OutOrStdout(), "  rules:       %s\n", rulesPath)

	return nil
}

// ensureSettingsFile is used by start/doctor to confirm init has run
// before letting a session begin against a project the Registry
// doesn't know about yet.
func ensureSettingsFile(memoryRoot string) error {
	path := filepath.Join(memoryRoot, "settings.json")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("project not initialized: run `ctxagent init` first")
	}
	return nil
}
