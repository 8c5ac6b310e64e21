// Package cli wires ctx-agent's core components (Store, Registry,
// Recorder, RPC Server, Hook Ingestor) into an operator-facing cobra
// command tree. None of the decisions here — flag names, prompt copy,
// table formatting — bind the durable on-disk formats; they exist so
// the core is reachable end to end.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctxmemory/ctx-agent/internal/paths"
	"github.com/ctxmemory/ctx-agent/internal/registry"
	"github.com/ctxmemory/ctx-agent/internal/store"
)

// Version is set at build time.
var Version = "dev"

// resolveProjectRoot returns explicitPath if set, else the nearest git
// repository root, else the current working directory.
func resolveProjectRoot(explicitPath string) (string, error) {
	if explicitPath != "" {
		abs, err := filepath.Abs(explicitPath)
		if err != nil {
			return "", fmt.Errorf("resolving project path: %w", err)
		}
		return abs, nil
	}

	if root, err := paths.RepoRoot(); err == nil {
		return root, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving current directory: %w", err)
	}
	return cwd, nil
}

// openProjectStore opens the Project Store for the project at root,
// creating the memory root directory structure if it doesn't exist.
func openProjectStore(root string) (*store.Store, error) {
	return store.Open(root, paths.MemoryRoot(root), paths.StorePath(root))
}

// openRegistry opens the cross-project Registry at its configured
// home directory (CTX_HOME or ~/.context-agent).
func openRegistry() (*registry.Registry, error) {
	home, err := paths.RegistryHome()
	if err != nil {
		return nil, err
	}
	return registry.Open(home)
}

// displayNameFor derives a Registry display name from a project root
// when the operator hasn't supplied one explicitly.
func displayNameFor(root string) string {
	return filepath.Base(root)
}
