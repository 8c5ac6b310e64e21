package recorder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
)

// vcsSnapshot is the pair the poll loop diffs against the previous
// observation: the current HEAD commit and a porcelain-equivalent
// rendering of the working tree status.
type vcsSnapshot struct {
	head      string
	porcelain string
}

// openRepository opens the project's git repository, detecting the
// .git directory upward from the project root the same way the
// standard git CLI does.
func openRepository(projectRoot string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(projectRoot, &git.PlainOpenOptions{DetectDotGit: true})
}

// pollVCS reads the current HEAD and working-tree status. ok is false
// when the project root is not inside a git repository, in which case
// the caller should mark the source unavailable rather than error.
func pollVCS(projectRoot string) (vcsSnapshot, bool, error) {
	repo, err := openRepository(projectRoot)
	if err != nil {
		return vcsSnapshot{}, false, nil
	}

	head, err := repo.Head()
	headHash := ""
	if err == nil {
		headHash = head.Hash().String()
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return vcsSnapshot{}, false, fmt.Errorf("opening worktree: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return vcsSnapshot{}, false, fmt.Errorf("reading worktree status: %w", err)
	}

	return vcsSnapshot{head: headHash, porcelain: status.String()}, true, nil
}

// changedPaths extracts the sorted list of changed file paths from a
// go-git status, in the porcelain-style "XY path" line shape.
func changedPaths(porcelain string) []string {
	var paths []string
	for _, line := range strings.Split(porcelain, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if len(line) < 4 {
			continue
		}
		paths = append(paths, strings.TrimSpace(line[3:]))
	}
	sort.Strings(paths)
	return paths
}

// summarizeChangedPaths renders up to the first five changed paths
// plus an ellipsis marker if there are more, per §4.3.2.
func summarizeChangedPaths(paths []string) string {
	const max = 5
	if len(paths) == 0 {
		return "Working tree changed."
	}
	shown := paths
	suffix := ""
	if len(paths) > max {
		shown = paths[:max]
		suffix = ", …"
	}
	return fmt.Sprintf("Working tree changed: %s%s", strings.Join(shown, ", "), suffix)
}
