package recorder

// denylistedDirs names path components that exclude a subtree from
// filesystem polling: VCS metadata, dependency/build caches,
// virtualenvs, and editor directories, plus the memory root itself
// (covered separately via paths.IsInfrastructurePath).
var denylistedDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".svn":          true,
	"node_modules":  true,
	"vendor":        true,
	".venv":         true,
	"venv":          true,
	"__pycache__":   true,
	".mypy_cache":   true,
	".pytest_cache": true,
	"dist":          true,
	"build":         true,
	"target":        true,
	".idea":         true,
	".vscode":       true,
	".DS_Store":     true,
	".cache":        true,
	".context-memory": true,
}

// isDenylistedDir reports whether a single path component should
// exclude the directory it names from the walk.
func isDenylistedDir(name string) bool {
	return denylistedDirs[name]
}
