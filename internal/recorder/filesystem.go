package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/ctxmemory/ctx-agent/internal/paths"
	"github.com/ctxmemory/ctx-agent/internal/store"
)

const hashChunkSize = 64 * 1024

// hashFile computes the SHA-256 digest of a file's contents, read in
// 64 KiB chunks.
func hashFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the project's own filesystem walk
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// scanFilesystem walks the project root, returning a map of
// project-relative POSIX paths to their content hash, skipping
// denylisted directories and ctx-agent's own infrastructure.
func scanFilesystem(projectRoot string) (map[string]string, error) {
	snapshot := make(map[string]string)

	err := filepath.Walk(projectRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		rel, relErr := filepath.Rel(projectRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." && (isDenylistedDir(info.Name()) || paths.IsInfrastructurePath(rel)) {
				return filepath.SkipDir
			}
			return nil
		}

		if paths.IsInfrastructurePath(rel) {
			return nil
		}

		hash, hashErr := hashFile(path)
		if hashErr != nil {
			if os.IsNotExist(hashErr) {
				return nil // removed between Walk's stat and our read
			}
			return hashErr
		}
		snapshot[rel] = hash
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// diffSnapshots computes the set-difference between two filesystem
// snapshots: added and modified paths carry their new hash, removed
// paths carry store.DeletedHash.
func diffSnapshots(prev, next map[string]string) map[string]string {
	changes := make(map[string]string)
	for path, hash := range next {
		if prevHash, ok := prev[path]; !ok || prevHash != hash {
			changes[path] = hash
		}
	}
	for path := range prev {
		if _, ok := next[path]; !ok {
			changes[path] = store.DeletedHash
		}
	}
	return changes
}
