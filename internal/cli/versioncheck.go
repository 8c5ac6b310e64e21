package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/ctxmemory/ctx-agent/internal/logging"
	"github.com/ctxmemory/ctx-agent/internal/paths"
)

const (
	releasesAPIURL     = "https://api.github.com/repos/ctxmemory/ctx-agent/releases/latest"
	versionCacheFile   = "version_check.json"
	versionCheckPeriod = 24 * time.Hour
	versionHTTPTimeout = 3 * time.Second
)

type versionCache struct {
	LastCheckTime time.Time `json:"last_check_time"`
}

type githubRelease struct {
	TagName    string `json:"tag_name"`
	Prerelease bool   `json:"prerelease"`
}

// checkForUpdate notifies on stdout, at most once per versionCheckPeriod,
// if a newer release is available. Silent on every error path: a
// version check must never interrupt an operator command.
func checkForUpdate(cmd *cobra.Command, currentVersion string) {
	if cmd.Hidden || currentVersion == "dev" || currentVersion == "" {
		return
	}

	cachePath, err := versionCachePath()
	if err != nil {
		return
	}

	cache := loadVersionCache(cachePath)
	if time.Since(cache.LastCheckTime) < versionCheckPeriod {
		return
	}

	latest, fetchErr := fetchLatestVersion()
	cache.LastCheckTime = time.Now()
	saveVersionCache(cachePath, cache)

	if fetchErr != nil {
		logging.Debug(context.Background(), "version check failed", "error", fetchErr)
		return
	}

	if isOutdated(currentVersion, latest) {
		fmt.Fprintf(cmd.OutOrStdout(), "\nA newer version of ctxagent is available: %s (current: %s)\n", latest, currentVersion)
	}
}

func versionCachePath() (string, error) {
	home, err := paths.RegistryHome()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(home, 0o750); err != nil {
		return "", err
	}
	return filepath.Join(home, versionCacheFile), nil
}

func loadVersionCache(path string) versionCache {
	data, err := os.ReadFile(path) //nolint:gosec // path is built from the registry home
	if err != nil {
		return versionCache{}
	}
	var cache versionCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return versionCache{}
	}
	return cache
}

func saveVersionCache(path string, cache versionCache) {
	data, err := json.Marshal(cache)
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o644) //nolint:gosec,errcheck // best-effort cache, not security sensitive
}

func fetchLatestVersion() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), versionHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releasesAPIURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "ctxagent")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var release githubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return "", fmt.Errorf("parsing release: %w", err)
	}
	if release.Prerelease || release.TagName == "" {
		return "", errors.New("no stable release available")
	}
	return release.TagName, nil
}

func isOutdated(current, latest string) bool {
	if !strings.HasPrefix(current, "v") {
		current = "v" + current
	}
	if !strings.HasPrefix(latest, "v") {
		latest = "v" + latest
	}
	return semver.Compare(current, latest) < 0
}
