package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// configMirror is the on-disk shape of config.toml: one
// [adapters.<name>] table per configured adapter, across every
// project this Registry knows about.
type configMirror struct {
	Adapters map[string]adapterEntry `toml:"adapters"`
}

type adapterEntry struct {
	Project string `toml:"project"`
	LogPath string `toml:"log_path"`
}

// writeConfigMirror serializes the full adapter map to config.toml
// under the registry home. It's a full rewrite on every adapter
// write — the mirror is derived state, never hand-edited, so there's
// no merge-by-key concern the way there is for settings.json.
func (r *Registry) writeConfigMirror() error {
	rows, err := r.allAdapters()
	if err != nil {
		return fmt.Errorf("loading adapters for mirror: %w", err)
	}

	mirror := configMirror{Adapters: make(map[string]adapterEntry, len(rows))}
	for _, row := range rows {
		key := fmt.Sprintf("%s_%s", sanitizeTOMLKey(row.projectPath), row.name)
		mirror.Adapters[key] = adapterEntry{Project: row.projectPath, LogPath: row.logPath}
	}

	path := filepath.Join(r.home, "config.toml")
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644) //nolint:gosec // human-readable config mirror, not secrets
	if err != nil {
		return fmt.Errorf("creating config mirror: %w", err)
	}

	if err := toml.NewEncoder(f).Encode(mirror); err != nil {
		f.Close()
		return fmt.Errorf("encoding config mirror: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

func sanitizeTOMLKey(path string) string {
	out := make([]rune, 0, len(path))
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

type adapterRow struct {
	projectPath string
	name        string
	logPath     string
}

func (r *Registry) allAdapters() ([]adapterRow, error) {
	rows, err := r.db.Query(`SELECT project_path, name, log_path FROM adapters ORDER BY project_path, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []adapterRow
	for rows.Next() {
		var row adapterRow
		if err := rows.Scan(&row.projectPath, &row.name, &row.logPath); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].projectPath != out[j].projectPath {
			return out[i].projectPath < out[j].projectPath
		}
		return out[i].name < out[j].name
	})
	return out, rows.Err()
}
