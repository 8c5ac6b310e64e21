// Package config loads and saves the per-project settings file
// (.context-memory/settings.json), layering settings.local.json on top
// field by field so a developer's local overrides never clobber
// teammates' shared defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctxmemory/ctx-agent/internal/jsonutil"
	"github.com/ctxmemory/ctx-agent/internal/paths"
)

// DefaultPollIntervalSeconds is the Recorder's default poll interval
// when the settings file does not specify one.
const DefaultPollIntervalSeconds = 5

// DefaultStorageCapBytes is the Project Store's default quota before
// compaction triggers.
const DefaultStorageCapBytes = 100 * 1024 * 1024

// Settings represents .context-memory/settings.json.
type Settings struct {
	// Enabled controls whether recording is active for this project.
	// Defaults to true.
	Enabled bool `json:"enabled"`

	// Client names the coding assistant this project is wired to
	// ("claude", "cursor"). Empty means auto-detect.
	Client string `json:"client,omitempty"`

	// LogLevel sets logging verbosity (debug, info, warn, error).
	// CTX_LOG_LEVEL overrides this.
	LogLevel string `json:"log_level,omitempty"`

	// PollIntervalSeconds is the Recorder's poll loop period.
	PollIntervalSeconds int `json:"poll_interval_seconds,omitempty"`

	// StorageCapBytes is the Project Store's compaction threshold.
	StorageCapBytes int64 `json:"storage_cap_bytes,omitempty"`

	// Telemetry controls anonymous usage analytics.
	// nil = not asked yet, true = opted in, false = opted out.
	Telemetry *bool `json:"telemetry,omitempty"`

	// Features holds feature flags recorded but not necessarily
	// exercised (e.g. "vector_search_backend").
	Features map[string]bool `json:"features,omitempty"`
}

func defaults() *Settings {
	return &Settings{
		Enabled:             true,
		PollIntervalSeconds: DefaultPollIntervalSeconds,
		StorageCapBytes:     DefaultStorageCapBytes,
	}
}

// Load reads settings.json from the given memory root, then applies
// any overrides from settings.local.json if present. Returns defaults
// if neither file exists.
func Load(memoryRoot string) (*Settings, error) {
	base := filepath.Join(memoryRoot, paths.SettingsFileName)
	local := filepath.Join(memoryRoot, paths.SettingsLocalFileName)

	settings, err := loadFromFile(base)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	localData, err := os.ReadFile(local) //nolint:gosec // path built from a known memory root
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading local settings file: %w", err)
		}
	} else if err := mergeJSON(settings, localData); err != nil {
		return nil, fmt.Errorf("merging local settings: %w", err)
	}

	return settings, nil
}

func loadFromFile(filePath string) (*Settings, error) {
	settings := defaults()

	data, err := os.ReadFile(filePath) //nolint:gosec // path built from a known memory root
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}
	if settings.PollIntervalSeconds == 0 {
		settings.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if settings.StorageCapBytes == 0 {
		settings.StorageCapBytes = DefaultStorageCapBytes
	}
	return settings, nil
}

// mergeJSON merges JSON data into existing settings; only fields
// present in data override the current value.
func mergeJSON(settings *Settings, data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	if v, ok := raw["enabled"]; ok {
		if err := json.Unmarshal(v, &settings.Enabled); err != nil {
			return fmt.Errorf("parsing enabled field: %w", err)
		}
	}
	if v, ok := raw["client"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("parsing client field: %w", err)
		}
		if s != "" {
			settings.Client = s
		}
	}
	if v, ok := raw["log_level"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("parsing log_level field: %w", err)
		}
		if s != "" {
			settings.LogLevel = s
		}
	}
	if v, ok := raw["poll_interval_seconds"]; ok {
		var n int
		if err := json.Unmarshal(v, &n); err != nil {
			return fmt.Errorf("parsing poll_interval_seconds field: %w", err)
		}
		if n > 0 {
			settings.PollIntervalSeconds = n
		}
	}
	if v, ok := raw["storage_cap_bytes"]; ok {
		var n int64
		if err := json.Unmarshal(v, &n); err != nil {
			return fmt.Errorf("parsing storage_cap_bytes field: %w", err)
		}
		if n > 0 {
			settings.StorageCapBytes = n
		}
	}
	if v, ok := raw["telemetry"]; ok {
		var t bool
		if err := json.Unmarshal(v, &t); err != nil {
			return fmt.Errorf("parsing telemetry field: %w", err)
		}
		settings.Telemetry = &t
	}
	if v, ok := raw["features"]; ok {
		var f map[string]bool
		if err := json.Unmarshal(v, &f); err != nil {
			return fmt.Errorf("parsing features field: %w", err)
		}
		if settings.Features == nil {
			settings.Features = f
		} else {
			for k, val := range f {
				settings.Features[k] = val
			}
		}
	}

	return nil
}

// Save writes settings to settings.json under memoryRoot.
func Save(memoryRoot string, settings *Settings) error {
	return saveToFile(filepath.Join(memoryRoot, paths.SettingsFileName), settings)
}

// SaveLocal writes settings to settings.local.json under memoryRoot.
func SaveLocal(memoryRoot string, settings *Settings) error {
	return saveToFile(filepath.Join(memoryRoot, paths.SettingsLocalFileName), settings)
}

func saveToFile(filePath string, settings *Settings) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	data, err := jsonutil.MarshalIndentWithNewline(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	//nolint:gosec // G306: settings file is config, not secrets; 0o644 is appropriate
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}

// IsEnabled returns whether recording is enabled for a project.
// Returns true by default if settings cannot be loaded.
func IsEnabled(memoryRoot string) (bool, error) {
	settings, err := Load(memoryRoot)
	if err != nil {
		return true, err
	}
	return settings.Enabled, nil
}

// FeatureEnabled reports whether a named feature flag is set.
func (s *Settings) FeatureEnabled(key string) bool {
	if s.Features == nil {
		return false
	}
	return s.Features[key]
}
