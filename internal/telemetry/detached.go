package telemetry

import (
	"encoding/json"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// PostHogAPIKey is set at build time for production.
	PostHogAPIKey = "phc_development_key"
	// PostHogEndpoint is set at build time for production.
	PostHogEndpoint = "https://eu.i.posthog.com"
)

// SendAnalyticsEnvVar carries the event payload to the detached
// subprocess spawned by TrackCommandDetached.
const SendAnalyticsEnvVar = "CTXAGENT_SEND_ANALYTICS_PAYLOAD"

// EventPayload represents the data passed to the detached subprocess.
// APIKey and Endpoint are intentionally excluded to avoid exposing them
// in process listings; SendEvent reads them from package-level vars.
type EventPayload struct {
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties"`
	Timestamp  time.Time      `json:"timestamp"`
}

// silentLogger suppresses PostHog log output, expected for best-effort telemetry.
type silentLogger struct{}

func (silentLogger) Logf(_ string, _ ...interface{})   {}
func (silentLogger) Debugf(_ string, _ ...interface{}) {}
func (silentLogger) Warnf(_ string, _ ...interface{})  {}
func (silentLogger) Errorf(_ string, _ ...interface{}) {}

// BuildEventPayload constructs the event payload for tracking.
// Returns nil if the payload cannot be built.
func BuildEventPayload(cmd *cobra.Command, client string, recordingEnabled bool, version string) *EventPayload {
	if cmd == nil {
		return nil
	}

	machineID, err := machineid.ProtectedID("ctx-agent")
	if err != nil {
		return nil
	}

	var flags []string
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		flags = append(flags, flag.Name)
	})

	selectedClient := client
	if selectedClient == "" {
		selectedClient = "auto"
	}

	properties := map[string]any{
		"command":           cmd.CommandPath(),
		"client":            selectedClient,
		"recording_enabled": recordingEnabled,
		"cli_version":       version,
		"os":                runtime.GOOS,
		"arch":              runtime.GOARCH,
	}

	if len(flags) > 0 {
		properties["flags"] = strings.Join(flags, ",")
	}

	return &EventPayload{
		Event:      "cli_command_executed",
		DistinctID: machineID,
		Properties: properties,
		Timestamp:  time.Now(),
	}
}

// TrackCommandDetached tracks a command execution by spawning a detached
// subprocess, so the CLI never blocks on network I/O before exiting.
func TrackCommandDetached(cmd *cobra.Command, client string, recordingEnabled bool, version string) {
	if os.Getenv(OptOutEnvVar) != "" {
		return
	}
	if cmd == nil || cmd.Hidden {
		return
	}

	payload := BuildEventPayload(cmd, client, recordingEnabled, version)
	if payload == nil {
		return
	}

	if payloadJSON, err := json.Marshal(payload); err == nil {
		spawnDetachedAnalytics(string(payloadJSON))
	}
}

// spawnDetachedAnalytics re-invokes the current executable with the
// hidden "__send-analytics" command, passing the payload via an
// environment variable, then detaches so the parent process can exit
// immediately.
func spawnDetachedAnalytics(payloadJSON string) {
	exe, err := os.Executable()
	if err != nil {
		return
	}

	cmd := exec.Command(exe, "__send-analytics")
	cmd.Env = append(os.Environ(), SendAnalyticsEnvVar+"="+payloadJSON)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	//nolint:errcheck // best-effort telemetry, failures should not affect CLI
	_ = cmd.Start()
}

// SendEvent processes an event payload in the detached subprocess. This
// is invoked by the hidden "__send-analytics" command.
func SendEvent(payloadJSON string) {
	var payload EventPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return
	}

	client, err := posthog.NewWithConfig(PostHogAPIKey, posthog.Config{
		Endpoint:     PostHogEndpoint,
		Logger:       silentLogger{},
		DisableGeoIP: posthog.Ptr(true),
	})
	if err != nil {
		return
	}
	defer func() {
		_ = client.Close()
	}()

	props := posthog.NewProperties()
	for k, v := range payload.Properties {
		props.Set(k, v)
	}

	//nolint:errcheck // best-effort telemetry, failures should not affect CLI
	_ = client.Enqueue(posthog.Capture{
		DistinctId: payload.DistinctID,
		Event:      payload.Event,
		Properties: props,
		Timestamp:  payload.Timestamp,
	})
}
