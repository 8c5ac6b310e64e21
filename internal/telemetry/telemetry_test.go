package telemetry

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
)

func TestNewClientOptOut(t *testing.T) {
	t.Setenv(OptOutEnvVar, "1")

	client := NewClient("1.0.0", nil)

	if _, ok := client.(*NoOpClient); !ok {
		t.Error("CTX_TELEMETRY_OPTOUT=1 should return NoOpClient")
	}
}

func TestNewClientOptOutWithAnyValue(t *testing.T) {
	t.Setenv(OptOutEnvVar, "yes")

	client := NewClient("1.0.0", nil)

	if _, ok := client.(*NoOpClient); !ok {
		t.Error("CTX_TELEMETRY_OPTOUT with any value should return NoOpClient")
	}
}

func TestNewClientTelemetryDisabledInSettings(t *testing.T) {
	disabled := false
	client := NewClient("1.0.0", &disabled)

	if _, ok := client.(*NoOpClient); !ok {
		t.Error("telemetryEnabled=false should return NoOpClient")
	}
}

func TestNewClientTelemetryUnsetInSettings(t *testing.T) {
	client := NewClient("1.0.0", nil)

	if _, ok := client.(*NoOpClient); !ok {
		t.Error("telemetryEnabled=nil should default to NoOpClient")
	}
}

func TestNoOpClientMethods(_ *testing.T) {
	client := &NoOpClient{}

	client.TrackCommand(nil, "", false)
	client.TrackCommand(&cobra.Command{Use: "test"}, "claude", true)
	client.Close()
}

func TestWithClientAndGetClient(t *testing.T) {
	ctx := context.Background()
	client := &NoOpClient{}

	ctx = WithClient(ctx, client)
	retrieved := GetClient(ctx)

	if _, ok := retrieved.(*NoOpClient); !ok {
		t.Error("GetClient should return the client set with WithClient")
	}
}

func TestGetClientReturnsNoOpWhenNotSet(t *testing.T) {
	ctx := context.Background()

	client := GetClient(ctx)

	if _, ok := client.(*NoOpClient); !ok {
		t.Error("GetClient should return NoOpClient when no client is set")
	}
}

func TestPostHogClientSkipsHiddenCommands(_ *testing.T) {
	client := &PostHogClient{machineID: "test-id"}

	hiddenCmd := &cobra.Command{Use: "hidden", Hidden: true}

	client.TrackCommand(hiddenCmd, "claude", true)
}

func TestPostHogClientSkipsNilCommand(_ *testing.T) {
	client := &PostHogClient{machineID: "test-id"}

	client.TrackCommand(nil, "claude", true)
}

func TestPostHogClientClose(_ *testing.T) {
	client := &PostHogClient{machineID: "test-id"}

	// internal client is nil; Close must not panic
	client.Close()
}

func TestTrackCommandUsesCommandPath(t *testing.T) {
	client := &PostHogClient{machineID: "test-id"}

	cmd := &cobra.Command{Use: "status"}
	rootCmd := &cobra.Command{Use: "ctxagent"}
	rootCmd.AddCommand(cmd)

	if cmd.CommandPath() != "ctxagent status" {
		t.Errorf("CommandPath() = %q, want %q", cmd.CommandPath(), "ctxagent status")
	}

	// internal client is nil; TrackCommand must not panic
	client.TrackCommand(cmd, "claude", true)
}
