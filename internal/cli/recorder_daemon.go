package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ctxmemory/ctx-agent/internal/config"
	"github.com/ctxmemory/ctx-agent/internal/logging"
	"github.com/ctxmemory/ctx-agent/internal/paths"
	"github.com/ctxmemory/ctx-agent/internal/recorder"
)

// recorderIntervalEnvVar overrides the Recorder's poll interval in
// seconds, taking precedence over settings.json.
const recorderIntervalEnvVar = "CTX_RECORDER_INTERVAL"

// newRecorderDaemonCmd is the detached child `ctxagent start` spawns.
// It is never invoked directly by an operator.
func newRecorderDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "__recorder-daemon",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecorderDaemon(cmd)
		},
	}
}

func runRecorderDaemon(cmd *cobra.Command) error {
	root := os.Getenv(recorderProjectEnvVar)
	if root == "" {
		return fmt.Errorf("%s not set", recorderProjectEnvVar)
	}

	memoryRoot := paths.MemoryRoot(root)
	if err := logging.Init(memoryRoot, "recorder"); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logging.Close()

	st, err := openProjectStore(root)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	reg, err := openRegistry()
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}
	defer reg.Close()

	settings, err := config.Load(memoryRoot)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	interval := recorderInterval(settings.PollIntervalSeconds)

	session, err := st.ActiveSession(cmd.Context())
	if err != nil {
		return fmt.Errorf("looking up active session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("no active session for %s", root)
	}

	adapters, err := reg.AdapterMap(root)
	if err != nil {
		return fmt.Errorf("loading adapter map: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rec := recorder.New(st, reg, root, root, session.ID, adapters, interval)
	return rec.Run(ctx)
}

// recorderInterval resolves the poll interval: CTX_RECORDER_INTERVAL
// overrides settings.json, which overrides recorder.DefaultPollInterval.
func recorderInterval(settingsSeconds int) time.Duration {
	if raw := os.Getenv(recorderIntervalEnvVar); raw != "" {
		if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
			if interval, err := recorder.IntervalFromSeconds(seconds); err == nil {
				return interval
			}
		}
	}
	if interval, err := recorder.IntervalFromSeconds(float64(settingsSeconds)); err == nil {
		return interval
	}
	return recorder.DefaultPollInterval
}
