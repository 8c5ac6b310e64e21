// Package recorder implements the long-lived observer process: it
// polls configured adapter logs, version control, and the filesystem
// for one project's session and turns what it sees into Store events.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ctxmemory/ctx-agent/internal/logging"
	"github.com/ctxmemory/ctx-agent/internal/registry"
	"github.com/ctxmemory/ctx-agent/internal/store"
)

// DefaultPollInterval is used when no override is configured.
const DefaultPollInterval = 2 * time.Second

const (
	sourceGit        = "git"
	sourceFilesystem = "filesystem"
)

// Recorder owns one project's poll loop for the lifetime of a single
// session.
type Recorder struct {
	store       *store.Store
	reg         *registry.Registry
	projectRoot string
	projectPath string
	sessionID   int64
	adapters    map[string]string
	interval    time.Duration

	adapterOffsets map[string]int64
	lastVCS        *vcsSnapshot
	lastFSScan     map[string]string
	firstFSPoll    bool
}

// New constructs a Recorder for an already-started session.
func New(st *store.Store, reg *registry.Registry, projectRoot, projectPath string, sessionID int64, adapters map[string]string, interval time.Duration) *Recorder {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Recorder{
		store:          st,
		reg:            reg,
		projectRoot:    projectRoot,
		projectPath:    projectPath,
		sessionID:      sessionID,
		adapters:       adapters,
		interval:       interval,
		adapterOffsets: make(map[string]int64),
		firstFSPoll:    true,
	}
}

// Run seeds SourceStatus heartbeats and enters the poll loop, exiting
// when ctx is cancelled or the session transitions out of running.
func (r *Recorder) Run(ctx context.Context) error {
	r.seedSourceStatuses(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if r.shouldStop(ctx) {
			break
		}

		r.pollAdapters(ctx)
		r.pollVCSOnce(ctx)
		r.pollFilesystemOnce(ctx)

		select {
		case <-ctx.Done():
			return r.shutdown(ctx)
		case <-ticker.C:
		}
	}

	return r.shutdown(ctx)
}

func (r *Recorder) shouldStop(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	sess, err := r.store.ActiveSession(ctx)
	if err != nil {
		logging.Warn(ctx, "recorder: failed to check session state", "error", err)
		return false
	}
	return sess == nil || sess.ID != r.sessionID
}

func (r *Recorder) seedSourceStatuses(ctx context.Context) {
	sources := []string{sourceGit, sourceFilesystem}
	for name := range r.adapters {
		sources = append(sources, "adapter:"+name)
	}
	for _, name := range sources {
		if err := r.store.RecordSourceStatus(ctx, r.sessionID, name, store.SourceUnknown, ""); err != nil {
			logging.Warn(ctx, "recorder: failed to seed source status", "source", name, "error", err)
		}
	}
}

func (r *Recorder) shutdown(ctx context.Context) error {
	_, err := r.store.InsertEvent(ctx, store.NewEventInput{
		SessionID: r.sessionID,
		EventType: store.EventHandoff,
		Summary:   "Recorder stopped cleanly.",
		Source:    "recorder",
	})
	if err != nil {
		logging.Warn(ctx, "recorder: failed to record handoff event", "error", err)
	}

	if err := r.store.StopSession(ctx, r.sessionID); err != nil {
		logging.Warn(ctx, "recorder: failed to stop session", "error", err)
	}

	if r.reg != nil {
		if err := r.reg.SetRecordingState(r.projectPath, registry.RecordingStopped, 0, 0); err != nil {
			logging.Warn(ctx, "recorder: failed to clear registry recording state", "error", err)
		}
	}

	return nil
}

func (r *Recorder) insertOrDegrade(ctx context.Context, source string, input store.NewEventInput) bool {
	if _, err := r.store.InsertEvent(ctx, input); err != nil {
		if err == store.ErrStorageCapExceeded {
			_ = r.store.RecordSourceStatus(ctx, r.sessionID, source, store.SourceDegraded, "storage cap reached; event dropped")
			return false
		}
		logging.Warn(ctx, "recorder: insert event failed", "source", source, "error", err)
		return false
	}
	_ = r.store.RecordSourceStatus(ctx, r.sessionID, source, store.SourceAvailable, "")
	return true
}

func (r *Recorder) pollAdapters(ctx context.Context) {
	for name, logPath := range r.adapters {
		sourceName := "adapter:" + name
		offset := r.adapterOffsets[name]

		result, err := tailAdapterLog(name, logPath, offset)
		if err != nil {
			_ = r.store.RecordSourceStatus(ctx, r.sessionID, sourceName, store.SourceUnavailable, err.Error())
			continue
		}

		advanced := offset
		for _, input := range result.events {
			input.SessionID = r.sessionID
			if !r.insertOrDegrade(ctx, sourceName, input) {
				break // abandon the rest of this chunk; offset stays put for retry
			}
			advanced = result.newOffset
		}
		if len(result.events) == 0 {
			advanced = result.newOffset
		}

		r.adapterOffsets[name] = advanced
		_ = r.store.SetAdapterOffset(ctx, r.sessionID, name, logPath, advanced)
	}
}

func (r *Recorder) pollVCSOnce(ctx context.Context) {
	snapshot, ok, err := pollVCS(r.projectRoot)
	if err != nil {
		_ = r.store.RecordSourceStatus(ctx, r.sessionID, sourceGit, store.SourceUnavailable, err.Error())
		return
	}
	if !ok {
		_ = r.store.RecordSourceStatus(ctx, r.sessionID, sourceGit, store.SourceUnavailable, "not a git repository")
		return
	}

	if r.lastVCS == nil {
		r.lastVCS = &snapshot
		_ = r.store.RecordSourceStatus(ctx, r.sessionID, sourceGit, store.SourceAvailable, "")
		return
	}

	if *r.lastVCS != snapshot {
		prevDirty := r.lastVCS.porcelain != ""
		nowDirty := snapshot.porcelain != ""

		switch {
		case nowDirty:
			paths := changedPaths(snapshot.porcelain)
			r.insertOrDegrade(ctx, sourceGit, store.NewEventInput{
				SessionID:    r.sessionID,
				EventType:    store.EventCodeChange,
				Summary:      summarizeChangedPaths(paths),
				FilesTouched: paths,
				Source:       sourceGit,
			})
		case prevDirty && !nowDirty:
			r.insertOrDegrade(ctx, sourceGit, store.NewEventInput{
				SessionID: r.sessionID,
				EventType: store.EventRevert,
				Summary:   "Git working tree reverted to clean state.",
				Source:    sourceGit,
			})
		}
	}

	r.lastVCS = &snapshot
	_ = r.store.RecordSourceStatus(ctx, r.sessionID, sourceGit, store.SourceAvailable, "")
}

func (r *Recorder) pollFilesystemOnce(ctx context.Context) {
	snapshot, err := scanFilesystem(r.projectRoot)
	if err != nil {
		_ = r.store.RecordSourceStatus(ctx, r.sessionID, sourceFilesystem, store.SourceUnavailable, err.Error())
		return
	}

	if r.firstFSPoll {
		r.firstFSPoll = false
		r.lastFSScan = snapshot
		if err := r.store.SeedFileState(ctx, snapshot); err != nil {
			logging.Warn(ctx, "recorder: seeding file state failed", "error", err)
		}
		_ = r.store.RecordSourceStatus(ctx, r.sessionID, sourceFilesystem, store.SourceAvailable, "")
		return
	}

	changes := diffSnapshots(r.lastFSScan, snapshot)
	r.lastFSScan = snapshot

	for path, hash := range changes {
		if _, err := r.store.ApplyFileTransition(ctx, r.sessionID, sourceFilesystem, path, hash); err != nil {
			if errors.Is(err, store.ErrStorageCapExceeded) {
				_ = r.store.RecordSourceStatus(ctx, r.sessionID, sourceFilesystem, store.SourceDegraded, "storage cap reached; event dropped")
				return
			}
			logging.Warn(ctx, "recorder: file transition failed", "path", path, "error", err)
		}
	}

	_ = r.store.RecordSourceStatus(ctx, r.sessionID, sourceFilesystem, store.SourceAvailable, "")
}

// Interval exposes the configured poll interval, for status reporting.
func (r *Recorder) Interval() time.Duration { return r.interval }

// IntervalFromSeconds parses the CTX_RECORDER_INTERVAL env var shape
// (a float number of seconds) into a time.Duration.
func IntervalFromSeconds(seconds float64) (time.Duration, error) {
	if seconds <= 0 {
		return 0, fmt.Errorf("%w: interval must be positive", store.ErrInvalidArgument)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
