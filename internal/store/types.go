// Package store implements the Project Store: the durable,
// per-project event log and associated state (sessions, per-file
// hashes, deduplication index, compaction rollups, source heartbeats,
// adapter offsets, and feature flags).
package store

import "time"

// Closed event-type set. Unknown values coerce to EventTaskStatus.
const (
	EventUserIntent   = "user_intent"
	EventAgentPlan    = "agent_plan"
	EventCodeChange   = "code_change"
	EventRevert       = "revert"
	EventDecisionMade = "decision_made"
	EventToolUse      = "tool_use"
	EventTestResult   = "test_result"
	EventErrorSeen    = "error_seen"
	EventTaskStatus   = "task_status"
	EventHandoff      = "handoff"
)

// highValueEventTypes are never removed by compaction.
var highValueEventTypes = map[string]bool{
	EventDecisionMade: true,
	EventHandoff:      true,
	EventErrorSeen:    true,
	EventToolUse:      true,
	EventRevert:       true,
}

// DeletedHash is the sentinel hash representing a deleted file.
const DeletedHash = "__deleted__"

// Session states.
const (
	SessionRunning  = "running"
	SessionStopping = "stopping"
	SessionStopped  = "stopped"
)

// Project recording states.
const (
	RecordingStopped   = "stopped"
	RecordingRecording = "recording"
	RecordingStopping  = "stopping"
)

// SourceStatus values.
const (
	SourceUnknown     = "unknown"
	SourceAvailable   = "available"
	SourceDegraded    = "degraded"
	SourceUnavailable = "unavailable"
)

// HeartbeatFreshness is the staleness threshold for a SourceStatus row
// to count as a live heartbeat.
const HeartbeatFreshness = 600 * time.Second

// Project mirrors the project table.
type Project struct {
	Path             string
	DisplayName      string
	RecordingState   string
	ActiveSessionID  *int64
	RecorderPID      *int
	StorageCapBytes  int64
	StorageUsedBytes int64
	DeletedAt        *time.Time
}

// Session mirrors the session table.
type Session struct {
	ID                 int64
	AgentLabel         string
	StartedAt          time.Time
	StoppedAt          *time.Time
	State              string
	ExternalSessionRef string
}

// Event mirrors the event table.
type Event struct {
	ID                int64
	SessionID         int64
	EventType         string
	Summary           string
	FilesTouched      []string
	BeforeHash        string
	AfterHash         string
	RevertedEventID   *int64
	RevertedByEventID *int64
	IsEffective       bool
	Source            string
	Fingerprint       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewEventInput is the caller-supplied payload for InsertEvent.
type NewEventInput struct {
	SessionID       int64
	EventType       string
	Summary         string
	FilesTouched    []string
	BeforeHash      string
	AfterHash       string
	RevertedEventID *int64
	IsEffective     bool
	Source          string

	// ToolName/Purpose/Result populate a ToolUsage row in the same
	// transaction when ToolName is non-empty.
	ToolName string
	Purpose  string
	Result   string

	// Decision, when true, additionally writes a Decision row with
	// the same summary.
	Decision bool
}

// FileState mirrors the file_state table.
type FileState struct {
	Path         string
	CurrentHash  string
	BaselineHash string
	LastEventID  *int64
	IsClean      bool
}

// SourceStatusRow mirrors the source_status table.
type SourceStatusRow struct {
	SessionID  int64
	SourceName string
	Status     string
	Detail     string
	UpdatedAt  time.Time
}

// StatusSnapshot is the result of Store.Status.
type StatusSnapshot struct {
	Project          Project
	ActiveSession    *Session
	SourceStatuses   []SourceStatusRow
	RecentEvents     []Event
	LastRevert       *Event
	DirtyFileCount   int
	StorageUsedBytes int64
}

// timeLayout is the ISO-8601 UTC second-precision layout used for all
// stored timestamps.
const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// coerceEventType maps unknown event type strings to task_status.
func coerceEventType(t string) string {
	switch t {
	case EventUserIntent, EventAgentPlan, EventCodeChange, EventRevert,
		EventDecisionMade, EventToolUse, EventTestResult, EventErrorSeen,
		EventTaskStatus, EventHandoff:
		return t
	default:
		return EventTaskStatus
	}
}
