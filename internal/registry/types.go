package registry

import "time"

// AllowedAdapters is the configured set of adapter names the Recorder
// knows how to tail (§4.3.1's prefix vocabulary: claude, cursor,
// codex, plus a generic catch-all agent label).
var AllowedAdapters = map[string]bool{
	"claude": true,
	"cursor": true,
	"codex":  true,
	"agent":  true,
}

const (
	RecordingStopped   = "stopped"
	RecordingRecording = "recording"
	RecordingStopping  = "stopping"
)

// Project is one row of the cross-project index.
type Project struct {
	Path            string
	DisplayName     string
	RecordingState  string
	ActiveSessionID *int64
	RecorderPID     *int
	DeletedAt       *time.Time
	UpdatedAt       time.Time
}

// IsDeleted reports whether the project carries a deleted marker.
func (p Project) IsDeleted() bool {
	return p.DeletedAt != nil
}

const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
