package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ctxmemory/ctx-agent/internal/redact"
	"github.com/ctxmemory/ctx-agent/internal/store"
)

// adapterLine is the loosely-typed shape a JSON adapter log line may
// carry. Unknown/extra fields (like a raw_prompt a producer shouldn't
// have written) are intentionally never decoded into stored columns.
type adapterLine struct {
	Summary      string   `json:"summary"`
	Message      string   `json:"message"`
	Content      string   `json:"content"`
	Text         string   `json:"text"`
	EventType    string   `json:"event_type"`
	FilesTouched []string `json:"files_touched"`
	ToolName     string   `json:"tool_name"`
	Decision     bool     `json:"decision"`
	Result       string   `json:"result"`
}

var agentTextPrefixes = []string{"assistant:", "claude:", "cursor:", "codex:", "agent:"}

// parseAdapterLine turns one tailed log line into a store.NewEventInput,
// or returns ok=false if the line carries no usable summary.
func parseAdapterLine(adapter, line string) (store.NewEventInput, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return store.NewEventInput{}, false
	}

	if strings.HasPrefix(line, "{") {
		var parsed adapterLine
		if err := json.Unmarshal([]byte(line), &parsed); err == nil {
			summary := firstNonEmpty(parsed.Summary, parsed.Message, parsed.Content, parsed.Text)
			if summary == "" {
				return store.NewEventInput{}, false
			}

			eventType := parsed.EventType
			if eventType == "" {
				switch {
				case parsed.ToolName != "":
					eventType = store.EventToolUse
				case parsed.Decision:
					eventType = store.EventDecisionMade
				default:
					eventType = store.EventTaskStatus
				}
			}

			return store.NewEventInput{
				EventType:    eventType,
				Summary:      redact.String(summary),
				FilesTouched: parsed.FilesTouched,
				Source:       "adapter:" + adapter,
				IsEffective:  true,
				ToolName:     parsed.ToolName,
				Result:       redact.String(parsed.Result),
				Decision:     parsed.Decision,
			}, true
		}
	}

	eventType := store.EventTaskStatus
	summary := line
	switch {
	case strings.HasPrefix(line, "user:"):
		eventType = store.EventUserIntent
		summary = strings.TrimSpace(strings.TrimPrefix(line, "user:"))
	default:
		for _, prefix := range agentTextPrefixes {
			if strings.HasPrefix(line, prefix) {
				eventType = store.EventAgentPlan
				summary = strings.TrimSpace(strings.TrimPrefix(line, prefix))
				break
			}
		}
	}

	if summary == "" {
		return store.NewEventInput{}, false
	}
	return store.NewEventInput{
		EventType:   eventType,
		Summary:     redact.String(summary),
		Source:      "adapter:" + adapter,
		IsEffective: true,
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// tailResult reports how far a tailing pass advanced and the parsed
// events ready to insert.
type tailResult struct {
	events    []store.NewEventInput
	newOffset int64
	truncated bool
}

// tailAdapterLog reads an adapter's log file from offset to EOF,
// parsing complete lines. The offset only advances over lines that
// were fully read; a trailing partial line is left for the next poll.
func tailAdapterLog(adapter, logPath string, offset int64) (tailResult, error) {
	f, err := os.Open(logPath) //nolint:gosec // adapter log path is operator-configured, not attacker input
	if err != nil {
		if os.IsNotExist(err) {
			return tailResult{newOffset: offset}, nil
		}
		return tailResult{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return tailResult{}, err
	}
	if info.Size() < offset {
		offset = 0 // log was truncated/rotated; restart from the top
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return tailResult{}, fmt.Errorf("seeking adapter log: %w", err)
	}

	reader := bufio.NewReader(f)
	result := tailResult{newOffset: offset}

	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return result, readErr
		}
		if readErr == io.EOF && !strings.HasSuffix(line, "\n") {
			break // partial trailing line, retry next poll
		}
		if line == "" {
			break
		}

		result.newOffset += int64(len(line))
		if input, ok := parseAdapterLine(adapter, line); ok {
			result.events = append(result.events, input)
		}

		if readErr == io.EOF {
			break
		}
	}

	return result, nil
}
