package rpcserver

import "github.com/mark3labs/mcp-go/mcp"

// toolDefinitions returns the static schema list served by tools/list.
// Descriptions and property shapes are modeled with mark3labs/mcp-go's
// builder API, the same one used for tool registration elsewhere in
// the stack; this server dispatches tool calls itself rather than
// handing the tools to mcp-go's own stdio server, since that transport
// cannot auto-detect the two wire framings this server must support.
func toolDefinitions() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool("ping",
			mcp.WithDescription("Check whether ctx-agent is reachable and, if a session is running, refresh this editor's heartbeat."),
			mcp.WithString("client",
				mcp.Required(),
				mcp.Description("Calling editor: cursor or claude"),
			),
		),
		mcp.NewTool("get_context",
			mcp.WithDescription("Fetch a summary of the project's recent recorded activity: recent events, open items, and style signals."),
			mcp.WithNumber("max_events",
				mcp.Description("Maximum number of recent events to return (1-100, default 20)"),
			),
			mcp.WithBoolean("include_effective_state",
				mcp.Description("Include the set of files currently differing from their session baseline"),
			),
		),
		mcp.NewTool("append_event",
			mcp.WithDescription("Record one event (a user intent, agent plan, decision, or tool use) against the active session."),
			mcp.WithString("summary",
				mcp.Required(),
				mcp.Description("Short human-readable description of what happened"),
			),
			mcp.WithString("client",
				mcp.Description("Calling editor: cursor or claude"),
			),
			mcp.WithString("event_type",
				mcp.Description("One of the closed event type set; unrecognized values coerce to task_status"),
			),
			mcp.WithString("session_id",
				mcp.Description("Session to append to; defaults to the active session"),
			),
			mcp.WithString("tool_name",
				mcp.Description("Name of the tool invoked, if this event describes a tool call"),
			),
			mcp.WithString("tool_result",
				mcp.Description("Outcome of the tool call, if applicable"),
			),
			mcp.WithBoolean("decision",
				mcp.Description("True if this event records a decision"),
			),
			mcp.WithString("source_detail",
				mcp.Description("Freeform detail appended to the computed source tag, truncated to 40 characters"),
			),
		),
		mcp.NewTool("start_chat_session",
			mcp.WithDescription("Start (or reuse) the running session for this project, associating it with the calling editor."),
			mcp.WithString("client",
				mcp.Required(),
				mcp.Description("Calling editor: cursor or claude"),
			),
			mcp.WithString("external_session_ref",
				mcp.Description("The editor's own session identifier, stored alongside ours"),
			),
		),
		mcp.NewTool("stop_chat_session",
			mcp.WithDescription("Mark a session as stopped."),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Session to stop"),
			),
		),
	}
}
