package hooks

import (
	"encoding/json"
	"time"
)

// Payload is written to every hook command as JSON on stdin
type Payload struct {
	SessionID      string          `json:"session_id,omitempty"`
	TranscriptPath string          `json:"transcript_path,omitempty"`
	CWD            string          `json:"cwd,omitempty"`
	Event          Event           `json:"hook_event_name"`
	ToolName       string          `json:"tool_name,omitempty"`
	ToolInput      json.RawMessage `json:"tool_input,omitempty"`
	ToolResponse   json.RawMessage `json:"tool_response,omitempty"`
	Prompt         string          `json:"prompt,omitempty"`
	Message        string          `json:"message,omitempty"`
	Source         string          `json:"source,omitempty"` // SessionStart: startup, resume, clear
	Reason         string          `json:"reason,omitempty"` // SessionEnd
}

// Decision is the optional JSON a hook prints on stdout
type Decision struct {
	Decision       string `json:"decision,omitempty"` // "block" or "approve"
	Reason         string `json:"reason,omitempty"`
	Continue       *bool  `json:"continue,omitempty"`
	StopReason     string `json:"stopReason,omitempty"`
	SuppressOutput bool   `json:"suppressOutput,omitempty"`
}

// Result is the outcome of one hook command
type Result struct {
	Hook     string        `json:"hook"`
	Event    Event         `json:"event"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Blocked  bool          `json:"blocked"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// Outcome aggregates the results of every hook run for an event
type Outcome struct {
	Results []Result `json:"results"`
	Blocked bool     `json:"blocked"`
	Reason  string   `json:"reason,omitempty"`
}
