// Package hooks loads lifecycle hook configuration and runs the matching
// shell commands. A hooks file maps lifecycle events to matcher groups, each
// holding commands that receive the event payload as JSON on stdin and may
// block the event through their exit status or a JSON decision on stdout.
package hooks

import (
	"time"
)

// Event is a host lifecycle event hooks can be attached to
type Event string

const (
	EventPreToolUse       Event = "PreToolUse"
	EventPostToolUse      Event = "PostToolUse"
	EventUserPromptSubmit Event = "UserPromptSubmit"
	EventNotification     Event = "Notification"
	EventStop             Event = "Stop"
	EventSubagentStop     Event = "SubagentStop"
	EventPreCompact       Event = "PreCompact"
	EventSessionStart     Event = "SessionStart"
	EventSessionEnd       Event = "SessionEnd"
)

// Events lists every known event in lifecycle order
var Events = []Event{
	EventSessionStart,
	EventUserPromptSubmit,
	EventPreToolUse,
	EventPostToolUse,
	EventNotification,
	EventStop,
	EventSubagentStop,
	EventPreCompact,
	EventSessionEnd,
}

// IsKnown reports whether e is a recognised event
func (e Event) IsKnown() bool {
	for _, known := range Events {
		if e == known {
			return true
		}
	}
	return false
}

// UsesMatcher reports whether matchers are evaluated for e. Only tool events
// carry a tool name; the others match their groups unconditionally.
func (e Event) UsesMatcher() bool {
	return e == EventPreToolUse || e == EventPostToolUse
}

// CommandType is the kind of hook handler
type CommandType string

// CommandTypeCommand runs a shell command
const CommandTypeCommand CommandType = "command"

// DefaultTimeout is the default execution timeout for hook commands
const DefaultTimeout = 60 * time.Second

// Command is one hook handler
type Command struct {
	Type    CommandType `json:"type" yaml:"type"`
	Command string      `json:"command" yaml:"command"`
	Timeout int         `json:"timeout,omitempty" yaml:"timeout,omitempty"` // seconds
}

// TimeoutDuration returns the command timeout, falling back to DefaultTimeout
func (c Command) TimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.Timeout) * time.Second
}

// MatcherGroup binds commands to a tool-name matcher
type MatcherGroup struct {
	Matcher string    `json:"matcher,omitempty" yaml:"matcher,omitempty"`
	Hooks   []Command `json:"hooks" yaml:"hooks"`
}

// Config is the content of a hooks file
type Config struct {
	Description string                   `json:"description,omitempty" yaml:"description,omitempty"`
	Hooks       map[Event][]MatcherGroup `json:"hooks" yaml:"hooks"`
}

// Source is a loaded hooks file. PluginRoot is set for plugin-provided hooks
// and exported to commands as CLAUDE_PLUGIN_ROOT.
type Source struct {
	Path       string
	PluginRoot string
	Plugin     string
	Config     *Config
}

// Hook is a resolved command ready to run
type Hook struct {
	Event   Event
	Matcher string
	Command Command
	Source  *Source
}

// Name identifies the hook in logs and output
func (h Hook) Name() string {
	if h.Source != nil && h.Source.Plugin != "" {
		return h.Source.Plugin + ":" + h.Command.Command
	}
	return h.Command.Command
}
