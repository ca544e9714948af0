package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/osutil"
)

// exitCodeBlock is the exit status a command uses to block the event
const exitCodeBlock = 2

// Manager resolves and runs hooks from a set of loaded sources
type Manager struct {
	sources []*Source
	shell   string
}

// NewManager creates a manager over sources, preserving their order
func NewManager(sources ...*Source) Manager {
	return Manager{sources: sources, shell: "sh"}
}

// NewManagerFromDiscovery discovers hooks files and returns a manager for them
func NewManagerFromDiscovery(ctx context.Context, opts ...DiscoveryOption) (Manager, error) {
	d, err := NewDiscovery(opts...)
	if err != nil {
		return Manager{}, err
	}
	return NewManager(d.DiscoverSources(ctx)...), nil
}

// Sources returns the loaded hooks files
func (m Manager) Sources() []*Source {
	return m.sources
}

// All returns every configured hook in run order, grouped by event
func (m Manager) All() []Hook {
	var hooks []Hook
	for _, event := range Events {
		for _, src := range m.sources {
			for _, group := range src.Config.Hooks[event] {
				for _, cmd := range group.Hooks {
					hooks = append(hooks, Hook{Event: event, Matcher: group.Matcher, Command: cmd, Source: src})
				}
			}
		}
	}
	return hooks
}

// Match returns the hooks to run for event and toolName. Matchers are
// anchored regular expressions; "" and "*" match every tool.
func (m Manager) Match(event Event, toolName string) []Hook {
	var hooks []Hook
	for _, src := range m.sources {
		for _, group := range src.Config.Hooks[event] {
			if event.UsesMatcher() {
				re, err := compileMatcher(group.Matcher)
				if err != nil {
					continue
				}
				if re != nil && !re.MatchString(toolName) {
					continue
				}
			}
			for _, cmd := range group.Hooks {
				if cmd.Type != CommandTypeCommand || strings.TrimSpace(cmd.Command) == "" {
					continue
				}
				hooks = append(hooks, Hook{Event: event, Matcher: group.Matcher, Command: cmd, Source: src})
			}
		}
	}
	return hooks
}

// HasHooks reports whether any hook would run for event and toolName
func (m Manager) HasHooks(event Event, toolName string) bool {
	return len(m.Match(event, toolName)) > 0
}

// Run executes every hook matching the payload sequentially. Failures of
// individual commands are reported in their Result and never abort the run.
func (m Manager) Run(ctx context.Context, payload Payload) (*Outcome, error) {
	hooks := m.Match(payload.Event, payload.ToolName)
	outcome := &Outcome{}
	if len(hooks) == 0 {
		return outcome, nil
	}

	input, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal payload")
	}

	for _, hook := range hooks {
		res := m.execute(ctx, hook, payload, input)
		log := logger.G(ctx).WithField("hook", hook.Name()).WithField("event", hook.Event)
		switch {
		case res.Err != "":
			log.WithField("exit_code", res.ExitCode).Warn("hook execution failed: " + res.Err)
		case res.Blocked:
			log.WithField("reason", res.Reason).Info("hook blocked event")
		default:
			log.WithField("duration", res.Duration).Debug("hook completed")
		}

		if res.Blocked && !outcome.Blocked {
			outcome.Blocked = true
			outcome.Reason = res.Reason
		}
		outcome.Results = append(outcome.Results, res)
	}

	return outcome, nil
}

// execute runs a single hook with timeout enforcement
func (m Manager) execute(ctx context.Context, hook Hook, payload Payload, input []byte) Result {
	timeout := hook.Command.TimeoutDuration()
	res := Result{Hook: hook.Name(), Event: hook.Event}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.shell, "-c", hook.Command.Command)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Env = os.Environ()
	if payload.CWD != "" {
		cmd.Dir = payload.CWD
		cmd.Env = append(cmd.Env, "CLAUDE_PROJECT_DIR="+payload.CWD)
	}
	if hook.Source != nil && hook.Source.PluginRoot != "" {
		cmd.Env = append(cmd.Env, "CLAUDE_PLUGIN_ROOT="+hook.Source.PluginRoot)
	}
	osutil.Isolate(cmd, osutil.DefaultGrace)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(started)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			res.ExitCode = -1
			res.Err = "timed out after " + timeout.String()
			return res
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			res.ExitCode = -1
			res.Err = err.Error()
			return res
		}
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode == exitCodeBlock {
			res.Blocked = true
			res.Reason = strings.TrimSpace(res.Stderr)
			return res
		}
		res.Err = strings.TrimSpace(res.Stderr)
		if res.Err == "" {
			res.Err = err.Error()
		}
		return res
	}

	applyDecision(&res)
	return res
}

// applyDecision interprets JSON printed on stdout by a successful command.
// Plain text output is left untouched.
func applyDecision(res *Result) {
	out := strings.TrimSpace(res.Stdout)
	if !strings.HasPrefix(out, "{") {
		return
	}
	var d Decision
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		return
	}
	if d.Decision == "block" {
		res.Blocked = true
		res.Reason = d.Reason
	}
	if d.Continue != nil && !*d.Continue {
		res.Blocked = true
		if d.StopReason != "" {
			res.Reason = d.StopReason
		}
	}
}
