package hooks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/skilldesk/pkg/lint"
)

// LoadFile reads a hooks file. Files ending in .yaml or .yml are decoded as
// YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read hooks file %s", path)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse hooks file %s", path)
	}

	return &cfg, nil
}

// compileMatcher turns a matcher into an anchored regexp. Empty and "*"
// match everything and return nil.
func compileMatcher(matcher string) (*regexp.Regexp, error) {
	if matcher == "" || matcher == "*" {
		return nil, nil
	}
	return regexp.Compile("^(?:" + matcher + ")$")
}

// Validate checks a hooks configuration. path is used to label issues.
func Validate(cfg *Config, path string) []lint.Issue {
	r := lint.Report{Path: path}

	if cfg == nil || len(cfg.Hooks) == 0 {
		r.Warnf("hooks", "no hooks configured")
		return r.Issues
	}

	events := make([]string, 0, len(cfg.Hooks))
	for e := range cfg.Hooks {
		events = append(events, string(e))
	}
	sort.Strings(events)

	for _, name := range events {
		event := Event(name)
		if !event.IsKnown() {
			r.Errorf("hooks."+name, "unknown event %q", name)
			continue
		}

		for gi, group := range cfg.Hooks[event] {
			field := fmt.Sprintf("hooks.%s[%d]", name, gi)

			if group.Matcher != "" && group.Matcher != "*" {
				if !event.UsesMatcher() {
					r.Warnf(field+".matcher", "matcher is ignored for %s", name)
				}
				if _, err := compileMatcher(group.Matcher); err != nil {
					r.Errorf(field+".matcher", "invalid regular expression: %v", err)
				}
			}

			if len(group.Hooks) == 0 {
				r.Warnf(field+".hooks", "matcher group has no hooks")
			}

			for ci, cmd := range group.Hooks {
				cfield := fmt.Sprintf("%s.hooks[%d]", field, ci)
				switch cmd.Type {
				case CommandTypeCommand:
				case "":
					r.Errorf(cfield+".type", "is required")
				default:
					r.Errorf(cfield+".type", "unsupported hook type %q", cmd.Type)
				}
				if strings.TrimSpace(cmd.Command) == "" {
					r.Errorf(cfield+".command", "is required")
				}
				if cmd.Timeout < 0 {
					r.Errorf(cfield+".timeout", "must not be negative")
				}
			}
		}
	}

	return r.Issues
}

// ValidateFile loads and validates the hooks file at path
func ValidateFile(path string) lint.Report {
	r := lint.Report{Path: path}
	cfg, err := LoadFile(path)
	if err != nil {
		r.Errorf("", "%v", err)
		return r
	}
	r.Add(Validate(cfg, path)...)
	return r
}
