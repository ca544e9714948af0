package utils

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// NameFilter matches names against a set of glob patterns such as
// "stock-*" or "*:review". Patterns without glob syntax match exactly.
type NameFilter struct {
	exact    map[string]bool
	patterns []glob.Glob
}

// NewNameFilter compiles patterns. ':' and '/' act as separators, so
// "stock-*" does not match "stock-analysis/scan".
func NewNameFilter(patterns ...string) (*NameFilter, error) {
	f := &NameFilter{exact: map[string]bool{}}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.ContainsAny(p, "*?[{") {
			f.exact[p] = true
			continue
		}
		g, err := glob.Compile(p, ':', '/')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid pattern %q", p)
		}
		f.patterns = append(f.patterns, g)
	}
	return f, nil
}

// Empty reports whether the filter has no patterns and so matches everything
func (f *NameFilter) Empty() bool {
	return len(f.exact) == 0 && len(f.patterns) == 0
}

// Match reports whether name matches any pattern
func (f *NameFilter) Match(name string) bool {
	if f.Empty() || f.exact[name] {
		return true
	}
	for _, g := range f.patterns {
		if g.Match(name) {
			return true
		}
	}
	return false
}
