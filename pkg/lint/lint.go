// Package lint defines the issue list shared by the skill, plugin and hook
// validators.
package lint

import (
	"fmt"
	"sort"
)

// Severity of an issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding
type Issue struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s: %s", i.Severity, i.Path, i.Field, i.Message)
}

// Report collects the issues found for one validated target
type Report struct {
	Path   string  `json:"path"`
	Issues []Issue `json:"issues"`
}

// Errorf appends an error-severity issue
func (r *Report) Errorf(field, format string, args ...any) {
	r.add(SeverityError, r.Path, field, fmt.Sprintf(format, args...))
}

// Warnf appends a warning-severity issue
func (r *Report) Warnf(field, format string, args ...any) {
	r.add(SeverityWarning, r.Path, field, fmt.Sprintf(format, args...))
}

// Add appends issues verbatim
func (r *Report) Add(issues ...Issue) {
	r.Issues = append(r.Issues, issues...)
}

func (r *Report) add(sev Severity, path, field, msg string) {
	r.Issues = append(r.Issues, Issue{Severity: sev, Path: path, Field: field, Message: msg})
}

// Merge appends every issue of other
func (r *Report) Merge(other Report) {
	r.Issues = append(r.Issues, other.Issues...)
}

// Valid reports whether there is no error-severity issue
func (r Report) Valid() bool {
	return r.Count(SeverityError) == 0
}

// Count returns the number of issues with severity sev
func (r Report) Count(sev Severity) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == sev {
			n++
		}
	}
	return n
}

// Sorted returns the issues ordered errors first, then by path and field
func (r Report) Sorted() []Issue {
	out := make([]Issue, len(r.Issues))
	copy(out, r.Issues)
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Severity != out[b].Severity {
			return out[a].Severity == SeverityError
		}
		if out[a].Path != out[b].Path {
			return out[a].Path < out[b].Path
		}
		return out[a].Field < out[b].Field
	})
	return out
}
