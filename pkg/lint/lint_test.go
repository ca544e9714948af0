package lint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReport(t *testing.T) {
	r := Report{Path: "skills/demo"}
	assert.True(t, r.Valid())

	r.Warnf("name", "does not match directory %q", "other")
	assert.True(t, r.Valid())

	r.Errorf("description", "is required")
	assert.False(t, r.Valid())
	assert.Equal(t, 1, r.Count(SeverityError))
	assert.Equal(t, 1, r.Count(SeverityWarning))

	sorted := r.Sorted()
	assert.Equal(t, SeverityError, sorted[0].Severity)
	assert.Equal(t, "error: skills/demo: description: is required", sorted[0].String())
}

func TestReport_Merge(t *testing.T) {
	a := Report{Path: "a"}
	b := Report{Path: "b"}
	b.Errorf("", "broken")

	a.Merge(b)
	assert.Len(t, a.Issues, 1)
	assert.Equal(t, "b", a.Issues[0].Path)
	assert.Equal(t, "error: b: broken", a.Issues[0].String())
}
