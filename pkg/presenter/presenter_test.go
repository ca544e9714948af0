package presenter

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPresenter() (*TerminalPresenter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewWithOptions(&out, &errOut, ColorNever), &out, &errOut
}

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name     string
		noColor  string
		color    string
		expected ColorMode
	}{
		{"NO_COLOR set", "1", "", ColorNever},
		{"always", "", "always", ColorAlways},
		{"force", "", "force", ColorAlways},
		{"never", "", "never", ColorNever},
		{"off", "", "off", ColorNever},
		{"default", "", "", ColorAuto},
		{"unknown", "", "rainbow", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tt.noColor)
			t.Setenv("SKILLDESK_COLOR", tt.color)
			assert.Equal(t, tt.expected, detectColorMode())
		})
	}
}

func TestError(t *testing.T) {
	p, out, errOut := newTestPresenter()

	p.Error(errors.New("boom"), "loading marketplace")
	p.Error(errors.New("bare"), "")
	p.Error(nil, "ignored")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "[ERROR] loading marketplace: boom")
	assert.Contains(t, errOut.String(), "[ERROR] bare")
	assert.NotContains(t, errOut.String(), "ignored")
}

func TestMessages(t *testing.T) {
	p, out, _ := newTestPresenter()

	p.Success("validated")
	p.Warning("name mismatch")
	p.Info("3 plugins")
	p.Section("Skills")

	got := out.String()
	assert.Contains(t, got, "✓ validated")
	assert.Contains(t, got, "⚠ name mismatch")
	assert.Contains(t, got, "3 plugins")
	assert.Contains(t, got, "Skills\n------\n")
}

func TestQuietSuppressesMessagesButNotTables(t *testing.T) {
	p, out, errOut := newTestPresenter()
	p.SetQuiet(true)
	assert.True(t, p.IsQuiet())

	p.Success("hidden")
	p.Info("hidden")
	p.Separator()
	p.Table([]string{"NAME", "SOURCE"}, [][]string{{"stock-analysis", "./plugins/stock-analysis"}})
	p.Error(errors.New("still shown"), "")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "stock-analysis")
	assert.Contains(t, errOut.String(), "still shown")
}

func TestTableAlignment(t *testing.T) {
	p, out, _ := newTestPresenter()
	p.Table([]string{"A", "B"}, [][]string{{"long-value", "x"}, {"s", "y"}})

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	assert.Len(t, lines, 3)
	assert.Equal(t, bytes.Index(lines[1], []byte("x")), bytes.Index(lines[2], []byte("y")))
}

func TestTableAlignment_CJK(t *testing.T) {
	p, out, _ := newTestPresenter()
	p.Table([]string{"名称", "代码"}, [][]string{{"浦发银行", "600000"}, {"ST", "000001"}})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	col := func(line, cell string) int {
		return DisplayWidth(line[:strings.Index(line, cell)])
	}
	assert.Equal(t, col(lines[1], "600000"), col(lines[2], "000001"))
	assert.Equal(t, col(lines[0], "代码"), col(lines[1], "600000"))
}

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 8, DisplayWidth("浦发银行"))
	assert.Equal(t, 6, DisplayWidth("600000"))
	assert.Equal(t, "银行  |", Pad("银行", 6)+"|")
	assert.Equal(t, "toolong", Pad("toolong", 3))
}
