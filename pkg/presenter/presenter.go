// Package presenter provides consistent CLI output for user-facing messages:
// success, error, warning and informational lines with color support, quiet
// mode and a plain table helper for listing commands.
package presenter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/width"
)

// Presenter defines the interface for consistent CLI output
type Presenter interface {
	Error(err error, context string)
	Success(message string)
	Warning(message string)
	Info(message string)
	Section(title string)
	Table(headers []string, rows [][]string)
	Separator()
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// ColorMode represents different color output modes
type ColorMode int

const (
	// ColorAuto lets the color package detect terminal capabilities
	ColorAuto ColorMode = iota
	// ColorAlways forces colored output
	ColorAlways
	// ColorNever disables colored output
	ColorNever
)

// TerminalPresenter implements Presenter for terminal output
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	quiet       bool
}

// New creates a TerminalPresenter writing to stdout and stderr
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions creates a TerminalPresenter with custom writers and color mode
func NewWithOptions(output, errorOutput io.Writer, mode ColorMode) *TerminalPresenter {
	switch mode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	case ColorAuto:
	}

	return &TerminalPresenter{
		output:      output,
		errorOutput: errorOutput,
	}
}

func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}

	switch os.Getenv("SKILLDESK_COLOR") {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// Error displays an error message to stderr
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}

	errorColor := color.New(color.FgRed, color.Bold)
	if context != "" {
		errorColor.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
	} else {
		errorColor.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
	}
}

// Success displays a success message
func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(p.output, "✓ %s\n", message)
}

// Warning displays a warning message
func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(p.output, "⚠ %s\n", message)
}

// Info displays an informational message
func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "%s\n", message)
}

// Section displays a section header
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}

	header := color.New(color.Bold)
	header.Fprintf(p.output, "%s\n", title)
	header.Fprintf(p.output, "%s\n", strings.Repeat("-", DisplayWidth(title)))
}

// Table writes a column-aligned table. Columns are padded by display
// width so CJK names line up. Tables are data, so quiet mode does not
// suppress them.
func (p *TerminalPresenter) Table(headers []string, rows [][]string) {
	all := rows
	if len(headers) > 0 {
		all = append([][]string{headers}, rows...)
	}

	var widths []int
	for _, row := range all {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], DisplayWidth(cell))
		}
	}

	for _, row := range all {
		var b strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(Pad(cell, widths[i]+2))
		}
		fmt.Fprintln(p.output, b.String())
	}
}

// DisplayWidth is the number of terminal cells s occupies. East Asian wide
// and fullwidth runes take two cells.
func DisplayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

// Pad right-pads s with spaces to w terminal cells
func Pad(s string, w int) string {
	if d := DisplayWidth(s); d < w {
		return s + strings.Repeat(" ", w-d)
	}
	return s
}

// Separator displays a visual separator
func (p *TerminalPresenter) Separator() {
	if p.quiet {
		return
	}
	color.New(color.Faint).Fprintf(p.output, "%s\n", strings.Repeat("-", 60))
}

// SetQuiet enables or disables quiet mode
func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

// IsQuiet returns whether quiet mode is enabled
func (p *TerminalPresenter) IsQuiet() bool {
	return p.quiet
}

var defaultPresenter Presenter = New()

// Error displays an error message using the default presenter.
func Error(err error, context string) { defaultPresenter.Error(err, context) }

// Success displays a success message using the default presenter.
func Success(message string) { defaultPresenter.Success(message) }

// Warning displays a warning message using the default presenter.
func Warning(message string) { defaultPresenter.Warning(message) }

// Info displays an informational message using the default presenter.
func Info(message string) { defaultPresenter.Info(message) }

// Section displays a section header using the default presenter.
func Section(title string) { defaultPresenter.Section(title) }

// Table writes a table using the default presenter.
func Table(headers []string, rows [][]string) { defaultPresenter.Table(headers, rows) }

// Separator displays a visual separator using the default presenter.
func Separator() { defaultPresenter.Separator() }

// SetQuiet toggles quiet mode on the default presenter.
func SetQuiet(quiet bool) { defaultPresenter.SetQuiet(quiet) }

// IsQuiet reports quiet mode of the default presenter.
func IsQuiet() bool { return defaultPresenter.IsQuiet() }
