// Package report renders market and watch-list reports as Markdown or CSV
// and writes them to disk.
package report

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jingkaihe/skilldesk/pkg/portfolio"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
	"github.com/jingkaihe/skilldesk/pkg/technical"
	"github.com/jingkaihe/skilldesk/pkg/utils"
)

// Template names
const (
	MarketTemplate = "market.md.tmpl"
	GroupTemplate  = "group.md.tmpl"
)

// TemplateFS holds the built-in report templates
//
//go:embed templates/*.tmpl
var TemplateFS embed.FS

// utf8BOM lets spreadsheet applications detect UTF-8 CSV files
const utf8BOM = "\ufeff"

var printer = message.NewPrinter(language.English)

// Renderer executes report templates
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the built-in templates. Files with the same name in
// overrideDir replace them; an empty overrideDir uses the built-ins only.
func NewRenderer(overrideDir string) (*Renderer, error) {
	overrides := map[string]string{}
	if overrideDir != "" {
		entries, err := os.ReadDir(overrideDir)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read template directory %s", overrideDir)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".tmpl") {
				continue
			}
			content, err := os.ReadFile(filepath.Join(overrideDir, e.Name()))
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read template %s", e.Name())
			}
			overrides[e.Name()] = string(content)
		}
	}

	templates := template.New("reports").Funcs(funcs())
	paths, err := fs.Glob(TemplateFS, "templates/*.tmpl")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list built-in templates")
	}
	for _, path := range paths {
		name := filepath.Base(path)
		content, ok := overrides[name]
		if !ok {
			b, err := fs.ReadFile(TemplateFS, path)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read template %s", path)
			}
			content = string(b)
		}
		if _, err := templates.New(name).Parse(content); err != nil {
			return nil, errors.Wrapf(err, "failed to parse template %s", name)
		}
	}
	return &Renderer{templates: templates}, nil
}

// Render executes the named template with data
func (r *Renderer) Render(name string, data any) (string, error) {
	if r.templates.Lookup(name) == nil {
		return "", errors.Errorf("template %s not found", name)
	}
	var buf strings.Builder
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.Wrapf(err, "failed to execute template %s", name)
	}
	return buf.String(), nil
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"head":          head,
		"fixed":         func(places int, v float64) string { return strconv.FormatFloat(v, 'f', places, 64) },
		"price":         func(v float64) string { return printer.Sprintf("%.2f", v) },
		"yi":            func(yuan float64) string { return printer.Sprintf("%.0f", utils.Yi(yuan)) },
		"pct":           signedPct,
		"arrow":         arrow,
		"flow":          flow,
		"flowComment":   FlowComment,
		"breadthStatus": BreadthStatus,
		"limitStatus":   LimitStatus,
		"leaders":       leaders,
		"crosses":       crossNames,
		"highScores":    highScores,
	}
}

// head returns at most the first n elements of a slice
func head(n int, list any) any {
	v := reflect.ValueOf(list)
	if v.Kind() != reflect.Slice || v.Len() <= n {
		return list
	}
	return v.Slice(0, n).Interface()
}

func signedPct(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.2f%%", v)
	}
	return fmt.Sprintf("%.2f%%", v)
}

func arrow(v float64) string {
	if v > 0 {
		return "↑"
	}
	return "↓"
}

func flow(yuan float64) string {
	v := utils.Yi(yuan)
	if v > 0 {
		return fmt.Sprintf("+%.0f亿", v)
	}
	return fmt.Sprintf("%.0f亿", v)
}

// BreadthStatus describes the advance/decline ratio
func BreadthStatus(ratio float64) string {
	switch {
	case ratio >= 2:
		return "偏多"
	case ratio >= 1:
		return "偏强"
	case ratio >= 0.5:
		return "偏弱"
	}
	return "偏空"
}

// LimitStatus describes limit-up against limit-down counts
func LimitStatus(stats *quotes.MarketStats) string {
	ratio := float64(stats.LimitUp) / float64(max(stats.LimitDown, 1))
	switch {
	case ratio >= 3:
		return "活跃"
	case ratio >= 1:
		return "正常"
	}
	return "低迷"
}

// FlowComment describes a net capital flow given in yuan
func FlowComment(yuan float64) string {
	v := utils.Yi(yuan)
	switch {
	case v > 50:
		return "持续流入"
	case v > 0:
		return "逢低吸纳"
	case v > -50:
		return "资金流出"
	}
	return "大幅流出"
}

func leaders(stocks []quotes.Constituent) string {
	if len(stocks) == 0 {
		return "-"
	}
	names := make([]string, 0, 3)
	for _, s := range stocks[:min(3, len(stocks))] {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}

func crossNames(patterns []technical.Pattern) string {
	var names []string
	for _, p := range patterns {
		if strings.Contains(p.Type, "cross") {
			names = append(names, p.Name)
		}
	}
	return strings.Join(names, ", ")
}

func highScores(scores []portfolio.FundamentalScore) []portfolio.FundamentalScore {
	var out []portfolio.FundamentalScore
	for _, s := range scores {
		if s.Score >= 7 {
			out = append(out, s)
		}
	}
	return out
}

// WriteFile writes a report through write while holding a lock next to
// path, so concurrent runs never interleave output. The file is replaced
// atomically.
func WriteFile(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	lock := flock.New(filepath.Join(dir, "."+filepath.Base(path)+".lock"))
	if err := lock.Lock(); err != nil {
		return errors.Wrapf(err, "failed to lock %s", path)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary file for %s", path)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to move report into %s", path)
	}
	return nil
}

// DefaultPath names a report file under dir, e.g.
// reports/market_20261019_150405.md
func DefaultPath(dir, kind, ext string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", kind, at.Format("20060102_150405"), ext))
}

// Terminal renders Markdown for a terminal. style is a glamour standard
// style such as "dark", "light" or "notty".
func Terminal(markdown, style string, wordWrap int) (string, error) {
	if style == "" {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to create markdown renderer")
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", errors.Wrap(err, "failed to render markdown")
	}
	return out, nil
}

// Option customises the reporters
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used for report timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Output formats
const (
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

// Extension returns the file extension used for format
func Extension(format string) string {
	if format == FormatCSV {
		return "csv"
	}
	return "md"
}

func save(path, format string, markdown func() (string, error), csv func(io.Writer) error) error {
	switch format {
	case FormatMarkdown, "":
		content, err := markdown()
		if err != nil {
			return err
		}
		return WriteFile(path, func(w io.Writer) error {
			_, err := io.WriteString(w, content)
			return err
		})
	case FormatCSV:
		return WriteFile(path, csv)
	}
	return errors.Errorf("unsupported report format %q", format)
}
