package report

import (
	"context"
	"io"
	"strconv"

	"github.com/jingkaihe/skilldesk/pkg/market"
	"github.com/jingkaihe/skilldesk/pkg/portfolio"
)

// GroupReport is the data behind a watch-list report
type GroupReport struct {
	*portfolio.GroupAnalysis
	Timestamp string                  `json:"timestamp"`
	Scan      *portfolio.StockBuckets `json:"signal_summary"`
}

type groupView struct {
	*GroupReport
	SignalsOnly bool
}

// GroupReporter assembles and renders watch-list reports
type GroupReporter struct {
	analyzer *portfolio.Analyzer
	renderer *Renderer
	opts     options
}

// NewGroupReporter creates a group reporter on top of analyzer
func NewGroupReporter(analyzer *portfolio.Analyzer, renderer *Renderer, opts ...Option) *GroupReporter {
	return &GroupReporter{analyzer: analyzer, renderer: renderer, opts: newOptions(opts)}
}

// Generate analyses symbols as the group name. withPeers adds industry
// comparisons for every member.
func (r *GroupReporter) Generate(ctx context.Context, symbols []string, name string, withPeers bool) *GroupReport {
	var analysis *portfolio.GroupAnalysis
	if withPeers {
		analysis = r.analyzer.AnalyzeWithPeers(ctx, symbols, name)
	} else {
		analysis = r.analyzer.AnalyzeGroup(ctx, symbols, name)
	}
	return &GroupReport{
		GroupAnalysis: analysis,
		Timestamp:     r.opts.now().Format(market.TimeLayout),
		Scan:          r.analyzer.SignalSummary(analysis.Signals),
	}
}

// Markdown renders the report; signalsOnly keeps only the trading advice
func (r *GroupReporter) Markdown(report *GroupReport, signalsOnly bool) (string, error) {
	return r.renderer.Render(GroupTemplate, groupView{GroupReport: report, SignalsOnly: signalsOnly})
}

// CSV writes one row per analysed stock in buy, hold, sell order
func (r *GroupReporter) CSV(w io.Writer, report *GroupReport) error {
	header := []string{"symbol", "name", "price", "change_pct", "overall_score", "recommendation", "risk_level"}
	var rows [][]string
	for _, s := range report.Signals.All() {
		rows = append(rows, []string{
			s.Symbol,
			s.Name,
			formatFloat(s.Price),
			formatFloat(s.ChangePct),
			strconv.FormatFloat(s.Score, 'f', -1, 64),
			s.Recommendation,
			s.RiskLevel,
		})
	}
	return writeCSV(w, header, rows)
}

// Save writes the report to path as Markdown or CSV
func (r *GroupReporter) Save(report *GroupReport, format, path string, signalsOnly bool) error {
	return save(path, format,
		func() (string, error) { return r.Markdown(report, signalsOnly) },
		func(w io.Writer) error { return r.CSV(w, report) },
	)
}
