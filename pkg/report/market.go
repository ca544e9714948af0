package report

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/market"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
)

const flowRankingSize = 10

// MarketReport is the data behind the daily market report
type MarketReport struct {
	Timestamp   string              `json:"timestamp"`
	Indices     []quotes.Index      `json:"indices"`
	Statistics  *quotes.MarketStats `json:"statistics"`
	Sentiment   *market.Sentiment   `json:"sentiment"`
	HotSectors  []market.HotSector  `json:"hot_sectors"`
	FlowRanking []quotes.SectorFlow `json:"flow_ranking"`
	Warnings    []string            `json:"warnings,omitempty"`
}

type marketView struct {
	*MarketReport
	Brief bool
}

// MarketReporter assembles and renders market reports
type MarketReporter struct {
	snapshot  *market.Snapshotter
	sentiment *market.SentimentAnalyzer
	tracker   *market.SectorTracker
	renderer  *Renderer
}

// NewMarketReporter creates a market reporter
func NewMarketReporter(provider quotes.Provider, cfg config.MarketConfig, renderer *Renderer, opts ...Option) *MarketReporter {
	o := newOptions(opts)
	return &MarketReporter{
		snapshot:  market.NewSnapshotter(provider, cfg, market.WithClock(o.now)),
		sentiment: market.NewSentimentAnalyzer(provider, cfg, market.WithClock(o.now)),
		tracker:   market.NewSectorTracker(provider, cfg),
		renderer:  renderer,
	}
}

// Generate gathers snapshot, sentiment, hot sectors and the top of the
// capital flow ranking. Sector data is optional: failures are logged, leave
// the sections empty and are listed in Warnings.
func (r *MarketReporter) Generate(ctx context.Context) (*MarketReport, error) {
	snap, err := r.snapshot.Generate(ctx)
	if err != nil {
		return nil, err
	}
	sentiment := r.sentiment.Score(snap.Statistics)

	var warnings []string
	hot, err := r.tracker.HotSectorsDetail(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("market report without hot sectors")
		warnings = append(warnings, "热点板块数据不可用: "+err.Error())
		hot = []market.HotSector{}
	}
	if len(hot) > 0 && hot[0].FlowUnavailable {
		warnings = append(warnings, "热点板块净流入数据不可用")
	}
	flows, err := r.tracker.FlowRanking(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("market report without capital flow ranking")
		warnings = append(warnings, "资金流向排行不可用: "+err.Error())
		flows = []quotes.SectorFlow{}
	}
	if len(flows) > flowRankingSize {
		flows = flows[:flowRankingSize]
	}

	return &MarketReport{
		Timestamp:   snap.Timestamp,
		Indices:     snap.Indices,
		Statistics:  snap.Statistics,
		Sentiment:   sentiment,
		HotSectors:  hot,
		FlowRanking: flows,
		Warnings:    warnings,
	}, nil
}

// Markdown renders the report; brief keeps only the overview and sentiment
func (r *MarketReporter) Markdown(report *MarketReport, brief bool) (string, error) {
	return r.renderer.Render(MarketTemplate, marketView{MarketReport: report, Brief: brief})
}

// CSV writes the snapshot as a single row: timestamp, level and change of
// every index, then breadth counts and turnover
func (r *MarketReporter) CSV(w io.Writer, report *MarketReport) error {
	header := []string{"timestamp"}
	row := []string{report.Timestamp}
	for _, idx := range report.Indices {
		header = append(header, idx.Name+"_点位", idx.Name+"_涨跌幅")
		row = append(row, formatFloat(idx.Price), formatFloat(idx.ChangePct))
	}

	s := report.Statistics
	header = append(header, "total_count", "up_count", "down_count", "limit_up_count", "limit_down_count", "total_turnover")
	row = append(row,
		strconv.Itoa(s.Total), strconv.Itoa(s.Up), strconv.Itoa(s.Down),
		strconv.Itoa(s.LimitUp), strconv.Itoa(s.LimitDown), formatFloat(s.Turnover),
	)
	return writeCSV(w, header, [][]string{row})
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return errors.Wrap(err, "failed to write csv")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "failed to write csv")
	}
	if err := cw.WriteAll(rows); err != nil {
		return errors.Wrap(err, "failed to write csv")
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Save writes the report to path as Markdown or CSV
func (r *MarketReporter) Save(report *MarketReport, format, path string, brief bool) error {
	return save(path, format,
		func() (string, error) { return r.Markdown(report, brief) },
		func(w io.Writer) error { return r.CSV(w, report) },
	)
}
