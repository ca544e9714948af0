package portfolio

import (
	"bufio"
	"context"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/fundamental"
	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
	"github.com/jingkaihe/skilldesk/pkg/technical"
	"github.com/jingkaihe/skilldesk/pkg/utils"
)

// DefaultGroupName names groups analysed without a name
const DefaultGroupName = "未命名分组"

// Performer is the latest quote of a group member
type Performer struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
}

// GroupSummary counts advancing and declining members
type GroupSummary struct {
	Up        int     `json:"up_count"`
	Down      int     `json:"down_count"`
	AvgChange float64 `json:"avg_change"`
	Total     int     `json:"total_count"`
}

// FundamentalScore is the fundamental score of a group member
type FundamentalScore struct {
	Symbol     string             `json:"symbol"`
	Name       string             `json:"name"`
	Score      float64            `json:"score"`
	Components map[string]float64 `json:"components"`
}

// PeerData gathers the industry comparisons of one stock
type PeerData struct {
	Valuation *fundamental.PeerValuation `json:"valuation"`
	Growth    *fundamental.PeerGrowth    `json:"growth"`
	Dupont    *fundamental.Dupont        `json:"dupont"`
}

// GroupAnalysis is the full analysis of a watch list
type GroupAnalysis struct {
	GroupName         string              `json:"group_name"`
	StockCount        int                 `json:"stock_count"`
	Summary           GroupSummary        `json:"summary"`
	Signals           *GroupSignals       `json:"signals"`
	TopPerformers     []Performer         `json:"top_performers"`
	Laggards          []Performer         `json:"laggards"`
	FundamentalScores []FundamentalScore  `json:"fundamental_scores"`
	PeerComparison    map[string]PeerData `json:"peer_comparison,omitempty"`
}

// StockBuckets lists the stocks carrying each pattern family
type StockBuckets struct {
	GoldenCross []StockSignal `json:"golden_cross"`
	Oversold    []StockSignal `json:"oversold"`
	Breakout    []StockSignal `json:"breakout"`
	DeathCross  []StockSignal `json:"death_cross"`
	Overbought  []StockSignal `json:"overbought"`
}

// Comprehensive is an in-depth single stock report. Sections that fail to
// load are nil and their error is recorded under the section name.
type Comprehensive struct {
	Symbol        string                     `json:"symbol"`
	Basic         *Performer                 `json:"basic,omitempty"`
	PeerValuation *fundamental.PeerValuation `json:"peer_valuation,omitempty"`
	PeerGrowth    *fundamental.PeerGrowth    `json:"peer_growth,omitempty"`
	Business      *fundamental.Business      `json:"business_composition,omitempty"`
	Dupont        *fundamental.Dupont        `json:"dupont_analysis,omitempty"`
	LatestNews    *quotes.News               `json:"latest_news,omitempty"`
	NewsSentiment *fundamental.NewsSentiment `json:"news_sentiment,omitempty"`
	Errors        map[string]string          `json:"errors,omitempty"`
}

// SentimentCounts counts stocks per news sentiment
type SentimentCounts struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// GroupNews is the news sentiment of a watch list
type GroupNews struct {
	ByStock map[string]*fundamental.NewsSentiment `json:"by_stock"`
	Counts  SentimentCounts                       `json:"sentiment_summary"`
	Overall string                                `json:"overall_sentiment"`
}

// Analyzer analyses watch lists
type Analyzer struct {
	provider    quotes.Provider
	signals     *SignalGenerator
	scoring     *ScoringEngine
	financial   *fundamental.FinancialAnalyzer
	growth      *fundamental.GrowthAnalyzer
	valuation   *fundamental.ValuationAnalyzer
	dupont      *fundamental.DupontAnalyzer
	news        *fundamental.NewsAnalyzer
	concurrency int
	topN        int
}

// NewAnalyzer wires the scanners and analyzers used for group analysis
func NewAnalyzer(provider quotes.Provider, cfg config.Config) *Analyzer {
	concurrency := cfg.Analysis.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	topN := cfg.Analysis.TopN
	if topN <= 0 {
		topN = 5
	}

	opts := []technical.ScannerOption{
		technical.WithCount(cfg.Analysis.Candles),
		technical.WithConcurrency(concurrency),
	}
	if cfg.Analysis.Period != "" {
		opts = append(opts, technical.WithPeriod(quotes.Period(cfg.Analysis.Period)))
	}
	if cfg.Analysis.Adjust != "" {
		opts = append(opts, technical.WithAdjust(quotes.Adjust(cfg.Analysis.Adjust)))
	}
	scanner := technical.NewScanner(provider, cfg.Technical, opts...)

	return &Analyzer{
		provider:    provider,
		signals:     NewSignalGenerator(scanner, cfg.Signals),
		scoring:     NewScoringEngine(provider, cfg.Scoring, cfg.Technical),
		financial:   fundamental.NewFinancialAnalyzer(provider, concurrency),
		growth:      fundamental.NewGrowthAnalyzer(provider),
		valuation:   fundamental.NewValuationAnalyzer(provider),
		dupont:      fundamental.NewDupontAnalyzer(provider),
		news:        fundamental.NewNewsAnalyzer(provider, concurrency),
		concurrency: concurrency,
		topN:        topN,
	}
}

// Signals returns the signal generator
func (a *Analyzer) Signals() *SignalGenerator {
	return a.signals
}

// Scoring returns the scoring engine
func (a *Analyzer) Scoring() *ScoringEngine {
	return a.scoring
}

// AnalyzeGroup produces signals, quote summary, leaders, laggards and
// fundamental scores for symbols
func (a *Analyzer) AnalyzeGroup(ctx context.Context, symbols []string, name string) *GroupAnalysis {
	if name == "" {
		name = DefaultGroupName
	}
	performers := a.Quotes(ctx, symbols)
	return &GroupAnalysis{
		GroupName:         name,
		StockCount:        len(symbols),
		Summary:           Summarize(performers, len(symbols)),
		Signals:           a.signals.GroupSignals(ctx, symbols),
		TopPerformers:     TopPerformers(performers, a.topN),
		Laggards:          Laggards(performers, a.topN),
		FundamentalScores: a.FundamentalScores(ctx, symbols),
	}
}

// AnalyzeWithPeers extends AnalyzeGroup with industry comparisons. Symbols
// missing any comparison are left out of PeerComparison.
func (a *Analyzer) AnalyzeWithPeers(ctx context.Context, symbols []string, name string) *GroupAnalysis {
	result := a.AnalyzeGroup(ctx, symbols, name)

	peers := make([]*PeerData, len(symbols))
	a.each(ctx, symbols, func(ctx context.Context, i int, symbol string) {
		valuation, err := a.valuation.PeerValuation(ctx, symbol)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("symbol", symbol).Debug("no peer valuation")
			return
		}
		growth, err := a.growth.PeerGrowth(ctx, symbol)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("symbol", symbol).Debug("no peer growth")
			return
		}
		dupont, err := a.dupont.Analyze(ctx, symbol)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("symbol", symbol).Debug("no dupont analysis")
			return
		}
		peers[i] = &PeerData{Valuation: valuation, Growth: growth, Dupont: dupont}
	})

	result.PeerComparison = make(map[string]PeerData)
	for i, p := range peers {
		if p != nil {
			result.PeerComparison[symbols[i]] = *p
		}
	}
	return result
}

// Quotes fetches the latest quote of every symbol, skipping failures.
// Results keep the order of symbols.
func (a *Analyzer) Quotes(ctx context.Context, symbols []string) []Performer {
	spots := make([]*Performer, len(symbols))
	a.each(ctx, symbols, func(ctx context.Context, i int, symbol string) {
		spot, err := a.provider.StockSpot(ctx, symbol)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("symbol", symbol).Debug("skipping quote")
			return
		}
		spots[i] = &Performer{Symbol: symbol, Name: spot.Name, Price: spot.Price, ChangePct: spot.ChangePct}
	})

	out := []Performer{}
	for _, s := range spots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// Summarize counts advancing and declining performers. total is the size
// of the group, including members without a quote.
func Summarize(performers []Performer, total int) GroupSummary {
	s := GroupSummary{Total: total}
	changes := make([]float64, 0, len(performers))
	for _, p := range performers {
		switch {
		case p.ChangePct > 0:
			s.Up++
		case p.ChangePct < 0:
			s.Down++
		}
		changes = append(changes, p.ChangePct)
	}
	s.AvgChange = utils.Round(utils.Mean(changes), 2)
	return s
}

// TopPerformers returns the n best performers by change
func TopPerformers(performers []Performer, n int) []Performer {
	return ranked(performers, n, func(a, b Performer) bool { return a.ChangePct > b.ChangePct })
}

// Laggards returns the n worst performers by change
func Laggards(performers []Performer, n int) []Performer {
	return ranked(performers, n, func(a, b Performer) bool { return a.ChangePct < b.ChangePct })
}

func ranked(performers []Performer, n int, less func(a, b Performer) bool) []Performer {
	out := append([]Performer{}, performers...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// FundamentalScores scores every symbol with a quote, best first
func (a *Analyzer) FundamentalScores(ctx context.Context, symbols []string) []FundamentalScore {
	scores := make([]*FundamentalScore, len(symbols))
	a.each(ctx, symbols, func(ctx context.Context, i int, symbol string) {
		score := a.scoring.Fundamental(ctx, symbol)
		spot, err := a.provider.StockSpot(ctx, symbol)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("symbol", symbol).Debug("skipping fundamental score")
			return
		}
		scores[i] = &FundamentalScore{Symbol: symbol, Name: spot.Name, Score: score.Score, Components: score.Components}
	})

	out := []FundamentalScore{}
	for _, s := range scores {
		if s != nil {
			out = append(out, *s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// SignalSummary lists the stocks of signals carrying each pattern family.
// A stock is listed once per family.
func (a *Analyzer) SignalSummary(signals *GroupSignals) *StockBuckets {
	b := &StockBuckets{
		GoldenCross: []StockSignal{},
		Oversold:    []StockSignal{},
		Breakout:    []StockSignal{},
		DeathCross:  []StockSignal{},
		Overbought:  []StockSignal{},
	}
	for _, stock := range signals.All() {
		seen := map[string]bool{}
		for _, p := range stock.Signals {
			f := family(p.Type)
			if f == "" || seen[f] {
				continue
			}
			seen[f] = true
			switch f {
			case "golden_cross":
				b.GoldenCross = append(b.GoldenCross, stock)
			case "death_cross":
				b.DeathCross = append(b.DeathCross, stock)
			case "oversold":
				b.Oversold = append(b.Oversold, stock)
			case "overbought":
				b.Overbought = append(b.Overbought, stock)
			case "breakout":
				b.Breakout = append(b.Breakout, stock)
			}
		}
	}
	return b
}

// Comprehensive gathers quote, peer comparisons, business composition,
// Dupont analysis and news of symbol
func (a *Analyzer) Comprehensive(ctx context.Context, symbol string) *Comprehensive {
	out := &Comprehensive{Symbol: symbol, Errors: map[string]string{}}
	var mu sync.Mutex
	fail := func(section string, err error) {
		mu.Lock()
		defer mu.Unlock()
		out.Errors[section] = err.Error()
	}

	var g errgroup.Group
	g.Go(func() error {
		spot, err := a.provider.StockSpot(ctx, symbol)
		if err != nil {
			fail("basic", err)
			return nil
		}
		out.Basic = &Performer{Symbol: symbol, Name: spot.Name, Price: spot.Price, ChangePct: spot.ChangePct}
		return nil
	})
	g.Go(func() error {
		v, err := a.valuation.PeerValuation(ctx, symbol)
		if err != nil {
			fail("peer_valuation", err)
			return nil
		}
		out.PeerValuation = v
		return nil
	})
	g.Go(func() error {
		gr, err := a.growth.PeerGrowth(ctx, symbol)
		if err != nil {
			fail("peer_growth", err)
			return nil
		}
		out.PeerGrowth = gr
		return nil
	})
	g.Go(func() error {
		b, err := a.financial.BusinessComposition(ctx, symbol)
		if err != nil {
			fail("business_composition", err)
			return nil
		}
		out.Business = b
		return nil
	})
	g.Go(func() error {
		d, err := a.dupont.Analyze(ctx, symbol)
		if err != nil {
			fail("dupont_analysis", err)
			return nil
		}
		out.Dupont = d
		return nil
	})
	g.Go(func() error {
		n, err := a.news.News(ctx, symbol, 5)
		if err != nil {
			fail("news", err)
			return nil
		}
		s := fundamental.ClassifyHeadlines(n.News)
		s.Symbol, s.Name = symbol, n.Name
		out.LatestNews, out.NewsSentiment = n.Latest, s
		return nil
	})
	_ = g.Wait()

	if len(out.Errors) == 0 {
		out.Errors = nil
	}
	return out
}

// NewsSummary classifies recent news of every symbol. Symbols without news
// are left out.
func (a *Analyzer) NewsSummary(ctx context.Context, symbols []string, limit int) *GroupNews {
	sentiments := make([]*fundamental.NewsSentiment, len(symbols))
	a.each(ctx, symbols, func(ctx context.Context, i int, symbol string) {
		s, err := a.news.Sentiment(ctx, symbol, limit)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("symbol", symbol).Debug("skipping news sentiment")
			return
		}
		sentiments[i] = s
	})

	out := &GroupNews{ByStock: map[string]*fundamental.NewsSentiment{}}
	for i, s := range sentiments {
		if s == nil {
			continue
		}
		out.ByStock[symbols[i]] = s
		switch s.Sentiment {
		case "positive":
			out.Counts.Positive++
		case "negative":
			out.Counts.Negative++
		default:
			out.Counts.Neutral++
		}
	}
	out.Overall = OverallSentiment(out.Counts)
	return out
}

// OverallSentiment leans one way when that side has more than 1.5 times
// the other
func OverallSentiment(c SentimentCounts) string {
	pos, neg := float64(c.Positive), float64(c.Negative)
	switch {
	case c.Positive+c.Negative+c.Neutral == 0:
		return "数据不足"
	case pos > neg*1.5:
		return "整体偏正面"
	case neg > pos*1.5:
		return "整体偏负面"
	}
	return "整体中性"
}

// ReadSymbolsFile reads one symbol per line, skipping blank lines and
// lines starting with #
func ReadSymbolsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open symbols file %s", path)
	}
	defer f.Close()

	var symbols []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbols = append(symbols, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read symbols file %s", path)
	}
	return symbols, nil
}

func (a *Analyzer) each(ctx context.Context, symbols []string, f func(ctx context.Context, i int, symbol string)) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, symbol := range symbols {
		g.Go(func() error {
			f(gctx, i, symbol)
			return nil
		})
	}
	_ = g.Wait()
}
