package portfolio

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
	"github.com/jingkaihe/skilldesk/pkg/quotes/quotestest"
	"github.com/jingkaihe/skilldesk/pkg/technical"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var f = quotes.Float64

func linear(n int, start, step float64) []quotes.Candle {
	out := make([]quotes.Candle, n)
	for i := range out {
		p := start + step*float64(i)
		out[i] = quotes.Candle{Open: p - step/2, High: p + 0.1, Low: p - 0.1, Close: p, Volume: 1000}
	}
	return out
}

// jump is a slow decline followed by a sharp rally on heavy volume
func jump() []quotes.Candle {
	candles := linear(69, 20, -0.1)
	last := candles[len(candles)-1].Close + 3
	return append(candles, quotes.Candle{Open: last - 2.9, High: last + 0.1, Low: last - 3, Close: last, Volume: 3000})
}

func newFake() *quotestest.Fake {
	return &quotestest.Fake{
		Spots: map[string]*quotes.Spot{
			"600000": {Symbol: "600000", Name: "浦发银行", Price: 16.2, ChangePct: 2.5},
			"000001": {Symbol: "000001", Name: "平安银行", Price: 13.1, ChangePct: -0.8},
			"600519": {Symbol: "600519", Name: "贵州茅台", Price: 16.9, ChangePct: 0.6},
		},
		Candles: map[string][]quotes.Candle{
			"600000": jump(),
			"000001": linear(70, 20, -0.1),
			"600519": linear(70, 10, 0.1),
		},
		Financials: map[string]*quotes.Financial{
			"600000": {Symbol: "600000", PE: f(6), PB: f(0.5)},
			"000001": {Symbol: "000001", PE: f(60), PB: f(6)},
			"600519": {Symbol: "600519", PE: f(25), PB: f(8)},
			"601166": {Symbol: "601166", PE: f(10)},
		},
		Valuation: map[string][]quotes.ValuationRow{
			"600000": {
				{Code: "600000", Name: "浦发银行", PE: f(6), PB: f(0.5)},
				{Code: "601166", Name: "兴业银行", PE: f(10), PB: f(0.7)},
			},
		},
		Growth: map[string][]quotes.GrowthRow{
			"600000": {
				{Code: "600000", Name: "浦发银行", RevenueGrowth: f(-2), ProfitGrowth: f(12)},
				{Code: "601166", Name: "兴业银行", RevenueGrowth: f(4), ProfitGrowth: f(8)},
			},
		},
		Dupont: map[string][]quotes.DupontRow{
			"600000": {
				{Code: "600000", Name: "浦发银行", ROE: f(16), NetProfitMargin: f(25), AssetTurnover: f(0.02), EquityMultiplier: f(12)},
			},
		},
		Business: map[string][]quotes.BusinessItem{
			"600000": {{ReportDate: "2025-12-31", Type: "industry", Item: "银行业", Revenue: f(1.7e11)}},
		},
		News: map[string][]quotes.News{
			"600000": {
				{Title: "浦发银行净利润增长12%"},
				{Title: "浦发银行获股东增持"},
				{Title: "银行板块午后上涨"},
			},
			"000001": {{Title: "平安银行亏损风险提示"}},
		},
		Errors: map[string]error{
			"StockSpot:300750":        errors.New("upstream unavailable"),
			"StockCandles:300750":     errors.New("upstream unavailable"),
			"FinancialSummary:300750": errors.New("upstream unavailable"),
		},
	}
}

func newEngine(p quotes.Provider) *ScoringEngine {
	cfg := config.Default()
	return NewScoringEngine(p, cfg.Scoring, cfg.Technical)
}

func TestTechnicalFromCandles(t *testing.T) {
	e := newEngine(newFake())

	assert.Equal(t, &Score{Score: 5, Components: map[string]float64{}}, e.TechnicalFromCandles(nil))

	short := e.TechnicalFromCandles(linear(10, 10, 0.1))
	assert.Equal(t, 5.0, short.Score)
	assert.Equal(t, map[string]float64{"trend": 5, "momentum": 5, "volume": 5}, short.Components)

	tests := []struct {
		name    string
		candles []quotes.Candle
		trend   float64
		volume  float64
	}{
		{"rising", linear(70, 10, 0.1), 7, 5},
		{"falling", linear(70, 20, -0.1), 4, 5},
		{"rally on volume", jump(), 5, 6.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := e.TechnicalFromCandles(tt.candles)
			c := s.Components
			assert.Equal(t, tt.trend, c["trend"])
			assert.Equal(t, tt.volume, c["volume"])
			assert.InDelta(t, c["trend"]*0.4+c["momentum"]*0.3+c["volume"]*0.3, s.Score, 0.01)
		})
	}
}

func TestTechnical_FallsBackToNeutral(t *testing.T) {
	e := newEngine(newFake())
	assert.Equal(t, neutral(), e.Technical(context.Background(), "300750"))
}

func TestMomentum(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		rsi, hist float64
		want      float64
	}{
		{50, 1, 6.5},
		{35, nan, 5.5},
		{65, -1, 5},
		{70, 1, 6},
		{20, 0, 5.5},
		{80, nan, 4},
		{nan, nan, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, momentum(tt.rsi, tt.hist), "rsi=%v hist=%v", tt.rsi, tt.hist)
	}
}

func TestTrendScore(t *testing.T) {
	series := func(n int, fn func(i int) float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = fn(i)
		}
		return out
	}
	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{"rising", series(30, func(i int) float64 { return 10 + float64(i) }), 7},
		{"falling", series(30, func(i int) float64 { return 40 - float64(i) }), 4},
		{"flat", series(30, func(int) float64 { return 10 }), 4},
		{"pullback after rally", series(30, func(i int) float64 {
			if i < 20 {
				return 10 + float64(i)
			}
			return 29 - 0.2*float64(i-19)
		}), 6.5},
		{"too short for averages", series(10, func(i int) float64 { return 10 + float64(i) }), 5.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trendScore(tt.closes))
		})
	}
}

func TestSubScores(t *testing.T) {
	tests := []struct {
		name string
		fn   func(a, b *float64) float64
		a, b *float64
		want float64
	}{
		{"valuation cheap", ValuationScore, f(6), f(0.5), 8},
		{"valuation fair", ValuationScore, f(20), f(2), 6.5},
		{"valuation rich", ValuationScore, f(60), f(6), 3},
		{"valuation missing", ValuationScore, nil, nil, 5},

		{"growth strong", GrowthScore, f(35), f(25), 8},
		{"growth moderate", GrowthScore, f(15), f(10), 6},
		{"growth profit boundary", GrowthScore, f(30), f(20), 6},
		{"growth shrinking", GrowthScore, f(-10), f(-5), 2.5},
		{"growth revenue only", GrowthScore, nil, f(25), 6},
		{"growth missing", GrowthScore, nil, nil, 5},

		{"quality strong", QualityScore, f(16), f(25), 8},
		{"quality moderate", QualityScore, f(12), f(10), 6},
		{"quality roe boundary", QualityScore, f(15), f(20), 6},
		{"quality weak", QualityScore, f(2), f(3), 3.5},
		{"quality missing", QualityScore, nil, nil, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.a, tt.b))
		})
	}
}

func TestFundamental(t *testing.T) {
	e := newEngine(newFake())
	ctx := context.Background()

	s := e.Fundamental(ctx, "600000")
	assert.Equal(t, 6.8, s.Score)
	assert.Equal(t, map[string]float64{"valuation": 8, "growth": 5, "quality": 8}, s.Components)

	s = e.Fundamental(ctx, "601166")
	assert.Equal(t, 5.6, s.Score)
	assert.Equal(t, map[string]float64{"valuation": 7, "growth": 5, "quality": 5}, s.Components)

	assert.Equal(t, neutral(), e.Fundamental(ctx, "300750"))
}

func TestOverall(t *testing.T) {
	e := newEngine(newFake())

	assert.Equal(t, &OverallScore{
		Score:       6.6,
		Technical:   7,
		Fundamental: 6,
		Weights:     map[string]float64{"technical": 0.6, "fundamental": 0.4},
	}, e.Combine(7, 6))

	o := e.Overall(context.Background(), "300750")
	assert.Equal(t, 5.0, o.Score)
	assert.Equal(t, 5.0, o.Technical)
	assert.Equal(t, 5.0, o.Fundamental)
}

func pattern(typ string, strength int) technical.Pattern {
	return technical.Pattern{Type: typ, Strength: strength}
}

func TestSignalScore(t *testing.T) {
	assert.Equal(t, 5.0, SignalScore(nil))
	assert.Equal(t, 10.0, SignalScore([]technical.Pattern{pattern(technical.GoldenCross, 8), pattern(technical.VolumeBreakout, 7)}))
	assert.Equal(t, 0.63, SignalScore([]technical.Pattern{pattern(technical.RSIOverbought, -7)}))
	assert.Equal(t, 5.0, SignalScore([]technical.Pattern{pattern(technical.MACDGoldenCross, 6), pattern(technical.MACDDeathCross, -6)}))
	assert.Equal(t, 8.13, SignalScore([]technical.Pattern{pattern("bullish_hammer", 5)}))
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, RiskMedium, RiskLevel(nil))
	assert.Equal(t, RiskMedium, RiskLevel([]technical.Pattern{pattern("x", 3), pattern("y", -3)}))
	assert.Equal(t, RiskLow, RiskLevel([]technical.Pattern{pattern(technical.GoldenCross, 8)}))
	assert.Equal(t, RiskHigh, RiskLevel([]technical.Pattern{pattern(technical.GoldenCross, 8), pattern(technical.DeathCross, -8)}))
	assert.Equal(t, RiskVeryHigh, RiskLevel([]technical.Pattern{pattern(technical.DeathCross, -8), pattern(technical.RSIOverbought, -7)}))
}

func TestKeyLevels(t *testing.T) {
	tests := []struct {
		name                string
		price               float64
		support, resistance []float64
		entry, target, stop string
	}{
		{"no price", 0, []float64{9}, []float64{11}, "-", "-", "-"},
		{"with levels", 10, []float64{9.5, 9}, []float64{11, 12}, "9.00-10.00", "10.00-12.00", "8.73"},
		{"without levels", 10, nil, nil, "9.80-10.00", "10.00-11.00", "9.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, target, stop := KeyLevels(tt.price, tt.support, tt.resistance)
			assert.Equal(t, tt.entry, entry)
			assert.Equal(t, tt.target, target)
			assert.Equal(t, tt.stop, stop)
		})
	}
}

func TestFromScan(t *testing.T) {
	g := NewSignalGenerator(nil, config.SignalsConfig{})

	tests := []struct {
		name     string
		patterns []technical.Pattern
		action   string
		reason   string
	}{
		{"buy", []technical.Pattern{pattern(technical.GoldenCross, 8)}, Buy, "综合评分 10/10，多个看多信号"},
		{"sell", []technical.Pattern{pattern(technical.DeathCross, -8)}, Sell, "综合评分 0/10，出现看空信号"},
		{"hold", nil, Hold, "综合评分 5/10，建议观望"},
		{"hold below buy", []technical.Pattern{pattern("bullish_doji", 3)}, Hold, "综合评分 6.88/10，建议观望"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := g.FromScan(&technical.ScanResult{Symbol: "600000", Name: "浦发银行", Price: 10, Patterns: tt.patterns})
			assert.Equal(t, tt.action, s.Recommendation)
			assert.Equal(t, tt.reason, s.Reason)
			assert.NotNil(t, s.Signals)
			assert.Equal(t, "9.80-10.00", s.EntryZone)
		})
	}
}

func TestGroupSummary(t *testing.T) {
	assert.Equal(t, "暂无分析结果", groupSummary(0, 0, 0))
	assert.Equal(t, "市场机会较多，3只股票建议关注", groupSummary(3, 1, 1))
	assert.Equal(t, "市场温和偏多，2只股票值得关注", groupSummary(2, 2, 1))
	assert.Equal(t, "市场分化明显，1只股票存在机会", groupSummary(1, 3, 1))
	assert.Equal(t, "市场整体偏弱，建议谨慎操作", groupSummary(1, 5, 4))
}

func TestGroupSignals(t *testing.T) {
	cfg := config.Default()
	scanner := technical.NewScanner(newFake(), cfg.Technical, technical.WithConcurrency(2))
	g := NewSignalGenerator(scanner, cfg.Signals)

	out := g.GroupSignals(context.Background(), []string{"300750", "600000", "600519", "000001"})
	all := out.All()
	require.Len(t, all, 3)
	require.NotEmpty(t, out.Buy)
	assert.Equal(t, "600000", out.Buy[0].Symbol)
	assert.Equal(t, 10.0, out.Buy[0].Score)
	assert.Contains(t, symbolsOf(out.Sell), "600519")
	assert.Equal(t, groupSummary(len(out.Buy), len(out.Hold), len(out.Sell)), out.Summary)
	for i := 1; i < len(out.Buy); i++ {
		assert.GreaterOrEqual(t, out.Buy[i-1].Score, out.Buy[i].Score)
	}
	for _, s := range all {
		assert.NotEqual(t, "300750", s.Symbol)
	}
}

func symbolsOf(signals []StockSignal) []string {
	out := []string{}
	for _, s := range signals {
		out = append(out, s.Symbol)
	}
	return out
}

func TestSummarizePatterns(t *testing.T) {
	b := SummarizePatterns([]technical.Pattern{
		pattern(technical.MACDGoldenCross, 6),
		pattern(technical.DeathCross, -8),
		pattern(technical.RSIOversold, 7),
		pattern(technical.RSIOverbought, -7),
		pattern(technical.BollingerBreakoutLower, -7),
		pattern("bullish_hammer", 5),
	})
	assert.Len(t, b.GoldenCross, 1)
	assert.Len(t, b.DeathCross, 1)
	assert.Len(t, b.Oversold, 1)
	assert.Len(t, b.Overbought, 1)
	assert.Equal(t, []technical.Pattern{pattern(technical.BollingerBreakoutLower, -7)}, b.Breakout)
	assert.Equal(t, []technical.Pattern{pattern("bullish_hammer", 5)}, b.Other)
}

func newAnalyzer() *Analyzer {
	cfg := config.Default()
	cfg.Analysis.Concurrency = 2
	return NewAnalyzer(newFake(), cfg)
}

func TestPerformers(t *testing.T) {
	performers := []Performer{
		{Symbol: "a", ChangePct: 1},
		{Symbol: "b", ChangePct: -2},
		{Symbol: "c", ChangePct: 0},
		{Symbol: "d", ChangePct: 3},
	}

	assert.Equal(t, GroupSummary{Up: 2, Down: 1, AvgChange: 0.5, Total: 5}, Summarize(performers, 5))
	assert.Equal(t, GroupSummary{Total: 2}, Summarize(nil, 2))

	symbols := func(ps []Performer) []string {
		out := []string{}
		for _, p := range ps {
			out = append(out, p.Symbol)
		}
		return out
	}
	assert.Equal(t, []string{"d", "a"}, symbols(TopPerformers(performers, 2)))
	assert.Equal(t, []string{"b", "c", "a", "d"}, symbols(Laggards(performers, 10)))
	assert.Equal(t, "a", performers[0].Symbol)
}

func TestAnalyzeGroup(t *testing.T) {
	a := newAnalyzer()
	symbols := []string{"600000", "000001", "600519", "300750"}

	out := a.AnalyzeGroup(context.Background(), symbols, "")
	assert.Equal(t, DefaultGroupName, out.GroupName)
	assert.Equal(t, 4, out.StockCount)
	assert.Equal(t, GroupSummary{Up: 2, Down: 1, AvgChange: 0.77, Total: 4}, out.Summary)
	require.Len(t, out.TopPerformers, 3)
	assert.Equal(t, "600000", out.TopPerformers[0].Symbol)
	assert.Equal(t, "000001", out.Laggards[0].Symbol)
	assert.Len(t, out.Signals.All(), 3)
	assert.Nil(t, out.PeerComparison)

	require.Len(t, out.FundamentalScores, 3)
	assert.Equal(t, FundamentalScore{
		Symbol: "600000", Name: "浦发银行", Score: 6.8,
		Components: map[string]float64{"valuation": 8, "growth": 5, "quality": 8},
	}, out.FundamentalScores[0])
	assert.Equal(t, "600519", out.FundamentalScores[1].Symbol)
	assert.Equal(t, 5.0, out.FundamentalScores[1].Score)
	assert.Equal(t, "000001", out.FundamentalScores[2].Symbol)
	assert.Equal(t, 4.4, out.FundamentalScores[2].Score)
}

func TestAnalyzeWithPeers(t *testing.T) {
	out := newAnalyzer().AnalyzeWithPeers(context.Background(), []string{"600000", "000001"}, "银行")
	assert.Equal(t, "银行", out.GroupName)
	require.Len(t, out.PeerComparison, 1)
	peer := out.PeerComparison["600000"]
	assert.Equal(t, 2, peer.Valuation.PeerCount)
	assert.Equal(t, "ROE 优秀，盈利能力优秀，资产利用效率较低，杠杆较高，财务风险较大", peer.Dupont.Overall)
	assert.Equal(t, 2, peer.Growth.PeerCount)
	assert.Equal(t, "浦发银行", peer.Dupont.Name)
}

func TestSignalSummary(t *testing.T) {
	a := newAnalyzer()
	cross := StockSignal{Symbol: "600000", Signals: []technical.Pattern{
		pattern(technical.GoldenCross, 8), pattern(technical.MACDGoldenCross, 6), pattern(technical.VolumeBreakout, 7),
	}}
	weak := StockSignal{Symbol: "000001", Signals: []technical.Pattern{pattern(technical.RSIOverbought, -7)}}
	plain := StockSignal{Symbol: "600519", Signals: []technical.Pattern{pattern("bullish_doji", 5)}}

	b := a.SignalSummary(&GroupSignals{Buy: []StockSignal{cross}, Hold: []StockSignal{plain}, Sell: []StockSignal{weak}})
	assert.Equal(t, []StockSignal{cross}, b.GoldenCross)
	assert.Equal(t, []StockSignal{cross}, b.Breakout)
	assert.Equal(t, []StockSignal{weak}, b.Overbought)
	assert.Empty(t, b.Oversold)
	assert.Empty(t, b.DeathCross)
}

func TestComprehensive(t *testing.T) {
	a := newAnalyzer()
	ctx := context.Background()

	c := a.Comprehensive(ctx, "600000")
	assert.Nil(t, c.Errors)
	assert.Equal(t, &Performer{Symbol: "600000", Name: "浦发银行", Price: 16.2, ChangePct: 2.5}, c.Basic)
	assert.Equal(t, "2025-12-31", c.Business.ReportDate)
	assert.Equal(t, "浦发银行净利润增长12%", c.LatestNews.Title)
	assert.Equal(t, "positive", c.NewsSentiment.Sentiment)
	assert.Equal(t, "600000", c.NewsSentiment.Symbol)
	require.NotNil(t, c.PeerValuation)
	require.NotNil(t, c.PeerGrowth)
	require.NotNil(t, c.Dupont)

	c = a.Comprehensive(ctx, "300750")
	assert.Nil(t, c.Basic)
	assert.Equal(t, []string{"basic", "business_composition", "dupont_analysis", "news", "peer_growth", "peer_valuation"}, keys(c.Errors))
	assert.Equal(t, "upstream unavailable", c.Errors["basic"])
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestNewsSummary(t *testing.T) {
	out := newAnalyzer().NewsSummary(context.Background(), []string{"600000", "000001", "600519"}, 3)
	assert.Equal(t, SentimentCounts{Positive: 1, Negative: 1}, out.Counts)
	assert.Equal(t, "整体中性", out.Overall)
	assert.Len(t, out.ByStock, 2)
	assert.Equal(t, "negative", out.ByStock["000001"].Sentiment)
}

func TestOverallSentiment(t *testing.T) {
	assert.Equal(t, "数据不足", OverallSentiment(SentimentCounts{}))
	assert.Equal(t, "整体偏正面", OverallSentiment(SentimentCounts{Positive: 2, Negative: 1}))
	assert.Equal(t, "整体偏负面", OverallSentiment(SentimentCounts{Negative: 1, Neutral: 4}))
	assert.Equal(t, "整体中性", OverallSentiment(SentimentCounts{Positive: 3, Negative: 2}))
}

func TestReadSymbolsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "group.txt")
	require.NoError(t, os.WriteFile(path, []byte("# banks\n600000\n\n  000001  \n#600519\n300750.SZ\n"), 0o644))

	symbols, err := ReadSymbolsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"600000", "000001", "300750.SZ"}, symbols)

	_, err = ReadSymbolsFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
