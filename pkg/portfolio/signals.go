package portfolio

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/technical"
	"github.com/jingkaihe/skilldesk/pkg/utils"
)

// Recommendations
const (
	Buy  = "buy"
	Hold = "hold"
	Sell = "sell"
)

// Risk levels
const (
	RiskLow      = "低"
	RiskMedium   = "中"
	RiskHigh     = "高"
	RiskVeryHigh = "极高"
)

// StockSignal is the trading recommendation for one stock
type StockSignal struct {
	Symbol         string              `json:"symbol"`
	Name           string              `json:"name"`
	Price          float64             `json:"price"`
	ChangePct      float64             `json:"change_pct"`
	Signals        []technical.Pattern `json:"signals"`
	Score          float64             `json:"overall_score"`
	Recommendation string              `json:"recommendation"`
	RiskLevel      string              `json:"risk_level"`
	Reason         string              `json:"reason"`
	EntryZone      string              `json:"entry_zone"`
	TargetZone     string              `json:"target_zone"`
	StopLoss       string              `json:"stop_loss"`
}

// GroupSignals splits analysed stocks by recommendation
type GroupSignals struct {
	Buy     []StockSignal `json:"buy"`
	Hold    []StockSignal `json:"hold"`
	Sell    []StockSignal `json:"sell"`
	Summary string        `json:"summary"`
}

// All returns buy, hold and sell stocks in that order
func (g *GroupSignals) All() []StockSignal {
	return slices.Concat(g.Buy, g.Hold, g.Sell)
}

// PatternBuckets groups patterns by family
type PatternBuckets struct {
	GoldenCross []technical.Pattern `json:"golden_cross"`
	DeathCross  []technical.Pattern `json:"death_cross"`
	Oversold    []technical.Pattern `json:"oversold"`
	Overbought  []technical.Pattern `json:"overbought"`
	Breakout    []technical.Pattern `json:"breakout"`
	Other       []technical.Pattern `json:"other"`
}

// SignalGenerator turns detected patterns into recommendations
type SignalGenerator struct {
	scanner *technical.Scanner
	buy     float64
	sell    float64
}

// NewSignalGenerator creates a signal generator on top of scanner
func NewSignalGenerator(scanner *technical.Scanner, cfg config.SignalsConfig) *SignalGenerator {
	g := &SignalGenerator{scanner: scanner, buy: cfg.BuyThreshold, sell: cfg.SellThreshold}
	if g.buy == 0 {
		g.buy = 7
	}
	if g.sell == 0 {
		g.sell = 3
	}
	return g
}

// AnalyzeStock scans symbol and derives a recommendation with key levels
func (g *SignalGenerator) AnalyzeStock(ctx context.Context, symbol string) (*StockSignal, error) {
	scan, err := g.scanner.ScanStock(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return g.FromScan(scan), nil
}

// FromScan derives a recommendation from an existing scan result
func (g *SignalGenerator) FromScan(scan *technical.ScanResult) *StockSignal {
	score := SignalScore(scan.Patterns)
	action, reason := g.recommend(score)
	entry, target, stop := KeyLevels(scan.Price, scan.Support, scan.Resistance)
	signals := scan.Patterns
	if signals == nil {
		signals = []technical.Pattern{}
	}
	return &StockSignal{
		Symbol:         scan.Symbol,
		Name:           scan.Name,
		Price:          scan.Price,
		ChangePct:      scan.ChangePct,
		Signals:        signals,
		Score:          score,
		Recommendation: action,
		RiskLevel:      RiskLevel(scan.Patterns),
		Reason:         reason,
		EntryZone:      entry,
		TargetZone:     target,
		StopLoss:       stop,
	}
}

// GroupSignals analyses every symbol and splits them by recommendation.
// Symbols that fail to scan are left out. Buy is ordered by descending
// score, sell by ascending score, hold keeps the order of symbols.
func (g *SignalGenerator) GroupSignals(ctx context.Context, symbols []string) *GroupSignals {
	out := &GroupSignals{Buy: []StockSignal{}, Hold: []StockSignal{}, Sell: []StockSignal{}}
	for _, scan := range g.scanner.ScanGroup(ctx, symbols) {
		if scan.Error != "" {
			logger.G(ctx).WithField("symbol", scan.Symbol).WithField("error", scan.Error).Debug("leaving symbol out of group signals")
			continue
		}
		s := g.FromScan(&scan)
		switch s.Recommendation {
		case Buy:
			out.Buy = append(out.Buy, *s)
		case Hold:
			out.Hold = append(out.Hold, *s)
		default:
			out.Sell = append(out.Sell, *s)
		}
	}

	sort.SliceStable(out.Buy, func(i, j int) bool { return out.Buy[i].Score > out.Buy[j].Score })
	sort.SliceStable(out.Sell, func(i, j int) bool { return out.Sell[i].Score < out.Sell[j].Score })
	out.Summary = groupSummary(len(out.Buy), len(out.Hold), len(out.Sell))
	return out
}

// SignalScore maps the summed pattern strength onto 0-10; one full
// strength-8 signal moves the score by 5
func SignalScore(patterns []technical.Pattern) float64 {
	if len(patterns) == 0 {
		return Neutral
	}
	total := 0
	for _, p := range patterns {
		total += p.Strength
	}
	return utils.Round(utils.Clamp(Neutral+float64(total)/8*5, 0, 10), 2)
}

// RiskLevel rates risk by the number of strong bearish and bullish patterns
func RiskLevel(patterns []technical.Pattern) string {
	var positive, negative int
	for _, p := range patterns {
		switch {
		case p.Strength > 3:
			positive++
		case p.Strength < -3:
			negative++
		}
	}
	switch {
	case negative >= 2:
		return RiskVeryHigh
	case negative > 0:
		return RiskHigh
	case positive > 0:
		return RiskLow
	}
	return RiskMedium
}

func (g *SignalGenerator) recommend(score float64) (action, reason string) {
	s := strconv.FormatFloat(score, 'f', -1, 64)
	switch {
	case score >= g.buy:
		return Buy, fmt.Sprintf("综合评分 %s/10，多个看多信号", s)
	case score <= g.sell:
		return Sell, fmt.Sprintf("综合评分 %s/10，出现看空信号", s)
	}
	return Hold, fmt.Sprintf("综合评分 %s/10，建议观望", s)
}

// KeyLevels derives the entry zone, target zone and stop loss from the
// price and its support and resistance levels
func KeyLevels(price float64, support, resistance []float64) (entry, target, stop string) {
	if price == 0 {
		return "-", "-", "-"
	}

	entry = fmt.Sprintf("%.2f-%.2f", price*0.98, price)
	stopLoss := price * 0.95
	if len(support) > 0 {
		low := slices.Min(support)
		entry = fmt.Sprintf("%.2f-%.2f", low, price)
		stopLoss = low * 0.97
	}

	target = fmt.Sprintf("%.2f-%.2f", price, price*1.1)
	if len(resistance) > 0 {
		target = fmt.Sprintf("%.2f-%.2f", price, slices.Max(resistance))
	}
	return entry, target, fmt.Sprintf("%.2f", stopLoss)
}

func groupSummary(buy, hold, sell int) string {
	total := buy + hold + sell
	if total == 0 {
		return "暂无分析结果"
	}
	ratio := float64(buy) / float64(total) * 100
	switch {
	case ratio > 50:
		return fmt.Sprintf("市场机会较多，%d只股票建议关注", buy)
	case ratio > 30:
		return fmt.Sprintf("市场温和偏多，%d只股票值得关注", buy)
	case ratio > 10:
		return fmt.Sprintf("市场分化明显，%d只股票存在机会", buy)
	}
	return "市场整体偏弱，建议谨慎操作"
}

// SummarizePatterns buckets patterns by family. Families are matched by
// type substring in the order golden cross, death cross, oversold,
// overbought, breakout.
func SummarizePatterns(patterns []technical.Pattern) *PatternBuckets {
	b := &PatternBuckets{
		GoldenCross: []technical.Pattern{},
		DeathCross:  []technical.Pattern{},
		Oversold:    []technical.Pattern{},
		Overbought:  []technical.Pattern{},
		Breakout:    []technical.Pattern{},
		Other:       []technical.Pattern{},
	}
	for _, p := range patterns {
		switch family(p.Type) {
		case "golden_cross":
			b.GoldenCross = append(b.GoldenCross, p)
		case "death_cross":
			b.DeathCross = append(b.DeathCross, p)
		case "oversold":
			b.Oversold = append(b.Oversold, p)
		case "overbought":
			b.Overbought = append(b.Overbought, p)
		case "breakout":
			b.Breakout = append(b.Breakout, p)
		default:
			b.Other = append(b.Other, p)
		}
	}
	return b
}

var families = []string{"golden_cross", "death_cross", "oversold", "overbought", "breakout"}

func family(patternType string) string {
	for _, f := range families {
		if strings.Contains(patternType, f) {
			return f
		}
	}
	return ""
}
