// Package portfolio scores, signals and summarises user watch lists.
package portfolio

import (
	"context"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/fundamental"
	"github.com/jingkaihe/skilldesk/pkg/indicators"
	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
	"github.com/jingkaihe/skilldesk/pkg/utils"
)

// Neutral is the score used whenever a component cannot be computed
const Neutral = 5.0

const (
	scoringCandles = 100
	minScoringBars = 20
	trendWindow    = 10
)

// Score is a 0-10 score with its rounded components
type Score struct {
	Score      float64            `json:"score"`
	Components map[string]float64 `json:"components"`
}

// OverallScore combines a technical and a fundamental score
type OverallScore struct {
	Score       float64            `json:"overall_score"`
	Technical   float64            `json:"technical_score"`
	Fundamental float64            `json:"fundamental_score"`
	Weights     map[string]float64 `json:"weights"`
}

func neutral() *Score {
	return &Score{Score: Neutral, Components: map[string]float64{}}
}

// ScoringEngine rates stocks on technical and fundamental grounds
type ScoringEngine struct {
	provider quotes.Provider
	weights  config.ScoringConfig
	params   indicators.Params
	growth   *fundamental.GrowthAnalyzer
	dupont   *fundamental.DupontAnalyzer
}

// NewScoringEngine creates a scoring engine
func NewScoringEngine(provider quotes.Provider, weights config.ScoringConfig, technical config.TechnicalConfig) *ScoringEngine {
	return &ScoringEngine{
		provider: provider,
		weights:  weights,
		params:   indicators.ParamsFromConfig(technical),
		growth:   fundamental.NewGrowthAnalyzer(provider),
		dupont:   fundamental.NewDupontAnalyzer(provider),
	}
}

// Technical scores the last 100 daily candles of symbol. Any failure
// yields a neutral score without components.
func (e *ScoringEngine) Technical(ctx context.Context, symbol string) *Score {
	candles, err := e.provider.StockCandles(ctx, symbol, quotes.PeriodDaily, quotes.AdjustForward, scoringCandles)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("symbol", symbol).Debug("technical score falls back to neutral")
		return neutral()
	}
	return e.TechnicalFromCandles(candles)
}

// TechnicalFromCandles scores trend, momentum and volume of candles.
// Series shorter than 20 bars score neutral on every component.
func (e *ScoringEngine) TechnicalFromCandles(candles []quotes.Candle) *Score {
	if len(candles) == 0 {
		return neutral()
	}

	trend, momentum, volume := Neutral, Neutral, Neutral
	if len(candles) >= minScoringBars {
		closes := indicators.Closes(candles)
		trend = trendScore(closes)
		momentum = e.momentumScore(closes)
		volume = volumeScore(candles)
	}

	w := e.weights.Technical
	return &Score{
		Score: utils.Round(trend*w.Trend+momentum*w.Momentum+volume*w.Volume, 2),
		Components: map[string]float64{
			"trend":    utils.Round(trend, 2),
			"momentum": utils.Round(momentum, 2),
			"volume":   utils.Round(volume, 2),
		},
	}
}

func trendScore(closes []float64) float64 {
	score := Neutral
	last := closes[len(closes)-1]

	ma5, ok5 := indicators.Last(indicators.SMA(closes, 5))
	ma20, ok20 := indicators.Last(indicators.SMA(closes, 20))
	if ok5 && ok20 {
		if ma5 > ma20 {
			score++
		} else {
			score--
		}
	}
	if ok20 && last > ma20 {
		score += 0.5
	}

	recent := closes[max(0, len(closes)-trendWindow):]
	if len(recent) >= 2 && recent[len(recent)-1] > recent[0] {
		score += 0.5
	}
	return utils.Clamp(score, 0, 10)
}

func (e *ScoringEngine) momentumScore(closes []float64) float64 {
	rsi, _ := indicators.Last(indicators.RSI(closes, e.params.RSIPeriod))
	_, _, hist := indicators.MACD(closes, e.params.MACDFast, e.params.MACDSlow, e.params.MACDSignal)
	h, _ := indicators.Last(hist)
	return momentum(rsi, h)
}

// momentum scores the latest RSI and MACD histogram; NaN inputs are
// ignored
func momentum(rsi, hist float64) float64 {
	score := Neutral

	if indicators.Valid(rsi) {
		switch {
		case rsi >= 40 && rsi <= 60:
			score++
		case rsi >= 30 && rsi < 40:
			score += 0.5
		case rsi > 60 && rsi <= 70:
			score += 0.5
		case rsi < 30:
			score++
		case rsi > 70:
			score--
		}
	}

	if indicators.Valid(hist) {
		if hist > 0 {
			score += 0.5
		} else {
			score -= 0.5
		}
	}
	return utils.Clamp(score, 0, 10)
}

func volumeScore(candles []quotes.Candle) float64 {
	score := Neutral
	latest, prev := candles[len(candles)-1], candles[len(candles)-2]
	if prev.Close == 0 {
		return score
	}

	priceChange := (latest.Close - prev.Close) / prev.Close
	volumeChange := 0.0
	if prev.Volume > 0 {
		volumeChange = (latest.Volume - prev.Volume) / prev.Volume
	}

	switch {
	case priceChange > 0 && volumeChange > 0:
		score += 1.5
	case priceChange < 0 && volumeChange < 0:
		score -= 0.5
	case priceChange > 0 && volumeChange < 0:
		score += 0.5
	case priceChange < 0 && volumeChange > 0:
		score--
	}
	return utils.Clamp(score, 0, 10)
}

// Fundamental scores valuation, growth and quality of symbol. A missing
// financial summary yields a neutral score without components; missing
// growth or Dupont data only neutralises that component.
func (e *ScoringEngine) Fundamental(ctx context.Context, symbol string) *Score {
	fin, err := e.provider.FinancialSummary(ctx, symbol)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("symbol", symbol).Debug("fundamental score falls back to neutral")
		return neutral()
	}

	valuation := ValuationScore(fin.PE, fin.PB)

	growth := Neutral
	if g, err := e.growth.Analyze(ctx, symbol); err == nil {
		growth = GrowthScore(g.ProfitGrowth, g.RevenueGrowth)
	} else {
		logger.G(ctx).WithError(err).WithField("symbol", symbol).Debug("growth score falls back to neutral")
	}

	quality := Neutral
	if d, err := e.dupont.Analyze(ctx, symbol); err == nil {
		quality = QualityScore(d.ROE, d.NetProfitMargin)
	} else {
		logger.G(ctx).WithError(err).WithField("symbol", symbol).Debug("quality score falls back to neutral")
	}

	w := e.weights.Fundamental
	return &Score{
		Score: utils.Round(valuation*w.Valuation+growth*w.Growth+quality*w.Quality, 2),
		Components: map[string]float64{
			"valuation": utils.Round(valuation, 2),
			"growth":    utils.Round(growth, 2),
			"quality":   utils.Round(quality, 2),
		},
	}
}

// ValuationScore rewards low PE and PB multiples
func ValuationScore(pe, pb *float64) float64 {
	score := Neutral
	if pe != nil {
		switch {
		case *pe < 15:
			score += 2
		case *pe < 30:
			score++
		case *pe > 50:
			score--
		}
	}
	if pb != nil {
		switch {
		case *pb < 1.5:
			score++
		case *pb < 3:
			score += 0.5
		case *pb > 5:
			score--
		}
	}
	return utils.Clamp(score, 0, 10)
}

// GrowthScore rates year-over-year net profit and revenue growth (percent)
func GrowthScore(profit, revenue *float64) float64 {
	score := Neutral
	if profit != nil {
		switch {
		case *profit > 30:
			score += 2
		case *profit > 10:
			score++
		case *profit < 0:
			score -= 1.5
		}
	}
	if revenue != nil {
		switch {
		case *revenue > 20:
			score++
		case *revenue < 0:
			score--
		}
	}
	return utils.Clamp(score, 0, 10)
}

// QualityScore rates ROE and net profit margin (percent)
func QualityScore(roe, margin *float64) float64 {
	score := Neutral
	if roe != nil {
		switch {
		case *roe > 15:
			score += 2
		case *roe > 10:
			score++
		case *roe < 5:
			score--
		}
	}
	if margin != nil {
		switch {
		case *margin > 20:
			score++
		case *margin < 5:
			score -= 0.5
		}
	}
	return utils.Clamp(score, 0, 10)
}

// Overall computes both scores of symbol and combines them
func (e *ScoringEngine) Overall(ctx context.Context, symbol string) *OverallScore {
	return e.Combine(e.Technical(ctx, symbol).Score, e.Fundamental(ctx, symbol).Score)
}

// Combine weighs already computed technical and fundamental scores
func (e *ScoringEngine) Combine(technical, fundamentalScore float64) *OverallScore {
	w := e.weights.Overall
	return &OverallScore{
		Score:       utils.Round(technical*w.Technical+fundamentalScore*w.Fundamental, 2),
		Technical:   utils.Round(technical, 2),
		Fundamental: utils.Round(fundamentalScore, 2),
		Weights: map[string]float64{
			"technical":   w.Technical,
			"fundamental": w.Fundamental,
		},
	}
}
