// Package technical detects chart patterns and scans symbols for signals.
package technical

import (
	"fmt"
	"sort"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/indicators"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
	"github.com/jingkaihe/skilldesk/pkg/utils"
)

// Pattern types
const (
	GoldenCross            = "golden_cross"
	DeathCross             = "death_cross"
	MACDGoldenCross        = "macd_golden_cross"
	MACDDeathCross         = "macd_death_cross"
	RSIOversold            = "rsi_oversold"
	RSIOverbought          = "rsi_overbought"
	VolumeBreakout         = "volume_breakout"
	BollingerBreakoutUpper = "bollinger_breakout_upper"
	BollingerBreakoutLower = "bollinger_breakout_lower"
)

// Pattern is a detected signal. Positive strength is bullish.
type Pattern struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Strength int    `json:"strength"`
	Reason   string `json:"reason"`
}

// Detector finds patterns on the last bar of a candle series
type Detector struct {
	params      indicators.Params
	oversold    float64
	overbought  float64
	volumeRatio float64
}

// NewDetector creates a detector from the technical config; zero values
// fall back to the usual defaults
func NewDetector(cfg config.TechnicalConfig) *Detector {
	params := indicators.ParamsFromConfig(cfg)
	def := indicators.DefaultParams()
	if len(params.MAPeriods) == 0 {
		params.MAPeriods = def.MAPeriods
	}
	if params.MACDFast == 0 || params.MACDSlow == 0 || params.MACDSignal == 0 {
		params.MACDFast, params.MACDSlow, params.MACDSignal = def.MACDFast, def.MACDSlow, def.MACDSignal
	}
	if params.RSIPeriod == 0 {
		params.RSIPeriod = def.RSIPeriod
	}
	if params.BollPeriod == 0 {
		params.BollPeriod = def.BollPeriod
	}
	if params.BollStdDev == 0 {
		params.BollStdDev = def.BollStdDev
	}
	if params.ATRPeriod == 0 {
		params.ATRPeriod = def.ATRPeriod
	}

	d := &Detector{
		params:      params,
		oversold:    cfg.RSIOversold,
		overbought:  cfg.RSIOverbought,
		volumeRatio: cfg.VolumeRatio,
	}
	if d.oversold == 0 {
		d.oversold = 30
	}
	if d.overbought == 0 {
		d.overbought = 70
	}
	if d.volumeRatio == 0 {
		d.volumeRatio = 1.5
	}
	return d
}

// Params returns the indicator periods in use
func (d *Detector) Params() indicators.Params {
	return d.params
}

// Detect returns the patterns present on the last candle. Series shorter
// than the longest MA period produce none.
func (d *Detector) Detect(candles []quotes.Candle) []Pattern {
	return d.DetectWith(candles, indicators.Compute(candles, d.params))
}

// DetectWith is Detect over precomputed indicators
func (d *Detector) DetectWith(candles []quotes.Candle, set *indicators.Set) []Pattern {
	patterns := []Pattern{}
	periods := d.params.MAPeriods
	if len(candles) == 0 || len(candles) < periods[len(periods)-1] {
		return patterns
	}

	patterns = append(patterns, d.crosses(set, len(candles))...)
	patterns = append(patterns, d.rsi(set)...)
	patterns = append(patterns, d.breakouts(candles, set)...)
	patterns = append(patterns, candlesticks(candles)...)
	return patterns
}

// crossed reports an upward (+1) or downward (-1) cross of fast over slow
// between bars i-1 and i
func crossed(fast, slow []float64, i int) int {
	pf, ok1 := indicators.At(fast, i-1)
	ps, ok2 := indicators.At(slow, i-1)
	lf, ok3 := indicators.At(fast, i)
	ls, ok4 := indicators.At(slow, i)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0
	}
	switch {
	case pf <= ps && lf > ls:
		return 1
	case pf >= ps && lf < ls:
		return -1
	}
	return 0
}

func (d *Detector) crosses(set *indicators.Set, n int) []Pattern {
	var patterns []Pattern
	if n < 2 {
		return patterns
	}
	last := n - 1

	periods := d.params.MAPeriods
	for i := 0; i < len(periods)-1; i++ {
		fast, slow := periods[i], periods[i+1]
		switch crossed(set.MA[fast], set.MA[slow], last) {
		case 1:
			patterns = append(patterns, Pattern{
				Type:     GoldenCross,
				Name:     fmt.Sprintf("MA%d金叉MA%d", fast, slow),
				Strength: 8,
				Reason:   fmt.Sprintf("%d日线上穿%d日线", fast, slow),
			})
		case -1:
			patterns = append(patterns, Pattern{
				Type:     DeathCross,
				Name:     fmt.Sprintf("MA%d死叉MA%d", fast, slow),
				Strength: -8,
				Reason:   fmt.Sprintf("%d日线下穿%d日线", fast, slow),
			})
		}
	}

	switch crossed(set.MACD, set.MACDSignal, last) {
	case 1:
		patterns = append(patterns, Pattern{Type: MACDGoldenCross, Name: "MACD金叉", Strength: 6, Reason: "MACD快线上穿慢线"})
	case -1:
		patterns = append(patterns, Pattern{Type: MACDDeathCross, Name: "MACD死叉", Strength: -6, Reason: "MACD快线下穿慢线"})
	}
	return patterns
}

func (d *Detector) rsi(set *indicators.Set) []Pattern {
	rsi, ok := indicators.Last(set.RSI)
	if !ok || len(set.RSI) < 2 {
		return nil
	}
	switch {
	case rsi < d.oversold:
		return []Pattern{{
			Type:     RSIOversold,
			Name:     fmt.Sprintf("RSI超卖(%.0f)", rsi),
			Strength: 7,
			Reason:   fmt.Sprintf("RSI=%.0f，接近超卖区域", rsi),
		}}
	case rsi > d.overbought:
		return []Pattern{{
			Type:     RSIOverbought,
			Name:     fmt.Sprintf("RSI超买(%.0f)", rsi),
			Strength: -7,
			Reason:   fmt.Sprintf("RSI=%.0f，进入超买区域", rsi),
		}}
	}
	return nil
}

func (d *Detector) breakouts(candles []quotes.Candle, set *indicators.Set) []Pattern {
	var patterns []Pattern
	n := len(candles)
	if n < 2 {
		return patterns
	}
	latest, prev := candles[n-1], candles[n-2]

	ratio := 1.0
	if prev.Volume > 0 {
		ratio = latest.Volume / prev.Volume
	}
	if latest.Close > prev.Close && ratio > d.volumeRatio {
		patterns = append(patterns, Pattern{
			Type:     VolumeBreakout,
			Name:     "放量突破",
			Strength: 7,
			Reason:   fmt.Sprintf("成交量为前%.1f倍，价格突破", ratio),
		})
	}

	upper, ok := indicators.Last(set.BollUpper)
	if !ok {
		return patterns
	}
	lower, _ := indicators.Last(set.BollLower)
	switch {
	case latest.Close > upper:
		patterns = append(patterns, Pattern{
			Type:     BollingerBreakoutUpper,
			Name:     "突破布林带上轨",
			Strength: 7,
			Reason:   "价格突破布林带上轨，强势特征",
		})
	case latest.Close < lower:
		patterns = append(patterns, Pattern{
			Type:     BollingerBreakoutLower,
			Name:     "跌破布林带下轨",
			Strength: -7,
			Reason:   "价格跌破布林带下轨，弱势特征",
		})
	}
	return patterns
}

func candlesticks(candles []quotes.Candle) []Pattern {
	var patterns []Pattern
	if len(candles) < 3 {
		return patterns
	}
	for _, cp := range indicators.CandlePatterns {
		switch signal := cp.Detect(candles); {
		case signal > 0:
			patterns = append(patterns, Pattern{
				Type:     "bullish_" + cp.Key,
				Name:     "看涨-" + cp.Name,
				Strength: 5,
				Reason:   "出现看涨 K线形态",
			})
		case signal < 0:
			patterns = append(patterns, Pattern{
				Type:     "bearish_" + cp.Key,
				Name:     "看跌-" + cp.Name,
				Strength: -5,
				Reason:   "出现看跌 K线形态",
			})
		}
	}
	return patterns
}

// Levels are support and resistance prices, ascending
type Levels struct {
	Support    []float64 `json:"support_levels"`
	Resistance []float64 `json:"resistance_levels"`
}

// SupportResistance takes the three highest distinct lows and highs of the
// last window candles, rounded to cents. Fewer candles than window yield
// empty levels.
func SupportResistance(candles []quotes.Candle, window int) Levels {
	levels := Levels{Support: []float64{}, Resistance: []float64{}}
	if window <= 0 || len(candles) == 0 || len(candles) < window {
		return levels
	}
	recent := candles[len(candles)-window:]

	lows := make([]float64, len(recent))
	highs := make([]float64, len(recent))
	for i, c := range recent {
		lows[i], highs[i] = c.Low, c.High
	}
	levels.Support = topDistinct(lows, 3)
	levels.Resistance = topDistinct(highs, 3)
	return levels
}

func topDistinct(values []float64, n int) []float64 {
	seen := make(map[float64]struct{}, len(values))
	distinct := make([]float64, 0, len(values))
	for _, v := range values {
		r := utils.Round(v, 2)
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		distinct = append(distinct, r)
	}
	sort.Float64s(distinct)
	if len(distinct) > n {
		distinct = distinct[len(distinct)-n:]
	}
	return distinct
}
