package indicators

import (
	"math"

	"github.com/jingkaihe/skilldesk/pkg/quotes"
)

// CandlePattern recognises a candlestick formation ending at the last bar.
// Detect returns +1 for a bullish signal, -1 for a bearish one and 0 for none.
type CandlePattern struct {
	Key    string
	Name   string
	Detect func(candles []quotes.Candle) int
}

// CandlePatterns are checked in this order
var CandlePatterns = []CandlePattern{
	{Key: "doji", Name: "DOJI", Detect: Doji},
	{Key: "hammer", Name: "HAMMER", Detect: Hammer},
	{Key: "morning_star", Name: "MORNINGSTAR", Detect: MorningStar},
	{Key: "evening_star", Name: "EVENINGSTAR", Detect: EveningStar},
	{Key: "engulfing", Name: "ENGULFING", Detect: Engulfing},
}

type bar struct {
	open, high, low, close float64
}

func (b bar) body() float64 { return math.Abs(b.close - b.open) }
func (b bar) span() float64 { return b.high - b.low }
func (b bar) upperShadow() float64 { return b.high - math.Max(b.open, b.close) }
func (b bar) lowerShadow() float64 { return math.Min(b.open, b.close) - b.low }
func (b bar) bullish() bool { return b.close > b.open }
func (b bar) bearish() bool { return b.close < b.open }
func (b bar) bodyTop() float64 { return math.Max(b.open, b.close) }
func (b bar) bodyBottom() float64 { return math.Min(b.open, b.close) }

func lastBars(candles []quotes.Candle, n int) ([]bar, bool) {
	if len(candles) < n {
		return nil, false
	}
	out := make([]bar, n)
	for i, c := range candles[len(candles)-n:] {
		out[i] = bar{open: c.Open, high: c.High, low: c.Low, close: c.Close}
	}
	return out, true
}

// Doji: the body is at most a tenth of the range. A doji carries no
// direction of its own and always reports +1.
func Doji(candles []quotes.Candle) int {
	bars, ok := lastBars(candles, 1)
	if !ok {
		return 0
	}
	b := bars[0]
	if b.span() > 0 && b.body() <= 0.1*b.span() {
		return 1
	}
	return 0
}

// Hammer: after a decline, a small body near the top of the range with a
// lower shadow at least twice the body and almost no upper shadow
func Hammer(candles []quotes.Candle) int {
	bars, ok := lastBars(candles, 2)
	if !ok {
		return 0
	}
	prev, b := bars[0], bars[1]
	if b.span() == 0 || b.body() == 0 {
		return 0
	}
	if b.body() > b.span()/3 || b.lowerShadow() < 2*b.body() || b.upperShadow() > 0.1*b.span() {
		return 0
	}
	if b.bodyBottom() > prev.close {
		return 0
	}
	return 1
}

// MorningStar: a long bearish bar, a small bar gapping below it and a
// bullish bar closing above the midpoint of the first body
func MorningStar(candles []quotes.Candle) int {
	bars, ok := lastBars(candles, 3)
	if !ok {
		return 0
	}
	first, star, third := bars[0], bars[1], bars[2]
	if !first.bearish() || first.body() < 0.6*first.span() {
		return 0
	}
	if star.body() > 0.3*first.body() || star.bodyTop() >= first.close {
		return 0
	}
	if !third.bullish() || third.close <= first.close+first.body()/2 {
		return 0
	}
	return 1
}

// EveningStar: a long bullish bar, a small bar gapping above it and a
// bearish bar closing below the midpoint of the first body
func EveningStar(candles []quotes.Candle) int {
	bars, ok := lastBars(candles, 3)
	if !ok {
		return 0
	}
	first, star, third := bars[0], bars[1], bars[2]
	if !first.bullish() || first.body() < 0.6*first.span() {
		return 0
	}
	if star.body() > 0.3*first.body() || star.bodyBottom() <= first.close {
		return 0
	}
	if !third.bearish() || third.close >= first.close-first.body()/2 {
		return 0
	}
	return -1
}

// Engulfing: the last body fully covers the previous body of the opposite
// colour
func Engulfing(candles []quotes.Candle) int {
	bars, ok := lastBars(candles, 2)
	if !ok {
		return 0
	}
	prev, b := bars[0], bars[1]
	switch {
	case prev.bearish() && b.bullish() && b.open <= prev.close && b.close >= prev.open && b.body() > prev.body():
		return 1
	case prev.bullish() && b.bearish() && b.open >= prev.close && b.close <= prev.open && b.body() > prev.body():
		return -1
	}
	return 0
}
