// Package indicators computes technical indicators over candle series.
// Values inside an indicator's look-back window are NaN.
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
)

// Params are indicator periods
type Params struct {
	MAPeriods  []int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	RSIPeriod  int
	BollPeriod int
	BollStdDev float64
	ATRPeriod  int
}

// DefaultParams returns MA 5/10/20/60, MACD(12,26,9), RSI(14),
// Bollinger(20, 2) and ATR(14)
func DefaultParams() Params {
	return Params{
		MAPeriods:  []int{5, 10, 20, 60},
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		RSIPeriod:  14,
		BollPeriod: 20,
		BollStdDev: 2.0,
		ATRPeriod:  14,
	}
}

// ParamsFromConfig reads indicator periods from the technical config
func ParamsFromConfig(cfg config.TechnicalConfig) Params {
	return Params{
		MAPeriods:  cfg.MAPeriods,
		MACDFast:   cfg.MACDFast,
		MACDSlow:   cfg.MACDSlow,
		MACDSignal: cfg.MACDSignal,
		RSIPeriod:  cfg.RSIPeriod,
		BollPeriod: cfg.BollPeriod,
		BollStdDev: cfg.BollStdDev,
		ATRPeriod:  cfg.ATRPeriod,
	}
}

// Set holds every indicator for a candle series, index-aligned with it
type Set struct {
	MA         map[int][]float64
	MACD       []float64
	MACDSignal []float64
	MACDHist   []float64
	RSI        []float64
	BollUpper  []float64
	BollMiddle []float64
	BollLower  []float64
	ATR        []float64
}

// Compute calculates the indicator set for candles
func Compute(candles []quotes.Candle, p Params) *Set {
	closes := Closes(candles)
	s := &Set{MA: make(map[int][]float64, len(p.MAPeriods))}
	for _, period := range p.MAPeriods {
		s.MA[period] = SMA(closes, period)
	}
	s.MACD, s.MACDSignal, s.MACDHist = MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	s.RSI = RSI(closes, p.RSIPeriod)
	s.BollUpper, s.BollMiddle, s.BollLower = Bollinger(closes, p.BollPeriod, p.BollStdDev)
	s.ATR = ATR(Highs(candles), Lows(candles), closes, p.ATRPeriod)
	return s
}

// Valid reports whether v is a computed indicator value
func Valid(v float64) bool {
	return !math.IsNaN(v)
}

// Last returns the final value of series and whether it is computed
func Last(series []float64) (float64, bool) {
	return At(series, len(series)-1)
}

// At returns series[i] and whether it is in range and computed
func At(series []float64, i int) (float64, bool) {
	if i < 0 || i >= len(series) || !Valid(series[i]) {
		return math.NaN(), false
	}
	return series[i], true
}

// SMA is the simple moving average
func SMA(in []float64, period int) []float64 {
	if period < 1 {
		return nans(len(in))
	}
	if period == 1 {
		out := make([]float64, len(in))
		copy(out, in)
		return out
	}
	lookback := period - 1
	if len(in) <= lookback {
		return nans(len(in))
	}
	return mask(talib.Ma(in, period, talib.SMA), lookback)
}

// MACD returns the MACD line, its signal line and the histogram
func MACD(in []float64, fast, slow, signal int) (macd, sig, hist []float64) {
	if fast < 2 || slow <= fast || signal < 1 {
		return nans(len(in)), nans(len(in)), nans(len(in))
	}
	lookback := slow - 1 + signal - 1
	if len(in) <= lookback {
		return nans(len(in)), nans(len(in)), nans(len(in))
	}
	macd, sig, hist = talib.Macd(in, fast, slow, signal)
	return mask(macd, lookback), mask(sig, lookback), mask(hist, lookback)
}

// RSI is Wilder's relative strength index
func RSI(in []float64, period int) []float64 {
	if period < 2 || len(in) <= period {
		return nans(len(in))
	}
	return mask(talib.Rsi(in, period), period)
}

// Bollinger returns the upper, middle and lower bands around an SMA
func Bollinger(in []float64, period int, stdDev float64) (upper, middle, lower []float64) {
	lookback := period - 1
	if period < 2 || len(in) <= lookback {
		return nans(len(in)), nans(len(in)), nans(len(in))
	}
	upper, middle, lower = talib.BBands(in, period, stdDev, stdDev, talib.SMA)
	return mask(upper, lookback), mask(middle, lookback), mask(lower, lookback)
}

// ATR is the average true range
func ATR(high, low, close []float64, period int) []float64 {
	if period < 1 || len(close) <= period || len(high) != len(close) || len(low) != len(close) {
		return nans(len(close))
	}
	return mask(talib.Atr(high, low, close, period), period)
}

// Closes extracts close prices
func Closes(candles []quotes.Candle) []float64 {
	return field(candles, func(c quotes.Candle) float64 { return c.Close })
}

// Highs extracts high prices
func Highs(candles []quotes.Candle) []float64 {
	return field(candles, func(c quotes.Candle) float64 { return c.High })
}

// Lows extracts low prices
func Lows(candles []quotes.Candle) []float64 {
	return field(candles, func(c quotes.Candle) float64 { return c.Low })
}

// Volumes extracts volumes
func Volumes(candles []quotes.Candle) []float64 {
	return field(candles, func(c quotes.Candle) float64 { return c.Volume })
}

func field(candles []quotes.Candle, f func(quotes.Candle) float64) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = f(c)
	}
	return out
}

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// mask replaces the first lookback values, which talib leaves as zero
func mask(out []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out
}
