package indicators

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"github.com/jingkaihe/skilldesk/pkg/quotes"
)

var approx = cmp.Options{cmpopts.EquateApprox(0, 1e-9), cmpopts.EquateNaNs()}

func nan() float64 { return math.NaN() }

func TestSMA(t *testing.T) {
	tests := []struct {
		name   string
		in     []float64
		period int
		want   []float64
	}{
		{
			name:   "window of three",
			in:     []float64{1, 2, 3, 4, 5},
			period: 3,
			want:   []float64{nan(), nan(), 2, 3, 4},
		},
		{
			name:   "period one copies input",
			in:     []float64{1, 2},
			period: 1,
			want:   []float64{1, 2},
		},
		{
			name:   "too short is all NaN",
			in:     []float64{1, 2},
			period: 5,
			want:   []float64{nan(), nan()},
		},
		{
			name:   "empty",
			in:     []float64{},
			period: 5,
			want:   []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SMA(tt.in, tt.period)
			if diff := cmp.Diff(tt.want, got, approx); diff != "" {
				t.Errorf("SMA() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRSI_Monotonic(t *testing.T) {
	rising := make([]float64, 30)
	falling := make([]float64, 30)
	for i := range rising {
		rising[i] = float64(10 + i)
		falling[i] = float64(100 - i)
	}

	up := RSI(rising, 14)
	down := RSI(falling, 14)

	_, ok := At(up, 13)
	assert.False(t, ok, "inside the look-back window")

	last, ok := Last(up)
	assert.True(t, ok)
	assert.InDelta(t, 100, last, 1e-9)

	last, ok = Last(down)
	assert.True(t, ok)
	assert.InDelta(t, 0, last, 1e-9)

	assert.Len(t, RSI(rising[:14], 14), 14)
	_, ok = Last(RSI(rising[:14], 14))
	assert.False(t, ok)
}

func TestBollinger_ConstantSeries(t *testing.T) {
	in := []float64{10, 10, 10, 10, 10}
	upper, middle, lower := Bollinger(in, 3, 2)

	want := []float64{nan(), nan(), 10, 10, 10}
	for name, got := range map[string][]float64{"upper": upper, "middle": middle, "lower": lower} {
		if diff := cmp.Diff(want, got, approx); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestMACD_Readiness(t *testing.T) {
	short := make([]float64, 33)
	for i := range short {
		short[i] = float64(i)
	}
	macd, sig, hist := MACD(short, 12, 26, 9)
	for _, s := range [][]float64{macd, sig, hist} {
		assert.Len(t, s, 33)
		_, ok := Last(s)
		assert.False(t, ok)
	}

	long := append(short, 33, 34, 35)
	_, _, hist = MACD(long, 12, 26, 9)
	_, ok := At(hist, 33)
	assert.True(t, ok)
	_, ok = At(hist, 32)
	assert.False(t, ok)

	macd, _, _ = MACD(long, 26, 12, 9)
	_, ok = Last(macd)
	assert.False(t, ok, "invalid periods")
}

func TestATR_ConstantRange(t *testing.T) {
	n := 20
	high, low, closes := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		high[i], low[i], closes[i] = 11, 9, 10
	}
	atr := ATR(high, low, closes, 14)

	_, ok := At(atr, 13)
	assert.False(t, ok)
	last, ok := Last(atr)
	assert.True(t, ok)
	assert.InDelta(t, 2, last, 1e-9)

	_, ok = Last(ATR(high[:3], low, closes, 14))
	assert.False(t, ok, "mismatched lengths")
}

func TestCompute(t *testing.T) {
	candles := make([]quotes.Candle, 70)
	for i := range candles {
		p := 10 + float64(i)*0.1
		candles[i] = quotes.Candle{Open: p, High: p + 0.2, Low: p - 0.2, Close: p, Volume: 1000}
	}

	set := Compute(candles, DefaultParams())
	assert.Len(t, set.MA, 4)
	for _, period := range []int{5, 10, 20, 60} {
		v, ok := Last(set.MA[period])
		assert.True(t, ok, "MA%d", period)
		// a linear series has its mean at the middle of the window
		assert.InDelta(t, 10+6.9-float64(period-1)*0.05, v, 1e-9, "MA%d", period)
	}
	for name, s := range map[string][]float64{
		"macd": set.MACD, "signal": set.MACDSignal, "hist": set.MACDHist,
		"rsi": set.RSI, "upper": set.BollUpper, "middle": set.BollMiddle,
		"lower": set.BollLower, "atr": set.ATR,
	} {
		assert.Len(t, s, 70, name)
		_, ok := Last(s)
		assert.True(t, ok, name)
	}
}

func TestAt(t *testing.T) {
	s := []float64{nan(), 1}
	_, ok := At(s, -1)
	assert.False(t, ok)
	_, ok = At(s, 2)
	assert.False(t, ok)
	_, ok = At(s, 0)
	assert.False(t, ok)
	v, ok := At(s, 1)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
	_, ok = Last(nil)
	assert.False(t, ok)
}
