package technical

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
)

// ScanResult is the technical picture of one symbol. Error is set instead
// of the other fields when the symbol could not be scanned.
type ScanResult struct {
	Symbol     string    `json:"symbol"`
	Name       string    `json:"name,omitempty"`
	Price      float64   `json:"price,omitempty"`
	ChangePct  float64   `json:"change_pct,omitempty"`
	Patterns   []Pattern `json:"patterns,omitempty"`
	Support    []float64 `json:"support_levels,omitempty"`
	Resistance []float64 `json:"resistance_levels,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Match is a symbol with the signals that selected it
type Match struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	ChangePct float64   `json:"change_pct"`
	Signals   []Pattern `json:"signals"`
}

// Scanner runs the detector over symbols fetched from a provider
type Scanner struct {
	provider    quotes.Provider
	detector    *Detector
	period      quotes.Period
	adjust      quotes.Adjust
	count       int
	window      int
	concurrency int
}

// ScannerOption customises a Scanner
type ScannerOption func(*Scanner)

// WithPeriod sets the candle period
func WithPeriod(p quotes.Period) ScannerOption {
	return func(s *Scanner) { s.period = p }
}

// WithAdjust sets the price adjustment
func WithAdjust(a quotes.Adjust) ScannerOption {
	return func(s *Scanner) { s.adjust = a }
}

// WithCount sets how many candles are fetched per symbol
func WithCount(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.count = n
		}
	}
}

// WithConcurrency bounds the number of symbols scanned at once
func WithConcurrency(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewScanner creates a scanner over daily forward-adjusted candles
func NewScanner(provider quotes.Provider, cfg config.TechnicalConfig, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		provider:    provider,
		detector:    NewDetector(cfg),
		period:      quotes.PeriodDaily,
		adjust:      quotes.AdjustForward,
		count:       100,
		window:      cfg.SupportWindow,
		concurrency: 4,
	}
	if s.window <= 0 {
		s.window = 20
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Detector returns the scanner's pattern detector
func (s *Scanner) Detector() *Detector {
	return s.detector
}

// ScanStock scans one symbol
func (s *Scanner) ScanStock(ctx context.Context, symbol string) (*ScanResult, error) {
	candles, err := s.provider.StockCandles(ctx, symbol, s.period, s.adjust, s.count)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, errors.Errorf("no candles for %s", symbol)
	}
	spot, err := s.provider.StockSpot(ctx, symbol)
	if err != nil {
		return nil, err
	}

	levels := SupportResistance(candles, s.window)
	return &ScanResult{
		Symbol:     symbol,
		Name:       spot.Name,
		Price:      spot.Price,
		ChangePct:  spot.ChangePct,
		Patterns:   s.detector.Detect(candles),
		Support:    levels.Support,
		Resistance: levels.Resistance,
	}, nil
}

// ScanGroup scans every symbol; failures are reported in the result's
// Error field. Results keep the order of symbols.
func (s *Scanner) ScanGroup(ctx context.Context, symbols []string) []ScanResult {
	results := make([]ScanResult, len(symbols))
	s.each(ctx, symbols, func(ctx context.Context, i int, symbol string) {
		res, err := s.ScanStock(ctx, symbol)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("symbol", symbol).Warn("failed to scan stock")
			results[i] = ScanResult{Symbol: symbol, Error: err.Error()}
			return
		}
		results[i] = *res
	})
	return results
}

// FindGoldenCross returns symbols with a bullish MA or MACD cross
func (s *Scanner) FindGoldenCross(ctx context.Context, symbols []string) []Match {
	return s.find(ctx, symbols, func(p Pattern) bool {
		return strings.Contains(p.Type, "cross") && p.Strength > 0
	})
}

// FindOversold returns symbols whose RSI is in the oversold zone
func (s *Scanner) FindOversold(ctx context.Context, symbols []string) []Match {
	return s.find(ctx, symbols, func(p Pattern) bool {
		return p.Type == RSIOversold
	})
}

// FindBreakout returns symbols with a bullish breakout
func (s *Scanner) FindBreakout(ctx context.Context, symbols []string) []Match {
	return s.find(ctx, symbols, func(p Pattern) bool {
		return strings.Contains(p.Type, "breakout") && p.Strength > 0
	})
}

// find keeps symbols with at least one pattern passing keep. Symbols that
// fail to load are skipped.
func (s *Scanner) find(ctx context.Context, symbols []string, keep func(Pattern) bool) []Match {
	found := make([]*Match, len(symbols))
	s.each(ctx, symbols, func(ctx context.Context, i int, symbol string) {
		candles, err := s.provider.StockCandles(ctx, symbol, quotes.PeriodDaily, s.adjust, s.count)
		if err != nil || len(candles) == 0 {
			logger.G(ctx).WithError(err).WithField("symbol", symbol).Debug("skipping symbol")
			return
		}

		var signals []Pattern
		for _, p := range s.detector.Detect(candles) {
			if keep(p) {
				signals = append(signals, p)
			}
		}
		if len(signals) == 0 {
			return
		}

		spot, err := s.provider.StockSpot(ctx, symbol)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("symbol", symbol).Debug("skipping symbol")
			return
		}
		found[i] = &Match{
			Symbol:    symbol,
			Name:      spot.Name,
			Price:     spot.Price,
			ChangePct: spot.ChangePct,
			Signals:   signals,
		}
	})

	matches := []Match{}
	for _, m := range found {
		if m != nil {
			matches = append(matches, *m)
		}
	}
	return matches
}

// each calls f for every symbol with bounded concurrency
func (s *Scanner) each(ctx context.Context, symbols []string, f func(ctx context.Context, i int, symbol string)) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, symbol := range symbols {
		g.Go(func() error {
			f(gctx, i, symbol)
			return nil
		})
	}
	_ = g.Wait()
}
