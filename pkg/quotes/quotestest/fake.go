// Package quotestest provides an in-memory quotes.Provider for tests.
package quotestest

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/quotes"
)

// Fake serves canned market data. Maps are keyed by six-digit code, or by
// sector name for Constituents. Errors are keyed by method name, or by
// "Method:code" to fail a single symbol.
type Fake struct {
	Indices      []quotes.Index
	IndexCandles map[string][]quotes.Candle
	Stats        *quotes.MarketStats
	Sectors      []quotes.Sector
	Constituents map[string][]quotes.Constituent
	Flows        []quotes.SectorFlow
	Spots        map[string]*quotes.Spot
	Candles      map[string][]quotes.Candle
	Financials   map[string]*quotes.Financial
	Growth       map[string][]quotes.GrowthRow
	Valuation    map[string][]quotes.ValuationRow
	Dupont       map[string][]quotes.DupontRow
	Business     map[string][]quotes.BusinessItem
	Comments     []quotes.Comment
	News         map[string][]quotes.News
	Errors       map[string]error

	mu    sync.Mutex
	calls map[string]int
}

var _ quotes.Provider = (*Fake)(nil)

// Calls returns how many times method was called
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *Fake) record(method, symbol string) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
	f.mu.Unlock()

	code := symbol
	if symbol != "" {
		c, err := quotes.NormalizeSymbol(symbol)
		if err == nil {
			code = c
		}
	}
	if err := f.Errors[method]; err != nil {
		return code, err
	}
	if err := f.Errors[method+":"+code]; err != nil {
		return code, err
	}
	return code, nil
}

func notFound(what, key string) error {
	return errors.Errorf("%s %s not found", what, key)
}

func (f *Fake) IndicesSnapshot(_ context.Context, _ ...string) ([]quotes.Index, error) {
	if _, err := f.record("IndicesSnapshot", ""); err != nil {
		return nil, err
	}
	return f.Indices, nil
}

func (f *Fake) IndexHistory(_ context.Context, symbol string, _ quotes.Period, count int) ([]quotes.Candle, error) {
	if _, err := f.record("IndexHistory", ""); err != nil {
		return nil, err
	}
	candles, ok := f.IndexCandles[symbol]
	if !ok {
		return nil, notFound("index", symbol)
	}
	return tail(candles, count), nil
}

func (f *Fake) MarketStatistics(_ context.Context) (*quotes.MarketStats, error) {
	if _, err := f.record("MarketStatistics", ""); err != nil {
		return nil, err
	}
	if f.Stats == nil {
		return nil, errors.New("no market statistics")
	}
	return f.Stats, nil
}

func (f *Fake) SectorRanking(_ context.Context, _ quotes.SectorSort) ([]quotes.Sector, error) {
	if _, err := f.record("SectorRanking", ""); err != nil {
		return nil, err
	}
	out := make([]quotes.Sector, len(f.Sectors))
	copy(out, f.Sectors)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (f *Fake) SectorConstituents(_ context.Context, name string, topN int) ([]quotes.Constituent, error) {
	if _, err := f.record("SectorConstituents", ""); err != nil {
		return nil, err
	}
	if err := f.Errors["SectorConstituents:"+name]; err != nil {
		return nil, err
	}
	cons, ok := f.Constituents[name]
	if !ok {
		return nil, notFound("sector", name)
	}
	if topN > 0 && len(cons) > topN {
		cons = cons[:topN]
	}
	return cons, nil
}

func (f *Fake) SectorCapitalFlow(_ context.Context) ([]quotes.SectorFlow, error) {
	if _, err := f.record("SectorCapitalFlow", ""); err != nil {
		return nil, err
	}
	return f.Flows, nil
}

func (f *Fake) StockSpot(_ context.Context, symbol string) (*quotes.Spot, error) {
	code, err := f.record("StockSpot", symbol)
	if err != nil {
		return nil, err
	}
	spot, ok := f.Spots[code]
	if !ok {
		return nil, notFound("stock", code)
	}
	return spot, nil
}

func (f *Fake) StockCandles(_ context.Context, symbol string, _ quotes.Period, _ quotes.Adjust, count int) ([]quotes.Candle, error) {
	code, err := f.record("StockCandles", symbol)
	if err != nil {
		return nil, err
	}
	candles, ok := f.Candles[code]
	if !ok {
		return nil, notFound("candles for", code)
	}
	return tail(candles, count), nil
}

func (f *Fake) FinancialSummary(_ context.Context, symbol string) (*quotes.Financial, error) {
	code, err := f.record("FinancialSummary", symbol)
	if err != nil {
		return nil, err
	}
	fin, ok := f.Financials[code]
	if !ok {
		return nil, notFound("financial summary for", code)
	}
	return fin, nil
}

func (f *Fake) GrowthComparison(_ context.Context, symbol string) ([]quotes.GrowthRow, error) {
	code, err := f.record("GrowthComparison", symbol)
	if err != nil {
		return nil, err
	}
	return f.Growth[code], nil
}

func (f *Fake) ValuationComparison(_ context.Context, symbol string) ([]quotes.ValuationRow, error) {
	code, err := f.record("ValuationComparison", symbol)
	if err != nil {
		return nil, err
	}
	return f.Valuation[code], nil
}

func (f *Fake) DupontComparison(_ context.Context, symbol string) ([]quotes.DupontRow, error) {
	code, err := f.record("DupontComparison", symbol)
	if err != nil {
		return nil, err
	}
	return f.Dupont[code], nil
}

func (f *Fake) BusinessComposition(_ context.Context, symbol string) ([]quotes.BusinessItem, error) {
	code, err := f.record("BusinessComposition", symbol)
	if err != nil {
		return nil, err
	}
	return f.Business[code], nil
}

func (f *Fake) MarketComment(_ context.Context) ([]quotes.Comment, error) {
	if _, err := f.record("MarketComment", ""); err != nil {
		return nil, err
	}
	return f.Comments, nil
}

func (f *Fake) StockNews(_ context.Context, symbol string, limit int) ([]quotes.News, error) {
	code, err := f.record("StockNews", symbol)
	if err != nil {
		return nil, err
	}
	news := f.News[code]
	if limit > 0 && len(news) > limit {
		news = news[:limit]
	}
	return news, nil
}

func tail(candles []quotes.Candle, count int) []quotes.Candle {
	if count > 0 && len(candles) > count {
		return candles[len(candles)-count:]
	}
	return candles
}
