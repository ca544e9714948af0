// Package fundamental analyses valuation, growth, Dupont ROE decomposition,
// business composition and news of individual stocks.
package fundamental

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
)

// Valuation levels
const (
	Undervalued = "undervalued"
	Overvalued  = "overvalued"
	Fair        = "neutral"
)

// Summary combines quote and valuation multiples of a stock
type Summary struct {
	Symbol         string   `json:"symbol"`
	Name           string   `json:"name,omitempty"`
	Price          float64  `json:"price,omitempty"`
	MarketCap      float64  `json:"market_cap,omitempty"`
	CirculatingCap float64  `json:"circulating_cap,omitempty"`
	PE             *float64 `json:"pe,omitempty"`
	PB             *float64 `json:"pb,omitempty"`
	PS             *float64 `json:"ps,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Valuation is a PE based valuation verdict
type Valuation struct {
	Symbol string   `json:"symbol"`
	Name   string   `json:"name"`
	PE     *float64 `json:"pe"`
	PB     *float64 `json:"pb"`
	Level  string   `json:"valuation_level"`
	Reason string   `json:"reason"`
}

// Business is the latest main business composition split by dimension
type Business struct {
	Symbol     string                `json:"symbol"`
	ReportDate string                `json:"report_date"`
	ByIndustry []quotes.BusinessItem `json:"by_industry"`
	ByProduct  []quotes.BusinessItem `json:"by_product"`
	ByRegion   []quotes.BusinessItem `json:"by_region"`
}

// FinancialAnalyzer reads valuation multiples and business composition
type FinancialAnalyzer struct {
	provider    quotes.Provider
	concurrency int
}

// NewFinancialAnalyzer creates a financial analyzer. concurrency bounds
// BatchAnalyze and defaults to 4.
func NewFinancialAnalyzer(provider quotes.Provider, concurrency int) *FinancialAnalyzer {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &FinancialAnalyzer{provider: provider, concurrency: concurrency}
}

// Summary returns price, market value and multiples of symbol
func (a *FinancialAnalyzer) Summary(ctx context.Context, symbol string) (*Summary, error) {
	fin, err := a.provider.FinancialSummary(ctx, symbol)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch financial summary of %s", symbol)
	}
	spot, err := a.provider.StockSpot(ctx, symbol)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch quote of %s", symbol)
	}
	return &Summary{
		Symbol:         symbol,
		Name:           spot.Name,
		Price:          spot.Price,
		MarketCap:      spot.MarketCap,
		CirculatingCap: spot.CirculatingCap,
		PE:             fin.PE,
		PB:             fin.PB,
		PS:             fin.PS,
	}, nil
}

// AnalyzeValuation grades the PE of symbol: below 15 is undervalued, above
// 50 overvalued. A positive industryPE adds a comparison with the industry.
func (a *FinancialAnalyzer) AnalyzeValuation(ctx context.Context, symbol string, industryPE float64) (*Valuation, error) {
	summary, err := a.Summary(ctx, symbol)
	if err != nil {
		return nil, err
	}
	level, reason := GradePE(summary.PE, industryPE)
	return &Valuation{
		Symbol: symbol,
		Name:   summary.Name,
		PE:     summary.PE,
		PB:     summary.PB,
		Level:  level,
		Reason: reason,
	}, nil
}

// GradePE returns the valuation level and reason for a PE
func GradePE(pe *float64, industryPE float64) (level, reason string) {
	level = Fair
	var reasons []string
	if pe != nil {
		switch {
		case *pe < 15:
			level = Undervalued
			reasons = append(reasons, fmt.Sprintf("PE=%.1f，偏低", *pe))
		case *pe > 50:
			level = Overvalued
			reasons = append(reasons, fmt.Sprintf("PE=%.1f，偏高", *pe))
		}
	}
	if industryPE > 0 && pe != nil && *pe != 0 {
		switch ratio := *pe / industryPE; {
		case ratio < 0.7:
			reasons = append(reasons, fmt.Sprintf("低于行业平均 %.1f", industryPE))
		case ratio > 1.5:
			reasons = append(reasons, fmt.Sprintf("高于行业平均 %.1f 较多", industryPE))
		}
	}
	if len(reasons) == 0 {
		return level, "估值适中"
	}
	return level, strings.Join(reasons, "，")
}

// BatchAnalyze summarises every symbol; failures are reported in the
// Error field. Results keep the order of symbols.
func (a *FinancialAnalyzer) BatchAnalyze(ctx context.Context, symbols []string) []Summary {
	results := make([]Summary, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, symbol := range symbols {
		g.Go(func() error {
			s, err := a.Summary(gctx, symbol)
			if err != nil {
				logger.G(gctx).WithError(err).WithField("symbol", symbol).Warn("failed to summarise stock")
				results[i] = Summary{Symbol: symbol, Error: err.Error()}
				return nil
			}
			results[i] = *s
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// BusinessComposition returns the latest main business split by industry,
// product and region
func (a *FinancialAnalyzer) BusinessComposition(ctx context.Context, symbol string) (*Business, error) {
	items, err := a.provider.BusinessComposition(ctx, symbol)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch business composition of %s", symbol)
	}
	if len(items) == 0 {
		return nil, errors.New("无主营构成数据")
	}

	b := &Business{
		Symbol:     symbol,
		ReportDate: items[0].ReportDate,
		ByIndustry: []quotes.BusinessItem{},
		ByProduct:  []quotes.BusinessItem{},
		ByRegion:   []quotes.BusinessItem{},
	}
	for _, item := range items {
		switch item.Type {
		case "industry":
			b.ByIndustry = append(b.ByIndustry, item)
		case "product":
			b.ByProduct = append(b.ByProduct, item)
		case "region":
			b.ByRegion = append(b.ByRegion, item)
		}
	}
	return b, nil
}
