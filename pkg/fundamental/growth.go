package fundamental

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/quotes"
)

// Growth holds year-over-year growth rates in percent
type Growth struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	EPSGrowth     *float64 `json:"eps_growth"`
	RevenueGrowth *float64 `json:"revenue_growth"`
	ProfitGrowth  *float64 `json:"profit_growth"`
	Assessment    string   `json:"assessment"`
}

// PeerGrowth places the growth of a stock within its industry
type PeerGrowth struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	EPS       Stat   `json:"eps_growth"`
	Revenue   Stat   `json:"revenue_growth"`
	Profit    Stat   `json:"profit_growth"`
	PeerCount int    `json:"peer_count"`
}

// GrowthAnalyzer reads growth rates from the industry growth comparison
type GrowthAnalyzer struct {
	provider quotes.Provider
}

// NewGrowthAnalyzer creates a growth analyzer
func NewGrowthAnalyzer(provider quotes.Provider) *GrowthAnalyzer {
	return &GrowthAnalyzer{provider: provider}
}

// Analyze returns the growth rates of symbol
func (a *GrowthAnalyzer) Analyze(ctx context.Context, symbol string) (*Growth, error) {
	target, _, err := a.rows(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &Growth{
		Symbol:        symbol,
		Name:          target.Name,
		EPSGrowth:     target.EPSGrowth,
		RevenueGrowth: target.RevenueGrowth,
		ProfitGrowth:  target.ProfitGrowth,
		Assessment:    AssessGrowth(target.ProfitGrowth),
	}, nil
}

// PeerGrowth compares the growth of symbol with its industry peers
func (a *GrowthAnalyzer) PeerGrowth(ctx context.Context, symbol string) (*PeerGrowth, error) {
	target, rows, err := a.rows(ctx, symbol)
	if err != nil {
		return nil, err
	}
	eps, revenue, profit := make([]*float64, len(rows)), make([]*float64, len(rows)), make([]*float64, len(rows))
	for i, r := range rows {
		eps[i], revenue[i], profit[i] = r.EPSGrowth, r.RevenueGrowth, r.ProfitGrowth
	}
	return &PeerGrowth{
		Symbol:    symbol,
		Name:      target.Name,
		EPS:       peerStat(target.EPSGrowth, eps),
		Revenue:   peerStat(target.RevenueGrowth, revenue),
		Profit:    peerStat(target.ProfitGrowth, profit),
		PeerCount: len(rows),
	}, nil
}

func (a *GrowthAnalyzer) rows(ctx context.Context, symbol string) (*quotes.GrowthRow, []quotes.GrowthRow, error) {
	rows, err := a.provider.GrowthComparison(ctx, symbol)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to fetch growth comparison of %s", symbol)
	}
	if len(rows) == 0 {
		return nil, nil, errors.New("无成长性对比数据")
	}
	for i := range rows {
		if rows[i].Code == code(symbol) {
			return &rows[i], rows, nil
		}
	}
	return nil, nil, errors.New("未在同行数据中找到")
}

// AssessGrowth describes net profit growth
func AssessGrowth(profit *float64) string {
	switch {
	case profit == nil:
		return "数据不足"
	case *profit > 30:
		return "高速增长"
	case *profit > 10:
		return "稳健增长"
	case *profit > 0:
		return "低速增长"
	}
	return "业绩下滑"
}
