package fundamental

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/quotes"
)

// Dupont decomposes ROE into margin, turnover and leverage. ROE and net
// profit margin are in percent.
type Dupont struct {
	Symbol           string   `json:"symbol"`
	Name             string   `json:"name"`
	ROE              *float64 `json:"roe"`
	NetProfitMargin  *float64 `json:"net_profit_margin"`
	AssetTurnover    *float64 `json:"asset_turnover"`
	EquityMultiplier *float64 `json:"equity_multiplier"`
	Profitability    string   `json:"profitability_analysis"`
	Efficiency       string   `json:"efficiency_analysis"`
	Leverage         string   `json:"leverage_analysis"`
	Overall          string   `json:"overall_analysis"`
}

// PeerDupont places the Dupont factors of a stock within its industry
type PeerDupont struct {
	Symbol           string `json:"symbol"`
	Name             string `json:"name"`
	ROE              Stat   `json:"roe"`
	NetProfitMargin  Stat   `json:"net_profit_margin"`
	AssetTurnover    Stat   `json:"asset_turnover"`
	EquityMultiplier Stat   `json:"equity_multiplier"`
	PeerCount        int    `json:"peer_count"`
}

const insufficient = "数据不足"

// DupontAnalyzer reads the Dupont comparison
type DupontAnalyzer struct {
	provider quotes.Provider
}

// NewDupontAnalyzer creates a Dupont analyzer
func NewDupontAnalyzer(provider quotes.Provider) *DupontAnalyzer {
	return &DupontAnalyzer{provider: provider}
}

// Analyze decomposes the ROE of symbol
func (a *DupontAnalyzer) Analyze(ctx context.Context, symbol string) (*Dupont, error) {
	target, _, err := a.rows(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &Dupont{
		Symbol:           symbol,
		Name:             target.Name,
		ROE:              target.ROE,
		NetProfitMargin:  target.NetProfitMargin,
		AssetTurnover:    target.AssetTurnover,
		EquityMultiplier: target.EquityMultiplier,
		Profitability:    Profitability(target.NetProfitMargin),
		Efficiency:       Efficiency(target.AssetTurnover),
		Leverage:         Leverage(target.EquityMultiplier),
		Overall:          overall(target),
	}, nil
}

// PeerComparison compares the Dupont factors of symbol with its peers
func (a *DupontAnalyzer) PeerComparison(ctx context.Context, symbol string) (*PeerDupont, error) {
	target, rows, err := a.rows(ctx, symbol)
	if err != nil {
		return nil, err
	}
	n := len(rows)
	roe, margin, turnover, multiplier := make([]*float64, n), make([]*float64, n), make([]*float64, n), make([]*float64, n)
	for i, r := range rows {
		roe[i], margin[i], turnover[i], multiplier[i] = r.ROE, r.NetProfitMargin, r.AssetTurnover, r.EquityMultiplier
	}
	return &PeerDupont{
		Symbol:           symbol,
		Name:             target.Name,
		ROE:              peerStat(target.ROE, roe),
		NetProfitMargin:  peerStat(target.NetProfitMargin, margin),
		AssetTurnover:    peerStat(target.AssetTurnover, turnover),
		EquityMultiplier: peerStat(target.EquityMultiplier, multiplier),
		PeerCount:        n,
	}, nil
}

func (a *DupontAnalyzer) rows(ctx context.Context, symbol string) (*quotes.DupontRow, []quotes.DupontRow, error) {
	rows, err := a.provider.DupontComparison(ctx, symbol)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to fetch dupont comparison of %s", symbol)
	}
	if len(rows) == 0 {
		return nil, nil, errors.New("无杜邦分析数据")
	}
	for i := range rows {
		if rows[i].Code == code(symbol) {
			return &rows[i], rows, nil
		}
	}
	return nil, nil, errors.New("未在同行数据中找到")
}

// Profitability grades the net profit margin (percent)
func Profitability(margin *float64) string {
	switch {
	case margin == nil:
		return insufficient
	case *margin > 20:
		return "盈利能力优秀"
	case *margin > 10:
		return "盈利能力良好"
	case *margin > 5:
		return "盈利能力一般"
	}
	return "盈利能力较弱"
}

// Efficiency grades total asset turnover (times)
func Efficiency(turnover *float64) string {
	switch {
	case turnover == nil:
		return insufficient
	case *turnover > 1.5:
		return "资产利用效率高"
	case *turnover > 0.8:
		return "资产利用效率一般"
	}
	return "资产利用效率较低"
}

// Leverage grades the equity multiplier
func Leverage(multiplier *float64) string {
	switch {
	case multiplier == nil:
		return insufficient
	case *multiplier > 3:
		return "杠杆较高，财务风险较大"
	case *multiplier > 1.5:
		return "杠杆适中"
	}
	return "杠杆较低，财务保守"
}

func overall(r *quotes.DupontRow) string {
	var parts []string
	if r.ROE != nil {
		switch {
		case *r.ROE > 15:
			parts = append(parts, "ROE 优秀")
		case *r.ROE > 10:
			parts = append(parts, "ROE 良好")
		}
	}
	if r.NetProfitMargin != nil {
		parts = append(parts, Profitability(r.NetProfitMargin))
	}
	if r.AssetTurnover != nil {
		parts = append(parts, Efficiency(r.AssetTurnover))
	}
	if r.EquityMultiplier != nil {
		parts = append(parts, Leverage(r.EquityMultiplier))
	}
	if len(parts) == 0 {
		return insufficient
	}
	return strings.Join(parts, "，")
}
