package fundamental

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
	"github.com/jingkaihe/skilldesk/pkg/utils"
)

// IndustryComparison compares the PE of a stock with hand-picked peers
type IndustryComparison struct {
	Symbol        string  `json:"symbol"`
	PE            float64 `json:"pe"`
	IndustryPE    float64 `json:"industry_pe"`
	IndustryCount int     `json:"industry_count"`
	Percentile    float64 `json:"percentile"`
	Valuation     string  `json:"valuation"`
}

// PeerValuation places the multiples of a stock within its industry
type PeerValuation struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	PE        Stat   `json:"pe"`
	PB        Stat   `json:"pb"`
	PS        Stat   `json:"ps"`
	PEG       Stat   `json:"peg"`
	PeerCount int    `json:"peer_count"`
	Valuation string `json:"valuation"`
}

// ValuationAnalyzer compares valuation multiples across peers
type ValuationAnalyzer struct {
	provider quotes.Provider
}

// NewValuationAnalyzer creates a valuation analyzer
func NewValuationAnalyzer(provider quotes.Provider) *ValuationAnalyzer {
	return &ValuationAnalyzer{provider: provider}
}

// CompareWithIndustry compares the PE of symbol with the mean PE of peers.
// Peers with a PE outside (0, 100) or that fail to load are ignored.
func (a *ValuationAnalyzer) CompareWithIndustry(ctx context.Context, symbol string, peers []string) (*IndustryComparison, error) {
	target, err := a.provider.FinancialSummary(ctx, symbol)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch financial summary of %s", symbol)
	}
	if target.PE == nil {
		return nil, errors.New("无法获取 PE 数据")
	}

	var pes []float64
	for _, peer := range peers {
		if code(peer) == code(symbol) {
			continue
		}
		f, err := a.provider.FinancialSummary(ctx, peer)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("symbol", peer).Debug("skipping peer")
			continue
		}
		if f.PE != nil && *f.PE > 0 && *f.PE < 100 {
			pes = append(pes, *f.PE)
		}
	}
	if len(pes) == 0 {
		return nil, errors.New("无法获取行业数据")
	}

	industryPE := utils.Mean(pes)
	pct, _ := percentile(append(pes, *target.PE), *target.PE)
	return &IndustryComparison{
		Symbol:        symbol,
		PE:            *target.PE,
		IndustryPE:    industryPE,
		IndustryCount: len(pes),
		Percentile:    pct,
		Valuation:     relativeLevel(*target.PE, industryPE),
	}, nil
}

// PeerValuation compares the multiples of symbol with its industry peers
func (a *ValuationAnalyzer) PeerValuation(ctx context.Context, symbol string) (*PeerValuation, error) {
	rows, err := a.provider.ValuationComparison(ctx, symbol)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch valuation comparison of %s", symbol)
	}
	if len(rows) == 0 {
		return nil, errors.New("无估值对比数据")
	}

	var target *quotes.ValuationRow
	pe, pb, ps, peg := make([]*float64, len(rows)), make([]*float64, len(rows)), make([]*float64, len(rows)), make([]*float64, len(rows))
	for i := range rows {
		if rows[i].Code == code(symbol) {
			target = &rows[i]
		}
		pe[i], pb[i], ps[i], peg[i] = rows[i].PE, rows[i].PB, rows[i].PS, rows[i].PEG
	}
	if target == nil {
		return nil, errors.New("未在同行数据中找到")
	}

	out := &PeerValuation{
		Symbol:    symbol,
		Name:      target.Name,
		PE:        peerStat(target.PE, pe),
		PB:        peerStat(target.PB, pb),
		PS:        peerStat(target.PS, ps),
		PEG:       peerStat(target.PEG, peg),
		PeerCount: len(rows),
		Valuation: Fair,
	}
	if out.PE.Value != nil && out.PE.IndustryMean != nil {
		out.Valuation = relativeLevel(*out.PE.Value, *out.PE.IndustryMean)
	}
	return out, nil
}

// relativeLevel is undervalued below 0.8 times the industry and overvalued
// above 1.2 times
func relativeLevel(pe, industryPE float64) string {
	switch {
	case pe < industryPE*0.8:
		return Undervalued
	case pe > industryPE*1.2:
		return Overvalued
	}
	return Fair
}
