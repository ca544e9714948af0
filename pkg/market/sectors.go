package market

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
	"github.com/jingkaihe/skilldesk/pkg/utils"
)

// HotSector is a board whose change passes the hot threshold
type HotSector struct {
	Rank          int                  `json:"rank"`
	Code          string               `json:"sector_code"`
	Name          string               `json:"sector_name"`
	ChangePct     float64              `json:"change_pct"`
	Turnover      float64              `json:"turnover"`
	TurnoverRate  float64              `json:"turnover_rate"`
	NetInflow     float64              `json:"flow_net"` // yuan
	LeadingStock  string               `json:"leading_stock,omitempty"`
	LeadingStocks []quotes.Constituent `json:"leading_stocks,omitempty"`

	// FlowUnavailable is set when the capital flow fetch failed and
	// NetInflow is not known
	FlowUnavailable bool `json:"flow_unavailable,omitempty"`
}

// SectorTracker follows hot industry boards and their capital flow
type SectorTracker struct {
	provider  quotes.Provider
	threshold float64
	topN      int
	leading   int
}

// NewSectorTracker creates a tracker with the configured threshold (change
// percent), number of hot boards and leading stocks per board
func NewSectorTracker(provider quotes.Provider, cfg config.MarketConfig) *SectorTracker {
	t := &SectorTracker{
		provider:  provider,
		threshold: cfg.HotThreshold,
		topN:      cfg.HotTopN,
		leading:   cfg.LeadingStocks,
	}
	if t.topN <= 0 {
		t.topN = 5
	}
	if t.leading <= 0 {
		t.leading = 3
	}
	return t
}

// WithLimits returns a copy of t using threshold and topN
func (t *SectorTracker) WithLimits(threshold float64, topN int) *SectorTracker {
	c := *t
	c.threshold = threshold
	if topN > 0 {
		c.topN = topN
	}
	return &c
}

// HotSectors returns up to topN boards, by change descending, whose change
// is at least the threshold, joined with their net capital inflow. When the
// flow fetch fails the boards are still returned, marked FlowUnavailable.
func (t *SectorTracker) HotSectors(ctx context.Context) ([]HotSector, error) {
	ranking, err := t.provider.SectorRanking(ctx, quotes.SortChangePct)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch sector ranking")
	}

	hot := []HotSector{}
	for _, s := range ranking {
		if len(hot) == t.topN {
			break
		}
		if s.ChangePct < t.threshold {
			continue
		}
		hot = append(hot, HotSector{
			Rank:         s.Rank,
			Code:         s.Code,
			Name:         s.Name,
			ChangePct:    s.ChangePct,
			Turnover:     s.Turnover,
			TurnoverRate: s.TurnoverRate,
			LeadingStock: s.LeadingStock,
		})
	}
	if len(hot) == 0 {
		return hot, nil
	}

	flows, err := t.provider.SectorCapitalFlow(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to fetch sector capital flow")
		for i := range hot {
			hot[i].FlowUnavailable = true
		}
		return hot, nil
	}
	inflow := make(map[string]float64, len(flows))
	for _, f := range flows {
		inflow[f.Name] = f.NetInflow
	}
	for i := range hot {
		hot[i].NetInflow = inflow[hot[i].Name]
	}
	return hot, nil
}

// HotSectorsDetail is HotSectors with the leading constituents of each
// board. A board whose constituents cannot be loaded gets none.
func (t *SectorTracker) HotSectorsDetail(ctx context.Context) ([]HotSector, error) {
	hot, err := t.HotSectors(ctx)
	if err != nil {
		return nil, err
	}
	for i := range hot {
		hot[i].ChangePct = utils.Round(hot[i].ChangePct, 2)
		hot[i].NetInflow = utils.Round(hot[i].NetInflow, 2)

		cons, err := t.provider.SectorConstituents(ctx, hot[i].Name, t.leading)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("sector", hot[i].Name).Warn("failed to fetch sector constituents")
			hot[i].LeadingStocks = []quotes.Constituent{}
			continue
		}
		hot[i].LeadingStocks = cons
	}
	return hot, nil
}

// FlowRanking returns boards ranked by net main-force inflow
func (t *SectorTracker) FlowRanking(ctx context.Context) ([]quotes.SectorFlow, error) {
	flows, err := t.provider.SectorCapitalFlow(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch sector capital flow")
	}
	return flows, nil
}
