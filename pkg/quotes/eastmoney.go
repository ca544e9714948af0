package quotes

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/logger"
)

const (
	fsAShares     = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23,m:0+t:81+s:2048"
	fsIndustry    = "m:90+t:2+f:!50"
	fsIndustryRaw = "m:90+t:2"

	spotFields     = "f2,f3,f4,f5,f6,f8,f12,f13,f14,f20,f21"
	boardFields    = "f2,f3,f4,f5,f6,f8,f12,f13,f14,f62,f128,f184"
	consFields     = "f2,f3,f5,f6,f12,f14,f20"
	flowFields     = "f12,f14,f62,f184"
	indexFields    = "f2,f3,f4,f5,f6,f12,f13,f14"
	financeFields  = "f57,f58,f116,f117,f130,f162,f167"
	klineFields1   = "f1,f2,f3,f4,f5,f6"
	klineFields2   = "f51,f52,f53,f54,f55,f56,f57"
	klineEndSentry = "20500101"

	tableSpot   = "spot"
	tableBoards = "boards"
)

// IndicesSnapshot returns realtime quotes for symbols (MajorIndices when
// empty) in the order requested
func (c *Client) IndicesSnapshot(ctx context.Context, symbols ...string) ([]Index, error) {
	if len(symbols) == 0 {
		symbols = MajorIndices
	}
	secids := make([]string, 0, len(symbols))
	for _, s := range symbols {
		id, err := indexSecID(s)
		if err != nil {
			return nil, err
		}
		secids = append(secids, id)
	}

	params := url.Values{}
	params.Set("fltt", "2")
	params.Set("invt", "2")
	params.Set("secids", strings.Join(secids, ","))
	params.Set("fields", indexFields)

	var resp clistResponse
	if err := c.getJSON(ctx, "indices_snapshot", c.cfg.BaseURL+"/api/qt/ulist.np/get", params, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to fetch indices")
	}
	if resp.Data == nil {
		return nil, errors.New("failed to fetch indices: empty response")
	}

	byCode := make(map[string]Index, len(resp.Data.Diff))
	for _, r := range resp.Data.Diff {
		idx := Index{
			Code:      indexSymbol(r.int("f13"), r.str("f12")),
			Name:      r.str("f14"),
			Price:     r.f("f2"),
			ChangePct: r.f("f3"),
			Change:    r.f("f4"),
			Volume:    r.f("f5"),
			Turnover:  r.f("f6"),
		}
		byCode[idx.Code] = idx
	}

	out := make([]Index, 0, len(symbols))
	for _, s := range symbols {
		if idx, ok := byCode[strings.ToLower(s)]; ok {
			out = append(out, idx)
		}
	}
	return out, nil
}

// IndexHistory returns the last count candles of an index such as sh000001
func (c *Client) IndexHistory(ctx context.Context, symbol string, period Period, count int) ([]Candle, error) {
	secid, err := indexSecID(symbol)
	if err != nil {
		return nil, err
	}
	candles, err := c.kline(ctx, "index_history", secid, period, AdjustNone, count)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch history of index %s", symbol)
	}
	return candles, nil
}

// MarketStatistics counts advancers, decliners and limit moves over all A-shares
func (c *Client) MarketStatistics(ctx context.Context) (*MarketStats, error) {
	rows, err := c.spotTable(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch market statistics")
	}

	stats := &MarketStats{Total: len(rows), Timestamp: c.now()}
	for _, r := range rows {
		if pct, ok := r.num("f3"); ok {
			switch {
			case pct > 0:
				stats.Up++
			case pct < 0:
				stats.Down++
			default:
				stats.Unchanged++
			}
			if pct >= LimitUpPct {
				stats.LimitUp++
			}
			if pct <= LimitDownPct {
				stats.LimitDown++
			}
		}
		stats.Turnover += r.f("f6")
	}
	return stats, nil
}

// SectorRanking returns industry boards sorted descending by sortBy
func (c *Client) SectorRanking(ctx context.Context, sortBy SectorSort) ([]Sector, error) {
	var key func(Sector) float64
	switch sortBy {
	case SortChangePct, "":
		key = func(s Sector) float64 { return s.ChangePct }
	case SortTurnover:
		key = func(s Sector) float64 { return s.Turnover }
	case SortVolume:
		key = func(s Sector) float64 { return s.Volume }
	case SortFlowNet:
		key = func(s Sector) float64 { return s.NetInflow }
	default:
		return nil, errors.Errorf("unknown sector sort %q", sortBy)
	}

	rows, err := c.boardTable(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch sector ranking")
	}

	sectors := make([]Sector, 0, len(rows))
	for _, r := range rows {
		sectors = append(sectors, Sector{
			Code:         r.str("f12"),
			Name:         r.str("f14"),
			Price:        r.f("f2"),
			ChangePct:    r.f("f3"),
			Change:       r.f("f4"),
			Volume:       r.f("f5"),
			Turnover:     r.f("f6"),
			TurnoverRate: r.f("f8"),
			LeadingStock: r.str("f128"),
			NetInflow:    r.f("f62"),
		})
	}
	sort.SliceStable(sectors, func(i, j int) bool { return key(sectors[i]) > key(sectors[j]) })
	for i := range sectors {
		sectors[i].Rank = i + 1
	}
	return sectors, nil
}

// SectorConstituents returns the topN stocks of the named board by change
// percent. topN <= 0 returns every constituent.
func (c *Client) SectorConstituents(ctx context.Context, name string, topN int) ([]Constituent, error) {
	boards, err := c.boardTable(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch constituents of %s", name)
	}
	var code string
	for _, b := range boards {
		if b.str("f14") == name || b.str("f12") == name {
			code = b.str("f12")
			break
		}
	}
	if code == "" {
		return nil, errors.Errorf("sector %q not found", name)
	}

	params := url.Values{}
	params.Set("po", "1")
	params.Set("fid", "f3")
	params.Set("fs", "b:"+code+"+f:!50")
	params.Set("fields", consFields)
	rows, err := c.clist(ctx, "sector_constituents", params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch constituents of %s", name)
	}

	out := make([]Constituent, 0, len(rows))
	for _, r := range rows {
		out = append(out, Constituent{
			Symbol:    r.str("f12"),
			Name:      r.str("f14"),
			Price:     r.f("f2"),
			ChangePct: r.f("f3"),
			Volume:    r.f("f5"),
			Turnover:  r.f("f6"),
			MarketCap: r.f("f20"),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ChangePct > out[j].ChangePct })
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

// SectorCapitalFlow returns today's main-force net inflow per industry
// board, largest inflow first
func (c *Client) SectorCapitalFlow(ctx context.Context) ([]SectorFlow, error) {
	params := url.Values{}
	params.Set("po", "1")
	params.Set("fid", "f62")
	params.Set("fs", fsIndustryRaw)
	params.Set("fields", flowFields)
	rows, err := c.clist(ctx, "sector_capital_flow", params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch sector capital flow")
	}

	flows := make([]SectorFlow, 0, len(rows))
	for _, r := range rows {
		flows = append(flows, SectorFlow{
			Code:         r.str("f12"),
			Name:         r.str("f14"),
			NetInflow:    r.f("f62"),
			NetInflowPct: r.f("f184"),
		})
	}
	sort.SliceStable(flows, func(i, j int) bool { return flows[i].NetInflow > flows[j].NetInflow })
	for i := range flows {
		flows[i].Rank = i + 1
	}
	return flows, nil
}

// StockSpot returns the realtime quote of one stock
func (c *Client) StockSpot(ctx context.Context, symbol string) (*Spot, error) {
	code, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	rows, err := c.spotTable(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch quote of %s", code)
	}
	for _, r := range rows {
		if r.str("f12") != code {
			continue
		}
		return &Spot{
			Symbol:         code,
			Name:           r.str("f14"),
			Price:          r.f("f2"),
			ChangePct:      r.f("f3"),
			Change:         r.f("f4"),
			Volume:         r.f("f5"),
			Turnover:       r.f("f6"),
			TurnoverRate:   r.f("f8"),
			MarketCap:      r.f("f20"),
			CirculatingCap: r.f("f21"),
			Timestamp:      c.now(),
		}, nil
	}
	return nil, errors.Errorf("stock %s not found", code)
}

// StockCandles returns the last count candles of a stock
func (c *Client) StockCandles(ctx context.Context, symbol string, period Period, adjust Adjust, count int) ([]Candle, error) {
	code, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	candles, err := c.kline(ctx, "stock_candles", stockSecID(code), period, adjust, count)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch candles of %s", code)
	}
	return candles, nil
}

// FinancialSummary returns valuation multiples and market caps
func (c *Client) FinancialSummary(ctx context.Context, symbol string) (*Financial, error) {
	code, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("secid", stockSecID(code))
	params.Set("fltt", "2")
	params.Set("invt", "2")
	params.Set("fields", financeFields)

	var resp struct {
		Data row `json:"data"`
	}
	if err := c.getJSON(ctx, "financial_summary", c.cfg.BaseURL+"/api/qt/stock/get", params, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch financial summary of %s", code)
	}
	if resp.Data == nil {
		return nil, errors.Errorf("no financial summary for %s", code)
	}

	name := resp.Data.str("f58")
	return &Financial{
		Symbol:         code,
		Name:           name,
		PE:             resp.Data.ptr("f162"),
		PB:             resp.Data.ptr("f167"),
		PS:             resp.Data.ptr("f130"),
		MarketCap:      resp.Data.ptr("f116"),
		CirculatingCap: resp.Data.ptr("f117"),
	}, nil
}

type klineResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

func (c *Client) kline(ctx context.Context, op, secid string, period Period, adjust Adjust, count int) ([]Candle, error) {
	if count <= 0 {
		count = 100
	}
	params := url.Values{}
	params.Set("secid", secid)
	params.Set("fields1", klineFields1)
	params.Set("fields2", klineFields2)
	params.Set("klt", period.klt())
	params.Set("fqt", adjust.fqt())
	params.Set("end", klineEndSentry)
	params.Set("lmt", fmt.Sprint(count))

	var resp klineResponse
	if err := c.getJSON(ctx, op, c.cfg.HistoryURL+"/api/qt/stock/kline/get", params, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, errors.Errorf("no candles for %s", secid)
	}

	candles := make([]Candle, 0, len(resp.Data.Klines))
	for _, line := range resp.Data.Klines {
		candle, err := parseKline(line)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("secid", secid).Warn("skipping kline")
			continue
		}
		candles = append(candles, candle)
	}
	if len(candles) == 0 && len(resp.Data.Klines) > 0 {
		return nil, errors.Errorf("no parsable candles for %s", secid)
	}
	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	return candles, nil
}

// parseKline parses "date,open,close,high,low,volume,turnover". A bad
// price field rejects the line; a bad volume or turnover reads as zero.
func parseKline(line string) (Candle, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 7 || strings.TrimSpace(parts[0]) == "" {
		return Candle{}, errors.Errorf("malformed kline %q", line)
	}
	var vals [6]float64
	for i := range vals {
		v, ok := ParseNumber(parts[i+1])
		if !ok && i < 4 {
			return Candle{}, errors.Errorf("malformed kline %q", line)
		}
		vals[i] = v
	}
	return Candle{
		Date:     parts[0],
		Open:     vals[0],
		Close:    vals[1],
		High:     vals[2],
		Low:      vals[3],
		Volume:   vals[4],
		Turnover: vals[5],
	}, nil
}

func (c *Client) spotTable(ctx context.Context) ([]row, error) {
	return c.cached(ctx, tableSpot, func(ctx context.Context) ([]row, error) {
		params := url.Values{}
		params.Set("po", "1")
		params.Set("fid", "f3")
		params.Set("fs", fsAShares)
		params.Set("fields", spotFields)
		return c.clist(ctx, "stock_spot", params)
	})
}

func (c *Client) boardTable(ctx context.Context) ([]row, error) {
	return c.cached(ctx, tableBoards, func(ctx context.Context) ([]row, error) {
		params := url.Values{}
		params.Set("po", "1")
		params.Set("fid", "f3")
		params.Set("fs", fsIndustry)
		params.Set("fields", boardFields)
		return c.clist(ctx, "sector_ranking", params)
	})
}
