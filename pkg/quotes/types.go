// Package quotes fetches A-share market data from the public Eastmoney HTTP
// endpoints: index and stock quotes, candles, industry boards, capital flow,
// F10 peer comparisons, the 千股千评 table and stock news.
package quotes

import (
	"context"
	"time"
)

// MajorIndices are the indices shown in the market snapshot
var MajorIndices = []string{"sh000001", "sz399001", "sz399006", "sh000688"}

// Limit-up and limit-down thresholds on change percent
const (
	LimitUpPct   = 9.9
	LimitDownPct = -9.9
)

// Provider is the market-data surface used by the analyzers
type Provider interface {
	IndicesSnapshot(ctx context.Context, symbols ...string) ([]Index, error)
	IndexHistory(ctx context.Context, symbol string, period Period, count int) ([]Candle, error)
	MarketStatistics(ctx context.Context) (*MarketStats, error)
	SectorRanking(ctx context.Context, sortBy SectorSort) ([]Sector, error)
	SectorConstituents(ctx context.Context, name string, topN int) ([]Constituent, error)
	SectorCapitalFlow(ctx context.Context) ([]SectorFlow, error)
	StockSpot(ctx context.Context, symbol string) (*Spot, error)
	StockCandles(ctx context.Context, symbol string, period Period, adjust Adjust, count int) ([]Candle, error)
	FinancialSummary(ctx context.Context, symbol string) (*Financial, error)
	GrowthComparison(ctx context.Context, symbol string) ([]GrowthRow, error)
	ValuationComparison(ctx context.Context, symbol string) ([]ValuationRow, error)
	DupontComparison(ctx context.Context, symbol string) ([]DupontRow, error)
	BusinessComposition(ctx context.Context, symbol string) ([]BusinessItem, error)
	MarketComment(ctx context.Context) ([]Comment, error)
	StockNews(ctx context.Context, symbol string, limit int) ([]News, error)
}

// Period is a candle interval
type Period string

// Supported periods
const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	Period5Min    Period = "5min"
	Period15Min   Period = "15min"
	Period30Min   Period = "30min"
	Period60Min   Period = "60min"
)

var periodKlt = map[Period]string{
	PeriodDaily:   "101",
	PeriodWeekly:  "102",
	PeriodMonthly: "103",
	Period5Min:    "5",
	Period15Min:   "15",
	Period30Min:   "30",
	Period60Min:   "60",
}

// ParsePeriod maps a period name to a Period. Unknown names fall back to daily.
func ParsePeriod(s string) Period {
	if _, ok := periodKlt[Period(s)]; ok {
		return Period(s)
	}
	return PeriodDaily
}

func (p Period) klt() string {
	if k, ok := periodKlt[p]; ok {
		return k
	}
	return periodKlt[PeriodDaily]
}

// Adjust is the price adjustment applied to candles
type Adjust string

// Supported adjustments
const (
	AdjustForward  Adjust = "qfq"
	AdjustBackward Adjust = "hfq"
	AdjustNone     Adjust = ""
)

// ParseAdjust maps an adjustment name to an Adjust. Unknown names fall back
// to forward adjustment.
func ParseAdjust(s string) Adjust {
	switch Adjust(s) {
	case AdjustForward, AdjustBackward, AdjustNone:
		return Adjust(s)
	}
	return AdjustForward
}

func (a Adjust) fqt() string {
	switch a {
	case AdjustBackward:
		return "2"
	case AdjustNone:
		return "0"
	default:
		return "1"
	}
}

// SectorSort is the ranking key for SectorRanking
type SectorSort string

// Sector ranking keys
const (
	SortChangePct SectorSort = "change_pct"
	SortTurnover  SectorSort = "turnover"
	SortVolume    SectorSort = "volume"
	SortFlowNet   SectorSort = "flow_net"
)

// Index is a realtime index quote
type Index struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
	Volume    float64 `json:"volume"`
	Turnover  float64 `json:"turnover"`
}

// Candle is one OHLCV bar
type Candle struct {
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
	Turnover float64 `json:"turnover"`
}

// MarketStats counts advancing and declining A-shares. Suspended stocks
// count towards Total only.
type MarketStats struct {
	Total     int       `json:"total_count"`
	Up        int       `json:"up_count"`
	Down      int       `json:"down_count"`
	Unchanged int       `json:"unchanged_count"`
	LimitUp   int       `json:"limit_up_count"`
	LimitDown int       `json:"limit_down_count"`
	Turnover  float64   `json:"total_turnover"` // yuan
	Timestamp time.Time `json:"timestamp"`
}

// Sector is one industry board
type Sector struct {
	Rank         int     `json:"rank"`
	Code         string  `json:"sector_code"`
	Name         string  `json:"sector_name"`
	Price        float64 `json:"price"`
	Change       float64 `json:"change"`
	ChangePct    float64 `json:"change_pct"`
	Volume       float64 `json:"volume"`
	Turnover     float64 `json:"turnover"`
	TurnoverRate float64 `json:"turnover_rate"`
	LeadingStock string  `json:"leading_stock"`
	NetInflow    float64 `json:"flow_net"` // yuan
}

// Constituent is a stock belonging to a board
type Constituent struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
	Volume    float64 `json:"volume"`
	Turnover  float64 `json:"turnover"`
	MarketCap float64 `json:"market_cap"`
}

// SectorFlow is the main-force capital flow of a board
type SectorFlow struct {
	Rank         int     `json:"rank"`
	Code         string  `json:"sector_code"`
	Name         string  `json:"sector_name"`
	NetInflow    float64 `json:"flow_net"`     // yuan
	NetInflowPct float64 `json:"flow_net_pct"` // percent of turnover
}

// Spot is a realtime stock quote
type Spot struct {
	Symbol         string    `json:"symbol"`
	Name           string    `json:"name"`
	Price          float64   `json:"price"`
	Change         float64   `json:"change"`
	ChangePct      float64   `json:"change_pct"`
	Volume         float64   `json:"volume"`
	Turnover       float64   `json:"turnover"`
	TurnoverRate   float64   `json:"turnover_rate"`
	MarketCap      float64   `json:"market_cap"`
	CirculatingCap float64   `json:"circulating_cap"`
	Timestamp      time.Time `json:"timestamp"`
}

// Financial holds valuation multiples. Nil fields were not reported.
type Financial struct {
	Symbol         string   `json:"symbol"`
	Name           string   `json:"name"`
	PE             *float64 `json:"pe"`
	PB             *float64 `json:"pb"`
	PS             *float64 `json:"ps"`
	MarketCap      *float64 `json:"market_cap"`
	CirculatingCap *float64 `json:"circulating_cap"`
}

// GrowthRow is one peer in the growth comparison, growth rates in percent
type GrowthRow struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	EPSGrowth     *float64 `json:"eps_growth"`
	RevenueGrowth *float64 `json:"revenue_growth"`
	ProfitGrowth  *float64 `json:"profit_growth"`
}

// ValuationRow is one peer in the valuation comparison
type ValuationRow struct {
	Code string   `json:"code"`
	Name string   `json:"name"`
	PE   *float64 `json:"pe"`
	PB   *float64 `json:"pb"`
	PS   *float64 `json:"ps"`
	PEG  *float64 `json:"peg"`
}

// DupontRow is one peer in the Dupont comparison. ROE and net margin are
// in percent.
type DupontRow struct {
	Code             string   `json:"code"`
	Name             string   `json:"name"`
	ROE              *float64 `json:"roe"`
	NetProfitMargin  *float64 `json:"net_profit_margin"`
	AssetTurnover    *float64 `json:"asset_turnover"`
	EquityMultiplier *float64 `json:"equity_multiplier"`
}

// BusinessItem is one line of the main business composition
type BusinessItem struct {
	ReportDate   string   `json:"report_date"`
	Type         string   `json:"type"` // industry, product or region
	Item         string   `json:"product_name"`
	Revenue      *float64 `json:"revenue"`
	RevenueRatio *float64 `json:"revenue_ratio"`
	Profit       *float64 `json:"profit"`
	ProfitRatio  *float64 `json:"profit_ratio"`
}

// Comment is one row of the 千股千评 table
type Comment struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	TradeDate    string  `json:"trade_date"`
	Close        float64 `json:"close"`
	ChangePct    float64 `json:"change_pct"`
	TurnoverRate float64 `json:"turnover_rate"`
	PE           float64 `json:"pe"`
	MainCost     float64 `json:"main_cost"`
	OrgShare     float64 `json:"org_participate"`
	Score        float64 `json:"total_score"`
	Rank         int     `json:"rank"`
	Focus        float64 `json:"focus"`
}

// News is one news article about a stock
type News struct {
	Title   string `json:"title"`
	Content string `json:"content,omitempty"` // markdown
	Time    string `json:"time"`
	Source  string `json:"source"`
	URL     string `json:"url"`
}

// Float64 returns a pointer to v
func Float64(v float64) *float64 {
	return &v
}
