package quotes

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
)

// industryPage is the F10 IndustryAnalysis document holding the growth
// (czxbj), valuation (gzbj) and Dupont (dbfxbj) peer tables
type industryPage struct {
	Growth    f10Table `json:"czxbj"`
	Valuation f10Table `json:"gzbj"`
	Dupont    f10Table `json:"dbfxbj"`
}

type f10Table struct {
	Data []row `json:"data"`
}

// peerRows drops the industry average and median rows, which carry no
// stock code
func peerRows(rows []row) []row {
	out := make([]row, 0, len(rows))
	for _, r := range rows {
		if _, err := NormalizeSymbol(r.str("CORRE_SECURITY_CODE")); err == nil {
			out = append(out, r)
		}
	}
	return out
}

func (c *Client) industryPage(ctx context.Context, op, code string) (industryPage, error) {
	key := f10Code(code)
	if c.pages != nil {
		if page, ok := c.pages.Get(key); ok {
			return page, nil
		}
	}

	params := url.Values{}
	params.Set("code", key)
	var page industryPage
	if err := c.getJSON(ctx, op, c.cfg.F10URL+"/PC_HSF10/IndustryAnalysis/PageAjax", params, &page); err != nil {
		return industryPage{}, err
	}
	if c.pages != nil {
		c.pages.Add(key, page)
	}
	return page, nil
}

// GrowthComparison returns the growth rates of symbol and its industry peers
func (c *Client) GrowthComparison(ctx context.Context, symbol string) ([]GrowthRow, error) {
	code, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	page, err := c.industryPage(ctx, "growth_comparison", code)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch growth comparison of %s", code)
	}

	var out []GrowthRow
	for _, r := range peerRows(page.Growth.Data) {
		out = append(out, GrowthRow{
			Code:          r.str("CORRE_SECURITY_CODE"),
			Name:          r.str("CORRE_SECURITY_NAME"),
			EPSGrowth:     r.ptr("MGSYTB"),
			RevenueGrowth: r.ptr("YYSRTB"),
			ProfitGrowth:  r.ptr("JLRTB"),
		})
	}
	return out, nil
}

// ValuationComparison returns the valuation multiples of symbol and its peers
func (c *Client) ValuationComparison(ctx context.Context, symbol string) ([]ValuationRow, error) {
	code, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	page, err := c.industryPage(ctx, "valuation_comparison", code)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch valuation comparison of %s", code)
	}

	var out []ValuationRow
	for _, r := range peerRows(page.Valuation.Data) {
		out = append(out, ValuationRow{
			Code: r.str("CORRE_SECURITY_CODE"),
			Name: r.str("CORRE_SECURITY_NAME"),
			PE:   r.ptr("PE_TTM"),
			PB:   r.ptr("PB_MRQ"),
			PS:   r.ptr("PS_TTM"),
			PEG:  r.ptr("PEG"),
		})
	}
	return out, nil
}

// DupontComparison returns the Dupont decomposition of symbol and its peers
func (c *Client) DupontComparison(ctx context.Context, symbol string) ([]DupontRow, error) {
	code, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	page, err := c.industryPage(ctx, "dupont_comparison", code)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch dupont comparison of %s", code)
	}

	var out []DupontRow
	for _, r := range peerRows(page.Dupont.Data) {
		out = append(out, DupontRow{
			Code:             r.str("CORRE_SECURITY_CODE"),
			Name:             r.str("CORRE_SECURITY_NAME"),
			ROE:              r.ptr("ROE_AVG"),
			NetProfitMargin:  r.ptr("XSJLL"),
			AssetTurnover:    r.ptr("TOAZZL"),
			EquityMultiplier: r.ptr("QYCS"),
		})
	}
	return out, nil
}

var businessTypes = map[string]string{
	"1": "industry",
	"2": "product",
	"3": "region",
}

// BusinessComposition returns the main business lines of the most recent
// report period
func (c *Client) BusinessComposition(ctx context.Context, symbol string) ([]BusinessItem, error) {
	code, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("code", f10Code(code))
	var resp struct {
		Items []row `json:"zygcfx"`
	}
	if err := c.getJSON(ctx, "business_composition", c.cfg.F10URL+"/PC_HSF10/BusinessAnalysis/PageAjax", params, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch business composition of %s", code)
	}

	var latest string
	for _, r := range resp.Items {
		if d := r.str("REPORT_DATE"); d > latest {
			latest = d
		}
	}

	var out []BusinessItem
	for _, r := range resp.Items {
		if r.str("REPORT_DATE") != latest {
			continue
		}
		typ := businessTypes[r.str("MAINOP_TYPE")]
		if typ == "" {
			typ = r.str("MAINOP_TYPE")
		}
		out = append(out, BusinessItem{
			ReportDate:   latest,
			Type:         typ,
			Item:         r.str("ITEM_NAME"),
			Revenue:      r.ptr("MAIN_BUSINESS_INCOME"),
			RevenueRatio: r.ptr("MBI_RATIO"),
			Profit:       r.ptr("MAIN_BUSINESS_RPOFIT"),
			ProfitRatio:  r.ptr("MBR_RATIO"),
		})
	}
	return out, nil
}
