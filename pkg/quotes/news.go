package quotes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/logger"
)

const (
	commentReport   = "RPT_DMSK_TS_STOCKNEW"
	commentPageSize = 500
	newsCallback    = "jQuery_skilldesk"
	articleURL      = "https://finance.eastmoney.com/a/%s.html"
)

type datacenterResponse struct {
	Success bool `json:"success"`
	Result  *struct {
		Pages int   `json:"pages"`
		Data  []row `json:"data"`
	} `json:"result"`
}

// MarketComment returns the 千股千评 table for the latest trading day
func (c *Client) MarketComment(ctx context.Context) ([]Comment, error) {
	page := func(ctx context.Context, pn int) ([]row, int, error) {
		params := url.Values{}
		params.Set("reportName", commentReport)
		params.Set("columns", "ALL")
		params.Set("pageNumber", fmt.Sprint(pn))
		params.Set("pageSize", fmt.Sprint(commentPageSize))
		params.Set("sortColumns", "SECURITY_CODE")
		params.Set("sortTypes", "1")
		params.Set("source", "WEB")
		params.Set("client", "WEB")

		var resp datacenterResponse
		if err := c.getJSON(ctx, "market_comment", c.cfg.DataURL+"/api/data/v1/get", params, &resp); err != nil {
			return nil, 0, err
		}
		if resp.Result == nil {
			return nil, 0, nil
		}
		return resp.Result.Data, resp.Result.Pages, nil
	}

	first, pages, err := page(ctx, 1)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch market comment")
	}
	rest, err := c.fetchPages(ctx, pages, func(ctx context.Context, pn int) ([]row, error) {
		rows, _, err := page(ctx, pn)
		return rows, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch market comment")
	}

	rows := append(first, rest...)
	out := make([]Comment, 0, len(rows))
	for _, r := range rows {
		out = append(out, Comment{
			Symbol:       r.str("SECURITY_CODE"),
			Name:         r.str("SECURITY_NAME_ABBR"),
			TradeDate:    strings.TrimSuffix(r.str("TRADE_DATE"), " 00:00:00"),
			Close:        r.f("CLOSE_PRICE"),
			ChangePct:    r.f("CHANGE_RATE"),
			TurnoverRate: r.f("TURNOVERRATE"),
			PE:           r.f("PE_DYNAMIC"),
			MainCost:     r.f("PRIME_COST"),
			OrgShare:     r.f("ORG_PARTICIPATE"),
			Score:        r.f("TOTALSCORE"),
			Rank:         r.int("RANK"),
			Focus:        r.f("FOCUS"),
		})
	}
	return out, nil
}

type newsArticle struct {
	Date      string `json:"date"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	MediaName string `json:"mediaName"`
	Code      string `json:"code"`
	URL       string `json:"url"`
}

type newsResponse struct {
	Result struct {
		Articles []newsArticle `json:"cmsArticleWebOld"`
	} `json:"result"`
}

// StockNews returns up to limit recent articles mentioning symbol
func (c *Client) StockNews(ctx context.Context, symbol string, limit int) ([]News, error) {
	code, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	query, err := json.Marshal(map[string]any{
		"uid":           "",
		"keyword":       code,
		"type":          []string{"cmsArticleWebOld"},
		"client":        "web",
		"clientType":    "web",
		"clientVersion": "curr",
		"param": map[string]any{
			"cmsArticleWebOld": map[string]any{
				"searchScope": "default",
				"sort":        "default",
				"pageIndex":   1,
				"pageSize":    limit,
				"preTag":      "<em>",
				"postTag":     "</em>",
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode news query")
	}

	params := url.Values{}
	params.Set("cb", newsCallback)
	params.Set("param", string(query))
	body, err := c.get(ctx, "stock_news", c.cfg.SearchURL+"/search/jsonp", params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch news of %s", code)
	}

	var resp newsResponse
	if err := json.Unmarshal(unwrapJSONP(body), &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to decode news of %s", code)
	}

	converter := md.NewConverter("", true, nil)
	news := make([]News, 0, len(resp.Result.Articles))
	for _, a := range resp.Result.Articles {
		if len(news) == limit {
			break
		}
		item := News{
			Title:  htmlText(a.Title),
			Time:   a.Date,
			Source: a.MediaName,
			URL:    a.URL,
		}
		if item.URL == "" && a.Code != "" {
			item.URL = fmt.Sprintf(articleURL, a.Code)
		}
		if a.Content != "" {
			content, err := converter.ConvertString(a.Content)
			if err != nil {
				logger.G(ctx).WithError(err).WithField("symbol", code).Debug("failed to convert news content")
				content = htmlText(a.Content)
			}
			item.Content = strings.TrimSpace(content)
		}
		news = append(news, item)
	}
	return news, nil
}

// unwrapJSONP strips a callback(...) wrapper; plain JSON is returned as is
func unwrapJSONP(body []byte) []byte {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] == '{' || body[0] == '[' {
		return body
	}
	start := bytes.IndexByte(body, '(')
	end := bytes.LastIndexByte(body, ')')
	if start < 0 || end <= start {
		return body
	}
	return body[start+1 : end]
}

// htmlText returns the text content of an HTML fragment such as a
// highlighted search title
func htmlText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.TrimSpace(doc.Text())
}
