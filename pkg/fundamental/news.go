package fundamental

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
)

var (
	positiveKeywords = []string{"利好", "增长", "突破", "上涨", "盈利", "回购", "增持"}
	negativeKeywords = []string{"利空", "下跌", "亏损", "减持", "风险", "调查", "处罚"}

	sentimentText = map[string]string{
		"positive": "整体情绪偏正面",
		"negative": "整体情绪偏负面",
		"neutral":  "整体情绪中性",
	}
)

// StockNews is the recent news of one stock
type StockNews struct {
	Symbol    string        `json:"symbol"`
	Name      string        `json:"name,omitempty"`
	NewsCount int           `json:"news_count"`
	News      []quotes.News `json:"news,omitempty"`
	Latest    *quotes.News  `json:"latest_news,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// NewsSentiment counts positive and negative headlines
type NewsSentiment struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	TotalNews     int    `json:"total_news"`
	PositiveCount int    `json:"positive_count"`
	NegativeCount int    `json:"negative_count"`
	Sentiment     string `json:"sentiment"`
	SentimentText string `json:"sentiment_text"`
}

// NewsAnalyzer fetches and classifies stock news
type NewsAnalyzer struct {
	provider    quotes.Provider
	concurrency int
}

// NewNewsAnalyzer creates a news analyzer; concurrency bounds BatchNews
func NewNewsAnalyzer(provider quotes.Provider, concurrency int) *NewsAnalyzer {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &NewsAnalyzer{provider: provider, concurrency: concurrency}
}

// News returns up to limit recent articles about symbol
func (a *NewsAnalyzer) News(ctx context.Context, symbol string, limit int) (*StockNews, error) {
	news, err := a.provider.StockNews(ctx, symbol, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch news of %s", symbol)
	}
	if len(news) == 0 {
		return nil, errors.New("无新闻数据")
	}
	spot, err := a.provider.StockSpot(ctx, symbol)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch quote of %s", symbol)
	}
	return &StockNews{
		Symbol:    symbol,
		Name:      spot.Name,
		NewsCount: len(news),
		News:      news,
		Latest:    &news[0],
	}, nil
}

// Sentiment classifies the headlines of recent news by keyword
func (a *NewsAnalyzer) Sentiment(ctx context.Context, symbol string, limit int) (*NewsSentiment, error) {
	news, err := a.News(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	s := ClassifyHeadlines(news.News)
	s.Symbol = symbol
	s.Name = news.Name
	return s, nil
}

// ClassifyHeadlines counts titles containing a positive or negative
// keyword; a title counts at most once per side. The sentiment leans one
// way when that side has more than twice the other.
func ClassifyHeadlines(news []quotes.News) *NewsSentiment {
	var pos, neg int
	for _, n := range news {
		if containsAny(n.Title, positiveKeywords) {
			pos++
		}
		if containsAny(n.Title, negativeKeywords) {
			neg++
		}
	}

	sentiment := "neutral"
	switch {
	case pos > neg*2:
		sentiment = "positive"
	case neg > pos*2:
		sentiment = "negative"
	}
	return &NewsSentiment{
		TotalNews:     len(news),
		PositiveCount: pos,
		NegativeCount: neg,
		Sentiment:     sentiment,
		SentimentText: sentimentText[sentiment],
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// BatchNews fetches news for every symbol; failures are reported in the
// Error field. Results keep the order of symbols.
func (a *NewsAnalyzer) BatchNews(ctx context.Context, symbols []string, limit int) []StockNews {
	results := make([]StockNews, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, symbol := range symbols {
		g.Go(func() error {
			n, err := a.News(gctx, symbol, limit)
			if err != nil {
				logger.G(gctx).WithError(err).WithField("symbol", symbol).Debug("failed to fetch news")
				results[i] = StockNews{Symbol: symbol, Error: err.Error()}
				return nil
			}
			results[i] = *n
			return nil
		})
	}
	_ = g.Wait()
	return results
}
