package market

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/quotes"
	"github.com/jingkaihe/skilldesk/pkg/utils"
)

// CommentSummary aggregates the market-wide 千股千评 table
type CommentSummary struct {
	TradeDate    string           `json:"trade_date"`
	Count        int              `json:"count"`
	AvgScore     float64          `json:"avg_score"`
	AvgChangePct float64          `json:"avg_change_pct"`
	AvgOrgShare  float64          `json:"avg_org_share"`
	Top          []quotes.Comment `json:"top"`
}

// CommentSentiment reads market mood from the average comment score
type CommentSentiment struct {
	Sentiment   string  `json:"sentiment"`
	Description string  `json:"description"`
	AvgScore    float64 `json:"avg_score"`
}

// Comment score thresholds; TOTALSCORE is on a 0-100 scale
const (
	positiveCommentScore = 65.0
	negativeCommentScore = 45.0
)

// CommentAnalyzer summarises the comment table
type CommentAnalyzer struct {
	provider quotes.Provider
}

// NewCommentAnalyzer creates a comment analyzer
func NewCommentAnalyzer(provider quotes.Provider) *CommentAnalyzer {
	return &CommentAnalyzer{provider: provider}
}

// Summary returns averages over the latest trading day and the topN stocks
// by comment score
func (a *CommentAnalyzer) Summary(ctx context.Context, topN int) (*CommentSummary, error) {
	comments, err := a.provider.MarketComment(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch market comment")
	}
	if len(comments) == 0 {
		return nil, errors.New("无千股千评数据")
	}

	latest := ""
	for _, c := range comments {
		if c.TradeDate > latest {
			latest = c.TradeDate
		}
	}

	var scores, changes, orgs []float64
	day := make([]quotes.Comment, 0, len(comments))
	for _, c := range comments {
		if c.TradeDate != latest {
			continue
		}
		day = append(day, c)
		scores = append(scores, c.Score)
		changes = append(changes, c.ChangePct)
		orgs = append(orgs, c.OrgShare)
	}

	sort.SliceStable(day, func(i, j int) bool { return day[i].Score > day[j].Score })
	if topN > 0 && len(day) > topN {
		day = day[:topN]
	}

	return &CommentSummary{
		TradeDate:    latest,
		Count:        len(scores),
		AvgScore:     utils.Round(utils.Mean(scores), 2),
		AvgChangePct: utils.Round(utils.Mean(changes), 2),
		AvgOrgShare:  utils.Round(utils.Mean(orgs), 2),
		Top:          day,
	}, nil
}

// Sentiment classifies the average comment score: at least 65 is positive,
// at most 45 negative
func (a *CommentAnalyzer) Sentiment(ctx context.Context) (*CommentSentiment, error) {
	summary, err := a.Summary(ctx, 0)
	if err != nil {
		return nil, err
	}

	out := &CommentSentiment{Sentiment: "neutral", Description: "多空平衡", AvgScore: summary.AvgScore}
	switch {
	case summary.AvgScore >= positiveCommentScore:
		out.Sentiment, out.Description = "positive", "市场情绪偏多"
	case summary.AvgScore <= negativeCommentScore:
		out.Sentiment, out.Description = "negative", "市场情绪偏空"
	}
	return out, nil
}
