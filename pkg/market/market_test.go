package market

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
	"github.com/jingkaihe/skilldesk/pkg/quotes/quotestest"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 2, 15, 0, 0, 0, time.Local) }

func TestSnapshotter_Generate(t *testing.T) {
	fake := &quotestest.Fake{
		Indices: []quotes.Index{
			{Code: "sh000001", Name: "上证指数", Price: 3345.6789, Change: 12.346, ChangePct: 0.3712},
		},
		Stats: &quotes.MarketStats{Total: 5000, Up: 3000, Down: 1800},
	}
	s := NewSnapshotter(fake, config.Default().Market, WithClock(fixedNow))

	snap, err := s.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02 15:00:00", snap.Timestamp)
	assert.Equal(t, []quotes.Index{
		{Code: "sh000001", Name: "上证指数", Price: 3345.68, Change: 12.35, ChangePct: 0.37},
	}, snap.Indices)
	assert.Equal(t, 3000, snap.Statistics.Up)
}

func TestSnapshotter_Failures(t *testing.T) {
	fake := &quotestest.Fake{
		Stats:  &quotes.MarketStats{Total: 1},
		Errors: map[string]error{"IndicesSnapshot": errors.New("timeout")},
	}
	snap, err := NewSnapshotter(fake, config.MarketConfig{}).Generate(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap.Indices)
	assert.Empty(t, snap.Indices)

	fake.Errors = map[string]error{"MarketStatistics": errors.New("timeout")}
	_, err = NewSnapshotter(fake, config.MarketConfig{}).Generate(context.Background())
	assert.EqualError(t, err, "failed to fetch market statistics: timeout")
}

func TestSentimentAnalyzer_Score(t *testing.T) {
	tests := []struct {
		name  string
		stats quotes.MarketStats
		want  Sentiment
	}{
		{
			name:  "empty market",
			stats: quotes.MarketStats{},
			want: Sentiment{
				BreadthRatio: 1, BreadthScore: 2.5,
				VolumeRatio: 0, VolumeScore: 1,
				LimitUpRatio: 0, LimitUpScore: 2.5,
				OverallScore: 2.05, Level: Fearful, Status: "恐慌",
			},
		},
		{
			name:  "strong market",
			stats: quotes.MarketStats{Total: 5000, Up: 3000, Down: 1500, LimitUp: 100, LimitDown: 10, Turnover: 1e12},
			want: Sentiment{
				BreadthRatio: 2, BreadthScore: 4,
				VolumeRatio: 2, VolumeScore: 5,
				LimitUpRatio: 0.018, LimitUpScore: 3.4,
				OverallScore: 4.12, Level: Greedy, Status: "贪婪",
			},
		},
		{
			name:  "weak market",
			stats: quotes.MarketStats{Total: 5000, Up: 1000, Down: 3000, LimitUp: 5, LimitDown: 80, Turnover: 3e11},
			want: Sentiment{
				BreadthRatio: 0.33, BreadthScore: 1,
				VolumeRatio: 0.6, VolumeScore: 1 + 0.6/0.7,
				LimitUpRatio: -0.015, LimitUpScore: 1.75,
				OverallScore: 1.48, Level: VeryFearful, Status: "极度恐慌",
			},
		},
		{
			name:  "no decliners",
			stats: quotes.MarketStats{Total: 10, Up: 10, Turnover: 5e11},
			want: Sentiment{
				BreadthRatio: 2, BreadthScore: 4,
				VolumeRatio: 1, VolumeScore: 3,
				LimitUpRatio: 0, LimitUpScore: 2.5,
				OverallScore: 3.25, Level: Neutral, Status: "中性",
			},
		},
	}

	a := NewSentimentAnalyzer(nil, config.Default().Market, WithClock(fixedNow))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Score(&tt.stats)
			assert.InDelta(t, tt.want.BreadthRatio, got.BreadthRatio, 1e-9)
			assert.InDelta(t, tt.want.BreadthScore, got.BreadthScore, 1e-9)
			assert.InDelta(t, tt.want.VolumeRatio, got.VolumeRatio, 1e-9)
			assert.InDelta(t, tt.want.VolumeScore, got.VolumeScore, 1e-9)
			assert.InDelta(t, tt.want.LimitUpRatio, got.LimitUpRatio, 1e-9)
			assert.InDelta(t, tt.want.LimitUpScore, got.LimitUpScore, 1e-9)
			assert.InDelta(t, tt.want.OverallScore, got.OverallScore, 1e-9)
			assert.Equal(t, tt.want.Level, got.Level)
			assert.Equal(t, tt.want.Status, got.Status)
			assert.Equal(t, "2026-03-02 15:00:00", got.Timestamp)
		})
	}
}

func TestLevelOf(t *testing.T) {
	assert.Equal(t, VeryFearful, LevelOf(2.0))
	assert.Equal(t, Fearful, LevelOf(2.01))
	assert.Equal(t, Fearful, LevelOf(3.0))
	assert.Equal(t, Neutral, LevelOf(4.0))
	assert.Equal(t, Greedy, LevelOf(4.5))
	assert.Equal(t, VeryGreedy, LevelOf(4.51))
}

func TestLevelWithin(t *testing.T) {
	levels := config.SentimentLevels{VeryFearful: 1, Fearful: 2, Neutral: 2.7, Greedy: 4}
	tests := []struct {
		score float64
		want  Level
	}{
		{0.5, VeryFearful},
		{1, VeryFearful},
		{1.5, Fearful},
		{2.65, Neutral},
		{3.5, Greedy},
		{4.01, VeryGreedy},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelWithin(tt.score, levels), "score=%v", tt.score)
	}

	fake := &quotestest.Fake{Stats: &quotes.MarketStats{Total: 10, Up: 5, Down: 5, Turnover: 5e11}}
	s, err := NewSentimentAnalyzer(fake, config.MarketConfig{SentimentLevels: levels}).Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Neutral, s.Level)
	assert.Equal(t, "中性", s.Status)

	s, err = NewSentimentAnalyzer(fake, config.MarketConfig{}).Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Fearful, s.Level)
}

func TestSentimentAnalyzer_Analyze(t *testing.T) {
	fake := &quotestest.Fake{Errors: map[string]error{"MarketStatistics": errors.New("down")}}
	_, err := NewSentimentAnalyzer(fake, config.MarketConfig{}).Analyze(context.Background())
	assert.EqualError(t, err, "failed to fetch market statistics: down")

	fake = &quotestest.Fake{Stats: &quotes.MarketStats{Total: 10, Up: 5, Down: 5, Turnover: 5e11}}
	s, err := NewSentimentAnalyzer(fake, config.MarketConfig{}).Analyze(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2.5*0.4+3*0.3+2.5*0.3, s.OverallScore, 1e-9)
}

func sectorFake() *quotestest.Fake {
	return &quotestest.Fake{
		Sectors: []quotes.Sector{
			{Code: "BK1", Name: "半导体", ChangePct: 5.126, Turnover: 1e10},
			{Code: "BK2", Name: "证券", ChangePct: 3},
			{Code: "BK3", Name: "软件开发", ChangePct: 2.0},
			{Code: "BK4", Name: "银行", ChangePct: 1.9},
		},
		Flows: []quotes.SectorFlow{
			{Rank: 1, Name: "半导体", NetInflow: 1.234567e9},
			{Rank: 2, Name: "银行", NetInflow: -3e8},
		},
		Constituents: map[string][]quotes.Constituent{
			"半导体": {
				{Symbol: "688981", Name: "中芯国际", ChangePct: 10},
				{Symbol: "603501", Name: "韦尔股份", ChangePct: 8},
				{Symbol: "002371", Name: "北方华创", ChangePct: 7},
				{Symbol: "688012", Name: "中微公司", ChangePct: 6},
			},
		},
		Errors: map[string]error{"SectorConstituents:证券": errors.New("boom")},
	}
}

func TestSectorTracker_HotSectors(t *testing.T) {
	tracker := NewSectorTracker(sectorFake(), config.Default().Market)

	hot, err := tracker.HotSectors(context.Background())
	require.NoError(t, err)
	require.Len(t, hot, 3)
	assert.Equal(t, []string{"半导体", "证券", "软件开发"}, []string{hot[0].Name, hot[1].Name, hot[2].Name})
	assert.Equal(t, 1, hot[0].Rank)
	assert.Equal(t, 1.234567e9, hot[0].NetInflow)
	assert.Zero(t, hot[1].NetInflow)

	hot, err = tracker.WithLimits(3, 1).HotSectors(context.Background())
	require.NoError(t, err)
	require.Len(t, hot, 1)
	assert.Equal(t, "半导体", hot[0].Name)

	hot, err = tracker.WithLimits(10, 0).HotSectors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, hot)
}

func TestSectorTracker_HotSectorsDetail(t *testing.T) {
	fake := sectorFake()
	tracker := NewSectorTracker(fake, config.Default().Market)

	hot, err := tracker.HotSectorsDetail(context.Background())
	require.NoError(t, err)
	require.Len(t, hot, 3)

	assert.Equal(t, 5.13, hot[0].ChangePct)
	assert.Equal(t, 1234567000.0, hot[0].NetInflow)
	require.Len(t, hot[0].LeadingStocks, 3)
	assert.Equal(t, "中芯国际", hot[0].LeadingStocks[0].Name)
	assert.Equal(t, []quotes.Constituent{}, hot[1].LeadingStocks)
	assert.Equal(t, []quotes.Constituent{}, hot[2].LeadingStocks)
}

func TestSectorTracker_FlowFailureIsTolerated(t *testing.T) {
	fake := sectorFake()
	fake.Errors["SectorCapitalFlow"] = errors.New("flow down")
	tracker := NewSectorTracker(fake, config.Default().Market)

	hot, err := tracker.HotSectors(context.Background())
	require.NoError(t, err)
	require.Len(t, hot, 3)
	for _, h := range hot {
		assert.True(t, h.FlowUnavailable, h.Name)
		assert.Zero(t, h.NetInflow)
	}

	_, err = tracker.FlowRanking(context.Background())
	assert.EqualError(t, err, "failed to fetch sector capital flow: flow down")

	fake.Errors["SectorRanking"] = errors.New("rank down")
	_, err = tracker.HotSectors(context.Background())
	assert.EqualError(t, err, "failed to fetch sector ranking: rank down")
}

func TestCommentAnalyzer(t *testing.T) {
	fake := &quotestest.Fake{
		Comments: []quotes.Comment{
			{Symbol: "600000", TradeDate: "2026-02-27", Score: 10},
			{Symbol: "600000", TradeDate: "2026-03-02", Score: 70, ChangePct: 1, OrgShare: 40},
			{Symbol: "000001", TradeDate: "2026-03-02", Score: 80, ChangePct: 3, OrgShare: 30},
			{Symbol: "600519", TradeDate: "2026-03-02", Score: 60, ChangePct: -1, OrgShare: 50},
		},
	}
	a := NewCommentAnalyzer(fake)

	summary, err := a.Summary(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", summary.TradeDate)
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, 70.0, summary.AvgScore)
	assert.Equal(t, 1.0, summary.AvgChangePct)
	assert.Equal(t, 40.0, summary.AvgOrgShare)
	require.Len(t, summary.Top, 2)
	assert.Equal(t, "000001", summary.Top[0].Symbol)
	assert.Equal(t, "600000", summary.Top[1].Symbol)

	sentiment, err := a.Sentiment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CommentSentiment{Sentiment: "positive", Description: "市场情绪偏多", AvgScore: 70}, *sentiment)

	fake.Comments = []quotes.Comment{{TradeDate: "2026-03-02", Score: 50}}
	sentiment, err = a.Sentiment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "neutral", sentiment.Sentiment)

	fake.Comments = []quotes.Comment{{TradeDate: "2026-03-02", Score: 45}}
	sentiment, err = a.Sentiment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "市场情绪偏空", sentiment.Description)

	fake.Comments = nil
	_, err = a.Summary(context.Background(), 5)
	assert.EqualError(t, err, "无千股千评数据")
}
