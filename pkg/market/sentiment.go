package market

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
	"github.com/jingkaihe/skilldesk/pkg/utils"
)

// Level is a sentiment bucket
type Level string

// Sentiment levels from most fearful to most greedy
const (
	VeryFearful Level = "very_fearful"
	Fearful     Level = "fearful"
	Neutral     Level = "neutral"
	Greedy      Level = "greedy"
	VeryGreedy  Level = "very_greedy"
)

var levelStatus = map[Level]string{
	VeryFearful: "极度恐慌",
	Fearful:     "恐慌",
	Neutral:     "中性",
	Greedy:      "贪婪",
	VeryGreedy:  "极度贪婪",
}

// Status is the Chinese label of the level
func (l Level) Status() string {
	return levelStatus[l]
}

// LevelOf buckets a 0-5 sentiment score with the default level bounds
func LevelOf(score float64) Level {
	return LevelWithin(score, config.DefaultSentimentLevels())
}

// LevelWithin buckets a 0-5 sentiment score; each bound is inclusive
func LevelWithin(score float64, levels config.SentimentLevels) Level {
	switch {
	case score <= levels.VeryFearful:
		return VeryFearful
	case score <= levels.Fearful:
		return Fearful
	case score <= levels.Neutral:
		return Neutral
	case score <= levels.Greedy:
		return Greedy
	default:
		return VeryGreedy
	}
}

// Sentiment is the market sentiment score (0-5) and its components
type Sentiment struct {
	BreadthRatio float64 `json:"breadth_ratio"`
	BreadthScore float64 `json:"breadth_score"`
	VolumeRatio  float64 `json:"volume_ratio"`
	VolumeScore  float64 `json:"volume_score"`
	LimitUpRatio float64 `json:"limit_up_ratio"`
	LimitUpScore float64 `json:"limit_up_score"`
	OverallScore float64 `json:"overall_score"`
	Level        Level   `json:"level"`
	Status       string  `json:"status"`
	Timestamp    string  `json:"timestamp"`
}

// SentimentAnalyzer scores market sentiment from breadth, turnover and
// limit moves
type SentimentAnalyzer struct {
	provider       quotes.Provider
	weights        config.SentimentWeights
	levels         config.SentimentLevels
	normalTurnover float64 // yuan
	now            func() time.Time
}

// NewSentimentAnalyzer creates an analyzer. Normal turnover defaults to
// 5000亿, weights to 0.4/0.3/0.3 and level bounds to 2/3/4/4.5.
func NewSentimentAnalyzer(provider quotes.Provider, cfg config.MarketConfig, opts ...Option) *SentimentAnalyzer {
	o := newOptions(opts)
	a := &SentimentAnalyzer{
		provider:       provider,
		weights:        cfg.SentimentWeight,
		levels:         cfg.SentimentLevels,
		normalTurnover: cfg.NormalTurnover * 1e8,
		now:            o.now,
	}
	if a.weights == (config.SentimentWeights{}) {
		a.weights = config.SentimentWeights{Breadth: 0.4, Volume: 0.3, LimitUp: 0.3}
	}
	if a.levels == (config.SentimentLevels{}) {
		a.levels = config.DefaultSentimentLevels()
	}
	if a.normalTurnover <= 0 {
		a.normalTurnover = 5000 * 1e8
	}
	return a
}

// Analyze fetches market statistics and scores them
func (a *SentimentAnalyzer) Analyze(ctx context.Context) (*Sentiment, error) {
	stats, err := a.provider.MarketStatistics(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch market statistics")
	}
	return a.Score(stats), nil
}

// Score computes sentiment from market statistics
func (a *SentimentAnalyzer) Score(stats *quotes.MarketStats) *Sentiment {
	breadthRatio, breadthScore := breadth(stats)
	volumeRatio, volumeScore := a.volume(stats)
	limitRatio, limitScore := limitUp(stats)

	overall := breadthScore*a.weights.Breadth + volumeScore*a.weights.Volume + limitScore*a.weights.LimitUp
	level := LevelWithin(overall, a.levels)
	return &Sentiment{
		BreadthRatio: breadthRatio,
		BreadthScore: breadthScore,
		VolumeRatio:  volumeRatio,
		VolumeScore:  volumeScore,
		LimitUpRatio: limitRatio,
		LimitUpScore: limitScore,
		OverallScore: utils.Round(overall, 2),
		Level:        level,
		Status:       level.Status(),
		Timestamp:    a.now().Format(TimeLayout),
	}
}

// breadth scores the advance/decline ratio: 0.5 or less scores 1, parity
// 2.5, 2 scores 4, capped at 5
func breadth(stats *quotes.MarketStats) (ratio, score float64) {
	if stats.Total == 0 {
		return 1.0, 2.5
	}
	ratio = 2.0
	if stats.Down > 0 {
		ratio = float64(stats.Up) / float64(stats.Down)
	}

	switch {
	case ratio <= 0.5:
		score = 1.0
	case ratio <= 1.0:
		score = 1.0 + (ratio-0.5)*3
	case ratio <= 2.0:
		score = 2.5 + (ratio-1.0)*1.5
	default:
		score = math.Min(4.0+(ratio-2.0)*0.5, 5.0)
	}
	return utils.Round(ratio, 2), score
}

// volume scores turnover against a normal session
func (a *SentimentAnalyzer) volume(stats *quotes.MarketStats) (ratio, score float64) {
	ratio = stats.Turnover / a.normalTurnover

	switch {
	case ratio < 0.7:
		score = 1.0 + ratio/0.7
	case ratio < 1.0:
		score = 2.0 + (ratio-0.7)/0.3
	case ratio < 1.5:
		score = 3.0 + (ratio-1.0)/0.5
	default:
		score = math.Min(4.0+(ratio-1.5)/0.5, 5.0)
	}
	return utils.Round(ratio, 2), score
}

// limitUp scores net limit-up stocks as a share of all stocks
func limitUp(stats *quotes.MarketStats) (ratio, score float64) {
	if stats.Total == 0 {
		return 0, 2.5
	}
	ratio = float64(stats.LimitUp-stats.LimitDown) / float64(stats.Total)

	switch {
	case ratio < -0.01:
		score = math.Max(1.0, 2.5+(ratio+0.01)*150)
	case ratio < 0:
		score = 2.5 + (ratio+0.01)*50
	case ratio < 0.03:
		score = 2.5 + ratio/0.03*1.5
	default:
		score = math.Min(4.0+(ratio-0.03)/0.02, 5.0)
	}
	return utils.Round(ratio, 4), score
}
