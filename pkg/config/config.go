// Package config holds the typed skilldesk configuration decoded from viper.
package config

import (
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skilldesk/pkg/telemetry"
)

// Config is the root configuration document (~/.skilldesk/config.yaml)
type Config struct {
	LogLevel   string           `mapstructure:"log_level"`
	LogFormat  string           `mapstructure:"log_format"`
	DataSource DataSourceConfig `mapstructure:"data_source"`
	Market     MarketConfig     `mapstructure:"market"`
	Technical  TechnicalConfig  `mapstructure:"technical"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Signals    SignalsConfig    `mapstructure:"signals"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Report     ReportConfig     `mapstructure:"report"`
	History    HistoryConfig    `mapstructure:"history"`
	Server     ServerConfig     `mapstructure:"server"`
	Tracing    telemetry.Config `mapstructure:"tracing"`
}

// DataSourceConfig configures the market-data HTTP client
type DataSourceConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	HistoryURL  string        `mapstructure:"history_url"`
	F10URL      string        `mapstructure:"f10_url"`
	DataURL     string        `mapstructure:"data_url"`
	SearchURL   string        `mapstructure:"search_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RetryTimes  uint          `mapstructure:"retry_times"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	CacheSize   int           `mapstructure:"cache_size"`
	PageSize    int           `mapstructure:"page_size"`
	Concurrency int           `mapstructure:"concurrency"`
}

// MarketConfig configures the market snapshot and sentiment score
type MarketConfig struct {
	Indices         []string         `mapstructure:"indices"`
	NormalTurnover  float64          `mapstructure:"normal_turnover"` // 亿元
	SentimentWeight SentimentWeights `mapstructure:"sentiment_weights"`
	SentimentLevels SentimentLevels  `mapstructure:"sentiment_levels"`
	HotThreshold    float64          `mapstructure:"hot_threshold"`
	HotTopN         int              `mapstructure:"hot_top_n"`
	LeadingStocks   int              `mapstructure:"leading_stocks"`
}

// SentimentLevels are the inclusive upper bounds of each sentiment level on
// the 0-5 scale; scores above Greedy are very greedy
type SentimentLevels struct {
	VeryFearful float64 `mapstructure:"very_fearful"`
	Fearful     float64 `mapstructure:"fearful"`
	Neutral     float64 `mapstructure:"neutral"`
	Greedy      float64 `mapstructure:"greedy"`
}

// DefaultSentimentLevels returns the stock level bounds
func DefaultSentimentLevels() SentimentLevels {
	return SentimentLevels{VeryFearful: 2.0, Fearful: 3.0, Neutral: 4.0, Greedy: 4.5}
}

// SentimentWeights are the sub-score weights of the sentiment score
type SentimentWeights struct {
	Breadth float64 `mapstructure:"breadth"`
	Volume  float64 `mapstructure:"volume"`
	LimitUp float64 `mapstructure:"limit_up"`
}

// TechnicalConfig configures indicator periods
type TechnicalConfig struct {
	MAPeriods      []int   `mapstructure:"ma_periods"`
	MACDFast       int     `mapstructure:"macd_fast"`
	MACDSlow       int     `mapstructure:"macd_slow"`
	MACDSignal     int     `mapstructure:"macd_signal"`
	RSIPeriod      int     `mapstructure:"rsi_period"`
	RSIOversold    float64 `mapstructure:"rsi_oversold"`
	RSIOverbought  float64 `mapstructure:"rsi_overbought"`
	BollPeriod     int     `mapstructure:"boll_period"`
	BollStdDev     float64 `mapstructure:"boll_std"`
	ATRPeriod      int     `mapstructure:"atr_period"`
	VolumeRatio    float64 `mapstructure:"volume_ratio"`
	SupportWindow  int     `mapstructure:"support_window"`
	LookbackCandle int     `mapstructure:"lookback"`
}

// ScoringConfig holds the weights used by the scoring engine
type ScoringConfig struct {
	Technical   TechnicalWeights   `mapstructure:"technical"`
	Fundamental FundamentalWeights `mapstructure:"fundamental"`
	Overall     OverallWeights     `mapstructure:"overall"`
}

// TechnicalWeights weighs the technical sub-scores
type TechnicalWeights struct {
	Trend    float64 `mapstructure:"trend"`
	Momentum float64 `mapstructure:"momentum"`
	Volume   float64 `mapstructure:"volume"`
}

// FundamentalWeights weighs the fundamental sub-scores
type FundamentalWeights struct {
	Valuation float64 `mapstructure:"valuation"`
	Growth    float64 `mapstructure:"growth"`
	Quality   float64 `mapstructure:"quality"`
}

// OverallWeights weighs technical against fundamental scores
type OverallWeights struct {
	Technical   float64 `mapstructure:"technical"`
	Fundamental float64 `mapstructure:"fundamental"`
}

// SignalsConfig holds buy and sell thresholds on the 0-10 signal score
type SignalsConfig struct {
	BuyThreshold  float64 `mapstructure:"buy_threshold"`
	SellThreshold float64 `mapstructure:"sell_threshold"`
}

// AnalysisConfig configures group analysis
type AnalysisConfig struct {
	Period      string `mapstructure:"period"`
	Adjust      string `mapstructure:"adjust"`
	Candles     int    `mapstructure:"candles"`
	Concurrency int    `mapstructure:"concurrency"`
	TopN        int    `mapstructure:"top_n"`
}

// ReportConfig configures report output
type ReportConfig struct {
	OutputDir   string `mapstructure:"output_dir"`
	TemplateDir string `mapstructure:"template_dir"`
}

// HistoryConfig configures the report-run store
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ServerConfig configures `skilldesk serve`
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "fmt")

	v.SetDefault("data_source.base_url", "https://push2.eastmoney.com")
	v.SetDefault("data_source.history_url", "https://push2his.eastmoney.com")
	v.SetDefault("data_source.f10_url", "https://emweb.securities.eastmoney.com")
	v.SetDefault("data_source.data_url", "https://datacenter-web.eastmoney.com")
	v.SetDefault("data_source.search_url", "https://search-api-web.eastmoney.com")
	v.SetDefault("data_source.timeout", 60*time.Second)
	v.SetDefault("data_source.retry_times", 3)
	v.SetDefault("data_source.retry_delay", 2*time.Second)
	v.SetDefault("data_source.cache_ttl", 30*time.Second)
	v.SetDefault("data_source.cache_size", 64)
	v.SetDefault("data_source.page_size", 100)
	v.SetDefault("data_source.concurrency", 4)

	v.SetDefault("market.indices", []string{"sh000001", "sz399001", "sz399006", "sh000688"})
	v.SetDefault("market.normal_turnover", 5000.0)
	v.SetDefault("market.sentiment_weights.breadth", 0.4)
	v.SetDefault("market.sentiment_weights.volume", 0.3)
	v.SetDefault("market.sentiment_weights.limit_up", 0.3)
	levels := DefaultSentimentLevels()
	v.SetDefault("market.sentiment_levels.very_fearful", levels.VeryFearful)
	v.SetDefault("market.sentiment_levels.fearful", levels.Fearful)
	v.SetDefault("market.sentiment_levels.neutral", levels.Neutral)
	v.SetDefault("market.sentiment_levels.greedy", levels.Greedy)
	v.SetDefault("market.hot_threshold", 2.0)
	v.SetDefault("market.hot_top_n", 5)
	v.SetDefault("market.leading_stocks", 3)

	v.SetDefault("technical.ma_periods", []int{5, 10, 20, 60})
	v.SetDefault("technical.macd_fast", 12)
	v.SetDefault("technical.macd_slow", 26)
	v.SetDefault("technical.macd_signal", 9)
	v.SetDefault("technical.rsi_period", 14)
	v.SetDefault("technical.rsi_oversold", 30.0)
	v.SetDefault("technical.rsi_overbought", 70.0)
	v.SetDefault("technical.boll_period", 20)
	v.SetDefault("technical.boll_std", 2.0)
	v.SetDefault("technical.atr_period", 14)
	v.SetDefault("technical.volume_ratio", 1.5)
	v.SetDefault("technical.support_window", 20)
	v.SetDefault("technical.lookback", 5)

	v.SetDefault("scoring.technical.trend", 0.4)
	v.SetDefault("scoring.technical.momentum", 0.3)
	v.SetDefault("scoring.technical.volume", 0.3)
	v.SetDefault("scoring.fundamental.valuation", 0.3)
	v.SetDefault("scoring.fundamental.growth", 0.4)
	v.SetDefault("scoring.fundamental.quality", 0.3)
	v.SetDefault("scoring.overall.technical", 0.6)
	v.SetDefault("scoring.overall.fundamental", 0.4)

	v.SetDefault("signals.buy_threshold", 7.0)
	v.SetDefault("signals.sell_threshold", 3.0)

	v.SetDefault("analysis.period", "daily")
	v.SetDefault("analysis.adjust", "qfq")
	v.SetDefault("analysis.candles", 120)
	v.SetDefault("analysis.concurrency", 4)
	v.SetDefault("analysis.top_n", 5)

	v.SetDefault("report.output_dir", "reports")
	v.SetDefault("report.template_dir", "")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8421)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "skilldesk")
	v.SetDefault("tracing.sampler", "ratio")
	v.SetDefault("tracing.ratio", 1.0)
}

// Init configures v for skilldesk: env prefix, config search paths and
// defaults. A missing config file is not an error.
func Init(v *viper.Viper, configFile string) error {
	v.SetEnvPrefix("SKILLDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.skilldesk")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && configFile == "" {
			return nil
		}
		return errors.Wrap(err, "failed to read config file")
	}
	return nil
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to unmarshal configuration")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns the configuration produced by defaults alone
func Default() Config {
	v := viper.New()
	SetDefaults(v)
	cfg, _ := Load(v)
	return cfg
}

// Validate checks weight sums, thresholds and periods
func (c Config) Validate() error {
	sums := map[string]float64{
		"market.sentiment_weights": c.Market.SentimentWeight.Breadth + c.Market.SentimentWeight.Volume + c.Market.SentimentWeight.LimitUp,
		"scoring.technical":        c.Scoring.Technical.Trend + c.Scoring.Technical.Momentum + c.Scoring.Technical.Volume,
		"scoring.fundamental":      c.Scoring.Fundamental.Valuation + c.Scoring.Fundamental.Growth + c.Scoring.Fundamental.Quality,
		"scoring.overall":          c.Scoring.Overall.Technical + c.Scoring.Overall.Fundamental,
	}
	for _, key := range []string{"market.sentiment_weights", "scoring.technical", "scoring.fundamental", "scoring.overall"} {
		if math.Abs(sums[key]-1) > 1e-6 {
			return errors.Errorf("%s weights must sum to 1, got %.3f", key, sums[key])
		}
	}

	l := c.Market.SentimentLevels
	if !(0 <= l.VeryFearful && l.VeryFearful < l.Fearful && l.Fearful < l.Neutral && l.Neutral < l.Greedy && l.Greedy <= 5) {
		return errors.Errorf("market.sentiment_levels must increase within 0-5, got %.2f/%.2f/%.2f/%.2f",
			l.VeryFearful, l.Fearful, l.Neutral, l.Greedy)
	}

	if c.Signals.SellThreshold >= c.Signals.BuyThreshold {
		return errors.Errorf("signals.sell_threshold (%.2f) must be below signals.buy_threshold (%.2f)",
			c.Signals.SellThreshold, c.Signals.BuyThreshold)
	}
	if len(c.Technical.MAPeriods) == 0 {
		return errors.New("technical.ma_periods must not be empty")
	}
	for i, p := range c.Technical.MAPeriods {
		if p <= 0 {
			return errors.Errorf("technical.ma_periods[%d] must be positive", i)
		}
		if i > 0 && p <= c.Technical.MAPeriods[i-1] {
			return errors.New("technical.ma_periods must be strictly increasing")
		}
	}
	if c.Technical.MACDFast >= c.Technical.MACDSlow {
		return errors.New("technical.macd_fast must be below technical.macd_slow")
	}
	if c.DataSource.RetryTimes == 0 {
		return errors.New("data_source.retry_times must be at least 1")
	}
	return nil
}
