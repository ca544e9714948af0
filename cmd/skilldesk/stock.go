package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skilldesk/pkg/history"
	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/portfolio"
	"github.com/jingkaihe/skilldesk/pkg/presenter"
	"github.com/jingkaihe/skilldesk/pkg/quotes"
	"github.com/jingkaihe/skilldesk/pkg/technical"
)

// customGroupName names groups given on the command line without -n
const customGroupName = "自定义分组"

var stockCmd = &cobra.Command{
	Use:   "stock",
	Short: "A-share market reports, technical signals and watch-list analysis",
	Long: `The stock-analysis plugin: daily market reports, quick terminal overviews,
single stock analysis, technical scans and watch-list reports backed by
public A-share market data.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var stockAnalyzeCmd = &cobra.Command{
	Use:   "analyze <symbol>",
	Short: "Analyse a single stock in depth",
	Long: `Analyse one stock: latest quote, overall score, trading signal, industry
comparisons, Dupont breakdown, business composition and news sentiment.

Examples:
  skilldesk stock analyze 600519
  skilldesk stock analyze sz000001 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol, err := quotes.NormalizeSymbol(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		analyzer := portfolio.NewAnalyzer(newProvider(), cfg)

		result := stockAnalysis{
			Comprehensive: analyzer.Comprehensive(ctx, symbol),
			Score:         analyzer.Scoring().Overall(ctx, symbol),
		}
		signal, err := analyzer.Signals().AnalyzeStock(ctx, symbol)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("symbol", symbol).Warn("no trading signal")
		}
		result.Signal = signal
		recordRun(ctx, history.KindAnalyze, symbol, result)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, result)
		}
		printAnalysis(result)
		return nil
	},
}

type stockAnalysis struct {
	*portfolio.Comprehensive
	Score  *portfolio.OverallScore `json:"score"`
	Signal *portfolio.StockSignal  `json:"signal,omitempty"`
}

func printAnalysis(a stockAnalysis) {
	title := a.Symbol
	if a.Basic != nil {
		title = fmt.Sprintf("%s %s  %.2f  %s", a.Basic.Symbol, a.Basic.Name, a.Basic.Price, signed(a.Basic.ChangePct))
	}
	presenter.Section(title)
	presenter.Info(fmt.Sprintf("综合评分 %.2f (技术 %.2f / 基本面 %.2f)", a.Score.Score, a.Score.Technical, a.Score.Fundamental))

	if s := a.Signal; s != nil {
		presenter.Info(fmt.Sprintf("建议 %s  风险 %s  %s", s.Recommendation, s.RiskLevel, s.Reason))
		presenter.Info(fmt.Sprintf("买入区间 %s  目标 %s  止损 %s", s.EntryZone, s.TargetZone, s.StopLoss))
		if len(s.Signals) > 0 {
			rows := make([][]string, 0, len(s.Signals))
			for _, p := range s.Signals {
				rows = append(rows, []string{p.Name, fmt.Sprint(p.Strength), p.Reason})
			}
			presenter.Table([]string{"SIGNAL", "STRENGTH", "REASON"}, rows)
		}
	}
	if d := a.Dupont; d != nil {
		presenter.Info(fmt.Sprintf("杜邦分析 ROE %s  净利率 %s", optional(d.ROE), optional(d.NetProfitMargin)))
	}
	if n := a.NewsSentiment; n != nil {
		presenter.Info(fmt.Sprintf("新闻情绪 %s (%d 条, 正面 %d, 负面 %d)", n.SentimentText, n.TotalNews, n.PositiveCount, n.NegativeCount))
	}
	if n := a.LatestNews; n != nil {
		presenter.Info(fmt.Sprintf("最新资讯 %s %s", n.Time, n.Title))
	}
	for section, msg := range a.Errors {
		presenter.Warning(fmt.Sprintf("%s unavailable: %s", section, msg))
	}
}

var stockScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a watch list for golden crosses, oversold stocks and breakouts",
	Long: `Scan symbols for one pattern family.

Examples:
  skilldesk stock scan -s 600519,000001 --pattern golden-cross
  skilldesk stock scan -f watchlist.txt --pattern oversold`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		symbols, name, err := symbolsFromFlags(cmd)
		if err != nil {
			return err
		}
		pattern, _ := cmd.Flags().GetString("pattern")

		scanner := technical.NewScanner(newProvider(), cfg.Technical,
			technical.WithCount(cfg.Analysis.Candles),
			technical.WithConcurrency(cfg.Analysis.Concurrency),
		)
		var matches []technical.Match
		switch pattern {
		case "golden-cross":
			matches = scanner.FindGoldenCross(cmd.Context(), symbols)
		case "oversold":
			matches = scanner.FindOversold(cmd.Context(), symbols)
		case "breakout":
			matches = scanner.FindBreakout(cmd.Context(), symbols)
		default:
			return errors.Errorf("unknown pattern %q (golden-cross, oversold or breakout)", pattern)
		}
		recordRun(cmd.Context(), history.KindScan, name, scanRun{Pattern: pattern, Symbols: symbols, Matches: matches})

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, matches)
		}
		if len(matches) == 0 {
			presenter.Info(fmt.Sprintf("No %s among %d symbols", pattern, len(symbols)))
			return nil
		}
		rows := make([][]string, 0, len(matches))
		for _, m := range matches {
			names := make([]string, 0, len(m.Signals))
			for _, s := range m.Signals {
				names = append(names, s.Name)
			}
			rows = append(rows, []string{m.Symbol, m.Name, fmt.Sprintf("%.2f", m.Price), signed(m.ChangePct), strings.Join(names, ", ")})
		}
		presenter.Table([]string{"SYMBOL", "NAME", "PRICE", "CHANGE", "SIGNALS"}, rows)
		return nil
	},
}

type scanRun struct {
	Pattern string            `json:"pattern"`
	Symbols []string          `json:"symbols"`
	Matches []technical.Match `json:"matches"`
}

var newProvider = func() quotes.Provider {
	return quotes.NewClient(cfg.DataSource)
}

// symbolsFromFlags reads -s or -f and returns the normalised symbols and a
// group name: -n, else the symbols file stem, else customGroupName
func symbolsFromFlags(cmd *cobra.Command) ([]string, string, error) {
	list, _ := cmd.Flags().GetString("symbols")
	file, _ := cmd.Flags().GetString("file")
	name, _ := cmd.Flags().GetString("name")

	var raw []string
	switch {
	case list != "" && file != "":
		return nil, "", errors.New("use either --symbols or --file, not both")
	case list != "":
		for _, s := range strings.Split(list, ",") {
			if s = strings.TrimSpace(s); s != "" {
				raw = append(raw, s)
			}
		}
	case file != "":
		symbols, err := portfolio.ReadSymbolsFile(file)
		if err != nil {
			return nil, "", err
		}
		raw = symbols
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}
	default:
		return nil, "", errors.New("no symbols given, use --symbols or --file")
	}
	if name == "" {
		name = customGroupName
	}

	symbols := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, s := range raw {
		normalized, err := quotes.NormalizeSymbol(s)
		if err != nil {
			return nil, "", err
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		symbols = append(symbols, normalized)
	}
	if len(symbols) == 0 {
		return nil, "", errors.New("no symbols given")
	}
	return symbols, name, nil
}

func addSymbolFlags(cmd *cobra.Command, withName bool) {
	cmd.Flags().StringP("symbols", "s", "", "Comma separated stock symbols, e.g. 600519,000001")
	cmd.Flags().StringP("file", "f", "", "File with one symbol per line")
	if withName {
		cmd.Flags().StringP("name", "n", "", "Group name (default: the symbols file name)")
	}
}

// recordRun stores a report in the history database when enabled. Failures
// are logged; the report itself was already produced.
func recordRun(ctx context.Context, kind, groupName string, payload any) {
	if !cfg.History.Enabled {
		return
	}
	store, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("report not recorded in history")
		return
	}
	defer store.Close()

	run, err := store.Save(ctx, kind, groupName, payload)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("report not recorded in history")
		return
	}
	logger.G(ctx).WithField("id", run.ID).WithField("kind", kind).Debug("report recorded in history")
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode output")
	}
	return nil
}

func signed(pct float64) string {
	if pct > 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *v)
}

func init() {
	stockAnalyzeCmd.Flags().Bool("json", false, "Print the analysis as JSON")

	addSymbolFlags(stockScanCmd, false)
	stockScanCmd.Flags().String("pattern", "golden-cross", "Pattern family: golden-cross, oversold or breakout")
	stockScanCmd.Flags().Bool("json", false, "Print matches as JSON")

	stockCmd.AddCommand(stockReportCmd)
	stockCmd.AddCommand(stockQuickCmd)
	stockCmd.AddCommand(stockAnalyzeCmd)
	stockCmd.AddCommand(stockScanCmd)
	stockCmd.AddCommand(stockHistoryCmd)
}
