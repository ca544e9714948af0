package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skilldesk/pkg/history"
	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/market"
	"github.com/jingkaihe/skilldesk/pkg/portfolio"
	"github.com/jingkaihe/skilldesk/pkg/presenter"
	"github.com/jingkaihe/skilldesk/pkg/utils"
)

const quickRankSize = 3

var stockQuickCmd = &cobra.Command{
	Use:   "quick",
	Short: "Quick terminal overviews",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var stockQuickMarketCmd = &cobra.Command{
	Use:   "market",
	Short: "Show indices, breadth and sentiment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		provider := newProvider()

		snap, err := market.NewSnapshotter(provider, cfg.Market).Generate(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to fetch market snapshot")
		}

		presenter.Section("大盘概览 " + snap.Timestamp)
		rows := make([][]string, 0, len(snap.Indices))
		for _, idx := range snap.Indices {
			rows = append(rows, []string{idx.Name, fmt.Sprintf("%.2f", idx.Price), signed(idx.ChangePct)})
		}
		presenter.Table([]string{"指数", "点位", "涨跌幅"}, rows)

		s := snap.Statistics
		presenter.Info(fmt.Sprintf("上涨 %d  下跌 %d  平盘 %d", s.Up, s.Down, s.Unchanged))
		presenter.Info(fmt.Sprintf("涨停 %d  跌停 %d  成交额 %.0f亿", s.LimitUp, s.LimitDown, utils.Yi(s.Turnover)))

		sentiment := market.NewSentimentAnalyzer(provider, cfg.Market).Score(s)
		presenter.Info(fmt.Sprintf("市场情绪 %.2f/5 %s", sentiment.OverallScore, sentiment.Status))
		recordRun(ctx, history.KindQuick, "", quickMarketRun{Snapshot: snap, Sentiment: sentiment})

		if comments, _ := cmd.Flags().GetBool("comments"); comments {
			mood, err := market.NewCommentAnalyzer(provider).Sentiment(ctx)
			if err != nil {
				logger.G(ctx).WithError(err).Warn("comment sentiment unavailable")
				return nil
			}
			presenter.Info(fmt.Sprintf("千股千评 %s (平均 %.1f) %s", mood.Sentiment, mood.AvgScore, mood.Description))
		}
		return nil
	},
}

var stockQuickGroupCmd = &cobra.Command{
	Use:   "group",
	Short: "Show the performance of a watch list",
	Long: `Show how a watch list trades today: advancing and declining counts, the
average change and the best and worst members.

Examples:
  skilldesk stock quick group -s 600519,000858
  skilldesk stock quick group -f watchlist.txt`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		symbols, name, err := symbolsFromFlags(cmd)
		if err != nil {
			return err
		}
		performers := portfolio.NewAnalyzer(newProvider(), cfg).Quotes(cmd.Context(), symbols)
		if len(performers) == 0 {
			return errors.New("no quotes available for the group")
		}
		summary := portfolio.Summarize(performers, len(symbols))
		recordRun(cmd.Context(), history.KindQuick, name, quickGroupRun{Summary: summary, Performers: performers})

		presenter.Section(fmt.Sprintf("%s (%d 只)", name, summary.Total))
		presenter.Info(fmt.Sprintf("上涨 %d  下跌 %d  平均涨跌幅 %s", summary.Up, summary.Down, signed(summary.AvgChange)))
		printPerformers("领涨", portfolio.TopPerformers(performers, quickRankSize))
		printPerformers("领跌", portfolio.Laggards(performers, quickRankSize))
		return nil
	},
}

type quickMarketRun struct {
	Snapshot  *market.Snapshot  `json:"snapshot"`
	Sentiment *market.Sentiment `json:"sentiment"`
}

type quickGroupRun struct {
	Summary    portfolio.GroupSummary `json:"summary"`
	Performers []portfolio.Performer  `json:"performers"`
}

func printPerformers(title string, performers []portfolio.Performer) {
	rows := make([][]string, 0, len(performers))
	for _, p := range performers {
		rows = append(rows, []string{p.Symbol, presenter.Pad(p.Name, 8), fmt.Sprintf("%.2f", p.Price), signed(p.ChangePct)})
	}
	presenter.Info(title)
	presenter.Table([]string{"代码", "名称", "价格", "涨跌幅"}, rows)
}

func init() {
	stockQuickMarketCmd.Flags().Bool("comments", false, "Include the 千股千评 comment sentiment")
	addSymbolFlags(stockQuickGroupCmd, true)

	stockQuickCmd.AddCommand(stockQuickMarketCmd)
	stockQuickCmd.AddCommand(stockQuickGroupCmd)
}
