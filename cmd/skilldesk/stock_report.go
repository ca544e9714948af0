package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skilldesk/pkg/history"
	"github.com/jingkaihe/skilldesk/pkg/portfolio"
	"github.com/jingkaihe/skilldesk/pkg/presenter"
	"github.com/jingkaihe/skilldesk/pkg/report"
)

var stockReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate market and watch-list reports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var stockReportMarketCmd = &cobra.Command{
	Use:   "market",
	Short: "Generate the daily market report",
	Long: `Generate the daily market report: index overview, market breadth, sentiment,
hot sectors and the industry capital flow ranking.

Examples:
  skilldesk stock report market
  skilldesk stock report market --brief --render
  skilldesk stock report market --format csv -o market.csv
  skilldesk stock report market --save`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts, err := reportOptionsFromFlags(cmd)
		if err != nil {
			return err
		}
		brief, _ := cmd.Flags().GetBool("brief")

		renderer, err := report.NewRenderer(cfg.Report.TemplateDir)
		if err != nil {
			return err
		}
		reporter := report.NewMarketReporter(newProvider(), cfg.Market, renderer)
		result, err := reporter.Generate(cmd.Context())
		if err != nil {
			return errors.Wrap(err, "failed to generate market report")
		}
		recordRun(cmd.Context(), history.KindMarket, "", result)

		return opts.emit(cmd, "market",
			func() (string, error) { return reporter.Markdown(result, brief) },
			func(w io.Writer) error { return reporter.CSV(w, result) },
			func(path string) error { return reporter.Save(result, opts.format, path, brief) },
		)
	},
}

var stockReportGroupCmd = &cobra.Command{
	Use:   "group",
	Short: "Generate a watch-list report",
	Long: `Generate a report for a group of stocks: performance summary, trading
signals, fundamental scores and optionally industry peer comparisons.

Examples:
  skilldesk stock report group -s 600519,000858,000001 -n 白酒银行
  skilldesk stock report group -f watchlist.txt --signals-only --render
  skilldesk stock report group -f watchlist.txt --format csv -o group.csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		symbols, name, err := symbolsFromFlags(cmd)
		if err != nil {
			return err
		}
		opts, err := reportOptionsFromFlags(cmd)
		if err != nil {
			return err
		}
		signalsOnly, _ := cmd.Flags().GetBool("signals-only")
		peers, _ := cmd.Flags().GetBool("peers")

		renderer, err := report.NewRenderer(cfg.Report.TemplateDir)
		if err != nil {
			return err
		}
		reporter := report.NewGroupReporter(portfolio.NewAnalyzer(newProvider(), cfg), renderer)
		result := reporter.Generate(cmd.Context(), symbols, name, peers)
		recordRun(cmd.Context(), history.KindGroup, name, result)

		return opts.emit(cmd, "group",
			func() (string, error) { return reporter.Markdown(result, signalsOnly) },
			func(w io.Writer) error { return reporter.CSV(w, result) },
			func(path string) error { return reporter.Save(result, opts.format, path, signalsOnly) },
		)
	},
}

type reportOptions struct {
	format string
	output string
	save   bool
	render bool
	style  string
}

func reportOptionsFromFlags(cmd *cobra.Command) (reportOptions, error) {
	var o reportOptions
	o.format, _ = cmd.Flags().GetString("format")
	o.output, _ = cmd.Flags().GetString("output")
	o.save, _ = cmd.Flags().GetBool("save")
	o.render, _ = cmd.Flags().GetBool("render")
	o.style, _ = cmd.Flags().GetString("style")

	if o.format != report.FormatMarkdown && o.format != report.FormatCSV {
		return o, errors.Errorf("unsupported report format %q (markdown or csv)", o.format)
	}
	if o.render && o.format == report.FormatCSV {
		return o, errors.New("--render only applies to markdown reports")
	}
	return o, nil
}

// emit saves the report to --output or the report directory, or prints it
func (o reportOptions) emit(cmd *cobra.Command, kind string, markdown func() (string, error), csv func(io.Writer) error, save func(path string) error) error {
	path := o.output
	if path == "" && o.save {
		path = report.DefaultPath(cfg.Report.OutputDir, kind, report.Extension(o.format), time.Now())
	}
	if path != "" {
		if err := save(path); err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Report saved to %s", path))
		return nil
	}

	out := cmd.OutOrStdout()
	if o.format == report.FormatCSV {
		return csv(out)
	}
	content, err := markdown()
	if err != nil {
		return err
	}
	if o.render {
		content, err = report.Terminal(content, o.style, 100)
		if err != nil {
			return err
		}
	}
	_, err = fmt.Fprint(out, content)
	return err
}

func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", report.FormatMarkdown, "Output format: markdown or csv")
	cmd.Flags().StringP("output", "o", "", "Write the report to this file")
	cmd.Flags().Bool("save", false, "Write the report to the report directory with a timestamped name")
	cmd.Flags().Bool("render", false, "Render markdown for the terminal")
	cmd.Flags().String("style", styleFromEnv(), "Terminal style for --render: dark, light or notty")
}

func styleFromEnv() string {
	if s := os.Getenv("GLAMOUR_STYLE"); s != "" {
		return s
	}
	return "dark"
}

func init() {
	addReportFlags(stockReportMarketCmd)
	stockReportMarketCmd.Flags().Bool("brief", false, "Only the market overview and sentiment")

	addSymbolFlags(stockReportGroupCmd, true)
	addReportFlags(stockReportGroupCmd)
	stockReportGroupCmd.Flags().Bool("signals-only", false, "Only the trading signals")
	stockReportGroupCmd.Flags().Bool("peers", false, "Include industry peer comparisons")

	stockReportCmd.AddCommand(stockReportMarketCmd)
	stockReportCmd.AddCommand(stockReportGroupCmd)
}
