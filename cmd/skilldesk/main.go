package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skilldesk/pkg/config"
	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/presenter"
	"github.com/jingkaihe/skilldesk/pkg/telemetry"
	"github.com/jingkaihe/skilldesk/pkg/version"
)

var (
	v   = viper.New()
	cfg = config.Default()

	shutdownTracer = func(context.Context) error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "skilldesk",
	Short: "Validate agent skills, plugins and hooks, and run the stock-analysis plugin",
	Long: `skilldesk checks skill folders, plugin manifests, marketplace listings and
hooks configuration before they are published, runs hooks locally, and ships
the stock-analysis plugin: A-share market reports, technical signals and
watch-list scoring.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		if err := config.Init(v, configFile); err != nil {
			return err
		}
		loaded, err := config.Load(v)
		if err != nil {
			return errors.Wrap(err, "invalid configuration")
		}
		cfg = loaded

		if err := logger.Setup(v.GetString("log_level"), v.GetString("log_format")); err != nil {
			return err
		}

		tracing := cfg.Tracing
		tracing.ServiceVersion = version.Get().Version
		shutdown, err := telemetry.InitTracer(cmd.Context(), tracing)
		if err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("tracing disabled")
			return nil
		}
		shutdownTracer = shutdown
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default $HOME/.skilldesk/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt or json)")

	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(pluginCmd)
	rootCmd.AddCommand(marketplaceCmd)
	rootCmd.AddCommand(hooksCmd)
	rootCmd.AddCommand(stockCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	instrument(rootCmd)

	err := rootCmd.ExecuteContext(ctx)
	if shutdownErr := shutdownTracer(context.Background()); shutdownErr != nil {
		logger.G(ctx).WithError(shutdownErr).Warn("failed to flush traces")
	}
	stop()

	if err != nil {
		if !errors.Is(err, errValidation) {
			presenter.Error(err, "")
		}
		os.Exit(1)
	}
}
