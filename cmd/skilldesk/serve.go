package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skilldesk/pkg/history"
	"github.com/jingkaihe/skilldesk/pkg/logger"
	"github.com/jingkaihe/skilldesk/pkg/server"
	"github.com/jingkaihe/skilldesk/pkg/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the stock analysis JSON API",
	Long: `Serve market snapshots, sentiment, hot sectors, single stock signals, group
analysis and recorded reports as JSON, plus Prometheus metrics on /metrics.

Examples:
  skilldesk serve
  skilldesk serve --host 0.0.0.0 --port 9000`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if err := server.Validate(cfg.Server); err != nil {
			return err
		}

		var store *history.Store
		if cfg.History.Enabled {
			s, err := history.Open(ctx, cfg.History.Path)
			if err != nil {
				return err
			}
			defer s.Close()
			store = s
		}

		srv, err := server.New(newProvider(), cfg, store)
		if err != nil {
			return err
		}

		if open, _ := cmd.Flags().GetBool("open"); open {
			go func() {
				time.Sleep(500 * time.Millisecond)
				url := fmt.Sprintf("http://%s/api/market/snapshot", srv.Address())
				if err := utils.OpenBrowser(url); err != nil {
					logger.G(ctx).WithError(err).Warn("failed to open browser")
				}
			}()
		}
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().Int("port", 8421, "Port to listen on")
	serveCmd.Flags().Bool("open", false, "Open the market snapshot in a browser")
}
