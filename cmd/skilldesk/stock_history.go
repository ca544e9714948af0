package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skilldesk/pkg/db"
	"github.com/jingkaihe/skilldesk/pkg/db/migrations"
	"github.com/jingkaihe/skilldesk/pkg/history"
	"github.com/jingkaihe/skilldesk/pkg/presenter"
)

var stockHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List and show recorded reports",
	Long:  `Reports are recorded in a local SQLite database when history.enabled is set.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var stockHistoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded reports, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := history.Open(cmd.Context(), cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.List(cmd.Context(), kind, limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			presenter.Info("No reports recorded")
			return nil
		}
		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			group := r.GroupName
			if group == "" {
				group = "-"
			}
			rows = append(rows, []string{r.ID, r.Kind, group, r.CreatedAt.Local().Format("2006-01-02 15:04:05")})
		}
		presenter.Table([]string{"ID", "KIND", "GROUP", "CREATED"}, rows)
		return nil
	},
}

var stockHistoryShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a recorded report as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(cmd.Context(), cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd, run)
	},
}

var stockHistoryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the migration status of the history database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, err := db.ResolvePath(cfg.History.Path)
		if err != nil {
			return err
		}
		conn, err := db.Open(ctx, path)
		if err != nil {
			return err
		}
		defer conn.Close()

		applied, err := db.Applied(ctx, conn)
		if err != nil {
			return err
		}
		appliedAt := make(map[int64]string, len(applied))
		for _, m := range applied {
			appliedAt[m.Version] = m.AppliedAt.Local().Format("2006-01-02 15:04:05")
		}

		presenter.Section("History database")
		presenter.Info(path)
		all := migrations.All()
		rows := make([][]string, 0, len(all))
		for _, m := range all {
			at, ok := appliedAt[m.Version]
			if !ok {
				at = "pending"
			}
			rows = append(rows, []string{fmt.Sprint(m.Version), m.Description, at})
		}
		presenter.Table([]string{"VERSION", "DESCRIPTION", "APPLIED"}, rows)
		presenter.Info(fmt.Sprintf("Applied: %d/%d migrations", len(applied), len(all)))
		return nil
	},
}

func init() {
	stockHistoryListCmd.Flags().String("kind", "", "Only list reports of one kind: "+strings.Join(history.Kinds, ", "))
	stockHistoryListCmd.Flags().Int("limit", 20, "Maximum number of reports, 0 for all")

	stockHistoryCmd.AddCommand(stockHistoryListCmd)
	stockHistoryCmd.AddCommand(stockHistoryShowCmd)
	stockHistoryCmd.AddCommand(stockHistoryStatusCmd)
}
