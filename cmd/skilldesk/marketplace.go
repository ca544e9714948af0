package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skilldesk/pkg/lint"
	"github.com/jingkaihe/skilldesk/pkg/plugins"
	"github.com/jingkaihe/skilldesk/pkg/presenter"
)

var marketplaceCmd = &cobra.Command{
	Use:   "marketplace",
	Short: "Validate, format and inspect .claude-plugin/marketplace.json",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var marketplaceValidateCmd = &cobra.Command{
	Use:   "validate [root]",
	Short: "Validate a marketplace and every local plugin it lists",
	Long: `Validate the marketplace listing at <root>/.claude-plugin/marketplace.json.
Local plugin sources are resolved and validated with their skills, commands,
agents and hooks. The exit status is non-zero when any error is found.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return printReports(cmd.OutOrStdout(), []lint.Report{plugins.ValidateMarketplace(rootArg(args))}, asJSON)
	},
}

var marketplaceListCmd = &cobra.Command{
	Use:   "list [root]",
	Short: "List the local plugins of a marketplace",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, err := plugins.ResolvePlugins(cmd.Context(), rootArg(args))
		if err != nil && len(resolved) == 0 {
			return err
		}
		if err != nil {
			presenter.Warning(err.Error())
		}

		rows := make([][]string, 0, len(resolved))
		for _, p := range resolved {
			version := "-"
			if p.Manifest != nil && p.Manifest.Version != "" {
				version = p.Manifest.Version
			}
			rows = append(rows, []string{
				p.Name,
				version,
				fmt.Sprint(len(p.Skills)),
				strings.Join(p.Commands, ", "),
				p.Root,
			})
		}
		presenter.Table([]string{"PLUGIN", "VERSION", "SKILLS", "COMMANDS", "ROOT"}, rows)
		return nil
	},
}

var marketplaceFmtCmd = &cobra.Command{
	Use:   "fmt [root]",
	Short: "Format marketplace.json and the manifests of local plugins",
	Long: `Rewrite marketplace.json and every local plugin.json it lists with two-space
indentation and a trailing newline. Key order is kept.

With --check nothing is written: the diffs are printed and the exit status is
non-zero when any file needs formatting.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		check, _ := cmd.Flags().GetBool("check")
		changes, err := plugins.FormatMarketplace(rootArg(args))
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			presenter.Success("All manifests are formatted")
			return nil
		}

		for _, c := range changes {
			if check {
				fmt.Fprint(cmd.OutOrStdout(), c.Diff())
				continue
			}
			if err := c.Apply(); err != nil {
				return err
			}
			presenter.Success(fmt.Sprintf("Formatted %s", c.Path))
		}
		if check {
			presenter.Warning(fmt.Sprintf("%d file(s) need formatting, run skilldesk marketplace fmt", len(changes)))
			return errValidation
		}
		return nil
	},
}

var marketplaceSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of .claude-plugin/marketplace.json",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printSchema(cmd, plugins.SchemaMarketplace)
	},
}

func rootArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

func init() {
	marketplaceValidateCmd.Flags().Bool("json", false, "Print the report as JSON")
	marketplaceFmtCmd.Flags().Bool("check", false, "Print diffs instead of writing and fail when formatting is needed")

	marketplaceCmd.AddCommand(marketplaceValidateCmd)
	marketplaceCmd.AddCommand(marketplaceListCmd)
	marketplaceCmd.AddCommand(marketplaceFmtCmd)
	marketplaceCmd.AddCommand(marketplaceSchemaCmd)
}
