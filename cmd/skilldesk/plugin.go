package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skilldesk/pkg/lint"
	"github.com/jingkaihe/skilldesk/pkg/plugins"
	"github.com/jingkaihe/skilldesk/pkg/presenter"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Validate, install and list plugins",
	Long:  `Validate plugin folders (.claude-plugin/plugin.json with skills, commands, agents and hooks), install them from a marketplace and list installed plugins.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var pluginValidateCmd = &cobra.Command{
	Use:   "validate <dir>...",
	Short: "Validate plugin folders",
	Long: `Validate standalone plugin folders: the manifest, every skill, command and
agent document and the hooks file.

Examples:
  skilldesk plugin validate plugins/stock-analysis`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		reports := make([]lint.Report, 0, len(args))
		for _, dir := range args {
			reports = append(reports, plugins.ValidatePlugin(dir, nil))
		}
		return printReports(cmd.OutOrStdout(), reports, asJSON)
	},
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed plugins",
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter, err := nameFilter(cmd)
		if err != nil {
			return err
		}
		discovery, err := plugins.NewDiscovery()
		if err != nil {
			return err
		}
		installed, err := discovery.ListInstalledPlugins()
		if err != nil {
			return err
		}

		var rows [][]string
		for _, p := range installed {
			name := plugins.PluginNameToUserFacing(p.Name)
			if !filter.Match(name) {
				continue
			}
			scope := "local"
			if p.Global {
				scope = "global"
			}
			hooks := "-"
			if p.Hooks != "" {
				hooks = "yes"
			}
			rows = append(rows, []string{name, scope, strings.Join(p.Skills, ", "), hooks, p.Path})
		}
		if len(rows) == 0 {
			presenter.Info("No plugins installed")
			return nil
		}
		presenter.Table([]string{"NAME", "SCOPE", "SKILLS", "HOOKS", "PATH"}, rows)
		return nil
	},
}

var pluginSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of .claude-plugin/plugin.json",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printSchema(cmd, plugins.SchemaPlugin)
	},
}

var pluginInstallCmd = &cobra.Command{
	Use:   "install <marketplace-dir> <plugin>...",
	Short: "Install plugins from a local marketplace",
	Long: `Install plugins listed in the marketplace at <marketplace-dir> into
./.skilldesk/plugins, or ~/.skilldesk/plugins with --global.

Examples:
  skilldesk plugin install . stock-analysis
  skilldesk plugin install ../marketplace stock-analysis -g --force`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		global, _ := cmd.Flags().GetBool("global")
		force, _ := cmd.Flags().GetBool("force")

		installer, err := plugins.NewInstaller(plugins.WithGlobal(global), plugins.WithForce(force))
		if err != nil {
			return err
		}
		for _, name := range args[1:] {
			result, err := installer.Install(cmd.Context(), args[0], name)
			if err != nil {
				return errors.Wrapf(err, "failed to install %s", name)
			}
			presenter.Success(fmt.Sprintf("Installed %s to %s (%d skills, %d commands, %d agents)",
				result.PluginName, result.Path, len(result.Skills), len(result.Commands), len(result.Agents)))
		}
		return nil
	},
}

var pluginRemoveCmd = &cobra.Command{
	Use:   "remove <plugin>",
	Short: "Remove an installed plugin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		global, _ := cmd.Flags().GetBool("global")
		remover, err := plugins.NewRemover(plugins.WithGlobal(global))
		if err != nil {
			return err
		}
		if err := remover.Remove(args[0]); err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Removed %s", args[0]))
		return nil
	},
}

func printSchema(cmd *cobra.Command, kind string) error {
	schema, err := plugins.Schema(kind)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(schema))
	return nil
}

func init() {
	pluginValidateCmd.Flags().Bool("json", false, "Print reports as JSON")
	pluginListCmd.Flags().StringSlice("filter", nil, "Only list plugins whose name matches one of these globs")
	pluginInstallCmd.Flags().BoolP("global", "g", false, "Install to ~/.skilldesk/plugins instead of ./.skilldesk/plugins")
	pluginInstallCmd.Flags().Bool("force", false, "Overwrite an installed plugin")
	pluginRemoveCmd.Flags().BoolP("global", "g", false, "Remove from ~/.skilldesk/plugins instead of ./.skilldesk/plugins")

	pluginCmd.AddCommand(pluginValidateCmd)
	pluginCmd.AddCommand(pluginListCmd)
	pluginCmd.AddCommand(pluginSchemaCmd)
	pluginCmd.AddCommand(pluginInstallCmd)
	pluginCmd.AddCommand(pluginRemoveCmd)
}
