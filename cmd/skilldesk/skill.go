package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skilldesk/pkg/lint"
	"github.com/jingkaihe/skilldesk/pkg/plugins"
	"github.com/jingkaihe/skilldesk/pkg/presenter"
	"github.com/jingkaihe/skilldesk/pkg/skills"
	"github.com/jingkaihe/skilldesk/pkg/utils"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Validate and list skills",
	Long:  `Validate skill folders (SKILL.md plus scripts/, references/ and assets/) and list the skills available to agents.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var skillValidateCmd = &cobra.Command{
	Use:   "validate [dir...]",
	Short: "Validate skill folders",
	Long: `Validate one or more skill folders. A directory without SKILL.md is searched
for skill folders below it, so "skilldesk skill validate ." checks every skill
in a repository.

Examples:
  skilldesk skill validate plugins/stock-analysis/skills/stock-analysis
  skilldesk skill validate . --json
  skilldesk skill validate skills --watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		watch, _ := cmd.Flags().GetBool("watch")
		if len(args) == 0 {
			args = []string{"."}
		}

		err := validateSkills(cmd, args, asJSON)
		if !watch {
			return err
		}
		if err != nil && !errors.Is(err, errValidation) {
			return err
		}

		presenter.Info("Watching for changes... Press Ctrl+C to stop")
		return skills.Watch(cmd.Context(), args, skills.DefaultDebounce, func(paths []string) {
			presenter.Info(fmt.Sprintf("Change detected in %d file(s), validating again", len(paths)))
			if err := validateSkills(cmd, args, asJSON); err != nil && !errors.Is(err, errValidation) {
				presenter.Error(err, "")
			}
		})
	},
}

func validateSkills(cmd *cobra.Command, args []string, asJSON bool) error {
	var reports []lint.Report
	for _, arg := range args {
		dirs, err := skills.FindSkillDirs(arg)
		if err != nil {
			return err
		}
		if len(dirs) == 0 {
			return errors.Errorf("no SKILL.md found under %s", arg)
		}
		for _, dir := range dirs {
			reports = append(reports, skills.ValidateDir(dir))
		}
	}
	return printReports(cmd.OutOrStdout(), reports, asJSON)
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered skills",
	Long:  `List skills from ./.skilldesk/skills, ~/.skilldesk/skills and installed plugins, in precedence order.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter, err := nameFilter(cmd)
		if err != nil {
			return err
		}
		pluginDiscovery, err := plugins.NewDiscovery()
		if err != nil {
			return err
		}
		discovery, err := skills.NewDiscovery(
			skills.WithDefaultDirs(),
			skills.WithPluginSkillDirs(pluginDiscovery.SkillDirs()...),
		)
		if err != nil {
			return err
		}
		catalog, err := discovery.Discover()
		if err != nil {
			return err
		}
		for _, dir := range catalog.Invalid {
			presenter.Warning(fmt.Sprintf("%s: not loadable, run skilldesk skill validate", dir))
		}
		for _, s := range catalog.Shadowed {
			presenter.Warning(fmt.Sprintf("%s (%s) is shadowed by an earlier skill with the same name", s.Name, s.Directory))
		}
		var rows [][]string
		for _, s := range catalog.Skills {
			if !filter.Match(s.Name) {
				continue
			}
			rows = append(rows, []string{s.Name, s.Origin, truncate(s.Description, 60), fmt.Sprint(s.Resources.Count()), s.Directory})
		}
		if len(rows) == 0 {
			presenter.Info("No skills found")
			return nil
		}
		presenter.Table([]string{"NAME", "ORIGIN", "DESCRIPTION", "RESOURCES", "DIRECTORY"}, rows)
		return nil
	},
}

// nameFilter compiles the --filter globs of cmd
func nameFilter(cmd *cobra.Command) (*utils.NameFilter, error) {
	patterns, _ := cmd.Flags().GetStringSlice("filter")
	return utils.NewNameFilter(patterns...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	skillValidateCmd.Flags().Bool("json", false, "Print reports as JSON")
	skillValidateCmd.Flags().Bool("watch", false, "Validate again whenever a file under the folders changes")
	skillListCmd.Flags().StringSlice("filter", nil, "Only list skills whose name matches one of these globs, e.g. stock-*")

	skillCmd.AddCommand(skillValidateCmd)
	skillCmd.AddCommand(skillListCmd)
}
