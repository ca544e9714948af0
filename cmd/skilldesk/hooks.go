package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skilldesk/pkg/hooks"
	"github.com/jingkaihe/skilldesk/pkg/lint"
	"github.com/jingkaihe/skilldesk/pkg/plugins"
	"github.com/jingkaihe/skilldesk/pkg/presenter"
)

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Validate, list and run hooks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var hooksValidateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate hooks configuration files",
	Long: `Validate hooks files (hooks/hooks.json in plugins, hooks.json or hooks.yaml in
settings directories): event names, matchers, command types and timeouts.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		reports := make([]lint.Report, 0, len(args))
		for _, path := range args {
			reports = append(reports, hooks.ValidateFile(path))
		}
		return printReports(cmd.OutOrStdout(), reports, asJSON)
	},
}

var hooksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hooks from settings directories and installed plugins",
	RunE: func(cmd *cobra.Command, _ []string) error {
		manager, err := discoverHooks(cmd)
		if err != nil {
			return err
		}
		all := manager.All()
		if len(all) == 0 {
			presenter.Info("No hooks configured")
			return nil
		}

		rows := make([][]string, 0, len(all))
		for _, h := range all {
			matcher := h.Matcher
			if matcher == "" {
				matcher = "*"
			}
			origin := "-"
			if h.Source != nil {
				origin = h.Source.Path
			}
			rows = append(rows, []string{string(h.Event), matcher, truncate(h.Command.Command, 50), h.Command.TimeoutDuration().String(), origin})
		}
		presenter.Table([]string{"EVENT", "MATCHER", "COMMAND", "TIMEOUT", "SOURCE"}, rows)
		return nil
	},
}

var hooksRunCmd = &cobra.Command{
	Use:   "run <event>",
	Short: "Run the hooks of an event with a synthetic payload",
	Long: `Run every hook matching an event the way an agent would, writing the JSON
payload to each command's stdin. The exit status is non-zero when a hook
blocks the event.

Examples:
  skilldesk hooks run PreToolUse --tool Bash --input '{"command":"rm -rf /"}'
  skilldesk hooks run UserPromptSubmit --prompt "analyse 600519"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		event := hooks.Event(args[0])
		if !event.IsKnown() {
			return errors.Errorf("unknown hook event %q", args[0])
		}

		payload, err := hookPayload(cmd, event)
		if err != nil {
			return err
		}
		manager, err := discoverHooks(cmd)
		if err != nil {
			return err
		}
		outcome, err := manager.Run(cmd.Context(), payload)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(outcome); err != nil {
				return errors.Wrap(err, "failed to encode outcome")
			}
		} else {
			printOutcome(outcome)
		}

		if outcome.Blocked {
			return errValidation
		}
		return nil
	},
}

func discoverHooks(cmd *cobra.Command) (hooks.Manager, error) {
	pluginDiscovery, err := plugins.NewDiscovery()
	if err != nil {
		return hooks.Manager{}, err
	}
	return hooks.NewManagerFromDiscovery(cmd.Context(),
		hooks.WithDefaultDirs(),
		hooks.WithPluginHookFiles(pluginDiscovery.HookFiles()...),
	)
}

func hookPayload(cmd *cobra.Command, event hooks.Event) (hooks.Payload, error) {
	tool, _ := cmd.Flags().GetString("tool")
	input, _ := cmd.Flags().GetString("input")
	prompt, _ := cmd.Flags().GetString("prompt")
	sessionID, _ := cmd.Flags().GetString("session-id")

	cwd, err := os.Getwd()
	if err != nil {
		return hooks.Payload{}, errors.Wrap(err, "failed to get working directory")
	}
	payload := hooks.Payload{
		SessionID: sessionID,
		CWD:       cwd,
		Event:     event,
		ToolName:  tool,
		Prompt:    prompt,
	}
	if input != "" {
		if !json.Valid([]byte(input)) {
			return hooks.Payload{}, errors.New("--input must be valid JSON")
		}
		payload.ToolInput = json.RawMessage(input)
	}
	if event == hooks.EventSessionStart {
		payload.Source = "startup"
	}
	return payload, nil
}

func printOutcome(outcome *hooks.Outcome) {
	if len(outcome.Results) == 0 {
		presenter.Info("No hooks matched")
		return
	}
	for _, res := range outcome.Results {
		line := fmt.Sprintf("%s exited %d in %s", res.Hook, res.ExitCode, res.Duration.Round(time.Millisecond))
		switch {
		case res.Err != "":
			presenter.Error(errors.New(res.Err), res.Hook)
		case res.Blocked:
			presenter.Warning(line + ": blocked: " + res.Reason)
		default:
			presenter.Success(line)
		}
		if out := strings.TrimSpace(res.Stdout); out != "" {
			fmt.Println(out)
		}
	}
	if outcome.Blocked {
		presenter.Warning("event blocked: " + outcome.Reason)
	}
}

func init() {
	hooksValidateCmd.Flags().Bool("json", false, "Print reports as JSON")
	hooksRunCmd.Flags().String("tool", "", "Tool name for PreToolUse and PostToolUse")
	hooksRunCmd.Flags().String("input", "", "Tool input as a JSON object")
	hooksRunCmd.Flags().String("prompt", "", "Prompt for UserPromptSubmit")
	hooksRunCmd.Flags().String("session-id", "", "Session ID passed to the hooks")
	hooksRunCmd.Flags().Bool("json", false, "Print the outcome as JSON")

	hooksCmd.AddCommand(hooksValidateCmd)
	hooksCmd.AddCommand(hooksListCmd)
	hooksCmd.AddCommand(hooksRunCmd)
}
