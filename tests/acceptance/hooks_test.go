package acceptance

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	Results []struct {
		Hook     string `json:"hook"`
		ExitCode int    `json:"exit_code"`
		Blocked  bool   `json:"blocked"`
	} `json:"results"`
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason"`
}

func TestHooksRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".skilldesk", "hooks.json"), `{
  "hooks": {
    "PreToolUse": [
      {"matcher": "Bash", "hooks": [{"type": "command", "command": "grep -q 'rm -rf' && { echo 'destructive command' >&2; exit 2; } || exit 0"}]}
    ]
  }
}`)

	testCases := []struct {
		name        string
		tool        string
		input       string
		wantBlocked bool
		wantResults int
	}{
		{name: "allowed command", tool: "Bash", input: `{"command":"ls"}`, wantResults: 1},
		{name: "blocked command", tool: "Bash", input: `{"command":"rm -rf /"}`, wantBlocked: true, wantResults: 1},
		{name: "unmatched tool", tool: "Read", input: `{"file_path":"a.txt"}`, wantResults: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			output, err := skilldesk(t, dir, "hooks", "run", "PreToolUse", "--tool", tc.tool, "--input", tc.input, "--json").Output()
			if tc.wantBlocked {
				assert.Error(t, err, "a blocked event exits non-zero")
			} else {
				require.NoError(t, err)
			}

			var got outcome
			require.NoError(t, json.Unmarshal(output, &got), string(output))
			assert.Equal(t, tc.wantBlocked, got.Blocked)
			assert.Len(t, got.Results, tc.wantResults)
			if tc.wantBlocked {
				assert.Equal(t, "destructive command", got.Reason)
			}
		})
	}
}

func TestHooksValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hooks.json")
	writeFile(t, path, `{"hooks": {"BeforeEverything": [{"hooks": [{"type": "command", "command": "true"}]}]}}`)

	output, err := skilldesk(t, dir, "hooks", "validate", path).CombinedOutput()
	assert.Error(t, err)
	assert.Contains(t, string(output), `unknown event "BeforeEverything"`)
}
