package plugins

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/skilldesk/pkg/lint"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newMarketplace lays out a marketplace repository with one complete local
// plugin, stock-analysis
func newMarketplace(t *testing.T, marketplace string) string {
	t.Helper()
	root := t.TempDir()
	write(t, filepath.Join(root, ".claude-plugin", "marketplace.json"), marketplace)

	plugin := filepath.Join(root, "plugins", "stock-analysis")
	write(t, filepath.Join(plugin, ".claude-plugin", "plugin.json"), `{
  "name": "stock-analysis",
  "description": "A-share market analysis",
  "version": "1.0.0",
  "author": {"name": "Desk"},
  "keywords": ["stocks"]
}`)
	write(t, filepath.Join(plugin, "skills", "market-report", "SKILL.md"),
		"---\nname: market-report\ndescription: Daily market report\n---\n\nRun the report.\n")
	write(t, filepath.Join(plugin, "commands", "analyze.md"),
		"---\ndescription: Analyze a stock\n---\n\nAnalyze $ARGUMENTS\n")
	write(t, filepath.Join(plugin, "commands", "group", "scan.md"),
		"---\ndescription: Scan a group\n---\n\nScan\n")
	write(t, filepath.Join(plugin, "agents", "analyst.md"),
		"---\nname: analyst\ndescription: Market analyst\n---\n\nYou analyse markets.\n")
	write(t, filepath.Join(plugin, "hooks", "hooks.json"),
		`{"hooks": {"SessionStart": [{"hooks": [{"type": "command", "command": "${CLAUDE_PLUGIN_ROOT}/scripts/check.sh"}]}]}}`)
	return root
}

const validMarketplace = `{
  "name": "desk-marketplace",
  "owner": {"name": "Desk", "email": "desk@example.com"},
  "metadata": {"description": "Analysis plugins", "version": "0.1.0"},
  "plugins": [
    {"name": "stock-analysis", "source": "./plugins/stock-analysis", "version": "1.0.0", "category": "finance"},
    {"name": "remote-tool", "source": {"source": "github", "repo": "desk/remote-tool", "ref": "v2"}}
  ]
}`

func TestSource_JSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Source
	}{
		{"path", `"./plugins/x"`, Source{Kind: SourceLocal, Path: "./plugins/x"}},
		{"github", `{"source":"github","repo":"a/b","ref":"main"}`, Source{Kind: SourceGitHub, Repo: "a/b", Ref: "main"}},
		{"url", `{"source":"url","url":"https://git.example.com/p.git"}`, Source{Kind: SourceURL, URL: "https://git.example.com/p.git"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Source
			require.NoError(t, json.Unmarshal([]byte(tt.in), &s))
			assert.Equal(t, tt.want, s)

			out, err := json.Marshal(s)
			require.NoError(t, err)
			assert.JSONEq(t, tt.in, string(out))
		})
	}

	var s Source
	assert.Error(t, json.Unmarshal([]byte(`{"source":"ftp"}`), &s))
	assert.Equal(t, "github:a/b@v1", Source{Kind: SourceGitHub, Repo: "a/b", Ref: "v1"}.String())
}

func TestPathList_JSON(t *testing.T) {
	var m Manifest
	require.NoError(t, json.Unmarshal([]byte(`{"name":"x","commands":"./extra.md","agents":["./a","./b"]}`), &m))
	assert.Equal(t, PathList{"./extra.md"}, m.Commands)
	assert.Equal(t, PathList{"./a", "./b"}, m.Agents)
}

func TestValidateMarketplace_Valid(t *testing.T) {
	root := newMarketplace(t, validMarketplace)

	report := ValidateMarketplace(root)
	assert.True(t, report.Valid(), "%v", report.Issues)
	assert.Empty(t, report.Issues)
}

func TestValidateMarketplace_Errors(t *testing.T) {
	root := newMarketplace(t, `{
  "name": "Desk Market",
  "homepage": "https://example.com",
  "plugins": [
    {"name": "stock-analysis", "source": "./plugins/stock-analysis", "version": "2.0.0"},
    {"name": "stock-analysis", "source": "./plugins/stock-analysis"},
    {"name": "Bad_Name", "source": "../outside"},
    {"name": "no-source"},
    {"name": "missing", "source": "./plugins/missing"},
    {"name": "bad-repo", "source": {"source": "github", "repo": "nope"}},
    {"name": "loose", "source": "./plugins/loose", "strict": false, "version": "one"}
  ]
}`)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "plugins", "loose", "commands"), 0o755))
	write(t, filepath.Join(root, "plugins", "loose", "commands", "undocumented.md"), "Do things\n")

	report := ValidateMarketplace(root)
	assert.False(t, report.Valid())

	byField := map[string]lint.Severity{}
	for _, i := range report.Issues {
		byField[i.Field] = i.Severity
	}

	assert.Equal(t, lint.SeverityWarning, byField["homepage"])
	assert.Equal(t, lint.SeverityWarning, byField["name"]) // marketplace name not kebab-case
	assert.Equal(t, lint.SeverityWarning, byField["owner"])
	assert.Equal(t, lint.SeverityWarning, byField["version"]) // entry 2.0.0 vs manifest 1.0.0
	assert.Equal(t, lint.SeverityError, byField["plugins[1].name"])
	assert.Equal(t, lint.SeverityError, byField["plugins[2].name"])
	assert.Equal(t, lint.SeverityError, byField["plugins[2].source"])
	assert.Equal(t, lint.SeverityError, byField["plugins[3].source"])
	assert.Equal(t, lint.SeverityError, byField["plugins[4].source"])
	assert.Equal(t, lint.SeverityError, byField["plugins[5].source.repo"])
	assert.Equal(t, lint.SeverityError, byField["plugins[6].version"])
	assert.Equal(t, lint.SeverityWarning, byField["description"]) // command without description
}

func TestValidateMarketplace_Missing(t *testing.T) {
	report := ValidateMarketplace(t.TempDir())
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0].Message, "failed to read")
}

func TestValidateMarketplace_PluginRoot(t *testing.T) {
	root := newMarketplace(t, `{
  "name": "desk",
  "owner": {"name": "Desk"},
  "metadata": {"pluginRoot": "./plugins"},
  "plugins": [{"name": "stock-analysis", "source": "stock-analysis"}]
}`)
	report := ValidateMarketplace(root)
	assert.True(t, report.Valid(), "%v", report.Issues)
}

func TestValidatePlugin(t *testing.T) {
	t.Run("strict plugin without manifest", func(t *testing.T) {
		dir := t.TempDir()
		write(t, filepath.Join(dir, "skills", "x", "SKILL.md"), "---\nname: x\ndescription: d\n---\nbody\n")
		report := ValidatePlugin(dir, nil)
		assert.False(t, report.Valid())
	})

	t.Run("manifest problems and nested skill errors", func(t *testing.T) {
		dir := t.TempDir()
		write(t, filepath.Join(dir, ".claude-plugin", "plugin.json"),
			`{"name": "demo", "version": "1.0", "author": {}, "hooks": "hooks/custom.json", "commands": "./missing", "extra": true}`)
		write(t, filepath.Join(dir, "hooks", "custom.json"), `{"hooks": {"Bogus": []}}`)
		write(t, filepath.Join(dir, "skills", "broken", "SKILL.md"), "---\nname: broken\n---\nbody\n")
		write(t, filepath.Join(dir, "agents", "helper.md"), "---\ndescription: helps\n---\nbody\n")

		report := ValidatePlugin(dir, nil)
		var errs []string
		for _, i := range report.Issues {
			if i.Severity == lint.SeverityError {
				errs = append(errs, i.Field)
			}
		}
		assert.ElementsMatch(t, []string{
			"version",      // not semver
			"author.name",  // empty author
			"commands",     // ./missing
			"hooks.Bogus",  // unknown event in hooks file
			"description",  // skill without description
			"name",         // agent without name
		}, errs)
	})

	t.Run("empty plugin", func(t *testing.T) {
		dir := t.TempDir()
		write(t, filepath.Join(dir, ".claude-plugin", "plugin.json"), `{"name": "empty"}`)
		report := ValidatePlugin(dir, nil)
		assert.True(t, report.Valid())
		assert.Equal(t, 1, report.Count(lint.SeverityWarning))
	})
}

func TestResolvePlugins(t *testing.T) {
	root := newMarketplace(t, validMarketplace)

	plugins, err := ResolvePlugins(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, plugins, 1)

	p := plugins[0]
	assert.Equal(t, "stock-analysis", p.Name)
	assert.Equal(t, []string{"market-report"}, p.Skills)
	assert.Equal(t, []string{"analyze", "group/scan"}, p.Commands)
	assert.Equal(t, []string{"analyst"}, p.Agents)
	assert.Equal(t, filepath.Join(root, "plugins", "stock-analysis", "hooks", "hooks.json"), p.Hooks)
	require.NotNil(t, p.Entry)
	assert.Equal(t, "finance", p.Entry.Category)
}

func TestResolvePlugins_CollectsErrors(t *testing.T) {
	root := newMarketplace(t, `{"name": "m", "plugins": [
  {"name": "stock-analysis", "source": "./plugins/stock-analysis"},
  {"name": "gone", "source": "./plugins/gone"},
  {"name": "gone-too", "source": "./plugins/gone-too"}
]}`)

	plugins, err := ResolvePlugins(context.Background(), root)
	require.Error(t, err)
	assert.Len(t, plugins, 1)
	assert.Contains(t, err.Error(), "2 errors occurred")
}

func TestSchema(t *testing.T) {
	out, err := Schema(SchemaMarketplace)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "Plugin marketplace", doc["title"])
	assert.ElementsMatch(t, []any{"name", "plugins"}, doc["required"])

	out, err = Schema(SchemaPlugin)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"mcpServers"`)

	_, err = Schema("hooks")
	assert.Error(t, err)
}

func TestInstallAndDiscover(t *testing.T) {
	root := newMarketplace(t, validMarketplace)
	target := filepath.Join(t.TempDir(), ".skilldesk")
	home := t.TempDir()

	installer, err := NewInstaller(WithTargetDir(target))
	require.NoError(t, err)

	result, err := installer.Install(context.Background(), root, "stock-analysis")
	require.NoError(t, err)
	assert.Equal(t, []string{"market-report"}, result.Skills)
	assert.Equal(t, []string{"analyst"}, result.Agents)
	assert.FileExists(t, filepath.Join(target, "plugins", "stock-analysis", ".claude-plugin", "plugin.json"))

	_, err = installer.Install(context.Background(), root, "stock-analysis")
	assert.ErrorContains(t, err, "already exists")

	_, err = installer.Install(context.Background(), root, "unknown")
	assert.ErrorContains(t, err, "not found")

	discovery, err := NewDiscovery(WithBaseDir(target), WithHomeDir(home))
	require.NoError(t, err)

	installed, err := discovery.ListInstalledPlugins()
	require.NoError(t, err)
	require.Len(t, installed, 1)
	assert.Equal(t, "stock-analysis", installed[0].Name)
	assert.False(t, installed[0].Global)

	skillDirs := discovery.SkillDirs()
	require.Len(t, skillDirs, 1)
	assert.Equal(t, "stock-analysis/", skillDirs[0].Prefix)

	hookFiles := discovery.HookFiles()
	require.Len(t, hookFiles, 1)
	assert.Equal(t, installed[0].Path, hookFiles[0].Root)

	remover, err := NewRemover(WithTargetDir(target))
	require.NoError(t, err)
	require.NoError(t, remover.Remove("stock-analysis"))
	assert.Error(t, remover.Remove("stock-analysis"))
	assert.Error(t, remover.Remove("../etc"))
}

func TestValidateRepoName(t *testing.T) {
	assert.NoError(t, ValidateRepoName("owner/repo"))
	assert.Error(t, ValidateRepoName(""))
	assert.Error(t, ValidateRepoName("owner"))
	assert.Error(t, ValidateRepoName("/repo"))
	assert.Error(t, ValidateRepoName("a/b/c"))
}

func TestInstall_ConcurrentForce(t *testing.T) {
	root := newMarketplace(t, validMarketplace)
	target := filepath.Join(t.TempDir(), ".skilldesk")

	var g errgroup.Group
	for range 4 {
		g.Go(func() error {
			installer, err := NewInstaller(WithTargetDir(target), WithForce(true))
			if err != nil {
				return err
			}
			_, err = installer.Install(context.Background(), root, "stock-analysis")
			return err
		})
	}
	require.NoError(t, g.Wait())

	p, err := LoadPlugin(filepath.Join(target, "plugins", "stock-analysis"))
	require.NoError(t, err)
	assert.Equal(t, []string{"market-report"}, p.Skills)
	assert.FileExists(t, filepath.Join(target, "plugins", lockFile))
}

func TestInstall_RejectsEscapingName(t *testing.T) {
	root := newMarketplace(t, `{
  "name": "desk-marketplace",
  "owner": {"name": "Desk"},
  "plugins": [
    {"name": "../../escaped", "source": "./plugins/stock-analysis"},
    {"name": "..", "source": "./plugins/stock-analysis"}
  ]
}`)
	base := t.TempDir()
	target := filepath.Join(base, "work", ".skilldesk")
	outside := filepath.Join(base, "work", "escaped")

	installer, err := NewInstaller(WithTargetDir(target), WithForce(true))
	require.NoError(t, err)

	tests := []struct {
		name string
	}{
		{name: "../../escaped"},
		{name: ".."},
		{name: "a/b"},
		{name: `a\b`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := installer.Install(context.Background(), root, tt.name)
			assert.ErrorContains(t, err, "invalid plugin name")
		})
	}
	assert.NoDirExists(t, outside)

	t.Run("force leaves existing outside directory alone", func(t *testing.T) {
		write(t, filepath.Join(outside, "keep.txt"), "keep")
		_, err := installer.Install(context.Background(), root, "../../escaped")
		require.Error(t, err)
		assert.FileExists(t, filepath.Join(outside, "keep.txt"))
	})
}

func TestInstaller_PluginDir(t *testing.T) {
	installer, err := NewInstaller(WithTargetDir(filepath.Join("base", ".skilldesk")))
	require.NoError(t, err)

	dir, err := installer.pluginDir("stock-analysis")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("base", ".skilldesk", "plugins", "stock-analysis"), dir)

	for _, name := range []string{"..", "../x", "../../escaped", ".", ""} {
		_, err := installer.pluginDir(name)
		assert.Error(t, err, name)
	}
}
