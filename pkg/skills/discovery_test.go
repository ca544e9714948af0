package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, root, name, description string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	content := "---\nname: " + name + "\ndescription: " + description + "\n---\n\n# " + name + "\n\nInstructions.\n"
	writeFile(t, filepath.Join(dir, "SKILL.md"), content)
	return dir
}

func names(skills []*Skill) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		out = append(out, s.Name)
	}
	return out
}

func TestNewDiscovery(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	d, err := NewDiscovery()
	require.NoError(t, err)
	require.Len(t, d.roots, 2)
	assert.Equal(t, root{dir: ".skilldesk/skills", origin: OriginLocal}, d.roots[0])
	assert.Equal(t, root{dir: filepath.Join(home, ".skilldesk", "skills"), origin: OriginGlobal}, d.roots[1])

	d, err = NewDiscovery(WithSkillDirs("/a", "/b"), WithPluginSkillDirs(PluginSkillDir{Dir: "/p/skills", Prefix: "org/stock/"}))
	require.NoError(t, err)
	assert.Equal(t, []root{
		{dir: "/a", origin: OriginCustom},
		{dir: "/b", origin: OriginCustom},
		{dir: "/p/skills", prefix: "org/stock/", origin: "plugin:org/stock"},
	}, d.roots)
}

func TestDiscover(t *testing.T) {
	local := t.TempDir()
	global := t.TempDir()
	plugin := t.TempDir()

	writeSkill(t, local, "stock-analysis", "Local copy")
	writeSkill(t, global, "stock-analysis", "Global copy")
	writeSkill(t, global, "market-report", "Daily market report")
	writeSkill(t, plugin, "stock-analysis", "Plugin copy")
	writeFile(t, filepath.Join(global, "no-desc", "SKILL.md"), "---\nname: no-desc\n---\n\nbody\n")
	writeFile(t, filepath.Join(global, "no-frontmatter", "SKILL.md"), "# Just content\n")
	require.NoError(t, os.MkdirAll(filepath.Join(global, "empty"), 0o755))
	writeFile(t, filepath.Join(global, "README.md"), "not a skill")

	d := &Discovery{roots: []root{
		{dir: local, origin: OriginLocal},
		{dir: global, origin: OriginGlobal},
		{dir: plugin, prefix: "stock/", origin: "plugin:stock"},
		{dir: filepath.Join(t.TempDir(), "missing"), origin: OriginCustom},
	}}
	catalog, err := d.Discover()
	require.NoError(t, err)

	assert.Equal(t, []string{"market-report", "stock-analysis", "stock/stock-analysis"}, names(catalog.Skills))

	s, ok := catalog.Lookup("stock-analysis")
	require.True(t, ok)
	assert.Equal(t, "Local copy", s.Description)
	assert.Equal(t, OriginLocal, s.Origin)
	assert.Equal(t, filepath.Join(local, "stock-analysis"), s.Directory)
	assert.Contains(t, s.Content, "Instructions.")

	s, ok = catalog.Lookup("stock/stock-analysis")
	require.True(t, ok)
	assert.Equal(t, "plugin:stock", s.Origin)
	assert.Equal(t, "stock-analysis", s.Frontmatter.Name)

	_, ok = catalog.Lookup("no-desc")
	assert.False(t, ok)

	require.Len(t, catalog.Shadowed, 1)
	assert.Equal(t, "Global copy", catalog.Shadowed[0].Description)
	assert.ElementsMatch(t, []string{filepath.Join(global, "no-desc"), filepath.Join(global, "no-frontmatter")}, catalog.Invalid)
}

func TestDiscoverSymlinks(t *testing.T) {
	target := t.TempDir()
	skillDir := writeSkill(t, target, "linked", "Symlinked skill")

	base := t.TempDir()
	require.NoError(t, os.Symlink(skillDir, filepath.Join(base, "linked")))
	require.NoError(t, os.Symlink(filepath.Join(skillDir, "SKILL.md"), filepath.Join(base, "file-link")))
	require.NoError(t, os.Symlink(filepath.Join(target, "gone"), filepath.Join(base, "broken")))

	catalog, err := (&Discovery{roots: []root{{dir: base, origin: OriginCustom}}}).Discover()
	require.NoError(t, err)
	assert.Equal(t, []string{"linked"}, names(catalog.Skills))
	assert.Equal(t, filepath.Join(base, "linked"), catalog.Skills[0].Directory)
	assert.Empty(t, catalog.Invalid)
}

func TestExtractBodyContent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "with frontmatter",
			input:    "---\nname: test\ndescription: desc\n---\n\n# Content\n\nBody text.",
			expected: "# Content\n\nBody text.",
		},
		{
			name:     "no frontmatter",
			input:    "# Just content\nNo frontmatter.",
			expected: "# Just content\nNo frontmatter.",
		},
		{
			name:     "unterminated frontmatter",
			input:    "---\nname: test\n# No closing",
			expected: "---\nname: test\n# No closing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractBodyContent(tt.input))
		})
	}
}
