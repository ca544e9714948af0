package plugins

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/hooks"
	"github.com/jingkaihe/skilldesk/pkg/lint"
	"github.com/jingkaihe/skilldesk/pkg/skills"
)

var (
	nameRe   = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	semverRe = regexp.MustCompile(`^v?(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)
)

// ValidateMarketplace checks the marketplace at root and every local plugin
// it lists
func ValidateMarketplace(root string) lint.Report {
	path := MarketplacePath(root)
	r := lint.Report{Path: path}

	m, unknown, err := LoadMarketplace(root)
	if err != nil {
		r.Errorf("", "%v", err)
		return r
	}
	for _, k := range unknown {
		r.Warnf(k, "unknown marketplace field")
	}

	switch {
	case m.Name == "":
		r.Errorf("name", "is required")
	case !nameRe.MatchString(m.Name):
		r.Warnf("name", "should be kebab-case, got %q", m.Name)
	}
	if m.Owner == nil {
		r.Warnf("owner", "is recommended")
	} else if m.Owner.Name == "" {
		r.Errorf("owner.name", "is required")
	}
	if m.Metadata != nil && m.Metadata.Version != "" && !semverRe.MatchString(m.Metadata.Version) {
		r.Errorf("metadata.version", "%q is not a semantic version", m.Metadata.Version)
	}
	if len(m.Plugins) == 0 {
		r.Warnf("plugins", "marketplace lists no plugins")
	}

	seen := make(map[string]int)
	for i, entry := range m.Plugins {
		field := fmt.Sprintf("plugins[%d]", i)
		switch {
		case entry.Name == "":
			r.Errorf(field+".name", "is required")
		case !nameRe.MatchString(entry.Name):
			r.Errorf(field+".name", "must be kebab-case, got %q", entry.Name)
		}
		if prev, dup := seen[entry.Name]; dup && entry.Name != "" {
			r.Errorf(field+".name", "duplicate plugin name %q (also plugins[%d])", entry.Name, prev)
		} else {
			seen[entry.Name] = i
		}
		if entry.Version != "" && !semverRe.MatchString(entry.Version) {
			r.Errorf(field+".version", "%q is not a semantic version", entry.Version)
		}

		if !checkSource(&r, field+".source", entry.Source) {
			continue
		}
		if entry.Source.Kind != SourceLocal {
			continue
		}

		dir, err := ResolveLocalSource(root, m, entry.Source)
		if err != nil {
			r.Errorf(field+".source", "%v", err)
			continue
		}
		r.Merge(ValidatePlugin(dir, &entry))
	}

	return r
}

func checkSource(r *lint.Report, field string, src Source) bool {
	switch src.Kind {
	case SourceLocal, "":
		if src.Path == "" {
			r.Errorf(field, "is required")
			return false
		}
	case SourceGitHub:
		if err := ValidateRepoName(src.Repo); err != nil {
			r.Errorf(field+".repo", "%v", err)
			return false
		}
	case SourceGit, SourceURL:
		if src.URL == "" {
			r.Errorf(field+".url", "is required")
			return false
		}
	}
	return true
}

// ResolveLocalSource returns the plugin directory of a relative source. The
// directory must exist inside root.
func ResolveLocalSource(root string, m *Marketplace, src Source) (string, error) {
	if filepath.IsAbs(src.Path) {
		return "", errors.Errorf("source %q must be relative to the marketplace root", src.Path)
	}

	base := root
	if m != nil && m.Metadata != nil && m.Metadata.PluginRoot != "" {
		base = filepath.Join(root, filepath.FromSlash(m.Metadata.PluginRoot))
	}
	dir := filepath.Join(base, filepath.FromSlash(src.Path))

	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("source %q resolves outside the repository", src.Path)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return "", errors.Errorf("source %q does not exist", src.Path)
	}
	if !info.IsDir() {
		return "", errors.Errorf("source %q is not a directory", src.Path)
	}
	return dir, nil
}

// ValidatePlugin checks the plugin in dir. entry is the marketplace listing
// for the plugin, or nil when validating a standalone plugin.
func ValidatePlugin(dir string, entry *Entry) lint.Report {
	manifestPath := ManifestPath(dir)
	r := lint.Report{Path: manifestPath}

	strict := entry == nil || entry.IsStrict()
	m, unknown, err := LoadManifest(dir)
	switch {
	case err != nil && os.IsNotExist(errors.Cause(err)):
		if strict {
			r.Errorf("", "missing %s/%s", manifestDir, manifestFileName)
		}
		m = nil
	case err != nil:
		r.Errorf("", "%v", err)
		return r
	}

	if m != nil {
		for _, k := range unknown {
			r.Warnf(k, "unknown manifest field")
		}
		switch {
		case m.Name == "":
			r.Errorf("name", "is required")
		case !nameRe.MatchString(m.Name):
			r.Errorf("name", "must be kebab-case, got %q", m.Name)
		}
		if m.Version != "" && !semverRe.MatchString(m.Version) {
			r.Errorf("version", "%q is not a semantic version", m.Version)
		}
		if m.Author != nil && m.Author.Name == "" {
			r.Errorf("author.name", "is required when author is set")
		}
		if entry != nil {
			if entry.Name != "" && m.Name != "" && entry.Name != m.Name {
				r.Warnf("name", "manifest name %q differs from marketplace entry %q", m.Name, entry.Name)
			}
			if entry.Version != "" && m.Version != "" && entry.Version != m.Version {
				r.Warnf("version", "manifest version %q differs from marketplace entry %q", m.Version, entry.Version)
			}
		}
	}

	comp := scanComponents(&r, dir, m)
	if len(comp.skills) == 0 && len(comp.commands) == 0 && len(comp.agents) == 0 && comp.hooks == "" && (m == nil || len(m.MCPServers) == 0) {
		r.Warnf("", "plugin has no skills, commands, agents, hooks or MCP servers")
	}

	for _, skillDir := range comp.skills {
		r.Merge(skills.ValidateDir(skillDir))
	}
	for _, cmd := range comp.commands {
		r.Merge(validateMarkdownComponent(cmd, false))
	}
	for _, agent := range comp.agents {
		r.Merge(validateMarkdownComponent(agent, true))
	}
	if comp.hooks != "" {
		r.Merge(hooks.ValidateFile(comp.hooks))
	}

	return r
}

type components struct {
	skills   []string // absolute skill dirs
	commands []string // absolute .md paths
	agents   []string
	hooks    string
}

// scanComponents lists the component files of a plugin, honouring manifest
// path overrides. Problems with overrides are recorded on r when non-nil.
func scanComponents(r *lint.Report, dir string, m *Manifest) components {
	var c components

	if entries, err := os.ReadDir(filepath.Join(dir, skillsSubdir)); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				c.skills = append(c.skills, filepath.Join(dir, skillsSubdir, e.Name()))
			}
		}
	}

	c.commands = markdownFiles(filepath.Join(dir, commandsSubdir))
	c.agents = markdownFiles(filepath.Join(dir, agentsSubdir))

	if m != nil {
		for _, p := range m.Commands {
			if resolved, ok := resolveOverride(r, dir, "commands", p); ok {
				c.commands = append(c.commands, markdownFiles(resolved)...)
			}
		}
		for _, p := range m.Agents {
			if resolved, ok := resolveOverride(r, dir, "agents", p); ok {
				c.agents = append(c.agents, markdownFiles(resolved)...)
			}
		}
		if m.Hooks != "" {
			if resolved, ok := resolveOverride(r, dir, "hooks", m.Hooks); ok {
				c.hooks = resolved
			}
		}
	}

	if c.hooks == "" {
		if p := filepath.Join(dir, hooksSubdir, hooksFileName); fileExists(p) {
			c.hooks = p
		}
	}

	c.commands = dedupe(c.commands)
	c.agents = dedupe(c.agents)
	return c
}

func resolveOverride(r *lint.Report, dir, field, p string) (string, bool) {
	if r != nil && !strings.HasPrefix(p, "./") {
		r.Warnf(field, "path %q should start with ./", p)
	}
	resolved := filepath.Join(dir, filepath.FromSlash(p))
	if _, err := os.Stat(resolved); err != nil {
		if r != nil {
			r.Errorf(field, "path %q does not exist", p)
		}
		return "", false
	}
	return resolved, true
}

// markdownFiles returns path itself when it is a .md file, otherwise every
// .md file beneath it
func markdownFiles(path string) []string {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if !info.IsDir() {
		if strings.HasSuffix(path, ".md") {
			return []string{path}
		}
		return nil
	}

	var files []string
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".md") {
			files = append(files, p)
		}
		return nil
	})
	sort.Strings(files)
	return files
}

func validateMarkdownComponent(path string, agent bool) lint.Report {
	r := lint.Report{Path: path}
	fm, err := skills.ReadFrontmatter(path)
	if err != nil {
		r.Errorf("", "%v", err)
		return r
	}

	desc, _ := fm["description"].(string)
	if agent {
		if name, _ := fm["name"].(string); name == "" {
			r.Errorf("name", "is required for agents")
		}
		if desc == "" {
			r.Errorf("description", "is required for agents")
		}
		return r
	}
	if desc == "" {
		r.Warnf("description", "command has no description")
	}
	return r
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
