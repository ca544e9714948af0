package plugins

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/logger"
)

// ResolvePlugins loads every local plugin listed in the marketplace at root.
// Remote sources are skipped. Plugins that fail to load are left out and
// their errors returned together with the plugins that did load.
func ResolvePlugins(ctx context.Context, root string) ([]Plugin, error) {
	m, _, err := LoadMarketplace(root)
	if err != nil {
		return nil, err
	}

	var (
		plugins []Plugin
		result  *multierror.Error
	)
	for i := range m.Plugins {
		entry := m.Plugins[i]
		if entry.Source.Kind != SourceLocal {
			logger.G(ctx).WithField("plugin", entry.Name).WithField("source", entry.Source.String()).
				Debug("skipping remote plugin source")
			continue
		}

		dir, err := ResolveLocalSource(root, m, entry.Source)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "plugin %s", entry.Name))
			continue
		}

		p, err := LoadPlugin(dir)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "plugin %s", entry.Name))
			continue
		}
		p.Entry = &entry
		if p.Manifest == nil {
			p.Name = entry.Name
		}
		plugins = append(plugins, *p)
	}

	return plugins, result.ErrorOrNil()
}

// LoadPlugin reads the manifest (when present) and components of the plugin in dir
func LoadPlugin(dir string) (*Plugin, error) {
	p := &Plugin{Root: dir, Name: filepath.Base(dir)}

	m, _, err := LoadManifest(dir)
	switch {
	case err == nil:
		p.Manifest = m
		if m.Name != "" {
			p.Name = m.Name
		}
	case !os.IsNotExist(errors.Cause(err)):
		return nil, err
	}

	comp := scanComponents(nil, dir, p.Manifest)
	for _, s := range comp.skills {
		p.Skills = append(p.Skills, filepath.Base(s))
	}
	p.Commands = componentNames(dir, comp.commands)
	p.Agents = componentNames(dir, comp.agents)
	p.Hooks = comp.hooks

	return p, nil
}

// componentNames turns .md paths into names such as "review" or
// "git/commit", relative to their commands/ or agents/ directory
func componentNames(root string, paths []string) []string {
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			rel = filepath.Base(p)
		}
		rel = filepath.ToSlash(strings.TrimSuffix(rel, ".md"))
		if _, rest, ok := strings.Cut(rel, "/"); ok {
			rel = rest
		}
		names = append(names, rel)
	}
	sort.Strings(names)
	return names
}
