package plugins

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jingkaihe/skilldesk/pkg/hooks"
	"github.com/jingkaihe/skilldesk/pkg/skills"
)

// Discovery finds installed plugins under the repo-local and user-global
// .skilldesk/plugins directories
type Discovery struct {
	baseDir string // ".skilldesk" or absolute path for repo-local
	homeDir string
}

// DiscoveryOption configures a Discovery instance
type DiscoveryOption func(*Discovery) error

// WithBaseDir sets a custom base directory (for testing)
func WithBaseDir(dir string) DiscoveryOption {
	return func(d *Discovery) error {
		d.baseDir = dir
		return nil
	}
}

// WithHomeDir sets a custom home directory (for testing)
func WithHomeDir(dir string) DiscoveryOption {
	return func(d *Discovery) error {
		d.homeDir = dir
		return nil
	}
}

// NewDiscovery creates a new plugin discovery instance
func NewDiscovery(opts ...DiscoveryOption) (*Discovery, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user home directory")
	}

	d := &Discovery{
		baseDir: skilldeskDir,
		homeDir: homeDir,
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

func (d *Discovery) roots() []struct {
	dir    string
	global bool
} {
	return []struct {
		dir    string
		global bool
	}{
		{filepath.Join(d.baseDir, pluginsSubdir), false},
		{filepath.Join(d.homeDir, skilldeskDir, pluginsSubdir), true},
	}
}

// ListInstalledPlugins returns installed plugins, repo-local first. A plugin
// installed in both places is reported once, from the repo-local copy.
func (d *Discovery) ListInstalledPlugins() ([]InstalledPlugin, error) {
	var installed []InstalledPlugin
	seen := make(map[string]bool)

	for _, root := range d.roots() {
		entries, err := os.ReadDir(root.dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "failed to read plugins directory %s", root.dir)
		}

		for _, entry := range entries {
			if !entry.IsDir() || seen[entry.Name()] {
				continue
			}
			dir := filepath.Join(root.dir, entry.Name())
			p, err := LoadPlugin(dir)
			if err != nil {
				logrus.WithError(err).WithField("dir", dir).Debug("failed to load installed plugin")
				continue
			}
			seen[entry.Name()] = true
			installed = append(installed, InstalledPlugin{
				Name:   entry.Name(),
				Path:   dir,
				Global: root.global,
				Skills: p.Skills,
				Hooks:  p.Hooks,
			})
		}
	}

	return installed, nil
}

// SkillDirs returns the skills/ directory of every installed plugin with the
// name prefix its skills are exposed under
func (d *Discovery) SkillDirs() []skills.PluginSkillDir {
	installed, err := d.ListInstalledPlugins()
	if err != nil {
		logrus.WithError(err).Debug("failed to list installed plugins")
		return nil
	}

	var dirs []skills.PluginSkillDir
	for _, p := range installed {
		if len(p.Skills) == 0 {
			continue
		}
		dirs = append(dirs, skills.PluginSkillDir{
			Dir:    filepath.Join(p.Path, skillsSubdir),
			Prefix: pluginNameToPrefix(p.Name),
		})
	}
	return dirs
}

// HookFiles returns the hooks file of every installed plugin
func (d *Discovery) HookFiles() []hooks.PluginHookFile {
	installed, err := d.ListInstalledPlugins()
	if err != nil {
		logrus.WithError(err).Debug("failed to list installed plugins")
		return nil
	}

	var files []hooks.PluginHookFile
	for _, p := range installed {
		if p.Hooks == "" {
			continue
		}
		files = append(files, hooks.PluginHookFile{
			Path:   p.Hooks,
			Root:   p.Path,
			Plugin: PluginNameToUserFacing(p.Name),
		})
	}
	return files
}
