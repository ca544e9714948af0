package hooks

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldesk/pkg/logger"
)

// hookFileNames are looked up in order inside each settings directory
var hookFileNames = []string{"hooks.json", "hooks.yaml", "hooks.yml"}

// PluginHookFile is a plugin-provided hooks file
type PluginHookFile struct {
	Path   string
	Root   string
	Plugin string
}

// Discovery finds hooks files from settings directories and plugins
type Discovery struct {
	settingsDirs []string
	pluginFiles  []PluginHookFile
}

// DiscoveryOption is a function that configures a Discovery
type DiscoveryOption func(*Discovery) error

// WithDefaultDirs initializes with default settings directories
func WithDefaultDirs() DiscoveryOption {
	return func(d *Discovery) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		d.settingsDirs = []string{
			"./.skilldesk",                        // Repo-local (runs first)
			filepath.Join(homeDir, ".skilldesk"), // User-global
		}
		return nil
	}
}

// WithSettingsDirs sets custom settings directories
func WithSettingsDirs(dirs ...string) DiscoveryOption {
	return func(d *Discovery) error {
		d.settingsDirs = dirs
		return nil
	}
}

// WithPluginHookFiles adds plugin hooks files, run after settings hooks
func WithPluginHookFiles(files ...PluginHookFile) DiscoveryOption {
	return func(d *Discovery) error {
		d.pluginFiles = append(d.pluginFiles, files...)
		return nil
	}
}

// NewDiscovery creates a new hook discovery instance
func NewDiscovery(opts ...DiscoveryOption) (*Discovery, error) {
	d := &Discovery{}

	if len(opts) == 0 {
		opts = []DiscoveryOption{WithDefaultDirs()}
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// DiscoverSources loads every hooks file in discovery order. Unreadable or
// malformed files are logged and skipped so one bad plugin cannot disable
// the others.
func (d *Discovery) DiscoverSources(ctx context.Context) []*Source {
	var sources []*Source

	for _, dir := range d.settingsDirs {
		for _, name := range hookFileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			cfg, err := LoadFile(path)
			if err != nil {
				logger.G(ctx).WithError(err).WithField("path", path).Warn("skipping hooks file")
				continue
			}
			sources = append(sources, &Source{Path: path, Config: cfg})
			break
		}
	}

	for _, pf := range d.pluginFiles {
		cfg, err := LoadFile(pf.Path)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("plugin", pf.Plugin).Warn("skipping plugin hooks file")
			continue
		}
		sources = append(sources, &Source{Path: pf.Path, PluginRoot: pf.Root, Plugin: pf.Plugin, Config: cfg})
	}

	return sources
}
