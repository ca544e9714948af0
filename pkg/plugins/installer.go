package plugins

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"

	"github.com/jingkaihe/skilldesk/pkg/lint"
	"github.com/jingkaihe/skilldesk/pkg/logger"
)

// ValidateRepoName validates a GitHub repository name format.
// Expected format: "owner/repo".
func ValidateRepoName(repo string) error {
	if repo == "" {
		return errors.New("repository name cannot be empty")
	}
	if !strings.Contains(repo, "/") {
		return errors.Errorf("invalid repository format %q: expected 'owner/repo'", repo)
	}
	parts := strings.SplitN(repo, "/", 2)
	if parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], "/") {
		return errors.Errorf("invalid repository format %q: expected 'owner/repo'", repo)
	}
	return nil
}

const lockFile = ".lock"

// pluginDir resolves name under the plugins directory and refuses any
// result that lands outside it
func (i *Installer) pluginDir(name string) (string, error) {
	root := filepath.Join(i.targetDir, pluginsSubdir)
	dir := filepath.Join(root, name)
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("plugin name %q resolves outside %s", name, root)
	}
	return dir, nil
}

// Installer copies marketplace plugins under .skilldesk/plugins
type Installer struct {
	global    bool
	force     bool
	targetDir string
	git       string
}

// InstallerOption configures an Installer instance
type InstallerOption func(*Installer)

// WithGlobal installs plugins to the global directory
func WithGlobal(global bool) InstallerOption {
	return func(i *Installer) {
		i.global = global
	}
}

// WithForce overwrites existing plugins
func WithForce(force bool) InstallerOption {
	return func(i *Installer) {
		i.force = force
	}
}

// WithTargetDir overrides the .skilldesk directory (for testing)
func WithTargetDir(dir string) InstallerOption {
	return func(i *Installer) {
		i.targetDir = dir
	}
}

// NewInstaller creates a new plugin installer
func NewInstaller(opts ...InstallerOption) (*Installer, error) {
	i := &Installer{git: "git"}
	for _, opt := range opts {
		opt(i)
	}

	if i.targetDir == "" {
		if i.global {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, errors.Wrap(err, "failed to get home directory")
			}
			i.targetDir = filepath.Join(homeDir, skilldeskDir)
		} else {
			i.targetDir = skilldeskDir
		}
	}

	return i, nil
}

// InstallResult contains information about an installed plugin
type InstallResult struct {
	PluginName string
	Path       string
	Skills     []string
	Commands   []string
	Agents     []string
	Hooks      string
}

// Install fetches the named plugin from the marketplace at root and copies
// it into the plugins directory
func (i *Installer) Install(ctx context.Context, root, name string) (*InstallResult, error) {
	if !nameRe.MatchString(name) {
		return nil, errors.Errorf("invalid plugin name %q: must be lowercase letters, digits and single hyphens", name)
	}

	m, _, err := LoadMarketplace(root)
	if err != nil {
		return nil, err
	}

	var entry *Entry
	for idx := range m.Plugins {
		if m.Plugins[idx].Name == name {
			entry = &m.Plugins[idx]
			break
		}
	}
	if entry == nil {
		return nil, errors.Errorf("plugin %q not found in marketplace %s", name, m.Name)
	}

	srcDir, cleanup, err := i.fetch(ctx, root, m, entry.Source)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if report := ValidatePlugin(srcDir, entry); !report.Valid() {
		for _, issue := range report.Sorted() {
			logger.G(ctx).WithField("plugin", name).Warn(issue.String())
		}
		return nil, errors.Errorf("plugin %q failed validation with %d error(s)", name, report.Count(lint.SeverityError))
	}

	unlock, err := lockPluginsDir(i.targetDir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	pluginDir, err := i.pluginDir(name)
	if err != nil {
		return nil, err
	}
	if err := i.checkExisting(pluginDir); err != nil {
		return nil, err
	}
	if err := copyDir(srcDir, pluginDir); err != nil {
		os.RemoveAll(pluginDir)
		return nil, errors.Wrapf(err, "failed to install plugin %s", name)
	}

	p, err := LoadPlugin(pluginDir)
	if err != nil {
		return nil, err
	}

	return &InstallResult{
		PluginName: name,
		Path:       pluginDir,
		Skills:     p.Skills,
		Commands:   p.Commands,
		Agents:     p.Agents,
		Hooks:      p.Hooks,
	}, nil
}

// fetch returns a directory holding the plugin source and a cleanup func
func (i *Installer) fetch(ctx context.Context, root string, m *Marketplace, src Source) (string, func(), error) {
	noop := func() {}

	switch src.Kind {
	case SourceLocal, "":
		dir, err := ResolveLocalSource(root, m, src)
		return dir, noop, err
	case SourceGitHub:
		if err := ValidateRepoName(src.Repo); err != nil {
			return "", noop, err
		}
		return i.clone(ctx, "https://github.com/"+src.Repo+".git", src.Ref)
	default:
		return i.clone(ctx, src.URL, src.Ref)
	}
}

func (i *Installer) clone(ctx context.Context, url, ref string) (string, func(), error) {
	tempDir, err := os.MkdirTemp("", "skilldesk-plugin-*")
	if err != nil {
		return "", func() {}, errors.Wrap(err, "failed to create temp directory")
	}
	cleanup := func() { os.RemoveAll(tempDir) }

	args := []string{"clone", "--depth", "1"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, url, tempDir)

	cmd := exec.CommandContext(ctx, i.git, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		cleanup()
		return "", func() {}, errors.Wrapf(err, "failed to clone repository: %s", string(output))
	}
	os.RemoveAll(filepath.Join(tempDir, ".git"))

	return tempDir, cleanup, nil
}

// lockPluginsDir serialises installs and removals sharing a plugins
// directory across processes
func lockPluginsDir(base string) (func(), error) {
	dir := filepath.Join(base, pluginsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", dir)
	}
	unlock, err := lockedfile.MutexAt(filepath.Join(dir, lockFile)).Lock()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to lock %s", dir)
	}
	return unlock, nil
}

func (i *Installer) checkExisting(path string) error {
	if _, err := os.Stat(path); err == nil {
		if !i.force {
			return errors.Errorf("plugin already exists at %s (use --force to overwrite)", path)
		}
		if err := os.RemoveAll(path); err != nil {
			return errors.Wrap(err, "failed to remove existing plugin")
		}
	}
	return nil
}

func copyDir(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		destPath := filepath.Join(dst, relPath)

		if info.IsDir() {
			if info.Name() == ".git" && path != src {
				return filepath.SkipDir
			}
			return os.MkdirAll(destPath, info.Mode()|0o700)
		}

		return copyFile(path, destPath, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

// Remover handles plugin removal
type Remover struct {
	baseDir string
}

// NewRemover creates a new plugin remover
func NewRemover(opts ...InstallerOption) (*Remover, error) {
	i, err := NewInstaller(opts...)
	if err != nil {
		return nil, err
	}
	return &Remover{baseDir: i.targetDir}, nil
}

// Remove removes an installed plugin by name
func (r *Remover) Remove(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return errors.Errorf("invalid plugin name %q", name)
	}

	pluginPath := filepath.Join(r.baseDir, pluginsSubdir, name)
	if _, err := os.Stat(pluginPath); os.IsNotExist(err) {
		return errors.Errorf("plugin '%s' not found", name)
	}

	unlock, err := lockPluginsDir(r.baseDir)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := os.Stat(pluginPath); os.IsNotExist(err) {
		return errors.Errorf("plugin '%s' not found", name)
	}

	if err := os.RemoveAll(pluginPath); err != nil {
		return errors.Wrap(err, "failed to remove plugin")
	}

	return nil
}
