package skills

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Skill origins. Plugin skills use "plugin:" followed by the plugin name.
const (
	OriginLocal  = "local"
	OriginGlobal = "global"
	OriginCustom = "custom"

	originPluginPrefix = "plugin:"
)

// PluginSkillDir is a plugin's skills/ directory and the name prefix given
// to the skills found in it
type PluginSkillDir struct {
	Dir    string
	Prefix string
}

type root struct {
	dir    string
	prefix string
	origin string
}

// Discovery lists the skills an agent would load, in precedence order:
// repo-local, user-global, then installed plugins
type Discovery struct {
	roots []root
}

// Option configures a Discovery
type Option func(*Discovery) error

// WithDefaultDirs searches ./.skilldesk/skills, then ~/.skilldesk/skills
func WithDefaultDirs() Option {
	return func(d *Discovery) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		d.roots = append(d.roots,
			root{dir: filepath.Join(".", ".skilldesk", "skills"), origin: OriginLocal},
			root{dir: filepath.Join(homeDir, ".skilldesk", "skills"), origin: OriginGlobal},
		)
		return nil
	}
}

// WithSkillDirs searches dirs, in order, for standalone skills
func WithSkillDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		for _, dir := range dirs {
			d.roots = append(d.roots, root{dir: dir, origin: OriginCustom})
		}
		return nil
	}
}

// WithPluginSkillDirs searches plugin skills/ directories; their skills are
// exposed as <prefix><name>
func WithPluginSkillDirs(dirs ...PluginSkillDir) Option {
	return func(d *Discovery) error {
		for _, dir := range dirs {
			d.roots = append(d.roots, root{
				dir:    dir.Dir,
				prefix: dir.Prefix,
				origin: originPluginPrefix + strings.TrimSuffix(dir.Prefix, "/"),
			})
		}
		return nil
	}
}

// NewDiscovery creates a discovery; without options it searches the
// default directories only
func NewDiscovery(opts ...Option) (*Discovery, error) {
	if len(opts) == 0 {
		opts = []Option{WithDefaultDirs()}
	}
	d := &Discovery{}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Catalog is the result of a discovery run
type Catalog struct {
	Skills   []*Skill // sorted by name
	Shadowed []*Skill // hidden by an earlier skill with the same name
	Invalid  []string // directories whose SKILL.md lacks a name or description, or does not parse
}

// Lookup returns the skill called name
func (c *Catalog) Lookup(name string) (*Skill, bool) {
	i := sort.Search(len(c.Skills), func(i int) bool { return c.Skills[i].Name >= name })
	if i < len(c.Skills) && c.Skills[i].Name == name {
		return c.Skills[i], true
	}
	return nil, false
}

// Discover walks every root. Missing roots are skipped; the first root to
// define a name wins.
func (d *Discovery) Discover() (*Catalog, error) {
	catalog := &Catalog{}
	seen := map[string]bool{}

	for _, r := range d.roots {
		entries, err := os.ReadDir(r.dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read skill directory %s", r.dir)
		}

		for _, entry := range entries {
			dir := filepath.Join(r.dir, entry.Name())
			// Stat follows symlinked skill folders
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				continue
			}
			if _, err := os.Stat(filepath.Join(dir, skillFileName)); err != nil {
				continue
			}

			skill, err := Parse(dir)
			if err != nil || skill.Name == "" || skill.Description == "" {
				catalog.Invalid = append(catalog.Invalid, dir)
				continue
			}
			skill.Name = r.prefix + skill.Name
			skill.Directory = dir
			skill.Origin = r.origin

			if seen[skill.Name] {
				catalog.Shadowed = append(catalog.Shadowed, skill)
				continue
			}
			seen[skill.Name] = true
			catalog.Skills = append(catalog.Skills, skill)
		}
	}

	sort.Slice(catalog.Skills, func(i, j int) bool { return catalog.Skills[i].Name < catalog.Skills[j].Name })
	return catalog, nil
}
