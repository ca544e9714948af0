package skills

import (
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// Resources lists the optional files bundled with a skill, relative to the
// skill directory using forward slashes
type Resources struct {
	Scripts    []string `json:"scripts,omitempty"`
	References []string `json:"references,omitempty"`
	Assets     []string `json:"assets,omitempty"`
}

// Count returns the total number of resource files
func (r Resources) Count() int {
	return len(r.Scripts) + len(r.References) + len(r.Assets)
}

// Inventory globs the resource subdirectories of dir
func Inventory(dir string) (Resources, error) {
	fsys := os.DirFS(dir)

	glob := func(pattern string) ([]string, error) {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to glob %s", pattern)
		}
		sort.Strings(matches)
		return matches, nil
	}

	var res Resources
	var err error
	if res.Scripts, err = glob("scripts/**"); err != nil {
		return res, err
	}
	if res.References, err = glob("references/**"); err != nil {
		return res, err
	}
	if res.Assets, err = glob("assets/**"); err != nil {
		return res, err
	}
	return res, nil
}
