package skills

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jingkaihe/skilldesk/pkg/lint"
)

const (
	maxNameLength          = 64
	maxDescriptionLength   = 1024
	maxCompatibilityLength = 500
	maxBodyLines           = 500
)

var nameRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

var expectedEntries = map[string]bool{
	skillFileName: true,
	"scripts":     true,
	"references":  true,
	"assets":      true,
}

// Validate checks a parsed skill against the folder convention
func Validate(skill *Skill) []lint.Issue {
	r := lint.Report{Path: skill.Directory}
	fm := skill.Frontmatter

	switch {
	case fm.Name == "":
		r.Errorf("name", "is required")
	case utf8.RuneCountInString(fm.Name) > maxNameLength:
		r.Errorf("name", "must be at most %d characters, got %d", maxNameLength, utf8.RuneCountInString(fm.Name))
	case !nameRe.MatchString(fm.Name):
		r.Errorf("name", "must be lowercase letters, digits and single hyphens, got %q", fm.Name)
	}
	if fm.Name != "" && skill.Directory != "" && filepath.Base(skill.Directory) != fm.Name {
		r.Warnf("name", "%q does not match directory name %q", fm.Name, filepath.Base(skill.Directory))
	}

	switch {
	case strings.TrimSpace(fm.Description) == "":
		r.Errorf("description", "is required")
	case utf8.RuneCountInString(fm.Description) > maxDescriptionLength:
		r.Errorf("description", "must be at most %d characters, got %d", maxDescriptionLength, utf8.RuneCountInString(fm.Description))
	}

	if n := utf8.RuneCountInString(fm.Compatibility); n > maxCompatibilityLength {
		r.Errorf("compatibility", "must be at most %d characters, got %d", maxCompatibilityLength, n)
	}

	keys := make([]string, 0, len(skill.raw))
	for k := range skill.raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !knownKeys[k] {
			r.Errorf(k, "unknown frontmatter field")
		}
	}
	if md, ok := skill.raw["metadata"]; ok && !isStringMap(md) {
		r.Errorf("metadata", "must be a map of string keys to string values")
	}

	body := strings.TrimSpace(skill.Content)
	if body == "" {
		r.Warnf("body", "SKILL.md has no instructions after the frontmatter")
	} else if lines := strings.Count(body, "\n") + 1; lines > maxBodyLines {
		r.Warnf("body", "SKILL.md body is %d lines; move detail into references/ (limit %d)", lines, maxBodyLines)
	}

	checkLinks(&r, skill)
	checkLayout(&r, skill.Directory)

	return r.Issues
}

func checkLinks(r *lint.Report, skill *Skill) {
	if skill.Directory == "" {
		return
	}
	for _, link := range skill.Links {
		target := link
		if i := strings.IndexAny(target, "#?"); i >= 0 {
			target = target[:i]
		}
		if unescaped, err := url.PathUnescape(target); err == nil {
			target = unescaped
		}
		if target == "" {
			continue
		}
		clean := path.Clean(target)
		if clean == ".." || strings.HasPrefix(clean, "../") {
			r.Warnf("body", "link %q points outside the skill directory", link)
			continue
		}
		if _, err := os.Stat(filepath.Join(skill.Directory, filepath.FromSlash(clean))); err != nil {
			r.Warnf("body", "link %q does not resolve to a file in the skill", link)
		}
	}
}

func checkLayout(r *lint.Report, dir string) {
	if dir == "" {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "LICENSE") {
			continue
		}
		if expectedEntries[name] {
			if name != skillFileName && !entry.IsDir() {
				r.Errorf("", "%s must be a directory", name)
			}
			continue
		}
		r.Warnf("", "unexpected top-level entry %q; use scripts/, references/ or assets/", name)
	}
}

// ValidateDir parses and validates the skill in dir
func ValidateDir(dir string) lint.Report {
	r := lint.Report{Path: dir}

	if _, err := os.Stat(filepath.Join(dir, skillFileName)); err != nil {
		r.Errorf("", "missing %s", skillFileName)
		return r
	}

	skill, err := Parse(dir)
	if err != nil {
		r.Errorf("", "%v", err)
		return r
	}

	r.Add(Validate(skill)...)
	return r
}

// FindSkillDirs returns every directory under root that holds a SKILL.md
func FindSkillDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && (d.Name() == ".git" || d.Name() == "node_modules") {
			return filepath.SkipDir
		}
		if !d.IsDir() && d.Name() == skillFileName {
			dirs = append(dirs, filepath.Dir(p))
		}
		return nil
	})
	sort.Strings(dirs)
	return dirs, err
}
